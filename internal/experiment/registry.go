package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/pidlab/internal/dynamo"
	"github.com/san-kum/pidlab/internal/metrics"
	"github.com/san-kum/pidlab/internal/sim"
)

// Objective extracts a score from a finished run. Lower is better.
type Objective func(r *sim.Result) metrics.Value

var objectives = map[string]Objective{
	"settling_time":      transient("settling_time"),
	"rise_time":          transient("rise_time"),
	"overshoot":          transient("overshoot"),
	"steady_state_error": transient("steady_state_error"),
	"iae":                aux("iae"),
	"control_effort":     aux("control_effort"),
	"error_std":          aux("error_std"),
}

func transient(name string) Objective {
	return func(r *sim.Result) metrics.Value {
		v, _ := r.Metrics.Lookup(name)
		return v
	}
}

func aux(name string) Objective {
	return func(r *sim.Result) metrics.Value {
		if r.StepsTaken == 0 {
			return metrics.Unknown
		}
		v, ok := r.Aux[name]
		if !ok {
			return metrics.Unknown
		}
		return metrics.Known(v)
	}
}

func GetObjective(name string) (Objective, error) {
	fn, ok := objectives[name]
	if !ok {
		return nil, fmt.Errorf("%w: objective %q", dynamo.ErrUnknownParam, name)
	}
	return fn, nil
}

func ListObjectives() []string {
	names := make([]string, 0, len(objectives))
	for name := range objectives {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMetrics returns fresh auxiliary metrics for one session.
func DefaultMetrics() []dynamo.Metric {
	return metrics.Standard()
}
