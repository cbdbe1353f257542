package automation

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/san-kum/pidlab/internal/config"
	"github.com/san-kum/pidlab/internal/dynamo"
	"github.com/san-kum/pidlab/internal/experiment"
	"github.com/san-kum/pidlab/internal/metrics"
)

// ParameterSweep runs one simulation per value of a single tuning parameter.
type ParameterSweep struct {
	Param    string
	Min      float64
	Max      float64
	NumSteps int
}

// SweepResult holds the outcome of one sweep point.
type SweepResult struct {
	Value   float64
	Metrics metrics.Transient
	Aux     map[string]float64
	Final   dynamo.Sample
}

// Values lists the swept values, evenly spaced and inclusive of both ends.
func (p *ParameterSweep) Values() ([]float64, error) {
	if p.NumSteps < 1 {
		return nil, dynamo.Bounds("steps", float64(p.NumSteps), ">= 1")
	}
	if math.IsNaN(p.Min) || math.IsNaN(p.Max) || p.Max < p.Min {
		return nil, dynamo.Bounds("max", p.Max, ">= min")
	}
	if p.NumSteps == 1 {
		return []float64{p.Min}, nil
	}
	step := (p.Max - p.Min) / float64(p.NumSteps-1)
	values := make([]float64, p.NumSteps)
	for i := range values {
		values[i] = p.Min + float64(i)*step
	}
	return values, nil
}

func setParam(cfg *config.Config, name string, value float64) error {
	switch name {
	case "kp":
		cfg.Gains.Kp = value
	case "ki":
		cfg.Gains.Ki = value
	case "kd":
		cfg.Gains.Kd = value
	case "friction":
		cfg.Plant.Friction = value
	default:
		return fmt.Errorf("%w: sweep parameter %q", dynamo.ErrUnknownParam, name)
	}
	return nil
}

// RunSweep executes a parameter sweep against copies of base.
func RunSweep(ctx context.Context, base *config.Config, sweep *ParameterSweep, log *zap.Logger) ([]SweepResult, error) {
	values, err := sweep.Values()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	results := make([]SweepResult, 0, len(values))
	for i, v := range values {
		cfg := *base
		if err := setParam(&cfg, sweep.Param, v); err != nil {
			return nil, err
		}

		res, err := experiment.RunConfig(ctx, &cfg, log)
		if err != nil {
			return results, fmt.Errorf("sweep %s=%g: %w", sweep.Param, v, err)
		}

		results = append(results, SweepResult{
			Value:   v,
			Metrics: res.Metrics,
			Aux:     res.Aux,
			Final:   res.Final(),
		})
		log.Debug("sweep point", zap.Int("index", i+1), zap.Int("of", len(values)), zap.String("param", sweep.Param), zap.Float64("value", v))
	}

	return results, nil
}
