package automation

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/pidlab/internal/config"
	"github.com/san-kum/pidlab/internal/dynamo"
	"github.com/san-kum/pidlab/internal/experiment"
	"github.com/san-kum/pidlab/internal/metrics"
	"github.com/san-kum/pidlab/internal/sim"
)

// Scenario defines a scripted run: a base configuration and timed commands.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Duration    float64        `yaml:"duration"`
	Config      *config.Config `yaml:"config"`
	Events      []Event        `yaml:"events"`
}

// Event is a command issued on the first tick whose time is at or after At.
type Event struct {
	At      float64       `yaml:"at"`
	Action  string        `yaml:"action"`
	Value   float64       `yaml:"value"`
	Gains   *dynamo.Gains `yaml:"gains,omitempty"`
	Preset  string        `yaml:"preset,omitempty"`
	Enabled bool          `yaml:"enabled,omitempty"`
}

var actions = map[string]bool{
	"target":      true,
	"disturbance": true,
	"gains":       true,
	"friction":    true,
	"preset":      true,
	"reset":       true,
	"pause":       true,
	"resume":      true,
	"auto_step":   true,
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	scenario := Scenario{Config: config.DefaultConfig()}
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if scenario.Config == nil {
		scenario.Config = config.DefaultConfig()
	}
	if scenario.Config.Preset != "" {
		if err := scenario.Config.ApplyPreset(scenario.Config.Preset); err != nil {
			return nil, err
		}
	}
	if scenario.Duration == 0 {
		scenario.Duration = scenario.Config.Duration
	}
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	return &scenario, nil
}

func (s *Scenario) Validate() error {
	if !(s.Duration > 0) || math.IsInf(s.Duration, 0) {
		return dynamo.Bounds("duration", s.Duration, "> 0")
	}
	if err := s.Config.Validate(); err != nil {
		return err
	}
	for i, ev := range s.Events {
		if !actions[ev.Action] {
			return fmt.Errorf("event %d: %w: action %q", i+1, dynamo.ErrUnknownParam, ev.Action)
		}
		if ev.At < 0 || math.IsNaN(ev.At) {
			return fmt.Errorf("event %d: %w", i+1, dynamo.Bounds("at", ev.At, ">= 0"))
		}
		if ev.Action == "gains" && ev.Gains == nil {
			return fmt.Errorf("event %d: gains action without gains", i+1)
		}
		if ev.Action == "preset" {
			if _, err := config.GetPreset(ev.Preset); err != nil {
				return fmt.Errorf("event %d: %w", i+1, err)
			}
		}
	}
	return nil
}

// Fired records an event as it was applied.
type Fired struct {
	Time  float64
	Event Event
	Err   error
}

// ScenarioResult is the outcome of a scripted run.
type ScenarioResult struct {
	Samples []dynamo.Sample
	Metrics metrics.Transient
	Aux     map[string]float64
	Fired   []Fired
}

type collector struct{ samples []dynamo.Sample }

func (c *collector) OnStep(s dynamo.Sample) { c.samples = append(c.samples, s) }

// RunScenario advances a scenario clock by dt for round(duration/dt) ticks.
// Due events fire first, in file order. The session only steps while running,
// so paused ticks advance the scenario clock and nothing else.
func RunScenario(ctx context.Context, scenario *Scenario, log *zap.Logger) (*ScenarioResult, error) {
	if log == nil {
		log = zap.NewNop()
	}
	col := &collector{}
	exp := experiment.New(scenario.Config, log)
	if err := exp.Setup(col); err != nil {
		return nil, err
	}
	session := exp.Session()

	events := append([]Event(nil), scenario.Events...)
	sort.SliceStable(events, func(i, j int) bool { return events[i].At < events[j].At })

	dt := session.Dt()
	steps := int(math.Round(scenario.Duration / dt))
	result := &ScenarioResult{}
	next := 0

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			finish(result, session, col)
			return result, fmt.Errorf("%w: %w", dynamo.ErrContextCanceled, ctx.Err())
		default:
		}

		now := float64(i) * dt
		for next < len(events) && events[next].At <= now {
			ev := events[next]
			err := apply(session, ev)
			if err != nil {
				log.Warn("scenario event rejected", zap.String("action", ev.Action), zap.Float64("at", ev.At), zap.Error(err))
			}
			result.Fired = append(result.Fired, Fired{Time: now, Event: ev, Err: err})
			next++
		}

		session.Step()
	}

	finish(result, session, col)
	return result, nil
}

func finish(result *ScenarioResult, session *sim.Session, col *collector) {
	result.Samples = col.samples
	result.Metrics = session.Metrics()
	result.Aux = session.Aux()
}

func apply(s *sim.Session, ev Event) error {
	switch ev.Action {
	case "target":
		return s.SetTarget(ev.Value)
	case "disturbance":
		if ev.Value == 0 {
			s.Disturb()
		} else {
			s.AddDisturbance(ev.Value)
		}
	case "gains":
		s.SetGains(*ev.Gains)
	case "friction":
		return s.SetFriction(ev.Value)
	case "preset":
		p, err := config.GetPreset(ev.Preset)
		if err != nil {
			return err
		}
		return s.ApplyPreset(p)
	case "reset":
		s.Reset()
	case "pause":
		s.Pause()
	case "resume":
		s.Resume()
	case "auto_step":
		return s.SetAutoStep(ev.Enabled)
	default:
		return fmt.Errorf("%w: action %q", dynamo.ErrUnknownParam, ev.Action)
	}
	return nil
}
