package sim

import (
	"math"

	"github.com/san-kum/pidlab/internal/control"
	"github.com/san-kum/pidlab/internal/dynamo"
	"github.com/san-kum/pidlab/internal/metrics"
	"github.com/san-kum/pidlab/internal/physics"
)

const (
	DefaultDt               = 1.0 / 60
	DefaultHistory          = 600
	DefaultAutoStepInterval = 5.0
)

// AutoStep alternates the target between fixed positions.
type AutoStep struct {
	Enabled   bool      `yaml:"enabled"`
	Interval  float64   `yaml:"interval"`
	Positions []float64 `yaml:"positions"`
}

func DefaultAutoStep() AutoStep {
	return AutoStep{
		Interval:  DefaultAutoStepInterval,
		Positions: []float64{25, 75},
	}
}

// Config fixes the step contract and the initial state of a session.
type Config struct {
	Dt               float64
	StartPosition    float64
	Target           float64
	Gains            dynamo.Gains
	Limits           control.Limits
	Derivative       control.DerivativeMode
	Plant            physics.Config
	DisturbanceForce float64
	AutoStep         AutoStep
	History          int
}

func DefaultConfig() Config {
	return Config{
		Dt:               DefaultDt,
		StartPosition:    physics.DefaultStartPosition,
		Target:           physics.DefaultStartPosition,
		Gains:            dynamo.Gains{Kp: 2.0, Ki: 0.1, Kd: 0.5},
		Limits:           control.DefaultLimits(),
		Plant:            physics.DefaultConfig(),
		DisturbanceForce: physics.DefaultDisturbanceForce,
		AutoStep:         DefaultAutoStep(),
		History:          DefaultHistory,
	}
}

func (c Config) Validate() error {
	if err := dynamo.CheckStep(c.Dt); err != nil {
		return err
	}
	if err := c.Plant.Validate(); err != nil {
		return err
	}
	if err := c.Limits.Validate(); err != nil {
		return err
	}
	if !c.onRail(c.StartPosition) {
		return dynamo.Bounds("start_position", c.StartPosition, "on the rail")
	}
	if !c.onRail(c.Target) {
		return dynamo.Bounds("target", c.Target, "on the rail")
	}
	if math.IsNaN(c.DisturbanceForce) || math.IsInf(c.DisturbanceForce, 0) {
		return dynamo.Bounds("disturbance_force", c.DisturbanceForce, "finite")
	}
	if c.History < 0 {
		return dynamo.Bounds("history", float64(c.History), ">= 0")
	}
	if c.AutoStep.Enabled || len(c.AutoStep.Positions) > 0 {
		if !(c.AutoStep.Interval > 0) {
			return dynamo.Bounds("auto_step.interval", c.AutoStep.Interval, "> 0")
		}
		if len(c.AutoStep.Positions) == 0 {
			return dynamo.Bounds("auto_step.positions", 0, "at least one position")
		}
		for _, p := range c.AutoStep.Positions {
			if !c.onRail(p) {
				return dynamo.Bounds("auto_step.positions", p, "on the rail")
			}
		}
	}
	return nil
}

func (c Config) onRail(p float64) bool {
	return p >= c.Plant.MinPosition && p <= c.Plant.MaxPosition
}

// View is a read-only snapshot of a session for presentation layers.
type View struct {
	Time     float64
	Target   float64
	State    dynamo.CartState
	Terms    dynamo.Terms
	Gains    dynamo.Gains
	Friction float64
	Metrics  metrics.Transient
	Running  bool
	AutoStep bool
	Ticks    int
}

// Result is the outcome of a batch run.
type Result struct {
	Samples    []dynamo.Sample
	Metrics    metrics.Transient
	Aux        map[string]float64
	StepsTaken int
}

// Final returns the last sample of the run, or the zero sample if none was taken.
func (r *Result) Final() dynamo.Sample {
	if len(r.Samples) == 0 {
		return dynamo.Sample{}
	}
	return r.Samples[len(r.Samples)-1]
}
