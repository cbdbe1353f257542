package control

import (
	"fmt"
	"math"

	"github.com/san-kum/pidlab/internal/dynamo"
)

const (
	DefaultIntegralMax = 100.0
	DefaultOutputMin   = -100.0
	DefaultOutputMax   = 100.0
)

// DerivativeMode selects the signal the D term differentiates.
type DerivativeMode int

const (
	// DerivativeOnError differentiates the error signal. A setpoint step
	// produces a one-tick derivative kick.
	DerivativeOnError DerivativeMode = iota
	// DerivativeOnMeasurement differentiates the negated measurement.
	DerivativeOnMeasurement
)

func (m DerivativeMode) String() string {
	switch m {
	case DerivativeOnMeasurement:
		return "measurement"
	default:
		return "error"
	}
}

// ParseDerivativeMode accepts "error" or "measurement"; empty means error.
func ParseDerivativeMode(s string) (DerivativeMode, error) {
	switch s {
	case "", "error":
		return DerivativeOnError, nil
	case "measurement":
		return DerivativeOnMeasurement, nil
	}
	return DerivativeOnError, fmt.Errorf("%w: derivative mode %q", dynamo.ErrUnknownParam, s)
}

// Limits are the saturation constants of the controller.
type Limits struct {
	IntegralMax float64 `yaml:"integral_max"`
	OutputMin   float64 `yaml:"output_min"`
	OutputMax   float64 `yaml:"output_max"`
}

func DefaultLimits() Limits {
	return Limits{
		IntegralMax: DefaultIntegralMax,
		OutputMin:   DefaultOutputMin,
		OutputMax:   DefaultOutputMax,
	}
}

func (l Limits) Validate() error {
	if l.IntegralMax < 0 {
		return dynamo.Bounds("integral_max", l.IntegralMax, ">= 0")
	}
	if l.OutputMin > l.OutputMax {
		return dynamo.Bounds("output_min", l.OutputMin, "<= output_max")
	}
	return nil
}

// PID is a discrete PID controller with integral anti-windup and output
// saturation. Update must be called with dt > 0; the controller does not
// check it.
type PID struct {
	Kp, Ki, Kd float64
	Limits     Limits
	Mode       DerivativeMode

	integral float64
	prevErr  float64
	prevMeas float64
	haveMeas bool
	last     dynamo.Terms
}

func NewPID(g dynamo.Gains) *PID {
	return &PID{
		Kp:     g.Kp,
		Ki:     g.Ki,
		Kd:     g.Kd,
		Limits: DefaultLimits(),
	}
}

// Update advances the controller by one step of length dt and returns the
// saturated output together with the individual terms.
func (p *PID) Update(err, dt float64) dynamo.Terms {
	return p.update(err, (err-p.prevErr)/dt, dt)
}

// Compute runs one step from a setpoint and a measurement. In
// DerivativeOnError mode it is equivalent to Update(setpoint-measurement, dt).
func (p *PID) Compute(setpoint, measurement, dt float64) dynamo.Terms {
	err := setpoint - measurement
	if p.Mode != DerivativeOnMeasurement {
		return p.Update(err, dt)
	}

	rate := 0.0
	if p.haveMeas {
		rate = -(measurement - p.prevMeas) / dt
	}
	p.prevMeas = measurement
	p.haveMeas = true
	return p.update(err, rate, dt)
}

func (p *PID) update(err, rate, dt float64) dynamo.Terms {
	pTerm := p.Kp * err

	p.integral = clamp(p.integral+err*dt, -p.Limits.IntegralMax, p.Limits.IntegralMax)
	iTerm := p.Ki * p.integral

	dTerm := p.Kd * rate

	out := clamp(pTerm+iTerm+dTerm, p.Limits.OutputMin, p.Limits.OutputMax)

	p.prevErr = err
	p.last = dynamo.Terms{Output: out, P: pTerm, I: iTerm, D: dTerm}
	return p.last
}

// Reset clears integral and derivative memory. Gains are untouched.
func (p *PID) Reset() {
	p.integral = 0
	p.prevErr = 0
	p.prevMeas = 0
	p.haveMeas = false
	p.last = dynamo.Terms{}
}

// SetGains replaces the gains without touching controller state.
func (p *PID) SetGains(g dynamo.Gains) {
	p.Kp, p.Ki, p.Kd = g.Kp, g.Ki, g.Kd
}

func (p *PID) Gains() dynamo.Gains {
	return dynamo.Gains{Kp: p.Kp, Ki: p.Ki, Kd: p.Kd}
}

// Integral returns the clamped error-time accumulator.
func (p *PID) Integral() float64 { return p.integral }

// Last returns the terms computed by the most recent update.
func (p *PID) Last() dynamo.Terms { return p.last }

// GetParams returns tunable parameters for live adjustment
func (p *PID) GetParams() map[string]float64 {
	return map[string]float64{
		"Kp": p.Kp,
		"Ki": p.Ki,
		"Kd": p.Kd,
	}
}

// SetParam adjusts a PID gain
func (p *PID) SetParam(name string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return dynamo.Bounds(name, value, "finite")
	}
	switch name {
	case "Kp":
		p.Kp = value
	case "Ki":
		p.Ki = value
	case "Kd":
		p.Kd = value
	default:
		return fmt.Errorf("%w: %s", dynamo.ErrUnknownParam, name)
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
