package dynamo

import "math"

// Gains are the three PID coefficients.
type Gains struct {
	Kp float64 `json:"kp" yaml:"kp"`
	Ki float64 `json:"ki" yaml:"ki"`
	Kd float64 `json:"kd" yaml:"kd"`
}

// Terms is the result of one controller update: the saturated output and the
// unsaturated contribution of each term.
type Terms struct {
	Output float64 `json:"output"`
	P      float64 `json:"p"`
	I      float64 `json:"i"`
	D      float64 `json:"d"`
}

// CartState is the externally visible plant state.
type CartState struct {
	Position    float64 `json:"position"`
	Velocity    float64 `json:"velocity"`
	Disturbance float64 `json:"disturbance"`
}

func (s CartState) IsValid() bool {
	for _, v := range [...]float64{s.Position, s.Velocity, s.Disturbance} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Sample records one admitted tick. Error is the value fed to the controller;
// Position and Velocity are the plant state after the tick.
type Sample struct {
	Time        float64 `json:"time"`
	Target      float64 `json:"target"`
	Position    float64 `json:"position"`
	Velocity    float64 `json:"velocity"`
	Error       float64 `json:"error"`
	Disturbance float64 `json:"disturbance"`
	Terms       Terms   `json:"terms"`
}

// Metric accumulates a scalar figure of merit over a run.
type Metric interface {
	Name() string
	Observe(s Sample, dt float64)
	Value() float64
	Reset()
}

// Observer is notified after every admitted tick.
type Observer interface {
	OnStep(s Sample)
}

// Configurable components expose named parameters for live tuning.
type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

// CheckStep reports whether dt is usable as a fixed step size.
func CheckStep(dt float64) error {
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return ErrInvalidStep
	}
	return nil
}

// Preset is a named parameter bundle. Applying it sets the gains and the
// friction and then resets the loop.
type Preset struct {
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description" json:"description"`
	Kp          float64 `yaml:"kp" json:"kp"`
	Ki          float64 `yaml:"ki" json:"ki"`
	Kd          float64 `yaml:"kd" json:"kd"`
	Friction    float64 `yaml:"friction" json:"friction"`
	Expected    string  `yaml:"expected" json:"expected"`
}

func (p Preset) Gains() Gains {
	return Gains{Kp: p.Kp, Ki: p.Ki, Kd: p.Kd}
}
