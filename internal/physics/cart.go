package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/pidlab/internal/dynamo"
)

const (
	DefaultMass             = 1.0
	DefaultFriction         = 0.2
	DefaultMinPosition      = 0.0
	DefaultMaxPosition      = 100.0
	DefaultStartPosition    = 50.0
	DefaultDisturbanceDecay = 0.95
	DefaultDisturbanceForce = 30.0

	// disturbanceDeadband ends the geometric decay in finite time.
	disturbanceDeadband = 0.01
)

// Config holds the physical parameters of the cart.
type Config struct {
	Mass             float64 `yaml:"mass"`
	Friction         float64 `yaml:"friction"`
	MinPosition      float64 `yaml:"min_position"`
	MaxPosition      float64 `yaml:"max_position"`
	DisturbanceDecay float64 `yaml:"disturbance_decay"`
}

func DefaultConfig() Config {
	return Config{
		Mass:             DefaultMass,
		Friction:         DefaultFriction,
		MinPosition:      DefaultMinPosition,
		MaxPosition:      DefaultMaxPosition,
		DisturbanceDecay: DefaultDisturbanceDecay,
	}
}

// Validate rejects parameters the integration step cannot handle.
func (c Config) Validate() error {
	if !(c.Mass > 0) || math.IsInf(c.Mass, 0) {
		return dynamo.Bounds("mass", c.Mass, "> 0")
	}
	if !(c.Friction >= 0) {
		return dynamo.Bounds("friction", c.Friction, ">= 0")
	}
	if !(c.MinPosition < c.MaxPosition) {
		return dynamo.Bounds("min_position", c.MinPosition, "< max_position")
	}
	if !(c.DisturbanceDecay > 0 && c.DisturbanceDecay < 1) {
		return dynamo.Bounds("disturbance_decay", c.DisturbanceDecay, "in (0, 1)")
	}
	return nil
}

// Cart is a point mass on a bounded rail driven by a control force, viscous
// friction and a decaying external disturbance.
type Cart struct {
	Mass             float64
	Friction         float64
	MinPosition      float64
	MaxPosition      float64
	DisturbanceDecay float64

	position    float64
	velocity    float64
	disturbance float64
}

// NewCart returns a cart at rest at DefaultStartPosition, clamped to the rail.
func NewCart(cfg Config) *Cart {
	c := &Cart{
		Mass:             cfg.Mass,
		Friction:         cfg.Friction,
		MinPosition:      cfg.MinPosition,
		MaxPosition:      cfg.MaxPosition,
		DisturbanceDecay: cfg.DisturbanceDecay,
	}
	c.Reset(DefaultStartPosition)
	return c
}

// Update advances the cart by dt under the given control force using a
// semi-implicit Euler step, then clamps it to the rail.
func (c *Cart) Update(force, dt float64) {
	if math.Abs(c.disturbance) > disturbanceDeadband {
		c.disturbance *= c.DisturbanceDecay
	} else {
		c.disturbance = 0
	}

	friction := -c.Friction * c.velocity
	acc := (force + c.disturbance + friction) / c.Mass

	// velocity first, then position with the new velocity
	c.velocity += acc * dt
	c.position += c.velocity * dt

	if c.position <= c.MinPosition {
		c.position = c.MinPosition
		c.velocity = math.Max(0, c.velocity)
	} else if c.position >= c.MaxPosition {
		c.position = c.MaxPosition
		c.velocity = math.Min(0, c.velocity)
	}
}

// AddDisturbance replaces any decaying disturbance with a new impulse.
func (c *Cart) AddDisturbance(force float64) {
	c.disturbance = force
}

// Reset places the cart at rest at position. Mass and friction are kept.
// The position is clamped to the rail; NaN lands on the low rail.
func (c *Cart) Reset(position float64) {
	if math.IsNaN(position) {
		position = c.MinPosition
	}
	c.position = math.Max(c.MinPosition, math.Min(c.MaxPosition, position))
	c.velocity = 0
	c.disturbance = 0
}

func (c *Cart) SetFriction(friction float64) {
	c.Friction = friction
}

func (c *Cart) State() dynamo.CartState {
	return dynamo.CartState{
		Position:    c.position,
		Velocity:    c.velocity,
		Disturbance: c.disturbance,
	}
}

func (c *Cart) GetParams() map[string]float64 {
	return map[string]float64{
		"mass":     c.Mass,
		"friction": c.Friction,
	}
}

func (c *Cart) SetParam(name string, value float64) error {
	switch name {
	case "mass":
		if !(value > 0) || math.IsInf(value, 0) {
			return dynamo.Bounds(name, value, "> 0")
		}
		c.Mass = value
	case "friction":
		if !(value >= 0) || math.IsInf(value, 0) {
			return dynamo.Bounds(name, value, ">= 0")
		}
		c.Friction = value
	default:
		return fmt.Errorf("%w: %s", dynamo.ErrUnknownParam, name)
	}
	return nil
}
