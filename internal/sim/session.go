package sim

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/san-kum/pidlab/internal/control"
	"github.com/san-kum/pidlab/internal/dynamo"
	"github.com/san-kum/pidlab/internal/metrics"
	"github.com/san-kum/pidlab/internal/physics"
)

// Session owns the controller, the cart and the metrics tracker and steps
// them in a fixed order. It owns no timer: an external scheduler calls Step
// once per frame. Commands (target, gains, disturbance, ...) are plain method
// calls made between ticks.
type Session struct {
	cfg     Config
	dt      float64
	pid     *control.PID
	cart    *physics.Cart
	tracker *metrics.Tracker

	target  float64
	running bool
	ticks   int
	last    dynamo.Sample

	autoStep  bool
	autoTicks int
	autoIndex int

	history   *History
	metrics   []dynamo.Metric
	observers []dynamo.Observer
	log       *zap.Logger
}

type Option func(*Session)

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics attaches auxiliary metrics observed on every admitted tick.
func WithMetrics(ms ...dynamo.Metric) Option {
	return func(s *Session) { s.metrics = append(s.metrics, ms...) }
}

func WithObserver(o dynamo.Observer) Option {
	return func(s *Session) { s.observers = append(s.observers, o) }
}

// New validates cfg and builds a running session at rest at cfg.StartPosition.
func New(cfg Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("session config: %w", err)
	}
	cfg.AutoStep.Positions = append([]float64(nil), cfg.AutoStep.Positions...)

	pid := control.NewPID(cfg.Gains)
	pid.Limits = cfg.Limits
	pid.Mode = cfg.Derivative

	cart := physics.NewCart(cfg.Plant)
	cart.Reset(cfg.StartPosition)

	s := &Session{
		cfg:     cfg,
		dt:      cfg.Dt,
		pid:     pid,
		cart:    cart,
		tracker: metrics.NewTracker(0, cfg.StartPosition),
		target:  cfg.Target,
		running: true,
		history: NewHistory(cfg.History),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.AutoStep.Enabled {
		if err := s.SetAutoStep(true); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Step runs one tick if the session is running and reports whether it did.
// A paused session does not change state and its clock does not advance.
func (s *Session) Step() bool {
	if !s.running {
		return false
	}
	s.tick()
	return true
}

// tick performs exactly one controller, plant and metrics update.
func (s *Session) tick() dynamo.Sample {
	s.advanceAutoStep()

	t := s.Time()
	before := s.cart.State()
	err := s.target - before.Position

	terms := s.pid.Compute(s.target, before.Position, s.dt)
	s.cart.Update(terms.Output, s.dt)

	after := s.cart.State()
	s.tracker.Update(t, s.target, after.Position, s.target-after.Position)

	sample := dynamo.Sample{
		Time:        t,
		Target:      s.target,
		Position:    after.Position,
		Velocity:    after.Velocity,
		Error:       err,
		Disturbance: after.Disturbance,
		Terms:       terms,
	}
	s.last = sample
	s.history.Push(sample)
	for _, m := range s.metrics {
		m.Observe(sample, s.dt)
	}
	for _, o := range s.observers {
		o.OnStep(sample)
	}

	s.ticks++
	return sample
}

func (s *Session) advanceAutoStep() {
	if !s.autoStep {
		return
	}
	s.autoTicks++
	if float64(s.autoTicks)*s.dt < s.cfg.AutoStep.Interval {
		return
	}
	s.autoTicks = 0
	s.autoIndex = (s.autoIndex + 1) % len(s.cfg.AutoStep.Positions)
	s.retarget(s.cfg.AutoStep.Positions[s.autoIndex])
	s.log.Debug("auto-step advanced", zap.Float64("target", s.target), zap.Float64("time", s.Time()))
}

// Time is the loop time since the last reset, ticks·dt.
func (s *Session) Time() float64 { return float64(s.ticks) * s.dt }

func (s *Session) Dt() float64 { return s.dt }

func (s *Session) Target() float64 { return s.target }

// SetTarget moves the setpoint and restarts metric tracking from the current
// time and position. It is rejected while auto-step drives the target.
func (s *Session) SetTarget(target float64) error {
	if s.autoStep {
		return dynamo.ErrAutoStepActive
	}
	if math.IsNaN(target) || !s.cfg.onRail(target) {
		return dynamo.Bounds("target", target, "on the rail")
	}
	s.retarget(target)
	s.log.Debug("target changed", zap.Float64("target", target), zap.Float64("time", s.Time()))
	return nil
}

func (s *Session) retarget(target float64) {
	s.target = target
	s.tracker.Reset(s.Time(), s.cart.State().Position)
}

// Reset stops the cart where it is, clears controller memory, history and
// metrics, and restarts the clock at zero.
func (s *Session) Reset() {
	pos := s.cart.State().Position
	s.cart.Reset(pos)
	s.pid.Reset()
	s.history.Clear()
	s.ticks = 0
	s.last = dynamo.Sample{}
	s.tracker.Reset(0, pos)
	for _, m := range s.metrics {
		m.Reset()
	}
	s.log.Debug("session reset", zap.Float64("position", pos))
}

// ApplyPreset sets the preset's gains and friction, then resets.
func (s *Session) ApplyPreset(p dynamo.Preset) error {
	if err := s.cart.SetParam("friction", p.Friction); err != nil {
		return fmt.Errorf("preset %s: %w", p.Name, err)
	}
	s.pid.SetGains(p.Gains())
	s.Reset()
	s.log.Debug("preset applied", zap.String("preset", p.Name))
	return nil
}

func (s *Session) SetGains(g dynamo.Gains) { s.pid.SetGains(g) }

func (s *Session) Gains() dynamo.Gains { return s.pid.Gains() }

// SetFriction changes the viscous friction coefficient from the next tick.
func (s *Session) SetFriction(friction float64) error {
	return s.cart.SetParam("friction", friction)
}

// Disturb applies the configured default disturbance impulse.
func (s *Session) Disturb() { s.AddDisturbance(s.cfg.DisturbanceForce) }

func (s *Session) DisturbanceForce() float64 { return s.cfg.DisturbanceForce }

// AddDisturbance replaces any decaying disturbance with force.
func (s *Session) AddDisturbance(force float64) {
	s.cart.AddDisturbance(force)
	s.log.Debug("disturbance", zap.Float64("force", force), zap.Float64("time", s.Time()))
}

func (s *Session) Pause() {
	if s.running {
		s.running = false
		s.log.Debug("paused", zap.Float64("time", s.Time()))
	}
}

func (s *Session) Resume() {
	if !s.running {
		s.running = true
		s.log.Debug("resumed", zap.Float64("time", s.Time()))
	}
}

func (s *Session) Toggle() {
	if s.running {
		s.Pause()
	} else {
		s.Resume()
	}
}

func (s *Session) Running() bool { return s.running }

// SetAutoStep turns auto-step mode on or off. Turning it on restarts the
// timer and jumps to the first auto-step position.
func (s *Session) SetAutoStep(on bool) error {
	if !on {
		s.autoStep = false
		return nil
	}
	if len(s.cfg.AutoStep.Positions) == 0 || !(s.cfg.AutoStep.Interval > 0) {
		return dynamo.Bounds("auto_step.positions", 0, "at least one position and a positive interval")
	}
	s.autoStep = true
	s.autoTicks = 0
	s.autoIndex = 0
	s.retarget(s.cfg.AutoStep.Positions[0])
	s.log.Debug("auto-step enabled", zap.Float64("target", s.target))
	return nil
}

func (s *Session) AutoStep() bool { return s.autoStep }

// Controller exposes the PID for live tuning.
func (s *Session) Controller() *control.PID { return s.pid }

// Cart exposes the plant for live tuning.
func (s *Session) Cart() *physics.Cart { return s.cart }

func (s *Session) Metrics() metrics.Transient { return s.tracker.Metrics() }

// History returns the retained samples, oldest first.
func (s *Session) History() []dynamo.Sample { return s.history.Samples() }

// Aux returns the current values of the auxiliary metrics by name.
func (s *Session) Aux() map[string]float64 {
	out := make(map[string]float64, len(s.metrics))
	for _, m := range s.metrics {
		out[m.Name()] = m.Value()
	}
	return out
}

func (s *Session) Snapshot() View {
	return View{
		Time:     s.Time(),
		Target:   s.target,
		State:    s.cart.State(),
		Terms:    s.last.Terms,
		Gains:    s.pid.Gains(),
		Friction: s.cart.Friction,
		Metrics:  s.tracker.Metrics(),
		Running:  s.running,
		AutoStep: s.autoStep,
		Ticks:    s.ticks,
	}
}
