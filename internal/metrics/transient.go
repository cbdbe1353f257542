package metrics

import "math"

const (
	// Tolerance is the absolute band around the target that counts as reached.
	Tolerance = 2.0
	// SettleHold is how long the position must stay in the band to be settled.
	SettleHold = 0.5
	// SteadyStateAfter is the time after a reset from which the steady-state
	// error is sampled.
	SteadyStateAfter = 3.0
	// minTargetChange guards the overshoot ratio against tiny setpoint changes.
	minTargetChange = 1.0
)

// Transient holds the four step-response figures. Each is Unknown until it
// can be computed.
type Transient struct {
	RiseTime         Value `json:"rise_time"`
	SettlingTime     Value `json:"settling_time"`
	Overshoot        Value `json:"overshoot"`
	SteadyStateError Value `json:"steady_state_error"`
}

// Lookup returns a figure by its snake_case name.
func (m Transient) Lookup(name string) (Value, bool) {
	switch name {
	case "rise_time":
		return m.RiseTime, true
	case "settling_time":
		return m.SettlingTime, true
	case "overshoot":
		return m.Overshoot, true
	case "steady_state_error":
		return m.SteadyStateError, true
	}
	return Unknown, false
}

// Tracker derives transient metrics from the (time, target, position, error)
// stream. It must be reset whenever the target changes or the loop resets.
type Tracker struct {
	startTime     float64
	startPosition float64
	peak          float64
	reached       bool
	settledAt     float64
	settled       bool

	metrics Transient
}

func NewTracker(time, position float64) *Tracker {
	t := &Tracker{}
	t.Reset(time, position)
	return t
}

// Reset starts a new transient at (time, position) and clears all metrics.
func (t *Tracker) Reset(time, position float64) {
	*t = Tracker{
		startTime:     time,
		startPosition: position,
		peak:          position,
	}
}

// Update folds one tick into the tracker and returns the current metrics.
func (t *Tracker) Update(time, target, position, err float64) Transient {
	// travel direction is taken from the current target on every tick
	if t.startPosition < target {
		t.peak = math.Max(t.peak, position)
	} else {
		t.peak = math.Min(t.peak, position)
	}

	inBand := math.Abs(err) <= Tolerance

	if !t.reached && inBand {
		t.metrics.RiseTime = Known(time - t.startTime)
		t.reached = true
	}

	if t.reached {
		if inBand {
			if !t.settled {
				t.settledAt = time
				t.settled = true
			}
		} else {
			t.settled = false
		}

		if t.settled && time-t.settledAt >= SettleHold && !t.metrics.SettlingTime.IsKnown() {
			t.metrics.SettlingTime = Known(t.settledAt - t.startTime)
		}
	}

	if t.reached && !t.metrics.Overshoot.IsKnown() {
		if change := math.Abs(target - t.startPosition); change > minTargetChange {
			t.metrics.Overshoot = Known(math.Abs(t.peak-target) / change * 100)
		}
	}

	if time-t.startTime >= SteadyStateAfter {
		t.metrics.SteadyStateError = Known(math.Abs(err))
	}

	return t.metrics
}

func (t *Tracker) Metrics() Transient { return t.metrics }

// Peak returns the extreme position seen in the direction of travel.
func (t *Tracker) Peak() float64 { return t.peak }

func (t *Tracker) StartTime() float64 { return t.startTime }

func (t *Tracker) StartPosition() float64 { return t.startPosition }

// Reached reports whether the position has entered the tolerance band.
func (t *Tracker) Reached() bool { return t.reached }
