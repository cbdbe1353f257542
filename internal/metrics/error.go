package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/pidlab/internal/dynamo"
)

// IAE is the integral of the absolute tracking error over time.
type IAE struct {
	total float64
}

func NewIAE() *IAE { return &IAE{} }

func (m *IAE) Name() string { return "iae" }

func (m *IAE) Observe(s dynamo.Sample, dt float64) {
	m.total += math.Abs(s.Error) * dt
}

func (m *IAE) Value() float64 { return m.total }

func (m *IAE) Reset() { m.total = 0 }

// ErrorSpread is the standard deviation of the tracking error over a trailing
// window of samples.
type ErrorSpread struct {
	window []float64
	next   int
	full   bool
}

func NewErrorSpread(size int) *ErrorSpread {
	if size < 2 {
		size = 2
	}
	return &ErrorSpread{window: make([]float64, size)}
}

func (m *ErrorSpread) Name() string { return "error_std" }

func (m *ErrorSpread) Observe(s dynamo.Sample, dt float64) {
	m.window[m.next] = s.Error
	m.next = (m.next + 1) % len(m.window)
	if m.next == 0 {
		m.full = true
	}
}

func (m *ErrorSpread) Value() float64 {
	n := m.next
	if m.full {
		n = len(m.window)
	}
	if n < 2 {
		return 0
	}
	return stat.StdDev(m.window[:n], nil)
}

func (m *ErrorSpread) Reset() {
	m.next = 0
	m.full = false
}

// Standard returns the auxiliary metrics recorded for every run.
func Standard() []dynamo.Metric {
	return []dynamo.Metric{
		NewControlEffort(),
		NewIAE(),
		NewErrorSpread(600),
	}
}
