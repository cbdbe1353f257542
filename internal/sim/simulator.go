package sim

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/pidlab/internal/dynamo"
)

// Run steps the session for duration seconds of loop time, independent of
// the pause flag, and collects every sample. On cancellation the partial
// result is returned together with an error wrapping ErrContextCanceled.
func (s *Session) Run(ctx context.Context, duration float64) (*Result, error) {
	if err := validateDuration(duration); err != nil {
		return nil, err
	}

	steps := int(math.Round(duration / s.dt))
	result := &Result{
		Samples: make([]dynamo.Sample, 0, steps),
	}

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			s.finish(result)
			return result, fmt.Errorf("%w: %w", dynamo.ErrContextCanceled, ctx.Err())
		default:
		}

		sample := s.tick()
		result.Samples = append(result.Samples, sample)
		result.StepsTaken++

		if state := s.cart.State(); !state.IsValid() {
			s.finish(result)
			return result, &dynamo.SimulationError{
				Step:    i,
				Time:    sample.Time,
				State:   state,
				Wrapped: dynamo.ErrInvalidState,
			}
		}
	}

	s.finish(result)
	return result, nil
}

func (s *Session) finish(result *Result) {
	result.Metrics = s.tracker.Metrics()
	result.Aux = s.Aux()
}

func validateDuration(duration float64) error {
	if !(duration > 0) || math.IsInf(duration, 0) {
		return fmt.Errorf("duration must be positive, got %f", duration)
	}
	return nil
}
