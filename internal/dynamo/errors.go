package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for loop configuration and commands.
var (
	// ErrInvalidStep indicates a non-positive or non-finite time step.
	ErrInvalidStep = errors.New("dynamo: time step must be positive and finite")

	// ErrParameterBounds indicates a parameter value is outside valid range.
	ErrParameterBounds = errors.New("dynamo: parameter out of valid bounds")

	// ErrUnknownParam indicates a tuning parameter name that is not recognised.
	ErrUnknownParam = errors.New("dynamo: unknown parameter")

	// ErrUnknownPreset indicates a preset name missing from the preset table.
	ErrUnknownPreset = errors.New("dynamo: unknown preset")

	// ErrAutoStepActive indicates a manual target change while auto-step drives the target.
	ErrAutoStepActive = errors.New("dynamo: target is driven by auto-step")

	// ErrInvalidState indicates the plant state became NaN or Inf.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrContextCanceled indicates the run was interrupted.
	ErrContextCanceled = errors.New("dynamo: run canceled by context")
)

// SimulationError wraps an error with the tick at which it occurred.
type SimulationError struct {
	Step    int
	Time    float64
	State   CartState
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}

// Bounds returns an ErrParameterBounds error naming the offending parameter.
func Bounds(name string, value float64, want string) error {
	return fmt.Errorf("%w: %s=%g (want %s)", ErrParameterBounds, name, value, want)
}
