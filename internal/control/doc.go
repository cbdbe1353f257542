// Package control provides the discrete PID controller that drives the cart.
//
// The controller is a pure function of its own state and the error signal:
//
//	u = clamp(Kp·e + Ki·∫e dt + Kd·de/dt, OutputMin, OutputMax)
//
// The integral accumulator is clamped to ±IntegralMax before it is scaled by
// Ki, so changing Ki after windup rescales the I term immediately.
//
// # Usage
//
//	pid := control.NewPID(dynamo.Gains{Kp: 2, Ki: 0.1, Kd: 0.5})
//	terms := pid.Update(target-position, 1.0/60)
//
// [PID] implements [dynamo.Configurable] for live tuning.
package control
