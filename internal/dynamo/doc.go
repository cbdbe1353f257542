// Package dynamo provides the value types shared by the control loop.
//
// The loop is built from three leaf components that never reference each
// other directly:
//
//   - the controller turns an error signal into a bounded force ([Terms])
//   - the plant advances a cart under that force ([CartState])
//   - the metrics tracker observes the resulting (time, target, position) stream
//
// They exchange only the scalar values defined here. A tick of the loop is
// summarised as a [Sample].
//
// # Example
//
//	pid := control.NewPID(dynamo.Gains{Kp: 2, Ki: 0.1, Kd: 0.5})
//	cart := physics.NewCart(physics.DefaultConfig())
//	terms := pid.Update(target-cart.State().Position, dt)
//	cart.Update(terms.Output, dt)
//
// # Thread Safety
//
// None of the types in the loop are safe for concurrent use. A single owner
// (the session) steps them sequentially.
package dynamo
