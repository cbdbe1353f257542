// Package physics provides the plant driven by the controller: a cart on a
// bounded one-dimensional rail.
//
// The cart obeys F = m·a with
//
//	F = control + disturbance − friction·velocity
//
// and is integrated with a semi-implicit Euler step (velocity first, then
// position). Hitting either end of the rail is an inelastic collision: the
// cart stops at the rail and the velocity component into the wall is dropped.
//
// Disturbances are impulses that decay geometrically each tick until they fall
// inside a small deadband, after which they are exactly zero.
//
// [Cart] implements [dynamo.Configurable] for runtime mass and friction changes.
package physics
