// Package sim implements the fixed-step control loop.
//
// A [Session] holds one controller, one cart and one metrics tracker. Each
// admitted tick runs, in order:
//
//  1. auto-step timer (if enabled), possibly moving the target
//  2. error = target − position
//  3. controller update → force
//  4. cart update with that force
//  5. metrics update with the post-update position, at the tick's time
//  6. time advances by dt
//
// The session owns no timer. A front end calls [Session.Step] at its frame
// rate; [Session.Run] steps a fixed duration for headless runs. Pausing gates
// Step only: a paused session neither mutates nor advances time.
//
// Sessions are not safe for concurrent use; commands must be issued between
// ticks from the goroutine that steps the session.
package sim
