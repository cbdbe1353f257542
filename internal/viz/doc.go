// Package viz is the terminal front end for a PID cart session.
//
// The package implements an interactive TUI using the Bubble Tea framework:
//
//   - [Model]: live view; a 60 Hz tea.Tick admits one session tick per frame
//   - [Canvas]: Braille-based pixel canvas used to draw the rail and cart
//   - three color themes, cycled with t
//
// # Key Bindings
//
//	Space - Pause/Resume simulation
//	r     - Reset at the current position
//	d / D - Disturbance impulse + / -
//	a     - Toggle auto-step
//	←/→   - Target -1 / +1 (H/L: -5 / +5)
//	Tab   - Select gain; ↑/↓ scale it by 1.05 / 0.95
//	f / F - Friction -/+ 0.05
//	1-5   - Presets
//	q     - Quit
package viz
