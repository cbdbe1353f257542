// Package analysis inspects recorded cart traces.
//
//   - [ErrorSpectrum]: amplitude spectrum of the tracking error
//   - [Spectrum.Dominant]: strongest oscillation frequency
//   - [ZeroCrossings]: how often the cart crosses the target
//
// A pronounced spectral peak with many crossings marks an underdamped loop:
//
//	spectrum, _ := analysis.ErrorSpectrum(samples)
//	freq, amp := spectrum.Dominant()
package analysis
