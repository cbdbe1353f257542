package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/pidlab/internal/dynamo"
)

// Spectrum is the one-sided amplitude spectrum of a uniformly sampled signal.
type Spectrum struct {
	Freqs     []float64 // Hz
	Amplitude []float64
}

// PowerSpectrum transforms data sampled every dt seconds. The mean is removed
// first so the DC bin does not swamp the oscillation.
func PowerSpectrum(data []float64, dt float64) (*Spectrum, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("need at least 4 samples, got %d", len(data))
	}
	if err := dynamo.CheckStep(dt); err != nil {
		return nil, err
	}

	mean := stat.Mean(data, nil)
	centered := make([]float64, len(data))
	for i, v := range data {
		centered[i] = v - mean
	}

	fft := fourier.NewFFT(len(centered))
	coeff := fft.Coefficients(nil, centered)

	s := &Spectrum{
		Freqs:     make([]float64, len(coeff)),
		Amplitude: make([]float64, len(coeff)),
	}
	scale := 2 / float64(len(centered))
	for i, c := range coeff {
		s.Freqs[i] = fft.Freq(i) / dt
		s.Amplitude[i] = math.Hypot(real(c), imag(c)) * scale
	}
	return s, nil
}

// Dominant returns the strongest non-DC component.
func (s *Spectrum) Dominant() (freq, amplitude float64) {
	for i := 1; i < len(s.Amplitude); i++ {
		if s.Amplitude[i] > amplitude {
			freq, amplitude = s.Freqs[i], s.Amplitude[i]
		}
	}
	return freq, amplitude
}

// ErrorSpectrum analyses the tracking error of a trace. The sample period is
// taken from the first two samples.
func ErrorSpectrum(samples []dynamo.Sample) (*Spectrum, error) {
	if len(samples) < 2 {
		return nil, fmt.Errorf("need at least 2 samples, got %d", len(samples))
	}
	errs := make([]float64, len(samples))
	for i, s := range samples {
		errs[i] = s.Target - s.Position
	}
	return PowerSpectrum(errs, samples[1].Time-samples[0].Time)
}

// ZeroCrossings counts sign changes of target - position, a direct measure
// of how often the cart swings through the target.
func ZeroCrossings(samples []dynamo.Sample) int {
	n := 0
	for i := 1; i < len(samples); i++ {
		prev := samples[i-1].Target - samples[i-1].Position
		cur := samples[i].Target - samples[i].Position
		if (prev > 0) != (cur > 0) {
			n++
		}
	}
	return n
}
