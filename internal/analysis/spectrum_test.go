package analysis

import (
	"math"
	"testing"

	"github.com/san-kum/pidlab/internal/dynamo"
)

func sineTrace(freq, amp float64, n int, dt float64) []dynamo.Sample {
	samples := make([]dynamo.Sample, n)
	for i := range samples {
		t := float64(i) * dt
		samples[i] = dynamo.Sample{
			Time:     t,
			Target:   50,
			Position: 50 - amp*math.Sin(2*math.Pi*freq*t),
		}
	}
	return samples
}

func TestErrorSpectrumDominant(t *testing.T) {
	spectrum, err := ErrorSpectrum(sineTrace(0.5, 3, 600, 1.0/60))
	if err != nil {
		t.Fatal(err)
	}

	freq, amp := spectrum.Dominant()
	if math.Abs(freq-0.5) > 1e-9 {
		t.Errorf("dominant frequency: got %f, want 0.5", freq)
	}
	if math.Abs(amp-3) > 0.05 {
		t.Errorf("amplitude: got %f, want 3", amp)
	}
	if spectrum.Freqs[len(spectrum.Freqs)-1] > 30+1e-9 {
		t.Errorf("frequencies exceed Nyquist: %f", spectrum.Freqs[len(spectrum.Freqs)-1])
	}
}

func TestPowerSpectrumErrors(t *testing.T) {
	if _, err := PowerSpectrum([]float64{1, 2}, 0.1); err == nil {
		t.Error("expected error for short input")
	}
	if _, err := PowerSpectrum([]float64{1, 2, 3, 4}, 0); err == nil {
		t.Error("expected error for zero dt")
	}
	if _, err := ErrorSpectrum(nil); err == nil {
		t.Error("expected error for empty trace")
	}
}

func TestZeroCrossings(t *testing.T) {
	// two full periods over four seconds
	samples := sineTrace(0.5, 3, 240, 1.0/60)
	if n := ZeroCrossings(samples); n < 3 || n > 5 {
		t.Errorf("expected about 4 crossings, got %d", n)
	}
	if ZeroCrossings(samples[:1]) != 0 {
		t.Error("single sample has no crossings")
	}
}
