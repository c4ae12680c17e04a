package dsp

import (
	"math"
	"testing"
)

func TestMelScaleRoundTrip(t *testing.T) {
	// Both sides of the 1 kHz linear/log break.
	for _, hz := range []float64{0, 100, 500, 999, 1000, 2000, 4000, 8000} {
		got := melToHz(hzToMel(hz))
		if math.Abs(got-hz) > 1e-6 {
			t.Errorf("Round trip for %f Hz: got %f", hz, got)
		}
	}
}

func TestMelScaleMonotonic(t *testing.T) {
	prev := hzToMel(0)
	for hz := 50.0; hz <= 8000; hz += 50 {
		mel := hzToMel(hz)
		if mel <= prev {
			t.Fatalf("Mel scale not increasing at %f Hz: %f <= %f", hz, mel, prev)
		}
		prev = mel
	}
}

func TestMelFilterbank(t *testing.T) {
	bins, fftSize, sampleRate := 26, 512, 16000
	filters := melFilterbank(bins, fftSize, sampleRate, 0, 8000)

	if len(filters) != bins {
		t.Fatalf("Expected %d filters, got %d", bins, len(filters))
	}

	numBins := fftSize/2 + 1
	for m, filter := range filters {
		if len(filter) != numBins {
			t.Fatalf("Filter %d: expected %d weights, got %d", m, numBins, len(filter))
		}

		var positive int
		for k, w := range filter {
			if w < 0 {
				t.Fatalf("Filter %d bin %d: negative weight %f", m, k, w)
			}
			if w > 0 {
				positive++
			}
		}
		if positive == 0 {
			t.Errorf("Filter %d catches no FFT bin", m)
		}
	}
}

func TestMelFilterbankRespectsFreqRange(t *testing.T) {
	fftSize, sampleRate := 512, 16000
	filters := melFilterbank(10, fftSize, sampleRate, 300, 4000)

	binHz := float64(sampleRate) / float64(fftSize)
	for m, filter := range filters {
		for k, w := range filter {
			freq := float64(k) * binHz
			if w != 0 && (freq < 300 || freq > 4000) {
				t.Errorf("Filter %d has weight %f at %f Hz, outside [300, 4000]", m, w, freq)
			}
		}
	}
}
