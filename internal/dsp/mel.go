package dsp

import "math"

// Slaney-style mel scale: linear below 1 kHz, logarithmic above. This is
// the scale the model's training-time feature extractor uses.
const (
	melLinearStep = 200.0 / 3.0
	melBreakHz    = 1000.0
	melBreakMel   = melBreakHz / melLinearStep
)

var melLogStep = math.Log(6.4) / 27.0

func hzToMel(hz float64) float64 {
	if hz < melBreakHz {
		return hz / melLinearStep
	}
	return melBreakMel + math.Log(hz/melBreakHz)/melLogStep
}

func melToHz(mel float64) float64 {
	if mel < melBreakMel {
		return mel * melLinearStep
	}
	return melBreakHz * math.Exp(melLogStep*(mel-melBreakMel))
}

// melFilterbank builds a bank of triangular filters over FFT bins.
// Each filter is area-normalized (2 / bandwidth) so filter energy does not
// grow with bandwidth. Returns bins×(fftSize/2+1) weights.
func melFilterbank(bins, fftSize, sampleRate int, fmin, fmax float64) [][]float64 {
	numBins := fftSize/2 + 1

	// bins+2 equally spaced points on the mel scale: left edge, peaks,
	// right edge of each triangle.
	melMin := hzToMel(fmin)
	melMax := hzToMel(fmax)
	points := make([]float64, bins+2)
	for i := range points {
		mel := melMin + (melMax-melMin)*float64(i)/float64(bins+1)
		points[i] = melToHz(mel)
	}

	binHz := float64(sampleRate) / float64(fftSize)

	filters := make([][]float64, bins)
	for m := 0; m < bins; m++ {
		left, center, right := points[m], points[m+1], points[m+2]
		norm := 2.0 / (right - left)

		filter := make([]float64, numBins)
		for k := 0; k < numBins; k++ {
			freq := float64(k) * binHz
			switch {
			case freq <= left || freq >= right:
				// outside the triangle
			case freq <= center:
				filter[k] = norm * (freq - left) / (center - left)
			default:
				filter[k] = norm * (right - freq) / (right - center)
			}
		}
		filters[m] = filter
	}

	return filters
}
