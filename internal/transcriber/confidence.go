package transcriber

import (
	"math"
	"time"
)

// confidenceScore computes the crude [0, 1] confidence heuristic attached
// to transcripts: RMS energy of the audio blended with a duration factor.
// Louder, longer audio scores higher; it says nothing about the model's
// actual posterior.
func confidenceScore(samples []float32, duration time.Duration) float64 {
	if len(samples) == 0 {
		return 0
	}

	var energy float64
	for _, s := range samples {
		energy += float64(s) * float64(s)
	}
	rms := math.Sqrt(energy / float64(len(samples)))

	// Typical speech sits around 0.05-0.3 RMS on normalized samples.
	energyScore := rms / 0.2
	if energyScore > 1 {
		energyScore = 1
	}

	// Anything under two seconds is penalized proportionally.
	durationScore := duration.Seconds() / 2
	if durationScore > 1 {
		durationScore = 1
	}

	return 0.6*energyScore + 0.4*durationScore
}
