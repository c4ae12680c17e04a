package dsp

import (
	"fmt"
	"math"
)

// logFloor keeps the log compression defined when a mel band catches no
// energy at all.
const logFloor = 1e-10

// Config contains the feature extraction parameters, taken verbatim from
// the model specification at load time. No field may change after the
// extractor is built.
type Config struct {
	SampleRate   int
	MelBins      int
	FFTSize      int
	WindowLength int
	HopLength    int
	FreqMin      float64
	FreqMax      float64
	NormMean     float64
	NormStd      float64
}

// Spectrogram is a [frames × bins] mel-spectrogram in row-major layout.
type Spectrogram struct {
	Frames int
	Bins   int
	Data   []float32
}

// At returns the value at frame f, mel bin b.
func (s *Spectrogram) At(f, b int) float32 {
	return s.Data[f*s.Bins+b]
}

// Extractor converts normalized PCM samples into normalized
// mel-spectrograms. Safe for concurrent use; all state is immutable
// after construction.
type Extractor struct {
	cfg     Config
	window  []float64
	filters [][]float64
}

// NewExtractor builds an extractor from validated configuration.
func NewExtractor(cfg Config) (*Extractor, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", cfg.SampleRate)
	}

	if cfg.FFTSize < 2 || cfg.FFTSize&(cfg.FFTSize-1) != 0 {
		return nil, fmt.Errorf("fft size must be a power of two, got %d", cfg.FFTSize)
	}

	if cfg.WindowLength < 1 || cfg.WindowLength > cfg.FFTSize {
		return nil, fmt.Errorf("window length must be in [1, %d], got %d", cfg.FFTSize, cfg.WindowLength)
	}

	if cfg.HopLength < 1 {
		return nil, fmt.Errorf("hop length must be positive, got %d", cfg.HopLength)
	}

	if cfg.MelBins < 1 {
		return nil, fmt.Errorf("mel bins must be at least 1, got %d", cfg.MelBins)
	}

	if cfg.NormStd == 0 {
		return nil, fmt.Errorf("normalization std cannot be zero")
	}

	return &Extractor{
		cfg:     cfg,
		window:  hannWindow(cfg.WindowLength),
		filters: melFilterbank(cfg.MelBins, cfg.FFTSize, cfg.SampleRate, cfg.FreqMin, cfg.FreqMax),
	}, nil
}

// NumFrames returns the frame count produced for n input samples. This is
// a pure function of (n, window, hop): zero when the input is shorter
// than one window.
func NumFrames(n, windowLength, hopLength int) int {
	if n < windowLength {
		return 0
	}
	return 1 + (n-windowLength)/hopLength
}

// NumFrames returns the frame count this extractor produces for n samples.
func (e *Extractor) NumFrames(n int) int {
	return NumFrames(n, e.cfg.WindowLength, e.cfg.HopLength)
}

// Config returns the extractor's configuration.
func (e *Extractor) Config() Config {
	return e.cfg
}

// Extract computes the log-mel spectrogram of the input and applies the
// fixed mean/std normalization from the configuration. Same input and
// configuration always produce bit-identical output. An input shorter
// than one window yields a spectrogram with zero frames; callers must
// treat that as "too short" and not hand it to inference.
func (e *Extractor) Extract(samples []float32) *Spectrogram {
	frames := e.NumFrames(len(samples))
	spec := &Spectrogram{
		Frames: frames,
		Bins:   e.cfg.MelBins,
		Data:   make([]float32, frames*e.cfg.MelBins),
	}
	if frames == 0 {
		return spec
	}

	numFFTBins := e.cfg.FFTSize/2 + 1
	re := make([]float64, e.cfg.FFTSize)
	im := make([]float64, e.cfg.FFTSize)
	power := make([]float64, numFFTBins)

	for f := 0; f < frames; f++ {
		offset := f * e.cfg.HopLength

		// Windowed frame, zero-padded to the FFT size.
		for i := 0; i < e.cfg.WindowLength; i++ {
			re[i] = float64(samples[offset+i]) * e.window[i]
			im[i] = 0
		}
		for i := e.cfg.WindowLength; i < e.cfg.FFTSize; i++ {
			re[i] = 0
			im[i] = 0
		}

		fft(re, im)

		for k := 0; k < numFFTBins; k++ {
			power[k] = re[k]*re[k] + im[k]*im[k]
		}

		for b := 0; b < e.cfg.MelBins; b++ {
			var energy float64
			filter := e.filters[b]
			for k := 0; k < numFFTBins; k++ {
				if filter[k] != 0 {
					energy += filter[k] * power[k]
				}
			}

			value := math.Log(math.Max(energy, logFloor))
			value = (value - e.cfg.NormMean) / e.cfg.NormStd
			spec.Data[f*e.cfg.MelBins+b] = float32(value)
		}
	}

	return spec
}
