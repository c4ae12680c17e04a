package model

import (
	"errors"
	"fmt"

	"github.com/elbruno/nvidia-voiceagent-cs-sub001/internal/dsp"
)

// Frame-count validation errors. The transcription engine maps these onto
// its too-short/too-long outcomes before any inference call is made.
var (
	ErrTooFewFrames  = errors.New("audio produces too few frames for the model")
	ErrTooManyFrames = errors.New("audio produces too many frames for the model")
)

// Shaper turns a mel-spectrogram into the exact tensor pair the model
// expects: a padded [1, melBins, paddedFrames] audio tensor plus the
// integer length scalar derived from the spec's declared length semantic.
type Shaper struct {
	spec *Spec
}

// NewShaper creates a shaper bound to an immutable model specification.
func NewShaper(spec *Spec) *Shaper {
	return &Shaper{spec: spec}
}

// PaddedFrames returns the frame count after alignment padding.
func (s *Shaper) PaddedFrames(frames int) int {
	if !s.spec.Input.PadEnabled || s.spec.Input.PadMultiple <= 1 {
		return frames
	}
	m := s.spec.Input.PadMultiple
	return (frames + m - 1) / m * m
}

// EncoderLength computes the integer length value passed alongside the
// audio tensor for a given padded frame count.
//
// For the "encoder_mask" semantic the exported graph subsamples the time
// axis with ConvLayers stride-ConvStride, kernel-ConvKernel "valid"
// convolutions, producing an internal mask of size lN; the value the
// graph expects is lN * SubsamplingFactor, not the padded frame count.
// Passing the raw frame count trips a shape-broadcast failure deep inside
// the model rather than a clean error, so this arithmetic must match the
// export it was calibrated against.
func (s *Shaper) EncoderLength(paddedFrames int) int64 {
	in := &s.spec.Input
	if in.LengthSemantic == LengthSemanticFrames {
		return int64(paddedFrames)
	}

	l := paddedFrames
	for i := 0; i < in.ConvLayers; i++ {
		l = (l-in.ConvKernel)/in.ConvStride + 1
	}
	return int64(l * in.SubsamplingFactor)
}

// Shape validates the spectrogram's frame count against the model's
// limits, pads it, and builds the input tensor pair. skipMaxCheck is set
// by the chunking path, which takes over responsibility for bounding the
// frame count per chunk.
func (s *Shaper) Shape(spec *dsp.Spectrogram, skipMaxCheck bool) (*Input, error) {
	if spec.Frames < s.spec.Input.MinFrames {
		return nil, fmt.Errorf("%w: %d frames, need at least %d",
			ErrTooFewFrames, spec.Frames, s.spec.Input.MinFrames)
	}

	if !skipMaxCheck && spec.Frames > s.spec.Input.MaxFrames {
		return nil, fmt.Errorf("%w: %d frames, limit %d",
			ErrTooManyFrames, spec.Frames, s.spec.Input.MaxFrames)
	}

	padded := s.PaddedFrames(spec.Frames)
	bins := spec.Bins
	padValue := float32(s.spec.Input.PadValue)

	// [1, melBins, paddedFrames]: the spectrogram arrives frame-major and
	// is transposed here.
	data := make([]float32, bins*padded)
	for b := 0; b < bins; b++ {
		row := b * padded
		for f := 0; f < spec.Frames; f++ {
			data[row+f] = spec.At(f, b)
		}
		for f := spec.Frames; f < padded; f++ {
			data[row+f] = padValue
		}
	}

	return &Input{
		Audio: &Tensor{
			Data:  data,
			Shape: []int{1, bins, padded},
		},
		LengthName: s.spec.Input.LengthName,
		Length:     s.EncoderLength(padded),
	}, nil
}
