package model

import (
	"encoding/json"
	"fmt"
	"os"
)

// Length semantics for the integer length tensor passed next to the audio
// tensor. "frames" passes the padded frame count as-is; "encoder_mask"
// passes the model's post-subsampling mask length multiplied back up by the
// subsampling factor, matching exports whose pre-encoder applies strided
// "valid" convolutions to the time axis.
const (
	LengthSemanticFrames      = "frames"
	LengthSemanticEncoderMask = "encoder_mask"
)

// Spec is the immutable model specification loaded from the side-car
// descriptor file shipped next to the exported model. Every per-model
// numeric deviation is expressed here; nothing downstream hardcodes model
// constants.
type Spec struct {
	Name          string            `json:"name"`
	Preprocessing PreprocessingSpec `json:"preprocessing"`
	Input         InputSpec         `json:"input"`
	Decoding      DecodingSpec      `json:"decoding"`
	Chunking      ChunkingSpec      `json:"chunking"`
}

// PreprocessingSpec describes the mel-spectrogram front end the model was
// trained with.
type PreprocessingSpec struct {
	SampleRate   int     `json:"sample_rate"`
	MelBins      int     `json:"mel_bins"`
	FFTSize      int     `json:"fft_size"`
	WindowLength int     `json:"window_length"` // samples
	HopLength    int     `json:"hop_length"`    // samples
	FreqMin      float64 `json:"freq_min"`      // Hz
	FreqMax      float64 `json:"freq_max"`      // Hz
	NormMean     float64 `json:"norm_mean"`     // fixed calibration constant
	NormStd      float64 `json:"norm_std"`      // fixed calibration constant
}

// InputSpec describes the shape contract of the model's input tensors.
type InputSpec struct {
	PadEnabled        bool    `json:"pad_enabled"`
	PadMultiple       int     `json:"pad_multiple"`
	PadValue          float64 `json:"pad_value"`
	LengthName        string  `json:"length_name"`
	LengthSemantic    string  `json:"length_semantic"`
	SubsamplingFactor int     `json:"subsampling_factor"`
	ConvKernel        int     `json:"conv_kernel"`
	ConvStride        int     `json:"conv_stride"`
	ConvLayers        int     `json:"conv_layers"`
	MinFrames         int     `json:"min_frames"`
	MaxFrames         int     `json:"max_frames"`
}

// DecodingSpec describes the output vocabulary of the model.
type DecodingSpec struct {
	VocabFile string `json:"vocab_file"`
	BlankID   int    `json:"blank_id"`
}

// ChunkingSpec enables splitting of long audio into overlapping windows.
type ChunkingSpec struct {
	Enabled        bool    `json:"enabled"`
	ChunkSeconds   float64 `json:"chunk_seconds"`
	OverlapSeconds float64 `json:"overlap_seconds"`
}

// LoadSpec reads and validates a model specification descriptor file.
func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model spec %s: %w", path, err)
	}

	var spec Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse model spec %s: %w", path, err)
	}

	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("model spec validation failed: %w", err)
	}

	return &spec, nil
}

// DefaultSpec returns the calibration constants for the Parakeet-TDT 0.6B
// ONNX export. The length formula constants in the Input block were read
// out of that specific graph's pre-encoder and are not assumed valid for
// other exports.
func DefaultSpec() *Spec {
	return &Spec{
		Name: "parakeet-tdt-0.6b",
		Preprocessing: PreprocessingSpec{
			SampleRate:   16000,
			MelBins:      128,
			FFTSize:      512,
			WindowLength: 400,
			HopLength:    160,
			FreqMin:      0,
			FreqMax:      8000,
			NormMean:     -4.0,
			NormStd:      4.0,
		},
		Input: InputSpec{
			PadEnabled:        true,
			PadMultiple:       8,
			PadValue:          0,
			LengthName:        "length",
			LengthSemantic:    LengthSemanticEncoderMask,
			SubsamplingFactor: 4,
			ConvKernel:        3,
			ConvStride:        2,
			ConvLayers:        2,
			MinFrames:         5,    // ~50ms at 10ms hop
			MaxFrames:         6000, // ~60s at 10ms hop
		},
		Decoding: DecodingSpec{
			VocabFile: "vocab.txt",
			BlankID:   1024,
		},
		Chunking: ChunkingSpec{
			Enabled:        true,
			ChunkSeconds:   50,
			OverlapSeconds: 2,
		},
	}
}

// Validate performs comprehensive validation of the specification.
func (s *Spec) Validate() error {
	if err := s.Preprocessing.Validate(); err != nil {
		return fmt.Errorf("preprocessing: %w", err)
	}

	if err := s.Input.Validate(); err != nil {
		return fmt.Errorf("input: %w", err)
	}

	if err := s.Decoding.Validate(); err != nil {
		return fmt.Errorf("decoding: %w", err)
	}

	if err := s.Chunking.Validate(); err != nil {
		return fmt.Errorf("chunking: %w", err)
	}

	return nil
}

// Validate validates the preprocessing block.
func (p *PreprocessingSpec) Validate() error {
	if p.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", p.SampleRate)
	}

	if p.MelBins < 1 {
		return fmt.Errorf("mel_bins must be at least 1, got %d", p.MelBins)
	}

	if p.FFTSize < 2 || p.FFTSize&(p.FFTSize-1) != 0 {
		return fmt.Errorf("fft_size must be a power of two, got %d", p.FFTSize)
	}

	if p.WindowLength < 1 || p.WindowLength > p.FFTSize {
		return fmt.Errorf("window_length must be in [1, fft_size=%d], got %d", p.FFTSize, p.WindowLength)
	}

	if p.HopLength < 1 {
		return fmt.Errorf("hop_length must be positive, got %d", p.HopLength)
	}

	if p.FreqMin < 0 {
		return fmt.Errorf("freq_min cannot be negative, got %f", p.FreqMin)
	}

	nyquist := float64(p.SampleRate) / 2
	if p.FreqMax <= p.FreqMin || p.FreqMax > nyquist {
		return fmt.Errorf("freq_max must be in (freq_min=%f, nyquist=%f], got %f", p.FreqMin, nyquist, p.FreqMax)
	}

	if p.NormStd == 0 {
		return fmt.Errorf("norm_std cannot be zero")
	}

	return nil
}

// Validate validates the input requirements block.
func (i *InputSpec) Validate() error {
	if i.PadEnabled && i.PadMultiple < 1 {
		return fmt.Errorf("pad_multiple must be at least 1 when padding is enabled, got %d", i.PadMultiple)
	}

	if i.LengthName == "" {
		return fmt.Errorf("length_name cannot be empty")
	}

	switch i.LengthSemantic {
	case LengthSemanticFrames:
	case LengthSemanticEncoderMask:
		if i.SubsamplingFactor < 1 {
			return fmt.Errorf("subsampling_factor must be at least 1, got %d", i.SubsamplingFactor)
		}
		if i.ConvKernel < 1 {
			return fmt.Errorf("conv_kernel must be at least 1, got %d", i.ConvKernel)
		}
		if i.ConvStride < 1 {
			return fmt.Errorf("conv_stride must be at least 1, got %d", i.ConvStride)
		}
		if i.ConvLayers < 1 {
			return fmt.Errorf("conv_layers must be at least 1, got %d", i.ConvLayers)
		}
	default:
		return fmt.Errorf("length_semantic must be %q or %q, got %q",
			LengthSemanticFrames, LengthSemanticEncoderMask, i.LengthSemantic)
	}

	if i.MinFrames < 1 {
		return fmt.Errorf("min_frames must be at least 1, got %d", i.MinFrames)
	}

	if i.MaxFrames <= i.MinFrames {
		return fmt.Errorf("max_frames (%d) must be greater than min_frames (%d)", i.MaxFrames, i.MinFrames)
	}

	return nil
}

// Validate validates the decoding block.
func (d *DecodingSpec) Validate() error {
	if d.BlankID < 0 {
		return fmt.Errorf("blank_id cannot be negative, got %d", d.BlankID)
	}

	return nil
}

// Validate validates the chunking block.
func (c *ChunkingSpec) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.ChunkSeconds <= 0 {
		return fmt.Errorf("chunk_seconds must be positive, got %f", c.ChunkSeconds)
	}

	if c.OverlapSeconds < 0 || c.OverlapSeconds >= c.ChunkSeconds {
		return fmt.Errorf("overlap_seconds must be in [0, chunk_seconds=%f), got %f",
			c.ChunkSeconds, c.OverlapSeconds)
	}

	return nil
}

// OverlapFraction returns the configured overlap as a fraction of the
// chunk size, used by the transcript merger as a proxy for expected word
// overlap between adjacent chunks.
func (c *ChunkingSpec) OverlapFraction() float64 {
	if !c.Enabled || c.ChunkSeconds <= 0 {
		return 0
	}
	return c.OverlapSeconds / c.ChunkSeconds
}
