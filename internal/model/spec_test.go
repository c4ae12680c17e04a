package model

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultSpecIsValid(t *testing.T) {
	spec := DefaultSpec()
	if err := spec.Validate(); err != nil {
		t.Errorf("Expected default spec to validate, got %v", err)
	}
	if spec.Name != "parakeet-tdt-0.6b" {
		t.Errorf("Unexpected default model name %q", spec.Name)
	}
}

func TestSpecValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Spec)
		wantErr string
	}{
		{
			name:    "zero sample rate",
			mutate:  func(s *Spec) { s.Preprocessing.SampleRate = 0 },
			wantErr: "sample_rate",
		},
		{
			name:    "fft size not power of two",
			mutate:  func(s *Spec) { s.Preprocessing.FFTSize = 500 },
			wantErr: "fft_size",
		},
		{
			name:    "window longer than fft",
			mutate:  func(s *Spec) { s.Preprocessing.WindowLength = 1024 },
			wantErr: "window_length",
		},
		{
			name:    "zero hop",
			mutate:  func(s *Spec) { s.Preprocessing.HopLength = 0 },
			wantErr: "hop_length",
		},
		{
			name:    "freq max above nyquist",
			mutate:  func(s *Spec) { s.Preprocessing.FreqMax = 9000 },
			wantErr: "freq_max",
		},
		{
			name:    "zero norm std",
			mutate:  func(s *Spec) { s.Preprocessing.NormStd = 0 },
			wantErr: "norm_std",
		},
		{
			name:    "pad multiple zero while padding enabled",
			mutate:  func(s *Spec) { s.Input.PadMultiple = 0 },
			wantErr: "pad_multiple",
		},
		{
			name:    "empty length name",
			mutate:  func(s *Spec) { s.Input.LengthName = "" },
			wantErr: "length_name",
		},
		{
			name:    "unknown length semantic",
			mutate:  func(s *Spec) { s.Input.LengthSemantic = "magic" },
			wantErr: "length_semantic",
		},
		{
			name:    "encoder mask without subsampling factor",
			mutate:  func(s *Spec) { s.Input.SubsamplingFactor = 0 },
			wantErr: "subsampling_factor",
		},
		{
			name:    "encoder mask without conv stride",
			mutate:  func(s *Spec) { s.Input.ConvStride = 0 },
			wantErr: "conv_stride",
		},
		{
			name:    "zero min frames",
			mutate:  func(s *Spec) { s.Input.MinFrames = 0 },
			wantErr: "min_frames",
		},
		{
			name:    "max frames not above min",
			mutate:  func(s *Spec) { s.Input.MaxFrames = s.Input.MinFrames },
			wantErr: "max_frames",
		},
		{
			name:    "negative blank id",
			mutate:  func(s *Spec) { s.Decoding.BlankID = -1 },
			wantErr: "blank_id",
		},
		{
			name:    "zero chunk seconds while chunking enabled",
			mutate:  func(s *Spec) { s.Chunking.ChunkSeconds = 0 },
			wantErr: "chunk_seconds",
		},
		{
			name:    "overlap not below chunk size",
			mutate:  func(s *Spec) { s.Chunking.OverlapSeconds = s.Chunking.ChunkSeconds },
			wantErr: "overlap_seconds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := DefaultSpec()
			tt.mutate(spec)

			err := spec.Validate()
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSpecValidationSkipsDisabledChunking(t *testing.T) {
	spec := DefaultSpec()
	spec.Chunking = ChunkingSpec{Enabled: false, ChunkSeconds: -1, OverlapSeconds: -1}

	if err := spec.Validate(); err != nil {
		t.Errorf("Expected disabled chunking to skip validation, got %v", err)
	}
}

func TestFramesSemanticSkipsConvFields(t *testing.T) {
	spec := DefaultSpec()
	spec.Input.LengthSemantic = LengthSemanticFrames
	spec.Input.SubsamplingFactor = 0
	spec.Input.ConvKernel = 0
	spec.Input.ConvStride = 0
	spec.Input.ConvLayers = 0

	if err := spec.Validate(); err != nil {
		t.Errorf("Expected frames semantic to ignore conv fields, got %v", err)
	}
}

func TestLoadSpec(t *testing.T) {
	dir := t.TempDir()

	data, err := json.Marshal(DefaultSpec())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	path := filepath.Join(dir, "model.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	spec, err := LoadSpec(path)
	if err != nil {
		t.Fatalf("LoadSpec failed: %v", err)
	}
	if spec.Name != "parakeet-tdt-0.6b" {
		t.Errorf("Expected default model name, got %q", spec.Name)
	}
	if spec.Input.MaxFrames != 6000 {
		t.Errorf("Expected max_frames 6000, got %d", spec.Input.MaxFrames)
	}
}

func TestLoadSpecErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadSpec(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}

	badJSON := filepath.Join(dir, "bad.json")
	os.WriteFile(badJSON, []byte("{not json"), 0644)
	if _, err := LoadSpec(badJSON); err == nil || !strings.Contains(err.Error(), "parse") {
		t.Errorf("Expected parse error, got %v", err)
	}

	invalid := filepath.Join(dir, "invalid.json")
	spec := DefaultSpec()
	spec.Preprocessing.SampleRate = 0
	data, _ := json.Marshal(spec)
	os.WriteFile(invalid, data, 0644)
	if _, err := LoadSpec(invalid); err == nil || !strings.Contains(err.Error(), "validation") {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestOverlapFraction(t *testing.T) {
	spec := DefaultSpec()
	if got := spec.Chunking.OverlapFraction(); got != 0.04 {
		t.Errorf("Expected overlap fraction 0.04, got %f", got)
	}

	disabled := ChunkingSpec{Enabled: false, ChunkSeconds: 50, OverlapSeconds: 2}
	if got := disabled.OverlapFraction(); got != 0 {
		t.Errorf("Expected 0 for disabled chunking, got %f", got)
	}
}
