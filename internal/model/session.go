package model

import (
	"context"
	"errors"
	"fmt"
)

// Provider identifies an inference execution backend, in fallback order.
type Provider string

const (
	ProviderCUDA Provider = "cuda"
	ProviderCPU  Provider = "cpu"
)

// ErrBackendUnavailable is returned by a session factory when the
// requested execution backend is not compiled into this binary or cannot
// be initialized on this host.
var ErrBackendUnavailable = errors.New("inference backend unavailable")

// Tensor is a dense float32 tensor in row-major layout.
type Tensor struct {
	Data  []float32
	Shape []int
}

// Input is the shaped input handed to an inference session: one audio
// tensor [1, melBins, paddedFrames] plus one integer length scalar whose
// name and semantics come from the model specification.
type Input struct {
	Audio      *Tensor
	LengthName string
	Length     int64
}

// Logits is the log-probability output of a session, shaped either
// [time, vocab] or [batch, time, vocab].
type Logits struct {
	Data  []float32
	Shape []int
}

// Session executes the neural graph. Implementations must be safe for
// concurrent read-only execution or document otherwise; this package
// treats that as a precondition of the backend.
type Session interface {
	// Run executes one inference call. The input is borrowed for the
	// duration of the call only.
	Run(ctx context.Context, in *Input) (*Logits, error)
	// Provider reports which execution backend the session runs on.
	Provider() Provider
	Close() error
}

// SessionConfig describes how to open an inference session.
type SessionConfig struct {
	ModelPath string
	Provider  Provider
}

// OpenSession opens an inference session for the given backend. The
// default factory reports every backend unavailable; a runtime binding
// (or a test) installs its own factory at startup.
var OpenSession = func(cfg SessionConfig) (Session, error) {
	return nil, fmt.Errorf("provider %s: %w", cfg.Provider, ErrBackendUnavailable)
}

// NumElements returns the product of the tensor's dimensions.
func (t *Tensor) NumElements() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// NumElements returns the product of the logits' dimensions.
func (l *Logits) NumElements() int {
	n := 1
	for _, d := range l.Shape {
		n *= d
	}
	return n
}
