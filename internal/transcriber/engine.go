package transcriber

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/elbruno/nvidia-voiceagent-cs-sub001/internal/audio"
	"github.com/elbruno/nvidia-voiceagent-cs-sub001/internal/decoder"
	"github.com/elbruno/nvidia-voiceagent-cs-sub001/internal/dsp"
	"github.com/elbruno/nvidia-voiceagent-cs-sub001/internal/metrics"
	"github.com/elbruno/nvidia-voiceagent-cs-sub001/internal/model"
)

// State is the engine's load state. Transitions are one-way:
// Unloaded -> Loading -> {Loaded | MockMode} for the process lifetime.
type State int32

const (
	StateUnloaded State = iota
	StateLoading
	StateLoaded
	StateMockMode
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateMockMode:
		return "mock"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Config contains transcription engine configuration.
type Config struct {
	ModelDir  string           // directory holding the model export; empty enables mock mode
	SpecFile  string           // descriptor file name inside ModelDir
	ModelFile string           // model graph file name inside ModelDir
	Providers []model.Provider // execution backends in fallback order
}

// EngineStats represents engine statistics.
type EngineStats struct {
	State           string        `json:"state"`
	Loads           uint64        `json:"loads"`
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	MockRequests    uint64        `json:"mock_requests"`
	SuccessRate     float64       `json:"success_rate"`
	AvgDuration     time.Duration `json:"avg_duration"`
}

// Engine is the speech-to-text transcription engine: it owns the loaded
// model and runs the extract -> shape -> infer -> decode pipeline, with
// chunk/merge handling for long audio. All loaded state (spec, vocab,
// session, extractor, shaper) is immutable after the one-time load and
// freely shared across concurrent callers.
type Engine struct {
	config  Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	state  atomic.Int32
	loadMu sync.Mutex

	// Set once by load(), read-only afterwards.
	spec      *model.Spec
	vocab     *model.Vocabulary
	session   model.Session
	extractor *dsp.Extractor
	shaper    *model.Shaper
	chunker   *audio.Chunker

	// Statistics
	loads           uint64
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	mockRequests    uint64
	totalDuration   time.Duration
	statsMu         sync.Mutex
}

// NewEngine creates a transcription engine. Metrics may be nil.
func NewEngine(config Config, logger *slog.Logger, m *metrics.Metrics) *Engine {
	if config.SpecFile == "" {
		config.SpecFile = "model.json"
	}
	if config.ModelFile == "" {
		config.ModelFile = "encoder.onnx"
	}
	if len(config.Providers) == 0 {
		config.Providers = []model.Provider{model.ProviderCUDA, model.ProviderCPU}
	}

	return &Engine{
		config:  config,
		logger:  logger,
		metrics: m,
	}
}

// State returns the current load state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// IsLoaded reports whether the engine is ready to serve, including in
// mock mode so downstream code proceeds uniformly.
func (e *Engine) IsLoaded() bool {
	s := e.State()
	return s == StateLoaded || s == StateMockMode
}

// Spec returns the loaded model specification, or nil before load.
func (e *Engine) Spec() *model.Spec {
	if !e.IsLoaded() {
		return nil
	}
	return e.spec
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
	if e.metrics != nil {
		e.metrics.SetModelState(int(s))
	}
}

// EnsureLoaded performs the one-time model load. It is idempotent and
// safe under concurrent callers: exactly one caller executes the load
// while the rest block until it completes. A structural load failure
// (unparseable spec) is fatal and returned to every caller; missing
// model files degrade to mock mode instead.
func (e *Engine) EnsureLoaded(ctx context.Context) error {
	if e.IsLoaded() {
		return nil
	}

	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	if e.IsLoaded() {
		return nil
	}

	e.setState(StateLoading)
	start := time.Now()

	finalState, err := e.load(ctx)
	if err != nil {
		e.setState(StateUnloaded)
		return err
	}

	e.statsMu.Lock()
	e.loads++
	e.statsMu.Unlock()

	e.setState(finalState)
	if e.metrics != nil {
		e.metrics.RecordModelLoad(time.Since(start).Seconds())
	}

	e.logger.Info("Transcription engine loaded",
		slog.String("state", finalState.String()),
		slog.Duration("load_time", time.Since(start)),
	)

	return nil
}

// load performs the actual load sequence and returns the terminal state.
func (e *Engine) load(ctx context.Context) (State, error) {
	specPath := filepath.Join(e.config.ModelDir, e.config.SpecFile)

	if e.config.ModelDir == "" || !fileExists(specPath) {
		e.logger.Warn("Model specification not found, entering mock mode",
			slog.String("spec_path", specPath),
		)
		e.spec = model.DefaultSpec()
		return StateMockMode, nil
	}

	spec, err := model.LoadSpec(specPath)
	if err != nil {
		// A present but invalid descriptor is a fatal contract failure.
		return StateUnloaded, fmt.Errorf("failed to load model spec: %w", err)
	}
	e.spec = spec

	extractor, err := dsp.NewExtractor(dsp.Config{
		SampleRate:   spec.Preprocessing.SampleRate,
		MelBins:      spec.Preprocessing.MelBins,
		FFTSize:      spec.Preprocessing.FFTSize,
		WindowLength: spec.Preprocessing.WindowLength,
		HopLength:    spec.Preprocessing.HopLength,
		FreqMin:      spec.Preprocessing.FreqMin,
		FreqMax:      spec.Preprocessing.FreqMax,
		NormMean:     spec.Preprocessing.NormMean,
		NormStd:      spec.Preprocessing.NormStd,
	})
	if err != nil {
		return StateUnloaded, fmt.Errorf("failed to configure feature extractor: %w", err)
	}
	e.extractor = extractor
	e.shaper = model.NewShaper(spec)

	if spec.Chunking.Enabled {
		chunker, err := audio.NewChunker(audio.ChunkingConfig{
			SampleRate:     spec.Preprocessing.SampleRate,
			ChunkSeconds:   spec.Chunking.ChunkSeconds,
			OverlapSeconds: spec.Chunking.OverlapSeconds,
		})
		if err != nil {
			return StateUnloaded, fmt.Errorf("failed to configure chunker: %w", err)
		}
		e.chunker = chunker
	}

	modelPath := filepath.Join(e.config.ModelDir, e.config.ModelFile)
	if !fileExists(modelPath) {
		e.logger.Warn("Model file not found, entering mock mode",
			slog.String("model_path", modelPath),
		)
		return StateMockMode, nil
	}

	session, err := e.openSession(modelPath)
	if err != nil {
		e.logger.Warn("No inference backend available, entering mock mode",
			slog.String("error", err.Error()),
		)
		return StateMockMode, nil
	}
	e.session = session

	vocabPath := filepath.Join(e.config.ModelDir, spec.Decoding.VocabFile)
	vocab, err := model.LoadVocabulary(vocabPath)
	if err != nil {
		// The decoder falls back to character codes without a vocabulary.
		e.logger.Warn("Vocabulary not loaded, decoding falls back to character codes",
			slog.String("vocab_path", vocabPath),
			slog.String("error", err.Error()),
		)
	} else {
		e.vocab = vocab
	}

	return StateLoaded, nil
}

// openSession tries the configured execution backends in order. A failed
// faster backend is caught and logged, never fatal.
func (e *Engine) openSession(modelPath string) (model.Session, error) {
	var lastErr error
	for _, provider := range e.config.Providers {
		session, err := model.OpenSession(model.SessionConfig{
			ModelPath: modelPath,
			Provider:  provider,
		})
		if err == nil {
			e.logger.Info("Inference session opened",
				slog.String("provider", string(provider)),
				slog.String("model_path", modelPath),
			)
			return session, nil
		}

		e.logger.Warn("Inference backend failed, trying next",
			slog.String("provider", string(provider)),
			slog.String("error", err.Error()),
		)
		lastErr = err
	}

	return nil, fmt.Errorf("all inference backends failed: %w", lastErr)
}

// Transcribe converts audio samples into a transcript. Input at a
// different sample rate than the model's is resampled first. All per-call
// failures are reported in-band through the Result.
func (e *Engine) Transcribe(ctx context.Context, samples []float32, sampleRate int) Result {
	start := time.Now()
	requestID := uuid.NewString()

	if err := e.EnsureLoaded(ctx); err != nil {
		return e.finishFailure(Result{
			Outcome:   OutcomeInferenceFailed,
			Reason:    fmt.Sprintf("model load failed: %v", err),
			RequestID: requestID,
		}, start)
	}

	modelRate := e.spec.Preprocessing.SampleRate
	if sampleRate > 0 && sampleRate != modelRate {
		samples = audio.Resample(samples, sampleRate, modelRate)
	}

	duration := time.Duration(float64(len(samples)) / float64(modelRate) * float64(time.Second))

	e.statsMu.Lock()
	e.totalRequests++
	e.statsMu.Unlock()
	if e.metrics != nil {
		e.metrics.RecordTranscriptionRequest(duration.Seconds())
	}

	e.logger.Debug("Transcription request",
		slog.String("request_id", requestID),
		slog.Int("samples", len(samples)),
		slog.Duration("duration", duration),
	)

	if e.State() == StateMockMode {
		return e.mockResult(samples, duration, requestID, start)
	}

	var result Result
	if e.chunker != nil && e.chunker.NeedsChunking(len(samples)) {
		result = e.transcribeChunked(ctx, samples, requestID)
	} else {
		result = e.transcribeSingle(ctx, samples, requestID)
	}

	result.AudioDuration = duration
	result.RequestID = requestID

	if result.OK() {
		result.Confidence = confidenceScore(samples, duration)
		return e.finishSuccess(result, start)
	}
	return e.finishFailure(result, start)
}

// transcribeSingle runs one pass of the pipeline over the whole input.
func (e *Engine) transcribeSingle(ctx context.Context, samples []float32, requestID string) Result {
	text, err := e.runPipeline(ctx, samples, false)
	if err != nil {
		return e.classifyError(err, requestID)
	}

	return Result{Outcome: OutcomeOK, Transcript: text, Chunks: 1}
}

// transcribeChunked splits long audio into overlapping windows, runs each
// window independently, and merges the chunk transcripts. One failed
// chunk contributes a sentinel without aborting the rest; cancellation is
// honored between chunks only.
func (e *Engine) transcribeChunked(ctx context.Context, samples []float32, requestID string) Result {
	chunks := e.chunker.Split(len(samples))
	texts := make([]string, 0, len(chunks))
	rate := e.spec.Preprocessing.SampleRate

	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return Result{
				Outcome: OutcomeInferenceFailed,
				Reason:  fmt.Sprintf("canceled after %d of %d chunks", chunk.Index, len(chunks)),
			}
		}

		chunkSeconds := float64(chunk.End-chunk.Start) / float64(rate)
		text, err := e.runPipeline(ctx, chunk.Samples(samples), true)
		if err != nil {
			e.logger.Warn("Chunk transcription failed",
				slog.String("request_id", requestID),
				slog.Int("chunk", chunk.Index),
				slog.String("position", chunk.Position.String()),
				slog.String("error", err.Error()),
			)
			text = SentinelChunkError
		}

		if e.metrics != nil {
			e.metrics.RecordChunk(chunkSeconds, err != nil)
		}
		texts = append(texts, text)
	}

	merged := audio.MergeTranscripts(texts, e.chunker.OverlapFraction())
	return Result{Outcome: OutcomeOK, Transcript: merged, Chunks: len(chunks)}
}

// runPipeline executes extract -> shape -> infer -> decode for one
// window of samples. The unit is atomic: it is never interrupted
// mid-flight by cancellation.
func (e *Engine) runPipeline(ctx context.Context, samples []float32, isChunk bool) (string, error) {
	mel := e.extractor.Extract(samples)
	if mel.Frames == 0 {
		return "", fmt.Errorf("%w: input shorter than one analysis window", model.ErrTooFewFrames)
	}

	input, err := e.shaper.Shape(mel, isChunk)
	if err != nil {
		return "", err
	}

	inferStart := time.Now()
	logits, err := e.session.Run(ctx, input)
	if e.metrics != nil {
		e.metrics.RecordInference(time.Since(inferStart).Seconds(), err)
	}
	if err != nil {
		return "", fmt.Errorf("inference failed: %w", err)
	}

	text, err := decoder.Decode(logits, e.vocab, e.spec.Decoding.BlankID)
	if err != nil {
		return "", fmt.Errorf("decode failed: %w", err)
	}

	return text, nil
}

// classifyError maps pipeline errors onto result outcomes.
func (e *Engine) classifyError(err error, requestID string) Result {
	result := Result{Reason: err.Error()}

	switch {
	case errors.Is(err, model.ErrTooFewFrames):
		result.Outcome = OutcomeTooShort
		if e.metrics != nil {
			e.metrics.RecordRejection(false)
		}
	case errors.Is(err, model.ErrTooManyFrames):
		result.Outcome = OutcomeTooLong
		if e.metrics != nil {
			e.metrics.RecordRejection(true)
		}
	case errors.Is(err, decoder.ErrBadShape):
		result.Outcome = OutcomeDecodeFailed
	default:
		result.Outcome = OutcomeInferenceFailed
	}

	e.logger.Warn("Transcription failed",
		slog.String("request_id", requestID),
		slog.String("outcome", result.Outcome.String()),
		slog.String("error", err.Error()),
	)

	return result
}

// mockResult serves the deterministic mock-mode pseudo-transcript.
func (e *Engine) mockResult(samples []float32, duration time.Duration, requestID string, start time.Time) Result {
	e.statsMu.Lock()
	e.mockRequests++
	e.statsMu.Unlock()
	if e.metrics != nil {
		e.metrics.RecordMockTranscription()
	}

	return e.finishSuccess(Result{
		Outcome:       OutcomeOK,
		Transcript:    mockTranscript(duration),
		Confidence:    confidenceScore(samples, duration),
		AudioDuration: duration,
		Chunks:        1,
		RequestID:     requestID,
	}, start)
}

func (e *Engine) finishSuccess(result Result, start time.Time) Result {
	elapsed := time.Since(start)

	e.statsMu.Lock()
	e.successRequests++
	e.totalDuration += elapsed
	e.statsMu.Unlock()

	if e.metrics != nil {
		e.metrics.RecordTranscriptionSuccess(elapsed.Seconds(), result.Confidence)
	}

	return result
}

func (e *Engine) finishFailure(result Result, start time.Time) Result {
	elapsed := time.Since(start)

	e.statsMu.Lock()
	e.failedRequests++
	e.totalDuration += elapsed
	e.statsMu.Unlock()

	if e.metrics != nil {
		e.metrics.RecordTranscriptionFailure(elapsed.Seconds())
	}

	return result
}

// GetStats returns current engine statistics.
func (e *Engine) GetStats() EngineStats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	successRate := float64(0)
	if e.totalRequests > 0 {
		successRate = float64(e.successRequests) / float64(e.totalRequests) * 100
	}

	avgDuration := time.Duration(0)
	if n := e.successRequests + e.failedRequests; n > 0 {
		avgDuration = e.totalDuration / time.Duration(n)
	}

	return EngineStats{
		State:           e.State().String(),
		Loads:           e.loads,
		TotalRequests:   e.totalRequests,
		SuccessRequests: e.successRequests,
		FailedRequests:  e.failedRequests,
		MockRequests:    e.mockRequests,
		SuccessRate:     successRate,
		AvgDuration:     avgDuration,
	}
}

// Close releases the inference session, if any.
func (e *Engine) Close() error {
	if e.session != nil {
		return e.session.Close()
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
