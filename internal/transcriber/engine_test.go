package transcriber

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elbruno/nvidia-voiceagent-cs-sub001/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// fakeSession counts Run calls and serves canned logits.
type fakeSession struct {
	mu     sync.Mutex
	calls  int
	logits *model.Logits
	err    error
	closed bool
}

func (f *fakeSession) Run(ctx context.Context, in *model.Input) (*model.Logits, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.logits, nil
}

func (f *fakeSession) Provider() model.Provider { return model.ProviderCPU }

func (f *fakeSession) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSession) runCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// charLogits builds logits that greedy-decode to text via the character
// code fallback, with a blank step between characters so repeats survive.
func charLogits(text string, blankID int) *model.Logits {
	vocab := blankID + 1
	steps := 2 * len(text)
	data := make([]float32, steps*vocab)
	for i, c := range []byte(text) {
		data[(2*i)*vocab+int(c)] = 1
		data[(2*i+1)*vocab+blankID] = 1
	}
	return &model.Logits{Data: data, Shape: []int{steps, vocab}}
}

// writeModelDir lays out a model directory containing the given spec and
// an empty model file, and returns its path.
func writeModelDir(t *testing.T, spec *model.Spec) string {
	t.Helper()
	dir := t.TempDir()

	data, err := json.Marshal(spec)
	if err != nil {
		t.Fatalf("Failed to marshal spec: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "model.json"), data, 0o644); err != nil {
		t.Fatalf("Failed to write spec file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "encoder.onnx"), []byte("stub"), 0o644); err != nil {
		t.Fatalf("Failed to write model file: %v", err)
	}

	return dir
}

// installSession swaps the session factory for the duration of a test.
func installSession(t *testing.T, session model.Session) {
	t.Helper()
	original := model.OpenSession
	model.OpenSession = func(cfg model.SessionConfig) (model.Session, error) {
		return session, nil
	}
	t.Cleanup(func() { model.OpenSession = original })
}

// loadedEngine builds an engine backed by the fake session.
func loadedEngine(t *testing.T, spec *model.Spec, session *fakeSession) *Engine {
	t.Helper()
	installSession(t, session)

	engine := NewEngine(Config{ModelDir: writeModelDir(t, spec)}, testLogger(), nil)
	if err := engine.EnsureLoaded(context.Background()); err != nil {
		t.Fatalf("EnsureLoaded failed: %v", err)
	}
	if engine.State() != StateLoaded {
		t.Fatalf("Expected loaded state, got %s", engine.State())
	}
	return engine
}

// silence generates that many seconds of quiet sine-free audio.
func quietAudio(seconds float64, sampleRate int) []float32 {
	n := int(seconds * float64(sampleRate))
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = 0.1
	}
	return samples
}

func TestEnsureLoadedConcurrent(t *testing.T) {
	engine := NewEngine(Config{}, testLogger(), nil)

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = engine.EnsureLoaded(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Caller %d got load error: %v", i, err)
		}
	}

	if engine.State() != StateMockMode {
		t.Errorf("Expected mock mode without model dir, got %s", engine.State())
	}

	stats := engine.GetStats()
	if stats.Loads != 1 {
		t.Errorf("Expected exactly 1 load under concurrency, got %d", stats.Loads)
	}
}

func TestEnsureLoadedIdempotent(t *testing.T) {
	engine := NewEngine(Config{}, testLogger(), nil)

	for i := 0; i < 3; i++ {
		if err := engine.EnsureLoaded(context.Background()); err != nil {
			t.Fatalf("EnsureLoaded call %d failed: %v", i, err)
		}
	}

	if stats := engine.GetStats(); stats.Loads != 1 {
		t.Errorf("Expected 1 load after repeated calls, got %d", stats.Loads)
	}
}

func TestLoadInvalidSpecIsFatal(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "model.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("Failed to write spec file: %v", err)
	}

	engine := NewEngine(Config{ModelDir: dir}, testLogger(), nil)
	if err := engine.EnsureLoaded(context.Background()); err == nil {
		t.Fatal("Expected error for unparseable spec")
	}
	if engine.State() != StateUnloaded {
		t.Errorf("Expected unloaded state after fatal load, got %s", engine.State())
	}
}

func TestLoadMissingModelFileDegradesToMock(t *testing.T) {
	dir := t.TempDir()
	data, err := json.Marshal(model.DefaultSpec())
	if err != nil {
		t.Fatalf("Failed to marshal spec: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "model.json"), data, 0o644); err != nil {
		t.Fatalf("Failed to write spec file: %v", err)
	}

	engine := NewEngine(Config{ModelDir: dir}, testLogger(), nil)
	if err := engine.EnsureLoaded(context.Background()); err != nil {
		t.Fatalf("EnsureLoaded failed: %v", err)
	}
	if engine.State() != StateMockMode {
		t.Errorf("Expected mock mode without model file, got %s", engine.State())
	}
}

func TestLoadBackendFallback(t *testing.T) {
	session := &fakeSession{logits: charLogits("ok", model.DefaultSpec().Decoding.BlankID)}

	original := model.OpenSession
	model.OpenSession = func(cfg model.SessionConfig) (model.Session, error) {
		if cfg.Provider == model.ProviderCUDA {
			return nil, model.ErrBackendUnavailable
		}
		return session, nil
	}
	t.Cleanup(func() { model.OpenSession = original })

	engine := NewEngine(Config{ModelDir: writeModelDir(t, model.DefaultSpec())}, testLogger(), nil)
	if err := engine.EnsureLoaded(context.Background()); err != nil {
		t.Fatalf("EnsureLoaded failed: %v", err)
	}
	if engine.State() != StateLoaded {
		t.Errorf("Expected loaded state via CPU fallback, got %s", engine.State())
	}
}

func TestMockTranscriptionDeterministic(t *testing.T) {
	engine := NewEngine(Config{}, testLogger(), nil)
	samples := quietAudio(1.5, 16000)

	first := engine.Transcribe(context.Background(), samples, 16000)
	second := engine.Transcribe(context.Background(), samples, 16000)

	if !first.OK() || !second.OK() {
		t.Fatalf("Mock transcription failed: %s / %s", first.Outcome, second.Outcome)
	}
	if first.Transcript != second.Transcript {
		t.Errorf("Mock transcripts differ for equal audio: %q vs %q",
			first.Transcript, second.Transcript)
	}
	if first.Transcript == "" {
		t.Error("Mock transcript is empty")
	}

	if stats := engine.GetStats(); stats.MockRequests != 2 {
		t.Errorf("Expected 2 mock requests, got %d", stats.MockRequests)
	}
}

func TestTranscribeSingle(t *testing.T) {
	spec := model.DefaultSpec()
	session := &fakeSession{logits: charLogits("hello", spec.Decoding.BlankID)}
	engine := loadedEngine(t, spec, session)

	result := engine.Transcribe(context.Background(), quietAudio(2, 16000), 16000)
	if !result.OK() {
		t.Fatalf("Transcription failed: %s (%s)", result.Outcome, result.Reason)
	}
	if result.Transcript != "hello" {
		t.Errorf("Expected transcript %q, got %q", "hello", result.Transcript)
	}
	if result.Chunks != 1 {
		t.Errorf("Expected 1 chunk for short audio, got %d", result.Chunks)
	}
	if result.RequestID == "" {
		t.Error("Expected a request ID")
	}
	if result.Confidence <= 0 || result.Confidence > 1 {
		t.Errorf("Confidence out of range: %f", result.Confidence)
	}
	if session.runCalls() != 1 {
		t.Errorf("Expected 1 inference call, got %d", session.runCalls())
	}
}

func TestTranscribeTooShortSkipsInference(t *testing.T) {
	spec := model.DefaultSpec()
	session := &fakeSession{logits: charLogits("x", spec.Decoding.BlankID)}
	engine := loadedEngine(t, spec, session)

	// 800 samples yield 3 frames at the default 400/160 framing,
	// below the 5-frame minimum.
	result := engine.Transcribe(context.Background(), make([]float32, 800), 16000)
	if result.Outcome != OutcomeTooShort {
		t.Fatalf("Expected too-short outcome, got %s", result.Outcome)
	}
	if result.Text() != SentinelTooShort {
		t.Errorf("Expected sentinel %q, got %q", SentinelTooShort, result.Text())
	}
	if session.runCalls() != 0 {
		t.Errorf("Expected no inference for rejected audio, got %d calls", session.runCalls())
	}
}

func TestTranscribeTooLong(t *testing.T) {
	spec := model.DefaultSpec()
	spec.Chunking.Enabled = false
	spec.Input.MaxFrames = 50
	session := &fakeSession{logits: charLogits("x", spec.Decoding.BlankID)}
	engine := loadedEngine(t, spec, session)

	result := engine.Transcribe(context.Background(), quietAudio(5, 16000), 16000)
	if result.Outcome != OutcomeTooLong {
		t.Fatalf("Expected too-long outcome, got %s", result.Outcome)
	}
	if result.Text() != SentinelTooLong {
		t.Errorf("Expected sentinel %q, got %q", SentinelTooLong, result.Text())
	}
}

func TestTranscribeInferenceError(t *testing.T) {
	spec := model.DefaultSpec()
	session := &fakeSession{err: errors.New("graph execution failed")}
	engine := loadedEngine(t, spec, session)

	result := engine.Transcribe(context.Background(), quietAudio(2, 16000), 16000)
	if result.Outcome != OutcomeInferenceFailed {
		t.Fatalf("Expected inference-failed outcome, got %s", result.Outcome)
	}
	if !strings.HasPrefix(result.Text(), "[Transcription error:") {
		t.Errorf("Expected error sentinel, got %q", result.Text())
	}

	stats := engine.GetStats()
	if stats.FailedRequests != 1 {
		t.Errorf("Expected 1 failed request, got %d", stats.FailedRequests)
	}
}

func TestTranscribeChunked(t *testing.T) {
	spec := model.DefaultSpec()
	spec.Chunking.ChunkSeconds = 2
	spec.Chunking.OverlapSeconds = 0.5
	spec.Input.MaxFrames = 250
	session := &fakeSession{logits: charLogits("part", spec.Decoding.BlankID)}
	engine := loadedEngine(t, spec, session)

	// 5 seconds with 2s chunks and 0.5s overlap covers [0,2) [1.5,3.5) [3,5).
	result := engine.Transcribe(context.Background(), quietAudio(5, 16000), 16000)
	if !result.OK() {
		t.Fatalf("Chunked transcription failed: %s (%s)", result.Outcome, result.Reason)
	}
	if result.Chunks != 3 {
		t.Errorf("Expected 3 chunks, got %d", result.Chunks)
	}
	if session.runCalls() != 3 {
		t.Errorf("Expected 3 inference calls, got %d", session.runCalls())
	}
	// Identical chunk transcripts merge into one occurrence.
	if result.Transcript != "part" {
		t.Errorf("Expected merged transcript %q, got %q", "part", result.Transcript)
	}
}

func TestTranscribeChunkedFailedChunkSentinel(t *testing.T) {
	spec := model.DefaultSpec()
	spec.Chunking.ChunkSeconds = 2
	spec.Chunking.OverlapSeconds = 0.5
	spec.Input.MaxFrames = 250
	session := &fakeSession{err: errors.New("graph execution failed")}
	engine := loadedEngine(t, spec, session)

	result := engine.Transcribe(context.Background(), quietAudio(5, 16000), 16000)
	if !result.OK() {
		t.Fatalf("Expected overall success with sentinel chunks, got %s", result.Outcome)
	}
	if !strings.Contains(result.Transcript, SentinelChunkError) {
		t.Errorf("Expected chunk error sentinel in %q", result.Transcript)
	}
}

func TestTranscribeChunkedCancellation(t *testing.T) {
	spec := model.DefaultSpec()
	spec.Chunking.ChunkSeconds = 2
	spec.Chunking.OverlapSeconds = 0.5
	spec.Input.MaxFrames = 250
	session := &fakeSession{logits: charLogits("part", spec.Decoding.BlankID)}
	engine := loadedEngine(t, spec, session)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := engine.Transcribe(ctx, quietAudio(5, 16000), 16000)
	if result.Outcome != OutcomeInferenceFailed {
		t.Fatalf("Expected failure after cancellation, got %s", result.Outcome)
	}
	if !strings.Contains(result.Reason, "canceled") {
		t.Errorf("Expected cancellation reason, got %q", result.Reason)
	}
	if session.runCalls() != 0 {
		t.Errorf("Expected no inference after pre-canceled context, got %d calls", session.runCalls())
	}
}

func TestTranscribeResamples(t *testing.T) {
	spec := model.DefaultSpec()
	session := &fakeSession{logits: charLogits("hello", spec.Decoding.BlankID)}
	engine := loadedEngine(t, spec, session)

	// 2 seconds at 8 kHz resamples to 2 seconds at the model's 16 kHz.
	result := engine.Transcribe(context.Background(), quietAudio(2, 8000), 8000)
	if !result.OK() {
		t.Fatalf("Transcription failed: %s (%s)", result.Outcome, result.Reason)
	}
	wantDuration := 2 * time.Second
	if diff := result.AudioDuration - wantDuration; diff < -50*time.Millisecond || diff > 50*time.Millisecond {
		t.Errorf("Expected ~%v audio duration after resampling, got %v",
			wantDuration, result.AudioDuration)
	}
}

func TestEngineStats(t *testing.T) {
	engine := NewEngine(Config{}, testLogger(), nil)
	engine.Transcribe(context.Background(), quietAudio(1, 16000), 16000)
	engine.Transcribe(context.Background(), quietAudio(1, 16000), 16000)

	stats := engine.GetStats()
	if stats.TotalRequests != 2 {
		t.Errorf("Expected 2 total requests, got %d", stats.TotalRequests)
	}
	if stats.SuccessRequests != 2 {
		t.Errorf("Expected 2 successful requests, got %d", stats.SuccessRequests)
	}
	if stats.SuccessRate != 100 {
		t.Errorf("Expected 100%% success rate, got %f", stats.SuccessRate)
	}
	if stats.State != "mock" {
		t.Errorf("Expected mock state, got %s", stats.State)
	}
}

func TestMockTranscriptTable(t *testing.T) {
	seen := make(map[string]bool)
	for ms := 100; ms <= 8000; ms += 100 {
		text := mockTranscript(time.Duration(ms) * time.Millisecond)
		if text == "" {
			t.Fatalf("Empty mock transcript for %dms", ms)
		}
		seen[text] = true
	}
	if len(seen) < 2 {
		t.Errorf("Expected varied mock transcripts across durations, got %d distinct", len(seen))
	}
}

func TestConfidenceScore(t *testing.T) {
	loud := make([]float32, 32000)
	for i := range loud {
		loud[i] = 0.3
	}
	quiet := make([]float32, 32000)
	for i := range quiet {
		quiet[i] = 0.01
	}

	loudScore := confidenceScore(loud, 2*time.Second)
	quietScore := confidenceScore(quiet, 2*time.Second)
	if loudScore <= quietScore {
		t.Errorf("Expected louder audio to score higher: %f vs %f", loudScore, quietScore)
	}
	if loudScore > 1 {
		t.Errorf("Score above 1: %f", loudScore)
	}
	if score := confidenceScore(nil, 0); score != 0 {
		t.Errorf("Expected 0 for empty audio, got %f", score)
	}
}
