package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the ASR service
type Metrics struct {
	// Transcription pipeline metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionDuration  prometheus.Histogram
	AudioDuration          prometheus.Histogram
	TranscriptConfidence   prometheus.Histogram
	MockTranscriptions     prometheus.Counter
	RejectedTooShort       prometheus.Counter
	RejectedTooLong        prometheus.Counter

	// Chunking metrics
	ChunksProcessed prometheus.Counter
	ChunkFailures   prometheus.Counter
	ChunkDuration   prometheus.Histogram

	// Inference metrics
	InferenceCalls    prometheus.Counter
	InferenceErrors   prometheus.Counter
	InferenceDuration prometheus.Histogram
	ModelLoadDuration prometheus.Gauge
	ModelState        prometheus.Gauge

	// Voice session metrics
	ActiveSessions  prometheus.Gauge
	SessionsCreated prometheus.Counter
	SessionsClosed  prometheus.Counter
	SessionDuration prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Transcription pipeline metrics
		TranscriptionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "asr_transcription_requests_total",
			Help: "Total number of transcription requests",
		}),
		TranscriptionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "asr_transcription_successes_total",
			Help: "Total number of successful transcriptions",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "asr_transcription_failures_total",
			Help: "Total number of failed transcriptions",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "asr_transcription_duration_seconds",
			Help:    "Wall-clock duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}),
		AudioDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "asr_audio_duration_seconds",
			Help:    "Duration of submitted audio",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 11), // 0.25s to ~4 minutes
		}),
		TranscriptConfidence: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "asr_transcript_confidence",
			Help:    "Heuristic confidence score of produced transcripts",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11), // 0.0 to 1.0
		}),
		MockTranscriptions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "asr_mock_transcriptions_total",
			Help: "Total number of transcripts served by the mock-mode engine",
		}),
		RejectedTooShort: promauto.NewCounter(prometheus.CounterOpts{
			Name: "asr_rejected_too_short_total",
			Help: "Total number of requests rejected for audio below the minimum duration",
		}),
		RejectedTooLong: promauto.NewCounter(prometheus.CounterOpts{
			Name: "asr_rejected_too_long_total",
			Help: "Total number of requests rejected for audio above the maximum duration",
		}),

		// Chunking metrics
		ChunksProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "asr_chunks_processed_total",
			Help: "Total number of audio chunks run through the pipeline",
		}),
		ChunkFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "asr_chunk_failures_total",
			Help: "Total number of chunks that failed and produced a sentinel transcript",
		}),
		ChunkDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "asr_chunk_duration_seconds",
			Help:    "Audio duration of processed chunks",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s to ~2 minutes
		}),

		// Inference metrics
		InferenceCalls: promauto.NewCounter(prometheus.CounterOpts{
			Name: "asr_inference_calls_total",
			Help: "Total number of inference session executions",
		}),
		InferenceErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "asr_inference_errors_total",
			Help: "Total number of inference session failures",
		}),
		InferenceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "asr_inference_duration_seconds",
			Help:    "Duration of inference session executions",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}),
		ModelLoadDuration: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "asr_model_load_duration_seconds",
			Help: "Time taken by the one-time model load",
		}),
		ModelState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "asr_model_state",
			Help: "Engine load state (0=unloaded, 1=loading, 2=loaded, 3=mock)",
		}),

		// Voice session metrics
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "asr_active_sessions",
			Help: "Current number of active voice sessions",
		}),
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "asr_sessions_created_total",
			Help: "Total number of voice sessions created",
		}),
		SessionsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "asr_sessions_closed_total",
			Help: "Total number of voice sessions closed",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "asr_session_duration_seconds",
			Help:    "Lifetime of voice sessions",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "asr_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "asr_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "asr_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordTranscriptionRequest records a new transcription request and its
// audio duration
func (m *Metrics) RecordTranscriptionRequest(audioSeconds float64) {
	m.TranscriptionRequests.Inc()
	m.AudioDuration.Observe(audioSeconds)
}

// RecordTranscriptionSuccess records a successful transcription
func (m *Metrics) RecordTranscriptionSuccess(durationSeconds, confidence float64) {
	m.TranscriptionSuccesses.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
	m.TranscriptConfidence.Observe(confidence)
}

// RecordTranscriptionFailure records a failed transcription
func (m *Metrics) RecordTranscriptionFailure(durationSeconds float64) {
	m.TranscriptionFailures.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordMockTranscription increments the mock-mode transcription counter
func (m *Metrics) RecordMockTranscription() {
	m.MockTranscriptions.Inc()
}

// RecordRejection records a pre-inference rejection
func (m *Metrics) RecordRejection(tooLong bool) {
	if tooLong {
		m.RejectedTooLong.Inc()
	} else {
		m.RejectedTooShort.Inc()
	}
}

// RecordChunk records one processed chunk
func (m *Metrics) RecordChunk(durationSeconds float64, failed bool) {
	m.ChunksProcessed.Inc()
	m.ChunkDuration.Observe(durationSeconds)
	if failed {
		m.ChunkFailures.Inc()
	}
}

// RecordInference records one inference session execution
func (m *Metrics) RecordInference(durationSeconds float64, err error) {
	m.InferenceCalls.Inc()
	m.InferenceDuration.Observe(durationSeconds)
	if err != nil {
		m.InferenceErrors.Inc()
	}
}

// RecordModelLoad records the one-time model load duration
func (m *Metrics) RecordModelLoad(durationSeconds float64) {
	m.ModelLoadDuration.Set(durationSeconds)
}

// SetModelState publishes the engine load state
func (m *Metrics) SetModelState(state int) {
	m.ModelState.Set(float64(state))
}

// RecordSessionCreated increments the session counters
func (m *Metrics) RecordSessionCreated(activeCount int) {
	m.SessionsCreated.Inc()
	m.ActiveSessions.Set(float64(activeCount))
}

// RecordSessionClosed records a closed session and its lifetime
func (m *Metrics) RecordSessionClosed(activeCount int, lifetimeSeconds float64) {
	m.SessionsClosed.Inc()
	m.ActiveSessions.Set(float64(activeCount))
	m.SessionDuration.Observe(lifetimeSeconds)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
