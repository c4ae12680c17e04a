package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/elbruno/nvidia-voiceagent-cs-sub001/internal/audio"
	"github.com/elbruno/nvidia-voiceagent-cs-sub001/internal/metrics"
	"github.com/elbruno/nvidia-voiceagent-cs-sub001/internal/protocol"
	"github.com/elbruno/nvidia-voiceagent-cs-sub001/internal/transcriber"
)

// Transcriber is the engine surface the session manager depends on.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate int) transcriber.Result
}

// Session represents one active voice session: a client connection
// accumulating audio until a flush triggers transcription.
type Session struct {
	ID           string
	StartTime    time.Time
	LastActivity time.Time

	Buffer     *audio.Buffer
	SampleRate int
	Format     string

	// Statistics
	flushes         uint64
	transcripts     uint64
	transcribeFails uint64

	maxBufferDuration time.Duration

	mu sync.RWMutex
}

// ManagerConfig contains configuration for the session manager
type ManagerConfig struct {
	MaxSessions       int
	SessionTimeout    time.Duration
	MaxBufferDuration time.Duration
	DefaultSampleRate int
}

// Manager manages all active voice sessions and their idle eviction.
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	logger   *slog.Logger
	config   ManagerConfig

	engine  Transcriber
	metrics *metrics.Metrics

	ctx     context.Context
	cancel  context.CancelFunc
	cleanup chan struct{}
}

// NewManager creates a session manager and starts its cleanup routine.
// Metrics may be nil.
func NewManager(logger *slog.Logger, config ManagerConfig, engine Transcriber, m *metrics.Metrics) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	mgr := &Manager{
		sessions: make(map[string]*Session),
		logger:   logger,
		config:   config,
		engine:   engine,
		metrics:  m,
		ctx:      ctx,
		cancel:   cancel,
		cleanup:  make(chan struct{}),
	}

	go mgr.startCleanupRoutine()

	return mgr
}

// CreateSession creates a new voice session with a fresh audio buffer.
func (m *Manager) CreateSession() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config.MaxSessions > 0 && len(m.sessions) >= m.config.MaxSessions {
		return nil, fmt.Errorf("session limit reached: %d active", len(m.sessions))
	}

	buffer, err := audio.NewBuffer(m.config.DefaultSampleRate, m.config.MaxBufferDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to create session buffer: %w", err)
	}

	now := time.Now()
	session := &Session{
		ID:                uuid.NewString(),
		StartTime:         now,
		LastActivity:      now,
		Buffer:            buffer,
		SampleRate:        m.config.DefaultSampleRate,
		Format:            protocol.FormatWAV,
		maxBufferDuration: m.config.MaxBufferDuration,
	}

	m.sessions[session.ID] = session

	if m.metrics != nil {
		m.metrics.RecordSessionCreated(len(m.sessions))
	}

	m.logger.Info("Created voice session",
		slog.String("session_id", session.ID),
		slog.Int("active_sessions", len(m.sessions)),
	)

	return session, nil
}

// GetSession retrieves an existing voice session
func (m *Manager) GetSession(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[id]
	return session, exists
}

// GetActiveSessionCount returns the number of currently active sessions
func (m *Manager) GetActiveSessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// GetAllSessionInfo returns a snapshot of all active sessions for
// monitoring endpoints.
func (m *Manager) GetAllSessionInfo() []SessionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(m.sessions))
	for _, session := range m.sessions {
		infos = append(infos, session.GetSessionInfo())
	}

	return infos
}

// RemoveSession removes a voice session.
func (m *Manager) RemoveSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[id]
	if !exists {
		return false
	}

	delete(m.sessions, id)
	lifetime := time.Since(session.StartTime)

	if m.metrics != nil {
		m.metrics.RecordSessionClosed(len(m.sessions), lifetime.Seconds())
	}

	m.logger.Info("Voice session removed",
		slog.String("session_id", id),
		slog.Duration("lifetime", lifetime),
		slog.Int("active_sessions", len(m.sessions)),
	)

	return true
}

// Transcribe flushes the session's buffered audio through the engine.
func (m *Manager) Transcribe(ctx context.Context, session *Session) (transcriber.Result, error) {
	samples, sampleRate, err := session.flush()
	if err != nil {
		return transcriber.Result{}, err
	}

	result := m.engine.Transcribe(ctx, samples, sampleRate)

	session.mu.Lock()
	if result.OK() {
		session.transcripts++
	} else {
		session.transcribeFails++
	}
	session.mu.Unlock()

	m.logger.Info("Session flush transcribed",
		slog.String("session_id", session.ID),
		slog.String("request_id", result.RequestID),
		slog.String("outcome", result.Outcome.String()),
		slog.Float64("audio_seconds", result.AudioDuration.Seconds()),
		slog.Int("chunks", result.Chunks),
	)

	return result, nil
}

// Stop gracefully stops the session manager
func (m *Manager) Stop() {
	m.logger.Info("Stopping session manager...")

	m.cancel()
	<-m.cleanup

	m.mu.Lock()
	remaining := len(m.sessions)
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	m.logger.Info("Session manager stopped",
		slog.Int("evicted_sessions", remaining),
	)
}

// startCleanupRoutine runs in a separate goroutine to clean up idle sessions
func (m *Manager) startCleanupRoutine() {
	defer close(m.cleanup)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	m.logger.Info("Session cleanup routine started",
		slog.Duration("timeout", m.config.SessionTimeout),
		slog.Duration("check_interval", 30*time.Second),
	)

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Info("Session cleanup routine stopping")
			return

		case <-ticker.C:
			m.cleanupIdleSessions()
		}
	}
}

// cleanupIdleSessions removes sessions that have been inactive for too long
func (m *Manager) cleanupIdleSessions() {
	now := time.Now()
	idle := make([]string, 0)

	m.mu.RLock()
	for id, session := range m.sessions {
		session.mu.RLock()
		lastActivity := session.LastActivity
		session.mu.RUnlock()

		if now.Sub(lastActivity) > m.config.SessionTimeout {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	if len(idle) > 0 {
		m.logger.Info("Cleaning up idle sessions",
			slog.Int("idle_count", len(idle)),
		)

		for _, id := range idle {
			m.RemoveSession(id)
		}
	}
}

// Configure applies a client config message. The sample rate can only
// change while the buffer is empty.
func (s *Session) Configure(sampleRate int, format string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastActivity = time.Now()

	if format != protocol.FormatWAV && format != protocol.FormatPCM16 {
		return fmt.Errorf("unsupported audio format: '%s'", format)
	}

	if sampleRate != s.SampleRate {
		if s.Buffer.Size() > 0 {
			return fmt.Errorf("cannot change sample rate with %d samples buffered", s.Buffer.Size())
		}
		buffer, err := audio.NewBuffer(sampleRate, s.maxBufferDuration)
		if err != nil {
			return err
		}
		s.SampleRate = sampleRate
		s.Buffer = buffer
	}

	s.Format = format
	return nil
}

// AddAudio appends one binary frame to the session buffer. WAV frames
// are decoded and resampled to the session rate; PCM16 frames are taken
// at the configured rate as-is.
func (s *Session) AddAudio(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastActivity = time.Now()

	switch s.Format {
	case protocol.FormatWAV:
		samples, rate, err := audio.DecodeWAV(data)
		if err != nil {
			return fmt.Errorf("failed to decode WAV frame: %w", err)
		}
		if rate != s.SampleRate {
			samples = audio.Resample(samples, rate, s.SampleRate)
		}
		return s.Buffer.Append(samples)

	case protocol.FormatPCM16:
		return s.Buffer.AppendPCM16(data)

	default:
		return fmt.Errorf("unsupported audio format: '%s'", s.Format)
	}
}

// flush drains the buffered audio for transcription.
func (s *Session) flush() ([]float32, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastActivity = time.Now()
	s.flushes++

	samples := s.Buffer.Flush()
	if len(samples) == 0 {
		return nil, 0, fmt.Errorf("no audio buffered")
	}

	return samples, s.SampleRate, nil
}

// BufferedDuration reports how much audio the session currently holds.
func (s *Session) BufferedDuration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Buffer.Duration()
}

// GetSessionInfo returns session information for monitoring and APIs
func (s *Session) GetSessionInfo() SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return SessionInfo{
		SessionID:       s.ID,
		StartTime:       s.StartTime,
		LastActivity:    s.LastActivity,
		Duration:        time.Since(s.StartTime),
		SampleRate:      s.SampleRate,
		Format:          s.Format,
		BufferedSamples: s.Buffer.Size(),
		BufferedSeconds: s.Buffer.Duration().Seconds(),
		Flushes:         s.flushes,
		Transcripts:     s.transcripts,
		TranscribeFails: s.transcribeFails,
	}
}

// SessionInfo represents session information for monitoring and APIs
type SessionInfo struct {
	SessionID       string        `json:"session_id"`
	StartTime       time.Time     `json:"start_time"`
	LastActivity    time.Time     `json:"last_activity"`
	Duration        time.Duration `json:"duration"`
	SampleRate      int           `json:"sample_rate"`
	Format          string        `json:"format"`
	BufferedSamples int           `json:"buffered_samples"`
	BufferedSeconds float64       `json:"buffered_seconds"`
	Flushes         uint64        `json:"flushes"`
	Transcripts     uint64        `json:"transcripts"`
	TranscribeFails uint64        `json:"transcribe_fails"`
}
