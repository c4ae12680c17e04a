package audio

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"
)

// Buffer accumulates normalized PCM samples for one voice session until
// the host flushes them into the transcription pipeline. Bounded so a
// client that never flushes cannot grow memory without limit.
type Buffer struct {
	sampleRate int
	maxSamples int

	samples    []float32
	appends    uint64
	dropped    uint64
	lastUpdate time.Time

	mu sync.RWMutex
}

// BufferStats represents buffer statistics for monitoring.
type BufferStats struct {
	SampleRate      int           `json:"sample_rate"`
	BufferedSamples int           `json:"buffered_samples"`
	BufferedSeconds float64       `json:"buffered_seconds"`
	Appends         uint64        `json:"appends"`
	DroppedSamples  uint64        `json:"dropped_samples"`
	LastUpdate      time.Time     `json:"last_update"`
	MaxDuration     time.Duration `json:"max_duration"`
}

// NewBuffer creates a sample buffer capped at maxDuration of audio.
func NewBuffer(sampleRate int, maxDuration time.Duration) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	if maxDuration <= 0 {
		return nil, fmt.Errorf("max duration must be positive, got %s", maxDuration)
	}

	maxSamples := int(maxDuration.Seconds() * float64(sampleRate))

	return &Buffer{
		sampleRate: sampleRate,
		maxSamples: maxSamples,
		samples:    make([]float32, 0, sampleRate*2),
		lastUpdate: time.Now(),
	}, nil
}

// Append adds samples to the buffer. Samples beyond the capacity are
// dropped and counted; the caller is expected to flush well before that.
func (b *Buffer) Append(samples []float32) error {
	if len(samples) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.appends++
	b.lastUpdate = time.Now()

	free := b.maxSamples - len(b.samples)
	if free <= 0 {
		b.dropped += uint64(len(samples))
		return fmt.Errorf("buffer full: %d samples (%.1fs) buffered", len(b.samples),
			float64(len(b.samples))/float64(b.sampleRate))
	}

	if len(samples) > free {
		b.dropped += uint64(len(samples) - free)
		samples = samples[:free]
	}

	b.samples = append(b.samples, samples...)
	return nil
}

// AppendPCM16 decodes little-endian 16-bit PCM bytes and appends them.
func (b *Buffer) AppendPCM16(data []byte) error {
	if len(data)%2 != 0 {
		return fmt.Errorf("audio data length must be even (got %d bytes)", len(data))
	}

	samples := make([]float32, len(data)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(v) / 32768
	}

	return b.Append(samples)
}

// Flush returns the buffered samples and resets the buffer.
func (b *Buffer) Flush() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.samples
	b.samples = make([]float32, 0, b.sampleRate*2)
	b.lastUpdate = time.Now()
	return out
}

// Size returns the current number of buffered samples.
func (b *Buffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.samples)
}

// Duration returns the duration of the buffered audio.
func (b *Buffer) Duration() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return time.Duration(float64(len(b.samples)) / float64(b.sampleRate) * float64(time.Second))
}

// SampleRate returns the buffer's sample rate.
func (b *Buffer) SampleRate() int {
	return b.sampleRate
}

// LastUpdate returns the time of the last append or flush.
func (b *Buffer) LastUpdate() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastUpdate
}

// GetStats returns current buffer statistics.
func (b *Buffer) GetStats() BufferStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return BufferStats{
		SampleRate:      b.sampleRate,
		BufferedSamples: len(b.samples),
		BufferedSeconds: float64(len(b.samples)) / float64(b.sampleRate),
		Appends:         b.appends,
		DroppedSamples:  b.dropped,
		LastUpdate:      b.lastUpdate,
		MaxDuration:     time.Duration(float64(b.maxSamples) / float64(b.sampleRate) * float64(time.Second)),
	}
}
