package audio

import (
	"fmt"
	"sync"
	"time"
)

// ChunkPosition marks where a chunk sits in the original audio.
type ChunkPosition int

const (
	PositionFirst ChunkPosition = iota
	PositionMiddle
	PositionLast
)

// String returns a human-readable position name.
func (p ChunkPosition) String() string {
	switch p {
	case PositionFirst:
		return "first"
	case PositionMiddle:
		return "middle"
	case PositionLast:
		return "last"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// Chunk is a contiguous sample range [Start, End) of the original audio,
// annotated with its position and the overlap it shares with neighboring
// chunks.
type Chunk struct {
	Index        int           `json:"index"`
	Start        int           `json:"start_sample"`
	End          int           `json:"end_sample"`
	Position     ChunkPosition `json:"position"`
	OverlapLeft  int           `json:"overlap_left_samples"`
	OverlapRight int           `json:"overlap_right_samples"`
}

// Samples slices the chunk's range out of the full sample sequence.
func (c Chunk) Samples(all []float32) []float32 {
	return all[c.Start:c.End]
}

// ChunkingConfig contains configuration for overlap-window chunking.
type ChunkingConfig struct {
	SampleRate     int
	ChunkSeconds   float64
	OverlapSeconds float64
}

// Validate validates the chunking configuration.
func (c *ChunkingConfig) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}

	if c.ChunkSeconds <= 0 {
		return fmt.Errorf("chunk duration must be positive, got %f", c.ChunkSeconds)
	}

	if c.OverlapSeconds < 0 || c.OverlapSeconds >= c.ChunkSeconds {
		return fmt.Errorf("overlap (%f) must be non-negative and smaller than chunk duration (%f)",
			c.OverlapSeconds, c.ChunkSeconds)
	}

	return nil
}

// ChunkerStats represents chunker statistics.
type ChunkerStats struct {
	SplitCalls    uint64        `json:"split_calls"`
	ChunksCreated uint64        `json:"chunks_created"`
	TotalDuration time.Duration `json:"total_duration"`
}

// Chunker splits long audio into fixed-size overlapping windows so each
// window stays inside the model's safe single-pass duration.
type Chunker struct {
	config ChunkingConfig

	splitCalls    uint64
	chunksCreated uint64
	totalDuration time.Duration

	mu sync.Mutex
}

// NewChunker creates a new overlap-window chunker.
func NewChunker(config ChunkingConfig) (*Chunker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chunking config: %w", err)
	}

	return &Chunker{config: config}, nil
}

// NeedsChunking reports whether the sample count exceeds one chunk.
func (c *Chunker) NeedsChunking(totalSamples int) bool {
	return totalSamples > c.chunkSamples()
}

// Duration returns the duration of totalSamples at the configured rate.
func (c *Chunker) Duration(totalSamples int) time.Duration {
	return time.Duration(float64(totalSamples) / float64(c.config.SampleRate) * float64(time.Second))
}

func (c *Chunker) chunkSamples() int {
	return int(c.config.ChunkSeconds * float64(c.config.SampleRate))
}

func (c *Chunker) overlapSamples() int {
	return int(c.config.OverlapSeconds * float64(c.config.SampleRate))
}

// Split partitions [0, totalSamples) into overlapping windows. Windows
// start every chunkSamples-overlapSamples samples; consecutive windows
// share exactly overlapSamples samples and the final window may be
// shorter. The union of all windows covers the full range.
func (c *Chunker) Split(totalSamples int) []Chunk {
	if totalSamples <= 0 {
		return nil
	}

	chunkSize := c.chunkSamples()
	overlap := c.overlapSamples()
	stride := chunkSize - overlap

	var chunks []Chunk
	for start := 0; start < totalSamples; start += stride {
		end := start + chunkSize
		if end > totalSamples {
			end = totalSamples
		}

		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Start: start,
			End:   end,
		})

		if end == totalSamples {
			break
		}
	}

	for i := range chunks {
		switch {
		case i == 0:
			chunks[i].Position = PositionFirst
		case i == len(chunks)-1:
			chunks[i].Position = PositionLast
		default:
			chunks[i].Position = PositionMiddle
		}

		if i > 0 {
			chunks[i].OverlapLeft = chunks[i-1].End - chunks[i].Start
		}
		if i < len(chunks)-1 {
			chunks[i].OverlapRight = chunks[i].End - chunks[i+1].Start
		}
	}

	c.mu.Lock()
	c.splitCalls++
	c.chunksCreated += uint64(len(chunks))
	c.totalDuration += c.Duration(totalSamples)
	c.mu.Unlock()

	return chunks
}

// GetStats returns current chunker statistics.
func (c *Chunker) GetStats() ChunkerStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return ChunkerStats{
		SplitCalls:    c.splitCalls,
		ChunksCreated: c.chunksCreated,
		TotalDuration: c.totalDuration,
	}
}

// OverlapFraction returns overlap as a fraction of the chunk size.
func (c *Chunker) OverlapFraction() float64 {
	return c.config.OverlapSeconds / c.config.ChunkSeconds
}
