package transcriber

import (
	"hash/fnv"
	"time"
)

// Pseudo-transcripts served in mock mode so the rest of the voice
// pipeline keeps working on hosts without model files.
var mockTranscripts = []string{
	"hey can you help me",
	"what is the weather like today",
	"please set a timer for five minutes",
	"tell me a joke",
	"turn off the living room lights",
	"what time is it",
	"play some music",
	"remind me to call back later",
}

// mockTranscript maps an audio duration to a pseudo-transcript. The
// mapping hashes the millisecond count, so equal durations always yield
// the same text.
func mockTranscript(duration time.Duration) string {
	h := fnv.New32a()
	ms := uint64(duration.Milliseconds())
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(ms >> (8 * i))
	}
	h.Write(buf[:])
	return mockTranscripts[h.Sum32()%uint32(len(mockTranscripts))]
}
