package transcriber

import (
	"fmt"
	"time"
)

// Sentinel strings kept for callers that consume the transcript as plain
// text. Structured callers should branch on Outcome instead.
const (
	SentinelTooShort   = "[Audio too short for transcription]"
	SentinelTooLong    = "[Audio too long for transcription]"
	SentinelChunkError = "[Error processing chunk]"
)

// Outcome classifies the result of one transcription call.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeTooShort
	OutcomeTooLong
	OutcomeInferenceFailed
	OutcomeDecodeFailed
)

// String returns a human-readable outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeTooShort:
		return "too_short"
	case OutcomeTooLong:
		return "too_long"
	case OutcomeInferenceFailed:
		return "inference_failed"
	case OutcomeDecodeFailed:
		return "decode_failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(o))
	}
}

// Result is the outcome of one transcription call. Per-call failures are
// always delivered in-band through this type; a single bad request never
// propagates a fault to the caller.
type Result struct {
	Outcome       Outcome       `json:"outcome"`
	Transcript    string        `json:"transcript"`
	Confidence    float64       `json:"confidence"`
	AudioDuration time.Duration `json:"audio_duration"`
	Chunks        int           `json:"chunks"`
	Reason        string        `json:"reason,omitempty"`
	RequestID     string        `json:"request_id"`
}

// OK reports whether the call produced a usable transcript.
func (r Result) OK() bool {
	return r.Outcome == OutcomeOK
}

// Text renders the result as the single string the voice pipeline
// delivers downstream, using bracketed sentinels for failures.
func (r Result) Text() string {
	switch r.Outcome {
	case OutcomeOK:
		return r.Transcript
	case OutcomeTooShort:
		return SentinelTooShort
	case OutcomeTooLong:
		return SentinelTooLong
	default:
		return fmt.Sprintf("[Transcription error: %s]", r.Reason)
	}
}
