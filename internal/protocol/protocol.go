package protocol

import (
	"encoding/json"
	"fmt"
)

// Message types from the voice session wire protocol. Clients send audio
// as binary WebSocket frames and control messages as JSON text frames;
// the server answers with JSON text frames only.
const (
	// Client message types
	ClientTypeConfig = "config"
	ClientTypeFlush  = "flush"
	ClientTypePing   = "ping"

	// Server message types
	ServerTypeSession    = "session"
	ServerTypeTranscript = "transcript"
	ServerTypeError      = "error"
	ServerTypePong       = "pong"

	// Audio formats accepted on binary frames
	FormatWAV   = "wav"   // complete RIFF/WAVE files
	FormatPCM16 = "pcm16" // raw little-endian 16-bit mono PCM
)

// ClientMessage is a JSON control message sent by the client.
// Layout: {"type":"config","sample_rate":16000,"format":"pcm16"}
type ClientMessage struct {
	Type       string `json:"type"`
	SampleRate int    `json:"sample_rate,omitempty"` // config only
	Format     string `json:"format,omitempty"`      // config only
}

// ServerMessage is a JSON message sent by the server. Unused fields are
// omitted per message type.
type ServerMessage struct {
	Type       string  `json:"type"`
	SessionID  string  `json:"session_id,omitempty"`
	Transcript string  `json:"transcript,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Duration   float64 `json:"duration,omitempty"` // seconds of audio transcribed
	Chunks     int     `json:"chunks,omitempty"`
	RequestID  string  `json:"request_id,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// ParseClientMessage parses and validates a client JSON text frame.
func ParseClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse client message: %w", err)
	}

	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client message: %w", err)
	}

	return &msg, nil
}

// Validate validates the client message fields
func (m *ClientMessage) Validate() error {
	switch m.Type {
	case ClientTypeConfig:
		if m.SampleRate < 8000 || m.SampleRate > 48000 {
			return fmt.Errorf("sample_rate must be between 8000 and 48000 Hz, got %d", m.SampleRate)
		}
		if m.Format != FormatWAV && m.Format != FormatPCM16 {
			return fmt.Errorf("format must be '%s' or '%s', got '%s'", FormatWAV, FormatPCM16, m.Format)
		}
	case ClientTypeFlush, ClientTypePing:
		// No payload fields.
	default:
		return fmt.Errorf("unknown message type: '%s'", m.Type)
	}

	return nil
}

// Encode serializes a server message to a JSON text frame.
func (m *ServerMessage) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode server message: %w", err)
	}
	return data, nil
}

// NewSessionMessage builds the greeting sent when a session opens.
func NewSessionMessage(sessionID string) *ServerMessage {
	return &ServerMessage{
		Type:      ServerTypeSession,
		SessionID: sessionID,
	}
}

// NewTranscriptMessage builds a transcript reply.
func NewTranscriptMessage(sessionID, transcript string, confidence, durationSeconds float64, chunks int, requestID string) *ServerMessage {
	return &ServerMessage{
		Type:       ServerTypeTranscript,
		SessionID:  sessionID,
		Transcript: transcript,
		Confidence: confidence,
		Duration:   durationSeconds,
		Chunks:     chunks,
		RequestID:  requestID,
	}
}

// NewErrorMessage builds an error reply. The session stays open; errors
// are per-message, not fatal.
func NewErrorMessage(sessionID, errMsg string) *ServerMessage {
	return &ServerMessage{
		Type:      ServerTypeError,
		SessionID: sessionID,
		Error:     errMsg,
	}
}

// NewPongMessage builds the reply to a client ping.
func NewPongMessage(sessionID string) *ServerMessage {
	return &ServerMessage{
		Type:      ServerTypePong,
		SessionID: sessionID,
	}
}

// String returns a human-readable representation of the client message
func (m *ClientMessage) String() string {
	if m.Type == ClientTypeConfig {
		return fmt.Sprintf("ClientMessage{Type:%s, SampleRate:%d, Format:%s}", m.Type, m.SampleRate, m.Format)
	}
	return fmt.Sprintf("ClientMessage{Type:%s}", m.Type)
}

// String returns a human-readable representation of the server message
func (m *ServerMessage) String() string {
	switch m.Type {
	case ServerTypeTranscript:
		return fmt.Sprintf("ServerMessage{Type:%s, Session:%s, TranscriptLen:%d, Confidence:%.2f}",
			m.Type, m.SessionID, len(m.Transcript), m.Confidence)
	case ServerTypeError:
		return fmt.Sprintf("ServerMessage{Type:%s, Session:%s, Error:%q}", m.Type, m.SessionID, m.Error)
	default:
		return fmt.Sprintf("ServerMessage{Type:%s, Session:%s}", m.Type, m.SessionID)
	}
}
