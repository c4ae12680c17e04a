// Package stream provides voice session management and lifecycle handling.
// It manages concurrent streaming sessions, per-session audio buffers and
// format negotiation, and automatic cleanup of idle sessions based on
// configurable timeouts.
package stream
