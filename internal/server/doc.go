// Package server implements the HTTP API and the WebSocket voice endpoint.
// It exposes one-shot transcription of uploaded audio, streaming voice
// sessions, and monitoring/management endpoints including Prometheus
// metrics.
package server
