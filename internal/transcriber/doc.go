// Package transcriber implements the transcription engine: one-time model
// loading with provider fallback and mock-mode degradation, the
// extract/shape/infer/decode pipeline, chunked processing of long audio,
// and the result taxonomy callers render to users.
package transcriber
