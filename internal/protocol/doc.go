// Package protocol defines the JSON control messages exchanged over the
// voice WebSocket. Clients send config, flush, and ping frames; the server
// replies with session, transcript, error, and pong frames. Audio itself
// travels as binary WebSocket frames and never passes through this package.
package protocol
