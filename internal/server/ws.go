package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/elbruno/nvidia-voiceagent-cs-sub001/internal/protocol"
	"github.com/elbruno/nvidia-voiceagent-cs-sub001/internal/stream"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  8192,
	WriteBufferSize: 8192,
	// The service fronts local voice clients; origin enforcement belongs
	// to the deployment proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleVoiceSocket upgrades the connection and runs one voice session:
// binary frames carry audio, text frames carry JSON control messages, a
// flush triggers transcription of everything buffered so far.
func (h *HTTPServer) handleVoiceSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed",
			slog.String("remote", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}
	defer conn.Close()

	session, err := h.streamMgr.CreateSession()
	if err != nil {
		h.logger.Warn("Voice session rejected",
			slog.String("remote", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		h.writeMessage(conn, protocol.NewErrorMessage("", err.Error()))
		return
	}
	defer h.streamMgr.RemoveSession(session.ID)

	conn.SetReadLimit(h.config.Voice.MaxMessageSize)

	h.logger.Info("Voice session connected",
		slog.String("session_id", session.ID),
		slog.String("remote", r.RemoteAddr),
	)

	if !h.writeMessage(conn, protocol.NewSessionMessage(session.ID)) {
		return
	}

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("Voice session read error",
					slog.String("session_id", session.ID),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			if err := session.AddAudio(data); err != nil {
				h.logger.Warn("Audio frame rejected",
					slog.String("session_id", session.ID),
					slog.String("error", err.Error()),
				)
				if !h.writeMessage(conn, protocol.NewErrorMessage(session.ID, err.Error())) {
					return
				}
			}

		case websocket.TextMessage:
			if !h.handleControlMessage(r, conn, session, data) {
				return
			}
		}
	}
}

// handleControlMessage dispatches one JSON control frame. It returns
// false when the connection is no longer writable.
func (h *HTTPServer) handleControlMessage(r *http.Request, conn *websocket.Conn, session *stream.Session, data []byte) bool {
	msg, err := protocol.ParseClientMessage(data)
	if err != nil {
		return h.writeMessage(conn, protocol.NewErrorMessage(session.ID, err.Error()))
	}

	switch msg.Type {
	case protocol.ClientTypeConfig:
		if err := session.Configure(msg.SampleRate, msg.Format); err != nil {
			return h.writeMessage(conn, protocol.NewErrorMessage(session.ID, err.Error()))
		}
		return true

	case protocol.ClientTypePing:
		return h.writeMessage(conn, protocol.NewPongMessage(session.ID))

	case protocol.ClientTypeFlush:
		result, err := h.streamMgr.Transcribe(r.Context(), session)
		if err != nil {
			return h.writeMessage(conn, protocol.NewErrorMessage(session.ID, err.Error()))
		}

		reply := protocol.NewTranscriptMessage(
			session.ID,
			result.Text(),
			result.Confidence,
			result.AudioDuration.Seconds(),
			result.Chunks,
			result.RequestID,
		)
		return h.writeMessage(conn, reply)
	}

	return true
}

// writeMessage sends one server message, reporting whether the
// connection is still usable.
func (h *HTTPServer) writeMessage(conn *websocket.Conn, msg *protocol.ServerMessage) bool {
	data, err := msg.Encode()
	if err != nil {
		h.logger.Error("Failed to encode server message", slog.String("error", err.Error()))
		return false
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.Warn("Failed to write server message", slog.String("error", err.Error()))
		return false
	}

	return true
}
