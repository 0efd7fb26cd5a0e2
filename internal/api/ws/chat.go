// Package ws serves the chat widget over WebSocket.
package ws

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/stackchat/internal/chat"
	"github.com/gosuda/stackchat/internal/turn"
)

// ClientMessage is sent by the widget.
type ClientMessage struct {
	Type    string `json:"type"` // "send", "clear"
	Message string `json:"message,omitempty"`
}

// ServerMessage is sent to the widget.
type ServerMessage struct {
	Type           string       `json:"type"` // "ready", "snapshot", "cleared", "error"
	ConversationID uuid.UUID    `json:"conversation_id"`
	History        []turn.Entry `json:"history"`
	State          turn.State   `json:"state,omitempty"`
	Error          string       `json:"error,omitempty"`
}

// Limiter decides whether a client may send another message.
type Limiter interface {
	Allow(remoteAddr string) bool
}

// ChatHandler runs one conversation per WebSocket connection.
type ChatHandler struct {
	svc     *chat.Service
	limiter Limiter
}

// NewChatHandler returns a handler backed by svc. limiter may be nil.
func NewChatHandler(svc *chat.Service, limiter Limiter) *ChatHandler {
	return &ChatHandler{svc: svc, limiter: limiter}
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()

	conv, err := h.svc.Open(ctx)
	if err != nil {
		log.Error().Err(err).Msg("open conversation")
		_ = wsjson.Write(ctx, conn, ServerMessage{Type: "error", Error: "chat is unavailable"})
		_ = conn.Close(websocket.StatusInternalError, "open conversation failed")
		return
	}
	defer h.svc.Close(conv.ID())

	if err := wsjson.Write(ctx, conn, ServerMessage{Type: "ready", ConversationID: conv.ID(), History: conv.History()}); err != nil {
		return
	}

	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				log.Debug().Err(err).Msg("websocket read")
			}
			return
		}

		if h.limiter != nil && !h.limiter.Allow(r.RemoteAddr) {
			if writeErr := h.writeError(ctx, conn, conv, "rate limit exceeded"); writeErr != nil {
				return
			}
			continue
		}

		var writeErr error
		switch msg.Type {
		case "send":
			writeErr = h.send(ctx, conn, conv, msg.Message)
		case "clear":
			if clearErr := conv.Clear(); clearErr != nil {
				writeErr = h.writeError(ctx, conn, conv, clearErr.Error())
				break
			}
			writeErr = wsjson.Write(ctx, conn, ServerMessage{Type: "cleared", ConversationID: conv.ID(), History: []turn.Entry{}})
		default:
			writeErr = h.writeError(ctx, conn, conv, "unknown message type "+msg.Type)
		}
		if writeErr != nil {
			log.Debug().Err(writeErr).Msg("websocket write")
			return
		}
	}
}

func (h *ChatHandler) send(ctx context.Context, conn *websocket.Conn, conv *chat.Conversation, message string) error {
	for snap, err := range conv.Send(ctx, message) {
		out := ServerMessage{
			Type:           "snapshot",
			ConversationID: snap.ConversationID,
			History:        snap.History,
			State:          snap.State,
			Error:          snap.Error,
		}
		if err != nil {
			out.Type = "error"
			out.Error = err.Error()
		}
		if writeErr := wsjson.Write(ctx, conn, out); writeErr != nil {
			return writeErr
		}
	}
	return nil
}

func (h *ChatHandler) writeError(ctx context.Context, conn *websocket.Conn, conv *chat.Conversation, msg string) error {
	return wsjson.Write(ctx, conn, ServerMessage{Type: "error", ConversationID: conv.ID(), History: conv.History(), Error: msg})
}
