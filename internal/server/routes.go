package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/gosuda/stackchat/internal/api/v1"
	"github.com/gosuda/stackchat/internal/api/ws"
)

func registerAPIRoutes(api huma.API, deps Deps, settings v1.WidgetSettings) {
	v1.RegisterStackRoutes(api, deps.Stack, settings)
	v1.RegisterConversationRoutes(api, deps.Chat, deps.Chat.Transcripts())
}

func registerWSRoutes(r chi.Router, chatHandler *ws.ChatHandler, hub *ws.Hub) {
	r.Handle("/chat", chatHandler)
	if hub != nil {
		r.Get("/chat/{conversationID}/watch", hub.ServeWatch)
	}
}
