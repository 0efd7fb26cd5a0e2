package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	v1 "github.com/gosuda/stackchat/internal/api/v1"
	"github.com/gosuda/stackchat/internal/api/ws"
	"github.com/gosuda/stackchat/internal/chat"
	"github.com/gosuda/stackchat/internal/config"
	"github.com/gosuda/stackchat/internal/metrics"
	"github.com/gosuda/stackchat/internal/server/middleware"
	redisstore "github.com/gosuda/stackchat/internal/store/redis"
)

// Deps are the services the HTTP layer exposes. Chat, Stack and Limiter are
// required; Metrics and PubSub may be nil.
type Deps struct {
	Chat    *chat.Service
	Stack   v1.StackInfo
	Limiter *middleware.IPLimiter
	Metrics *metrics.Recorder
	PubSub  *redisstore.PubSub
}

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
}

// New creates a Server with all routes wired.
// webAssets may be nil; when provided, the chat widget is served on all
// unmatched routes.
func New(cfg *config.Config, deps Deps, webAssets fs.FS) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}).Handler)

	s := &Server{
		router: router,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	settings := v1.WidgetSettings{
		Title:          "Document Chat",
		Model:          deps.Chat.Model(),
		BankID:         cfg.Chat.BankID,
		ExamplePrompts: cfg.Chat.ExamplePrompts,
		Watch:          deps.PubSub != nil,
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(deps.Limiter.Middleware)

		apiConfig := huma.DefaultConfig("Stackchat API", "1.0.0")
		apiConfig.Servers = []*huma.Server{
			{URL: "/api/v1"},
		}
		api := humachi.New(r, apiConfig)
		registerAPIRoutes(api, deps, settings)
	})

	router.Route("/ws", func(r chi.Router) {
		var hub *ws.Hub
		if deps.PubSub != nil {
			hub = ws.NewHub(deps.PubSub, redisstore.ConversationChannel)
		}
		registerWSRoutes(r, ws.NewChatHandler(deps.Chat, deps.Limiter), hub)
	})

	if deps.Metrics != nil {
		router.Handle("/metrics", deps.Metrics.Handler())
	}

	// Health check.
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Must be registered last so API and WS routes take priority.
	if webAssets != nil {
		router.NotFound(spaFileServer(webAssets).ServeHTTP)
		log.Info().Msg("embedded chat widget enabled")
	}

	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
