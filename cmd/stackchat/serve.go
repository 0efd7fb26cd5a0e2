package main

import (
	"context"
	"fmt"
	"io/fs"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/stackchat/internal/agent"
	"github.com/gosuda/stackchat/internal/chat"
	"github.com/gosuda/stackchat/internal/domain"
	"github.com/gosuda/stackchat/internal/memorybank"
	"github.com/gosuda/stackchat/internal/metrics"
	"github.com/gosuda/stackchat/internal/server"
	"github.com/gosuda/stackchat/internal/server/middleware"
	"github.com/gosuda/stackchat/internal/store/memory"
	"github.com/gosuda/stackchat/internal/store/postgres"
	redisstore "github.com/gosuda/stackchat/internal/store/redis"
	"github.com/gosuda/stackchat/internal/turn"
	"github.com/gosuda/stackchat/web"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr    string
		docsDir string
		model   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the document chat widget",
		Long: `serve loads every .txt and .md file in the docs directory into a memory
bank (once), creates a memory-tool agent and serves a web chat widget where
each browser tab gets its own session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("docs-dir") {
				a.cfg.Chat.DocsDir = docsDir
			}
			if cmd.Flags().Changed("model") {
				a.cfg.Chat.ModelName = model
			}
			return a.serve(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (STACKCHAT_WEB_ADDR)")
	cmd.Flags().StringVar(&docsDir, "docs-dir", "", "documents to load into the memory bank (STACKCHAT_DOCS_DIR)")
	cmd.Flags().StringVar(&model, "model", "", "model name (STACKCHAT_MODEL_NAME)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg

	backend, err := a.newBackend(cfg.Stack)
	if err != nil {
		return err
	}

	var transcripts domain.TranscriptRepository = memory.NewTranscriptRepo()
	if cfg.Database.DSN != "" {
		if cfg.Database.MaxConns > math.MaxInt32 {
			return fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
		}
		store, err := postgres.New(ctx, cfg.Database.DSN, int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		transcripts = store.Transcripts()
	}

	var pubsub *redisstore.PubSub
	if cfg.Redis.Addr != "" {
		pubsub, err = redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer pubsub.Close()
	}

	shields := agent.Shields(cfg.Stack.DisableSafety)
	agentCfg, err := chat.NewDocsConfig(cfg.Chat.ModelName, cfg.Chat.BankID, cfg.Chat.MaxTokens, cfg.Chat.MaxChunks, shields)
	if err != nil {
		return err
	}

	recorder := metrics.New()
	opts := chat.Options{
		Agent: agentCfg,
		Bank: memorybank.Spec{
			ID:             cfg.Chat.BankID,
			EmbeddingModel: cfg.Chat.EmbeddingModel,
			ChunkSize:      cfg.Chat.ChunkSize,
			Overlap:        cfg.Chat.Overlap,
		},
		DocsDir:     cfg.Chat.DocsDir,
		Sink:        turn.MultiSink(recorder, turn.NewLogSink(log.Logger)),
		Observer:    recorder,
		Transcripts: transcripts,
	}
	if pubsub != nil {
		opts.Publisher = pubsub
		opts.Channel = redisstore.ConversationChannel
	}
	svc := chat.NewService(backend, opts)

	// The service retries on the first message if the stack is not up yet.
	if err := svc.Init(ctx); err != nil {
		log.Warn().Err(err).Msg("chat init failed, will retry on first message")
	}

	webAssets, err := fs.Sub(web.Assets, "static")
	if err != nil {
		return fmt.Errorf("web assets: %w", err)
	}

	srv := server.New(cfg, server.Deps{
		Chat:    svc,
		Stack:   backend,
		Limiter: middleware.NewIPLimiter(ctx, cfg.Server.RatePerSec, cfg.Server.RateBurst),
		Metrics: recorder,
		PubSub:  pubsub,
	}, webAssets)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("stack", cfg.Stack.Host).Msg("starting server")
		errCh <- srv.Start(ctx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info().Msg("stopped")
	return nil
}
