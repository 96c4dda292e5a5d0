package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"actms/internal/alerts"
	"actms/internal/auth"
	"actms/internal/cache"
	"actms/internal/chat"
	"actms/internal/dashboard"
	"actms/internal/fraud"
	"actms/internal/handlers"
	"actms/internal/metrics"
	"actms/internal/server"
	"actms/internal/uploads"
	"actms/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API, the web pages and the alert stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.log.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(ctx, e)
	},
}

func serve(ctx context.Context, e *env) error {
	cfg, log := e.cfg, e.log

	conn, store, err := e.openStorage(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	c, err := cache.New(ctx, cfg.Cache.Backend, cfg.Cache.RedisURL, log)
	if err != nil {
		return fmt.Errorf("creating cache: %w", err)
	}
	defer c.Close()

	hub := alerts.NewHub(log, nil)
	m := metrics.New(hub.Clients)

	detector := fraud.NewDetector(store, fraudOptions(e), log)
	detector.SetRecorder(m)
	if err := detector.Initialize(ctx); err != nil {
		// bids are still accepted and reported without a score
		log.Error("fraud model unavailable", zap.Error(err))
	}

	chatSvc, err := newChatService(ctx, e, store, c)
	if err != nil {
		return err
	}
	chatSvc.SetRecorder(m)

	files, err := uploads.NewProcessor(cfg.Uploads.Dir, cfg.Uploads.MaxSize, store, log)
	if err != nil {
		return err
	}
	files.SetRecorder(m)

	site, err := web.New(log)
	if err != nil {
		return fmt.Errorf("loading web pages: %w", err)
	}

	authn := auth.New(cfg.Security.JWTSecret, cfg.Security.TokenExpiry)
	if !authn.Enabled() {
		log.Warn("security.jwt_secret is empty, authentication disabled")
	}

	api := handlers.NewHandler(store, handlers.Services{
		Scorer:    detector,
		Chat:      chatSvc,
		Uploads:   files,
		Dashboard: dashboard.NewService(store, c, cfg.Cache.DashboardTTL, log),
		Alerts:    alerts.NewNotifier(store, hub, log),
	}, log)

	srv := server.New(cfg.Server, server.Deps{
		API:     api,
		Auth:    authn,
		Hub:     hub,
		Metrics: m,
		Files:   files,
		Site:    site,
	}, log)

	log.Info("actms starting",
		zap.String("environment", cfg.Environment),
		zap.String("database", cfg.Database.Driver),
		zap.String("cache", cfg.Cache.Backend),
		zap.String("chat_provider", chatSvc.ProviderName()))
	return srv.Run(ctx)
}

// newChatService falls back to FAQ only replies when no AI provider is
// configured.
func newChatService(ctx context.Context, e *env, store chat.StatsStore, c cache.Cache) (*chat.Service, error) {
	provider, err := chat.NewProvider(ctx, e.cfg.Chat)
	switch {
	case errors.Is(err, chat.ErrNoProvider):
		e.log.Warn("AI chat disabled, answering from the FAQ only", zap.Error(err))
		provider = nil
	case err != nil:
		return nil, fmt.Errorf("creating chat provider: %w", err)
	}

	faq, err := chat.NewFAQ(e.cfg.Chat.FAQFile)
	if err != nil {
		return nil, fmt.Errorf("loading FAQ: %w", err)
	}
	return chat.NewService(provider, faq, store, c, chat.Options{
		RequestsPerMinute: e.cfg.Chat.RequestsPerMinute,
		Timeout:           e.cfg.Chat.Timeout,
		CacheTTL:          e.cfg.Cache.ChatTTL,
	}, e.log), nil
}
