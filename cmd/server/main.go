package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yangwenmai/scanforge/internal/api"
	"github.com/yangwenmai/scanforge/internal/cache"
	"github.com/yangwenmai/scanforge/internal/config"
	"github.com/yangwenmai/scanforge/internal/engine"
	"github.com/yangwenmai/scanforge/internal/orchestrator"
	"github.com/yangwenmai/scanforge/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	db, dialect, err := store.Open(cfg.DBDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	s, err := store.New(db, dialect)
	if err != nil {
		log.Fatalf("init store: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := engine.NewModelClient(ctx, cfg.ModelClient())
	if err != nil {
		log.Fatalf("model client: %v", err)
	}
	if cfg.UseStubs() {
		slog.Warn("no API key for provider, using stub model client", "provider", cfg.LLMProvider)
	} else {
		slog.Info("using model client", "provider", cfg.LLMProvider)
	}

	analysisCache, err := cache.New(cfg.CacheSize)
	if err != nil {
		log.Fatalf("init cache: %v", err)
	}

	transformer := engine.NewTransformer(client,
		engine.WithTimeout(cfg.GenerationTimeout),
		engine.WithTemperature(cfg.GenerationTemperature),
		engine.WithMaxTokens(cfg.GenerationMaxTokens),
	)
	o := orchestrator.New(transformer,
		orchestrator.WithCache(analysisCache),
		orchestrator.WithRetry(cfg.GenerationAttempts, cfg.GenerationBackoff),
	)

	srv := api.New(o, s,
		api.WithCORSOrigin(cfg.CORSOrigin),
		api.WithMaxBody(cfg.MaxSourceBytes+64<<10),
	)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		slog.Info("shutting down")
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		httpServer.Shutdown(shutdownCtx)
	}()

	fmt.Printf("scanforge server listening on http://localhost:%s\n", cfg.Port)
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}
