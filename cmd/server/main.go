package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/germanilia/presentation-maker/internal/api"
	"github.com/germanilia/presentation-maker/internal/infra/config"
	"github.com/germanilia/presentation-maker/internal/infra/httpclient"
	"github.com/germanilia/presentation-maker/internal/infra/limiter"
	"github.com/germanilia/presentation-maker/internal/infra/logger"
	"github.com/germanilia/presentation-maker/internal/service/content"
	"github.com/germanilia/presentation-maker/internal/service/imagegen"
	"github.com/germanilia/presentation-maker/internal/service/orchestrator"
	"github.com/germanilia/presentation-maker/internal/service/research"
	"github.com/germanilia/presentation-maker/internal/service/storage"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Init logger
	zapLogger, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	// Init HTTP client
	httpClient := httpclient.New(httpclient.Options{
		Timeout: time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
	})

	// Init limiter
	lim := limiter.New(cfg.Limiter.MaxConcurrent, cfg.Limiter.RatePerSecond)

	// Init services
	researchLog := zapLogger.Named("research")
	serperSvc := research.NewSerper(cfg.Research.SerperAPIKey, httpClient, researchLog)
	youtubeSvc := research.NewYouTube(cfg.Research.YouTubeAPIKey, httpClient, researchLog)
	contentSvc := content.New(cfg.Content.APIKey, cfg.Content.Model, content.Options{
		MaxBullets:    cfg.Content.MaxBullets,
		MaxBulletLen:  cfg.Content.MaxBulletLen,
		MaxSnippetLen: cfg.Content.MaxSnippetLen,
	}, httpClient, zapLogger.Named("content"))
	imageGenSvc := imagegen.New(cfg.ImageGen.APIKey, cfg.ImageGen.Model, httpClient, zapLogger.Named("imagegen"))

	storageSvc, err := storage.NewService(cfg.Storage.BasePath, cfg.Storage.UploadDir, zapLogger.Named("storage"))
	if err != nil {
		log.Fatalf("failed to init storage: %v", err)
	}

	// Init orchestrator. Providers scrape their hits and summarize them
	// through the content model before the pipeline sees the results.
	providers := map[research.Source]orchestrator.ResearchProvider{
		research.SourceWeb:   research.NewEnriched(serperSvc, contentSvc, httpClient, researchLog),
		research.SourceVideo: research.NewEnriched(youtubeSvc, contentSvc, httpClient, researchLog),
	}
	orch := orchestrator.New(providers, contentSvc, imageGenSvc, storageSvc, lim, zapLogger.Named("orchestrator"), orchestrator.Options{
		MaxResults:       cfg.Research.MaxResults,
		ImageBudget:      cfg.ImageGen.Budget,
		TransientRetries: cfg.Pipeline.TransientRetries,
		RateLimitRetries: cfg.Pipeline.RateLimitRetries,
		BackoffInitial:   time.Duration(cfg.Pipeline.BackoffInitialMs) * time.Millisecond,
		RateLimitBackoff: time.Duration(cfg.Pipeline.RateLimitBackoffMs) * time.Millisecond,
		CallTimeout:      time.Duration(cfg.Pipeline.CallTimeoutSeconds) * time.Second,
	})

	// Init router
	runGuard := limiter.New(cfg.Server.MaxConcurrentRuns, cfg.Limiter.RatePerSecond)
	router := api.NewRouter(orch, storageSvc, runGuard, zapLogger.Named("api"))

	// Create server
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	// Start server
	go func() {
		zapLogger.Info("starting server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Error("server error", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server forced to shutdown", "error", err)
	}
	zapLogger.Info("server stopped")
}
