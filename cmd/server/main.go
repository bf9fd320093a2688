package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lexdraft-backend/auth"
	"lexdraft-backend/bootstrap"
	"lexdraft-backend/cache"
	"lexdraft-backend/config"
	"lexdraft-backend/handlers"
	"lexdraft-backend/llm"
	"lexdraft-backend/render"
	"lexdraft-backend/service"
	"lexdraft-backend/storage"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

func main() {
	bootstrap.LoadEnv(slog.Default())

	cfg := config.Load()
	logger := cfg.NewLogger()
	slog.SetDefault(logger)
	if cfg.Environment != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store
	store, err := bootstrap.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	cat, err := bootstrap.SeedCatalog(ctx, store, logger)
	if err != nil {
		logger.Error("failed to seed template catalog", "error", err)
		os.Exit(1)
	}

	// Text generation. Without a provider the AI endpoints answer 503.
	var provider llm.Provider
	p, err := llm.NewProvider(ctx, llm.Config{
		Provider:    cfg.AIProvider,
		APIKey:      cfg.GeminiAPIKey,
		Model:       cfg.GeminiModel,
		Temperature: cfg.GeminiTemperature,
	})
	if err != nil {
		logger.Warn("text generation disabled", "provider", cfg.AIProvider, "error", err)
	} else {
		provider = p
		logger.Info("text generation provider ready", "provider", p.Name())
	}

	artifacts, err := storage.NewStorage(ctx, cfg.Storage)
	if err != nil {
		logger.Error("failed to initialize storage", "type", cfg.Storage.Type, "error", err)
		os.Exit(1)
	}
	logger.Info("storage initialized", "type", cfg.Storage.Type)

	// Redis is optional
	var (
		templateCache service.TemplateCache
		limiter       handlers.RateLimiter
	)
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, caching and rate limiting disabled", "error", err)
		} else {
			defer rc.Close()
			templateCache = rc
			limiter = rc
			logger.Info("redis connected")
		}
	}

	searcher, closeSearch := bootstrap.NewSearch(cfg, store, logger)
	defer closeSearch()

	var verifier auth.Verifier
	switch {
	case cfg.AuthJWKSURL != "":
		v, err := auth.NewJWKSVerifier(ctx, cfg.AuthJWKSURL, logger)
		if err != nil {
			logger.Error("failed to initialize JWKS verifier", "error", err)
			os.Exit(1)
		}
		verifier = v
	case cfg.AuthJWTSecret != "":
		v, err := auth.NewHMACVerifier([]byte(cfg.AuthJWTSecret), logger)
		if err != nil {
			logger.Error("failed to initialize JWT verifier", "error", err)
			os.Exit(1)
		}
		verifier = v
	default:
		logger.Warn("authentication disabled, every request is anonymous")
	}

	// Services
	templateOpts := []service.TemplateServiceOption{
		service.TemplateWithRepository(store.Templates),
		service.TemplateWithCatalog(cat),
		service.TemplateWithLogger(logger),
	}
	if templateCache != nil {
		templateOpts = append(templateOpts, service.TemplateWithCache(templateCache, cfg.TemplateCacheTTL))
	}
	templateService := service.NewTemplateService(templateOpts...)

	versionService := service.NewVersionService(
		service.VersionWithVersionRepository(store.Versions),
		service.VersionWithPieceRepository(store.Pieces),
		service.VersionWithTransactionManager(store.Tx),
		service.VersionWithIndexer(searcher),
		service.VersionWithRetention(cfg.VersionRetention),
		service.VersionWithLogger(logger),
	)

	pieceService := service.NewPieceService(
		service.WithPieceRepository(store.Pieces),
		service.WithUserRepository(store.Users),
		service.WithExportRepository(store.Exports),
		service.WithTransactionManager(store.Tx),
		service.WithTemplateService(templateService),
		service.WithVersionService(versionService),
		service.WithArtifactStorage(artifacts),
		service.WithIndexer(searcher),
		service.WithLogger(logger),
	)

	suggestionService := service.NewSuggestionService(
		service.SuggestionWithSuggestionRepository(store.Suggestions),
		service.SuggestionWithPieceRepository(store.Pieces),
		service.SuggestionWithTransactionManager(store.Tx),
		service.SuggestionWithVersionService(versionService),
		service.SuggestionWithProvider(provider),
		service.SuggestionWithIndexer(searcher),
		service.SuggestionWithLogger(logger),
	)

	draftService := service.NewDraftService(
		service.DraftWithPieceRepository(store.Pieces),
		service.DraftWithTemplateRepository(store.Templates),
		service.DraftWithGenerationJobRepository(store.Jobs),
		service.DraftWithTransactionManager(store.Tx),
		service.DraftWithVersionService(versionService),
		service.DraftWithProvider(provider),
		service.DraftWithIndexer(searcher),
		service.DraftWithLogger(logger),
		service.DraftWithBaseContext(ctx),
	)

	wizardService := service.NewWizardService(
		service.WizardWithProvider(provider),
		service.WizardWithLogger(logger),
	)

	exportService := service.NewExportService(
		service.ExportWithPieceRepository(store.Pieces),
		service.ExportWithExportRepository(store.Exports),
		service.ExportWithTransactionManager(store.Tx),
		service.ExportWithVersionService(versionService),
		service.ExportWithStorage(artifacts),
		service.ExportWithPDFRenderer(render.NewChromePDF(cfg.ChromePath)),
		service.ExportWithLogger(logger),
	)

	go suggestionService.RunSweeper(ctx, cfg.SuggestionSweepInterval, cfg.SuggestionStaleAfter)

	router := handlers.NewRouter(handlers.RouterConfig{
		Logger:      logger,
		Ready:       store.Ping,
		Verifier:    verifier,
		RateLimiter: limiter,
		AIRateLimit: cfg.AIRateLimitPerMinute,
		Templates:   templateService,
		Pieces:      pieceService,
		Versions:    versionService,
		Drafts:      draftService,
		Suggestions: suggestionService,
		Wizard:      wizardService,
		Exports:     exportService,
		Search:      searcher,
	})

	// CORS wraps the router so pre-flight requests never reach auth
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposedHeaders:   []string{"X-Suggestion-Id", "Retry-After", "X-RateLimit-Remaining", "Content-Disposition"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsHandler.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived text streams
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port, "store", cfg.StoreDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	// Stop background work first; in-flight drafts fail with a recorded reason
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	draftService.Wait()
	searcher.Wait()
	logger.Info("server stopped")
}
