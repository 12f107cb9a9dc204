package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meridian/config"
	"meridian/handlers"
	"meridian/middleware"
	"meridian/routes"
	"meridian/services/intelligence"
	"meridian/services/tools"
	"meridian/services/transcript"
	"meridian/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger := utils.GetLogger()
	defer logger.Sync() //nolint:errcheck

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// Session storage.
	var (
		store       transcript.Store
		guard       transcript.TurnGuard
		redisClient *redis.Client
	)
	switch cfg.TranscriptStore {
	case config.StoreRedis:
		redisClient = utils.GetSessionCacheClient()
		store = transcript.NewRedisStore(redisClient, cfg.SessionTTL)
		guard = transcript.NewRedisGuard(redisClient, cfg.StreamTimeout+5*time.Second)
	default:
		mem := transcript.NewMemoryStore(cfg.SessionTTL)
		store = mem
		guard = transcript.NewMemoryGuard()
		go sweepSessions(rootCtx, mem, logger)
	}

	// Tools.
	booker := &tools.AmenityBooker{
		Slots:   tools.NewSlotGenerator(nil),
		Latency: cfg.ExecutorLatency,
	}
	registry, err := tools.NewRegistry(tools.BookAmenityDefinition(booker))
	if err != nil {
		logger.Sugar().Fatalf("main: failed to build tool registry: %v", err)
	}

	// Model provider. A missing credential is not fatal: the chat endpoint
	// reports it on every request instead.
	var model intelligence.Model
	switch cfg.ModelProvider {
	case config.ProviderLocal:
		model = intelligence.NewLocalModel(registry)
	default:
		gm, err := intelligence.NewGeminiModel(rootCtx, cfg.GeminiAPIKey, cfg.ModelName)
		switch {
		case errors.Is(err, intelligence.ErrMissingCredential):
			logger.Warn("main: GEMINI_API_KEY is not set, chat requests will fail")
		case err != nil:
			logger.Sugar().Fatalf("main: failed to initialize model client: %v", err)
		default:
			defer gm.Close()
			model = gm
		}
	}

	loop := intelligence.NewLoop(registry, model, logger.Named("dispatch"), intelligence.Options{
		MaxSteps:      cfg.MaxSteps,
		StreamTimeout: cfg.StreamTimeout,
		Temperature:   cfg.Temperature,
	})

	utils.StartHealthMonitor(rootCtx, redisClient, cfg.CredentialConfigured(), 30*time.Second)

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.RateLimitMiddleware(cfg.MaxRequestsPerMin))

	chatHandler := handlers.NewChatHandler(cfg, loop, registry, store, guard)
	routes.RegisterRoutes(router, handlers.NewHandlerBundle(chatHandler))

	// Start the HTTP server.
	port := cfg.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.StreamTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}

	logger.Sugar().Info("main: server stopped gracefully")
}

func sweepSessions(ctx context.Context, store *transcript.MemoryStore, logger *zap.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Sweep(); n > 0 {
				logger.Debug("expired sessions dropped", zap.Int("count", n))
			}
		}
	}
}
