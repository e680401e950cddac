package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/hunt-engine/internal/bootstrap"
	"github.com/jwebster45206/hunt-engine/internal/config"
	"github.com/jwebster45206/hunt-engine/internal/engine"
	"github.com/jwebster45206/hunt-engine/internal/handlers"
	"github.com/jwebster45206/hunt-engine/internal/line"
	"github.com/jwebster45206/hunt-engine/internal/logger"
	"github.com/jwebster45206/hunt-engine/internal/metrics"
	"github.com/jwebster45206/hunt-engine/internal/middleware"
	"github.com/jwebster45206/hunt-engine/internal/queue"
	"github.com/jwebster45206/hunt-engine/internal/storage"
	"github.com/jwebster45206/hunt-engine/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Hunt Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"store_backend", cfg.StoreBackend,
		"dispatch_mode", cfg.DispatchMode)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer startupCancel()

	store, err := storage.Open(startupCtx, cfg, log)
	if err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	hunt, err := bootstrap.LoadHunt(startupCtx, cfg, store, log)
	if err != nil {
		log.Error("Failed to load hunt", "error", err)
		os.Exit(1)
	}

	m := metrics.New()

	// Sync mode only has this process touching a user, so an in-process
	// lock is enough. Queue mode shares the workers' Redis lock so the
	// playtest endpoints serialize with them.
	var locker engine.Locker = engine.NewLocalLocker()
	var redisStore *storage.RedisStorage
	if cfg.DispatchMode == config.DispatchQueue {
		var ok bool
		redisStore, ok = store.(*storage.RedisStorage)
		if !ok {
			log.Error("Queue dispatch requires the redis store")
			os.Exit(1)
		}
		locker = storage.NewRedisLocker(redisStore.Client(), "api-"+worker.NewID(), storage.DefaultLockTTL)
	}

	eng, err := engine.New(engine.Config{
		Catalog:      hunt.Catalog,
		Store:        store,
		Copy:         hunt.Copy,
		Locker:       locker,
		Logger:       log,
		Metrics:      m,
		StoreTimeout: cfg.StoreTimeout,
	})
	if err != nil {
		log.Error("Failed to create engine", "error", err)
		os.Exit(1)
	}

	var dispatcher handlers.Dispatcher
	if redisStore != nil {
		dispatcher = queue.NewEventQueue(redisStore.Client(), log)
		log.Info("Webhook events will be queued for workers", "queue", queue.DefaultKey)
	} else {
		rcfg := line.DefaultResilientConfig()
		rcfg.Logger = log
		messenger := line.NewResilientClient(line.NewClient(cfg.LineAPIBaseURL, cfg.LineChannelAccessToken, log), rcfg)
		dispatcher = worker.NewProcessor(eng, messenger, m, log)
	}

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(map[string]handlers.Pinger{"store": store}, log)
	mux.Handle("/health", healthHandler)

	mux.Handle("/callback", handlers.NewWebhookHandler(cfg.LineChannelSecret, dispatcher, log))
	mux.Handle("/v1/play", handlers.NewPlayHandler(eng, log))

	progressHandler := handlers.NewProgressHandler(eng, log)
	mux.Handle("/v1/progress/", progressHandler)

	levelsHandler := handlers.NewLevelsHandler(hunt.Catalog, log)
	mux.Handle("/v1/levels", levelsHandler)
	mux.Handle("/v1/levels/", levelsHandler)

	mux.Handle("/metrics", m.Handler())

	handler := middleware.Logger(log)(mux)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}
