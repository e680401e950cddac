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

	if cfg.StoreBackend != config.BackendRedis {
		log.Error("The worker requires the redis store backend", "store_backend", cfg.StoreBackend)
		os.Exit(1)
	}

	workerID := cfg.WorkerID
	if workerID == "" {
		workerID = worker.NewID()
	}

	log.Info("Starting Hunt Engine Worker",
		"environment", cfg.Environment,
		"redis_url", cfg.RedisURL,
		"worker_id", workerID)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer startupCancel()

	store, err := storage.Open(startupCtx, cfg, log)
	if err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing storage connection", "error", err)
		}
	}()
	redisStore := store.(*storage.RedisStorage)
	log.Info("Storage service initialized successfully")

	// The API seeds the levels; workers read what it stored.
	cfg.SeedLevels = false
	hunt, err := bootstrap.LoadHunt(startupCtx, cfg, store, log)
	if err != nil {
		log.Error("Failed to load hunt", "error", err)
		os.Exit(1)
	}

	m := metrics.New()

	// No engine locker: the worker holds the user's Redis lock around the
	// whole event, delivery included.
	eng, err := engine.New(engine.Config{
		Catalog:      hunt.Catalog,
		Store:        store,
		Copy:         hunt.Copy,
		Logger:       log,
		Metrics:      m,
		StoreTimeout: cfg.StoreTimeout,
	})
	if err != nil {
		log.Error("Failed to create engine", "error", err)
		os.Exit(1)
	}

	rcfg := line.DefaultResilientConfig()
	rcfg.Logger = log
	messenger := line.NewResilientClient(line.NewClient(cfg.LineAPIBaseURL, cfg.LineChannelAccessToken, log), rcfg)

	processor := worker.NewProcessor(eng, messenger, m, log)
	eventQueue := queue.NewEventQueue(redisStore.Client(), log)
	locker := storage.NewRedisLocker(redisStore.Client(), workerID, storage.DefaultLockTTL)

	w := worker.New(eventQueue, processor, locker, log, workerID)

	// Metrics and health for the orchestrator.
	mux := http.NewServeMux()
	mux.Handle("/health", handlers.NewHealthHandler(map[string]handlers.Pinger{"store": store}, log))
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server failed", "error", err)
		}
	}()

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Start(); err != nil {
			log.Error("Worker error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("Worker started, waiting for events...")

	<-quit
	log.Info("Worker shutdown signal received")

	w.Stop()

	// Give worker time to finish the current event
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		log.Warn("Worker did not stop in time")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)

	log.Info("Worker exited")
}
