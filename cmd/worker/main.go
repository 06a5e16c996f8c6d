package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/saeid-a/TutorLinkBack/internal/config"
	"github.com/saeid-a/TutorLinkBack/internal/database"
	"github.com/saeid-a/TutorLinkBack/internal/logging"
	"github.com/saeid-a/TutorLinkBack/internal/queue"
	"github.com/saeid-a/TutorLinkBack/internal/repository"
	"github.com/saeid-a/TutorLinkBack/internal/services"
	chatws "github.com/saeid-a/TutorLinkBack/internal/websocket"
)

// The worker holds no sockets. Pushes go through the Redis bridge and are
// delivered by whichever API instance holds the receiver's connections.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if !cfg.RedisEnabled() {
		log.Fatal("REDIS_URL is required for the worker")
	}
	appLogger := logging.New(cfg.RollbarToken, cfg.AppEnv, cfg.BuildVersion)
	if flusher, ok := appLogger.(interface{ Flush() }); ok {
		defer flusher.Flush()
	}

	if cfg.DBUrl == "" {
		log.Fatal("DB_URL is required")
	}
	if err := database.ConnectDB(cfg.DBUrl, database.WithMaxConns(int32(cfg.WorkerConcurrency))); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB()

	registry := chatws.NewRegistry(1, 1, appLogger)
	bridge, err := chatws.NewRedisBridge(cfg.RedisURL, registry, appLogger)
	if err != nil {
		log.Fatalf("Failed to connect push bridge: %v", err)
	}
	defer bridge.Close()

	notificationService := services.NewNotificationService(repository.NewNotificationRepository(database.DB))
	dispatcher := chatws.NewDispatcher(bridge, appLogger)

	worker, err := queue.NewWorker(cfg.RedisURL, cfg.WorkerConcurrency, appLogger)
	if err != nil {
		log.Fatalf("Failed to create worker: %v", err)
	}
	worker.Handle(queue.TaskCreateNotification, queue.NewNotificationTaskHandler(notificationService, dispatcher))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("Worker started with concurrency %d", cfg.WorkerConcurrency)
	if err := worker.Run(ctx); err != nil {
		log.Fatalf("Worker failed: %v", err)
	}
}
