package routes

import (
	"context"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/saeid-a/TutorLinkBack/internal/config"
	"github.com/saeid-a/TutorLinkBack/internal/handlers"
	"github.com/saeid-a/TutorLinkBack/internal/logging"
	"github.com/saeid-a/TutorLinkBack/internal/middleware"
	"github.com/saeid-a/TutorLinkBack/internal/queue"
	"github.com/saeid-a/TutorLinkBack/internal/repository"
	"github.com/saeid-a/TutorLinkBack/internal/services"
	chatws "github.com/saeid-a/TutorLinkBack/internal/websocket"
)

// RegisterRoutes wires the API onto app. The returned cleanup stops the
// push bridge and releases queue clients; call it after app shutdown.
func RegisterRoutes(ctx context.Context, app *fiber.App, cfg *config.Config, db *pgxpool.Pool, logger logging.Logger) (func(), error) {
	userRepo := repository.NewUserRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	registry := chatws.NewRegistry(cfg.PushShards, cfg.PushSendBuffer, logger)
	cleanups := []func(){registry.Close}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	var publisher chatws.Publisher = registry
	if cfg.RedisEnabled() {
		bridge, err := chatws.NewRedisBridge(cfg.RedisURL, registry, logger)
		if err != nil {
			cleanup()
			return nil, err
		}
		bridgeCtx, stop := context.WithCancel(ctx)
		go func() {
			if err := bridge.Run(bridgeCtx); err != nil {
				logger.Error("push bridge stopped", err)
			}
		}()
		cleanups = append(cleanups, func() {
			stop()
			_ = bridge.Close()
		})
		publisher = bridge
	}
	dispatcher := chatws.NewDispatcher(publisher, logger)

	chatService := services.NewChatService(db, conversationRepo, messageRepo, userRepo)
	notificationService := services.NewNotificationService(notificationRepo)

	var notifier queue.Notifier = queue.NewInlineNotifier(notificationService, dispatcher)
	if cfg.RedisEnabled() {
		asynqNotifier, err := queue.NewAsynqNotifier(cfg.RedisURL)
		if err != nil {
			cleanup()
			return nil, err
		}
		cleanups = append(cleanups, func() { _ = asynqNotifier.Close() })
		notifier = asynqNotifier
	}

	chatHandler := handlers.NewChatHandler(chatService, registry, dispatcher, notifier, logger)
	notificationHandler := handlers.NewNotificationHandler(notificationService)

	// Registered ahead of the /v1 group so the handshake may carry its
	// token as a query parameter.
	app.Use("/api/v1/ws", middleware.AuthRequired(cfg.JWTSecret, true), middleware.ParticipantsOnly(), chatHandler.WebSocketUpgrade)
	app.Get("/api/v1/ws", websocket.New(chatHandler.HandleWebSocket))

	api := app.Group("/api")
	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret), middleware.ParticipantsOnly())

	conversations := authProtected.Group("/conversations")
	conversations.Get("", chatHandler.ListConversations)
	conversations.Post("", chatHandler.CreateConversation)
	conversations.Get("/:id/messages", chatHandler.GetMessages)
	conversations.Post("/:id/messages", chatHandler.SendMessage)
	conversations.Post("/:id/read", chatHandler.MarkRead)

	authProtected.Post("/messages", chatHandler.SendFirstMessage)

	notifications := authProtected.Group("/notifications")
	notifications.Get("", notificationHandler.List)
	notifications.Post("/read-all", notificationHandler.MarkAllRead)
	notifications.Post("/:id/read", notificationHandler.MarkRead)

	return cleanup, nil
}
