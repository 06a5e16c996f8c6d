package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/TutorLinkBack/internal/logging"
	"github.com/saeid-a/TutorLinkBack/internal/middleware"
	"github.com/saeid-a/TutorLinkBack/internal/models"
	"github.com/saeid-a/TutorLinkBack/internal/queue"
	"github.com/saeid-a/TutorLinkBack/internal/services"
	chatws "github.com/saeid-a/TutorLinkBack/internal/websocket"
)

type chatApplicationService interface {
	ListConversations(ctx context.Context, actorID int64, role string, page int, limit int) ([]models.ConversationSummary, int, error)
	CreateConversation(ctx context.Context, actorID int64, role string, peerID int64) (*models.Conversation, error)
	ListMessages(ctx context.Context, actorID int64, role string, conversationID int64, page int, limit int) ([]models.ChatMessage, int, error)
	SendMessage(ctx context.Context, actorID int64, role string, conversationID int64, content string) (*services.ChatDelivery, error)
	SendFirstMessage(ctx context.Context, actorID int64, role string, peerID int64, content string) (*services.ChatDelivery, error)
	MarkConversationRead(ctx context.Context, actorID int64, role string, conversationID int64) error
}

type ChatHandler struct {
	service    chatApplicationService
	registry   *chatws.Registry
	dispatcher *chatws.Dispatcher
	notifier   queue.Notifier
	logger     logging.Logger
}

func NewChatHandler(
	service chatApplicationService,
	registry *chatws.Registry,
	dispatcher *chatws.Dispatcher,
	notifier queue.Notifier,
	logger logging.Logger,
) *ChatHandler {
	if logger == nil {
		logger = logging.Discard{}
	}
	return &ChatHandler{
		service:    service,
		registry:   registry,
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger,
	}
}

func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	userID, role, err := actorFromLocals(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	page, limit := parsePageParams(c)
	conversations, total, err := h.service.ListConversations(c.Context(), userID, role, page, limit)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{
		"conversations": conversations,
		"pagination":    buildPaginationMeta(page, limit, total),
	})
}

func (h *ChatHandler) CreateConversation(c *fiber.Ctx) error {
	userID, role, err := actorFromLocals(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req createConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if msg := validateRequest(req); msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}

	conversation, err := h.service.CreateConversation(c.Context(), userID, role, req.PeerID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"conversation": conversation})
}

func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	userID, role, err := actorFromLocals(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	page, limit := parsePageParams(c)
	messages, total, err := h.service.ListMessages(c.Context(), userID, role, conversationID, page, limit)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{
		"messages":   messages,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	userID, role, err := actorFromLocals(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	req.Content = strings.TrimSpace(req.Content)
	if msg := validateRequest(req); msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}

	delivery, err := h.service.SendMessage(c.Context(), userID, role, conversationID, req.Content)
	if err != nil {
		return mapChatError(c, err)
	}
	h.deliver(c.UserContext(), delivery, role)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": messagePayload(delivery)})
}

// SendFirstMessage addresses a peer instead of a conversation id. The
// conversation is created on demand.
func (h *ChatHandler) SendFirstMessage(c *fiber.Ctx) error {
	userID, role, err := actorFromLocals(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req sendFirstMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	req.Content = strings.TrimSpace(req.Content)
	if msg := validateRequest(req); msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}

	delivery, err := h.service.SendFirstMessage(c.Context(), userID, role, req.PeerID, req.Content)
	if err != nil {
		return mapChatError(c, err)
	}
	h.deliver(c.UserContext(), delivery, role)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"conversation": delivery.Conversation,
		"message":      messagePayload(delivery),
	})
}

func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	userID, role, err := actorFromLocals(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	if err := h.service.MarkConversationRead(c.Context(), userID, role, conversationID); err != nil {
		return mapChatError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ChatHandler) WebSocketUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}
	return c.Next()
}

func (h *ChatHandler) HandleWebSocket(conn *websocket.Conn) {
	userID, _ := conn.Locals(middleware.LocalUserID).(string)
	role, _ := conn.Locals(middleware.LocalRole).(string)
	client := h.registry.NewClient(conn, userID, role)

	h.registry.Register(client)
	client.Greet()
	go client.WritePump()
	client.ReadPump(h.service, h.dispatcher)
}

// deliver pushes a persisted message to both participants. A conversation
// that did not exist before also raises a notification for the recipient.
func (h *ChatHandler) deliver(ctx context.Context, delivery *services.ChatDelivery, senderRole string) {
	h.dispatcher.MessageSent(delivery)

	if !delivery.ConversationCreated || h.notifier == nil {
		return
	}
	input := services.NewNotificationInput{
		ReceiverID: delivery.RecipientID,
		Message:    fmt.Sprintf("New message from a %s", senderRole),
		Link:       "/conversations/" + strconv.FormatInt(delivery.Conversation.ID, 10),
	}
	if err := h.notifier.Notify(ctx, input); err != nil {
		h.logger.Warn("new conversation notification failed", delivery.Conversation.ID, err)
	}
}

// messagePayload is the message as it is pushed, recipient included, so the
// sender can place it even when the conversation is not loaded locally.
func messagePayload(delivery *services.ChatDelivery) chatws.MessagePayload {
	return chatws.MessagePayload{ChatMessage: *delivery.Message, RecipientID: delivery.RecipientID}
}

func actorFromLocals(c *fiber.Ctx) (int64, string, error) {
	userID, err := parseUserID(c)
	if err != nil {
		return 0, "", err
	}
	role, _ := c.Locals(middleware.LocalRole).(string)
	return userID, role, nil
}

func mapChatError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrPeerNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Peer not found"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Conversation not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process chat request"})
	}
}
