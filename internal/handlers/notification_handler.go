package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/TutorLinkBack/internal/models"
	"github.com/saeid-a/TutorLinkBack/internal/services"
)

type notificationApplicationService interface {
	List(ctx context.Context, actorID int64, page int, limit int) (*models.NotificationPage, error)
	MarkRead(ctx context.Context, actorID int64, notificationID int64) (*models.Notification, error)
	MarkAllRead(ctx context.Context, actorID int64) (int64, error)
}

type NotificationHandler struct {
	service notificationApplicationService
}

func NewNotificationHandler(service notificationApplicationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// List returns one page newest-first. unread_count covers every
// notification of the caller, not only the page.
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	page, limit := parsePageParams(c)
	result, err := h.service.List(c.Context(), userID, page, limit)
	if err != nil {
		return mapNotificationError(c, err)
	}

	notifications := result.Notifications
	if notifications == nil {
		notifications = []models.Notification{}
	}

	return c.JSON(fiber.Map{
		"notifications": notifications,
		"unread_count":  result.UnreadCount,
		"pagination":    buildPaginationMeta(page, limit, result.Total),
	})
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	notificationID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid notification id"})
	}

	notification, err := h.service.MarkRead(c.Context(), userID, notificationID)
	if err != nil {
		return mapNotificationError(c, err)
	}

	return c.JSON(fiber.Map{"notification": notification})
}

func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	updated, err := h.service.MarkAllRead(c.Context(), userID)
	if err != nil {
		return mapNotificationError(c, err)
	}

	return c.JSON(fiber.Map{"updated": updated})
}

func mapNotificationError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrNotificationNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Notification not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process notification request"})
	}
}
