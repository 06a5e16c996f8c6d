package services

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/TutorLinkBack/internal/models"
)

const maxNotificationLength = 500

type notificationStore interface {
	Create(ctx context.Context, receiverID int64, message string, link string) (*models.Notification, error)
	ListByReceiver(ctx context.Context, receiverID int64, limit int, offset int) (*models.NotificationPage, error)
	MarkRead(ctx context.Context, notificationID int64, receiverID int64) (*models.Notification, error)
	MarkAllRead(ctx context.Context, receiverID int64) (int64, error)
}

type NotificationService struct {
	repo notificationStore
}

type NewNotificationInput struct {
	ReceiverID int64  `json:"receiver_id"`
	Message    string `json:"message"`
	Link       string `json:"link"`
}

func NewNotificationService(repo notificationStore) *NotificationService {
	return &NotificationService{repo: repo}
}

func (s *NotificationService) Create(ctx context.Context, input NewNotificationInput) (*models.Notification, error) {
	message := strings.TrimSpace(input.Message)
	if input.ReceiverID <= 0 || message == "" || len(message) > maxNotificationLength {
		return nil, ErrInvalidInput
	}

	return s.repo.Create(ctx, input.ReceiverID, message, strings.TrimSpace(input.Link))
}

func (s *NotificationService) List(
	ctx context.Context,
	actorID int64,
	page int,
	limit int,
) (*models.NotificationPage, error) {
	if actorID <= 0 || page <= 0 || limit <= 0 {
		return nil, ErrInvalidInput
	}

	return s.repo.ListByReceiver(ctx, actorID, limit, (page-1)*limit)
}

func (s *NotificationService) MarkRead(ctx context.Context, actorID int64, notificationID int64) (*models.Notification, error) {
	if actorID <= 0 || notificationID <= 0 {
		return nil, ErrInvalidInput
	}

	notification, err := s.repo.MarkRead(ctx, notificationID, actorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	return notification, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, actorID int64) (int64, error) {
	if actorID <= 0 {
		return 0, ErrInvalidInput
	}
	return s.repo.MarkAllRead(ctx, actorID)
}
