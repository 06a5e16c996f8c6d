package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/saeid-a/TutorLinkBack/internal/models"
	"github.com/saeid-a/TutorLinkBack/internal/services"
)

// TaskCreateNotification persists a notification and pushes it to the
// receiver's live connections.
const TaskCreateNotification = "notification:create"

const (
	notificationQueue    = "notifications"
	notificationMaxRetry = 5
	notificationTimeout  = 10 * time.Second
)

type notificationCreator interface {
	Create(ctx context.Context, input services.NewNotificationInput) (*models.Notification, error)
}

type notificationPublisher interface {
	NotificationCreated(notification *models.Notification)
}

// Notifier is how other parts of the system raise a notification.
type Notifier interface {
	Notify(ctx context.Context, input services.NewNotificationInput) error
}

// AsynqNotifier enqueues notifications for the worker process.
type AsynqNotifier struct {
	client *asynq.Client
}

var _ Notifier = (*AsynqNotifier)(nil)

func NewAsynqNotifier(redisURL string) (*AsynqNotifier, error) {
	if redisURL == "" {
		return nil, errors.New("asynq: REDIS_URL is not set")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse REDIS_URL: %w", err)
	}
	return &AsynqNotifier{client: asynq.NewClient(opt)}, nil
}

func NewNotificationTask(input services.NewNotificationInput) (*asynq.Task, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskCreateNotification,
		payload,
		asynq.Queue(notificationQueue),
		asynq.MaxRetry(notificationMaxRetry),
		asynq.Timeout(notificationTimeout),
	), nil
}

func (n *AsynqNotifier) Notify(ctx context.Context, input services.NewNotificationInput) error {
	task, err := NewNotificationTask(input)
	if err != nil {
		return err
	}
	_, err = n.client.EnqueueContext(ctx, task)
	return err
}

func (n *AsynqNotifier) Close() error {
	return n.client.Close()
}

// InlineNotifier creates and pushes in the calling goroutine. Used when no
// Redis is configured.
type InlineNotifier struct {
	handler *NotificationTaskHandler
}

var _ Notifier = (*InlineNotifier)(nil)

func NewInlineNotifier(creator notificationCreator, publisher notificationPublisher) *InlineNotifier {
	return &InlineNotifier{handler: NewNotificationTaskHandler(creator, publisher)}
}

func (n *InlineNotifier) Notify(ctx context.Context, input services.NewNotificationInput) error {
	_, err := n.handler.create(ctx, input)
	return err
}

type NotificationTaskHandler struct {
	creator   notificationCreator
	publisher notificationPublisher
}

func NewNotificationTaskHandler(creator notificationCreator, publisher notificationPublisher) *NotificationTaskHandler {
	return &NotificationTaskHandler{creator: creator, publisher: publisher}
}

// ProcessTask implements asynq.Handler.
func (h *NotificationTaskHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var input services.NewNotificationInput
	if err := json.Unmarshal(task.Payload(), &input); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", task.Type(), err, asynq.SkipRetry)
	}

	_, err := h.create(ctx, input)
	if errors.Is(err, services.ErrInvalidInput) {
		return fmt.Errorf("%s: %v: %w", task.Type(), err, asynq.SkipRetry)
	}
	return err
}

func (h *NotificationTaskHandler) create(ctx context.Context, input services.NewNotificationInput) (*models.Notification, error) {
	notification, err := h.creator.Create(ctx, input)
	if err != nil {
		return nil, err
	}
	h.publisher.NotificationCreated(notification)
	return notification, nil
}
