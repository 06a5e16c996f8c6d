package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/saeid-a/TutorLinkBack/internal/models"
	"github.com/saeid-a/TutorLinkBack/internal/services"
)

type stubCreator struct {
	lastInput services.NewNotificationInput
	result    *models.Notification
	err       error
}

func (s *stubCreator) Create(_ context.Context, input services.NewNotificationInput) (*models.Notification, error) {
	s.lastInput = input
	return s.result, s.err
}

type stubPublisher struct {
	published []*models.Notification
}

func (s *stubPublisher) NotificationCreated(notification *models.Notification) {
	s.published = append(s.published, notification)
}

func TestProcessTaskCreatesThenPublishes(t *testing.T) {
	creator := &stubCreator{result: &models.Notification{ID: 4, ReceiverID: 42, Message: "Payment received"}}
	publisher := &stubPublisher{}
	handler := NewNotificationTaskHandler(creator, publisher)

	task, err := NewNotificationTask(services.NewNotificationInput{ReceiverID: 42, Message: "Payment received", Link: "/payments/3"})
	if err != nil {
		t.Fatalf("NewNotificationTask: %v", err)
	}
	if task.Type() != TaskCreateNotification {
		t.Fatalf("unexpected task type %q", task.Type())
	}

	if err := handler.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
	if creator.lastInput.ReceiverID != 42 || creator.lastInput.Link != "/payments/3" {
		t.Fatalf("unexpected forwarded input: %+v", creator.lastInput)
	}
	if len(publisher.published) != 1 || publisher.published[0].ID != 4 {
		t.Fatalf("expected created notification to be published, got %+v", publisher.published)
	}
}

func TestProcessTaskSkipsRetryOnBadPayload(t *testing.T) {
	handler := NewNotificationTaskHandler(&stubCreator{}, &stubPublisher{})

	err := handler.ProcessTask(context.Background(), asynq.NewTask(TaskCreateNotification, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestProcessTaskSkipsRetryOnInvalidInput(t *testing.T) {
	handler := NewNotificationTaskHandler(&stubCreator{err: services.ErrInvalidInput}, &stubPublisher{})

	task, err := NewNotificationTask(services.NewNotificationInput{ReceiverID: 42})
	if err != nil {
		t.Fatalf("NewNotificationTask: %v", err)
	}
	if err := handler.ProcessTask(context.Background(), task); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestProcessTaskRetriesOnStoreFailure(t *testing.T) {
	storeErr := errors.New("connection reset")
	publisher := &stubPublisher{}
	handler := NewNotificationTaskHandler(&stubCreator{err: storeErr}, publisher)

	task, err := NewNotificationTask(services.NewNotificationInput{ReceiverID: 42, Message: "hi"})
	if err != nil {
		t.Fatalf("NewNotificationTask: %v", err)
	}
	err = handler.ProcessTask(context.Background(), task)
	if !errors.Is(err, storeErr) || errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected retryable store error, got %v", err)
	}
	if len(publisher.published) != 0 {
		t.Fatalf("expected nothing published when persistence fails")
	}
}

func TestInlineNotifierPublishesSynchronously(t *testing.T) {
	creator := &stubCreator{result: &models.Notification{ID: 1, ReceiverID: 7}}
	publisher := &stubPublisher{}

	if err := NewInlineNotifier(creator, publisher).Notify(context.Background(), services.NewNotificationInput{ReceiverID: 7, Message: "hello"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(publisher.published) != 1 {
		t.Fatalf("expected one published notification, got %d", len(publisher.published))
	}
}
