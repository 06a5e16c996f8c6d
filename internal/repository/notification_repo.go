package repository

import (
	"context"

	"github.com/saeid-a/TutorLinkBack/internal/models"
)

type NotificationRepository struct {
	db DBTX
}

func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(
	ctx context.Context,
	receiverID int64,
	message string,
	link string,
) (*models.Notification, error) {
	query := `
		INSERT INTO notifications (receiver_id, message, link, is_read)
		VALUES ($1, $2, $3, FALSE)
		RETURNING id, receiver_id, message, link, is_read, created_at
	`

	var notification models.Notification
	err := r.db.QueryRow(ctx, query, receiverID, message, link).Scan(
		&notification.ID,
		&notification.ReceiverID,
		&notification.Message,
		&notification.Link,
		&notification.IsRead,
		&notification.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &notification, nil
}

// ListByReceiver returns one page newest-first together with the receiver's
// total and unread counts.
func (r *NotificationRepository) ListByReceiver(
	ctx context.Context,
	receiverID int64,
	limit int,
	offset int,
) (*models.NotificationPage, error) {
	page := &models.NotificationPage{Notifications: make([]models.Notification, 0)}

	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE is_read = FALSE)
		FROM notifications
		WHERE receiver_id = $1
	`, receiverID).Scan(&page.Total, &page.UnreadCount); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, receiver_id, message, link, is_read, created_at
		FROM notifications
		WHERE receiver_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, receiverID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var notification models.Notification
		if err := rows.Scan(
			&notification.ID,
			&notification.ReceiverID,
			&notification.Message,
			&notification.Link,
			&notification.IsRead,
			&notification.CreatedAt,
		); err != nil {
			return nil, err
		}
		page.Notifications = append(page.Notifications, notification)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return page, nil
}

// MarkRead returns the notification after the update. A row that was
// already read is returned unchanged.
func (r *NotificationRepository) MarkRead(
	ctx context.Context,
	notificationID int64,
	receiverID int64,
) (*models.Notification, error) {
	query := `
		UPDATE notifications
		SET is_read = TRUE
		WHERE id = $1 AND receiver_id = $2
		RETURNING id, receiver_id, message, link, is_read, created_at
	`

	var notification models.Notification
	err := r.db.QueryRow(ctx, query, notificationID, receiverID).Scan(
		&notification.ID,
		&notification.ReceiverID,
		&notification.Message,
		&notification.Link,
		&notification.IsRead,
		&notification.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &notification, nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, receiverID int64) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE notifications
		SET is_read = TRUE
		WHERE receiver_id = $1 AND is_read = FALSE
	`, receiverID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
