package repository

import (
	"context"
	"database/sql"

	"github.com/saeid-a/TutorLinkBack/internal/models"
)

type ConversationRepository struct {
	db DBTX
}

func NewConversationRepository(db DBTX) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// CreateOrGet reports whether the row was inserted by this call.
func (r *ConversationRepository) CreateOrGet(
	ctx context.Context,
	parentID int64,
	tutorID int64,
) (*models.Conversation, bool, error) {
	query := `
		INSERT INTO conversations (parent_id, tutor_id)
		VALUES ($1, $2)
		ON CONFLICT (parent_id, tutor_id)
		DO UPDATE SET updated_at = conversations.updated_at
		RETURNING id, parent_id, tutor_id, created_at, updated_at, (xmax = 0)
	`

	var conversation models.Conversation
	var inserted bool
	err := r.db.QueryRow(ctx, query, parentID, tutorID).Scan(
		&conversation.ID,
		&conversation.ParentID,
		&conversation.TutorID,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
		&inserted,
	)
	if err != nil {
		return nil, false, err
	}

	return &conversation, inserted, nil
}

func (r *ConversationRepository) GetByIDForParticipant(
	ctx context.Context,
	conversationID int64,
	participantID int64,
) (*models.Conversation, error) {
	query := `
		SELECT id, parent_id, tutor_id, created_at, updated_at
		FROM conversations
		WHERE id = $1 AND (parent_id = $2 OR tutor_id = $2)
	`

	var conversation models.Conversation
	err := r.db.QueryRow(ctx, query, conversationID, participantID).Scan(
		&conversation.ID,
		&conversation.ParentID,
		&conversation.TutorID,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &conversation, nil
}

// ListForParticipant returns one page of conversations ordered by the
// recency of their last message, plus the participant's conversation total.
func (r *ConversationRepository) ListForParticipant(
	ctx context.Context,
	participantID int64,
	limit int,
	offset int,
) ([]models.ConversationSummary, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM conversations
		WHERE parent_id = $1 OR tutor_id = $1
	`, participantID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT
			c.id,
			c.parent_id,
			c.tutor_id,
			c.created_at,
			c.updated_at,
			lm.id,
			lm.conversation_id,
			lm.sender_id,
			lm.content,
			lm.is_read,
			lm.created_at,
			COALESCE(uc.unread_count, 0)
		FROM conversations c
		LEFT JOIN LATERAL (
			SELECT id, conversation_id, sender_id, content, is_read, created_at
			FROM messages
			WHERE conversation_id = c.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) lm ON TRUE
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS unread_count
			FROM messages
			WHERE conversation_id = c.id
			  AND sender_id <> $1
			  AND is_read = FALSE
		) uc ON TRUE
		WHERE c.parent_id = $1 OR c.tutor_id = $1
		ORDER BY COALESCE(lm.created_at, c.updated_at, c.created_at) DESC, c.id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, participantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	summaries := make([]models.ConversationSummary, 0)
	for rows.Next() {
		var summary models.ConversationSummary
		var messageID sql.NullInt64
		var messageConversationID sql.NullInt64
		var messageSenderID sql.NullInt64
		var messageContent sql.NullString
		var messageIsRead sql.NullBool
		var messageCreatedAt sql.NullTime

		if err := rows.Scan(
			&summary.ID,
			&summary.ParentID,
			&summary.TutorID,
			&summary.CreatedAt,
			&summary.UpdatedAt,
			&messageID,
			&messageConversationID,
			&messageSenderID,
			&messageContent,
			&messageIsRead,
			&messageCreatedAt,
			&summary.UnreadCount,
		); err != nil {
			return nil, 0, err
		}

		summary.PeerID = summary.Conversation.PeerOf(participantID)
		if messageID.Valid {
			summary.LastMessage = &models.ChatMessage{
				ID:             messageID.Int64,
				ConversationID: messageConversationID.Int64,
				SenderID:       messageSenderID.Int64,
				Content:        messageContent.String,
				IsRead:         messageIsRead.Bool,
				CreatedAt:      messageCreatedAt.Time,
			}
		}

		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return summaries, total, nil
}

func (r *ConversationRepository) Touch(ctx context.Context, conversationID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE conversations
		SET updated_at = NOW()
		WHERE id = $1
	`, conversationID)
	return err
}
