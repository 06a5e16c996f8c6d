package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/saeid-a/TutorLinkBack/internal/models"
	"github.com/saeid-a/TutorLinkBack/internal/repository"
)

// maxMessageLength counts runes, like the REST validator's max tag.
const maxMessageLength = 4000

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type ChatService struct {
	db               *pgxpool.Pool
	conversationRepo *repository.ConversationRepository
	messageRepo      *repository.MessageRepository
	userRepo         userReader
}

// ChatDelivery is everything the push dispatcher needs to fan a new message
// out to both participants.
type ChatDelivery struct {
	Conversation        *models.Conversation
	Message             *models.ChatMessage
	RecipientID         int64
	ConversationCreated bool
}

func NewChatService(
	db *pgxpool.Pool,
	conversationRepo *repository.ConversationRepository,
	messageRepo *repository.MessageRepository,
	userRepo userReader,
) *ChatService {
	return &ChatService{
		db:               db,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		userRepo:         userRepo,
	}
}

func (s *ChatService) ListConversations(
	ctx context.Context,
	actorID int64,
	role string,
	page int,
	limit int,
) ([]models.ConversationSummary, int, error) {
	if !isParticipantRole(role) {
		return nil, 0, ErrForbidden
	}
	if page <= 0 || limit <= 0 {
		return nil, 0, ErrInvalidInput
	}

	return s.conversationRepo.ListForParticipant(ctx, actorID, limit, (page-1)*limit)
}

func (s *ChatService) CreateConversation(
	ctx context.Context,
	actorID int64,
	role string,
	peerID int64,
) (*models.Conversation, error) {
	parentID, tutorID, err := s.resolveParticipants(ctx, actorID, role, peerID)
	if err != nil {
		return nil, err
	}

	conversation, _, err := s.conversationRepo.CreateOrGet(ctx, parentID, tutorID)
	return conversation, err
}

// ListMessages returns one page newest-first. Reading a page does not
// acknowledge it; clients call MarkConversationRead explicitly.
func (s *ChatService) ListMessages(
	ctx context.Context,
	actorID int64,
	role string,
	conversationID int64,
	page int,
	limit int,
) ([]models.ChatMessage, int, error) {
	if !isParticipantRole(role) {
		return nil, 0, ErrForbidden
	}
	if conversationID <= 0 || page <= 0 || limit <= 0 {
		return nil, 0, ErrInvalidInput
	}

	if _, err := s.conversationRepo.GetByIDForParticipant(ctx, conversationID, actorID); err != nil {
		return nil, 0, err
	}

	return s.messageRepo.ListByConversation(ctx, conversationID, limit, (page-1)*limit)
}

func (s *ChatService) SendMessage(
	ctx context.Context,
	actorID int64,
	role string,
	conversationID int64,
	content string,
) (*ChatDelivery, error) {
	if !isParticipantRole(role) {
		return nil, ErrForbidden
	}
	if conversationID <= 0 {
		return nil, ErrInvalidInput
	}

	trimmed, err := normalizeContent(content)
	if err != nil {
		return nil, err
	}

	conversation, err := s.conversationRepo.GetByIDForParticipant(ctx, conversationID, actorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrForbidden
		}
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	message, err := s.persistMessage(ctx, tx, conversationID, actorID, trimmed)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &ChatDelivery{
		Conversation: conversation,
		Message:      message,
		RecipientID:  conversation.PeerOf(actorID),
	}, nil
}

// SendFirstMessage delivers a message to peerID, creating the conversation
// when none exists yet. Clients use it to promote a draft conversation.
func (s *ChatService) SendFirstMessage(
	ctx context.Context,
	actorID int64,
	role string,
	peerID int64,
	content string,
) (*ChatDelivery, error) {
	trimmed, err := normalizeContent(content)
	if err != nil {
		return nil, err
	}

	parentID, tutorID, err := s.resolveParticipants(ctx, actorID, role, peerID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	conversation, created, err := repository.NewConversationRepository(tx).CreateOrGet(ctx, parentID, tutorID)
	if err != nil {
		return nil, err
	}

	message, err := s.persistMessage(ctx, tx, conversation.ID, actorID, trimmed)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &ChatDelivery{
		Conversation:        conversation,
		Message:             message,
		RecipientID:         peerID,
		ConversationCreated: created,
	}, nil
}

// MarkConversationRead is idempotent: a second call updates nothing.
func (s *ChatService) MarkConversationRead(
	ctx context.Context,
	actorID int64,
	role string,
	conversationID int64,
) error {
	if !isParticipantRole(role) {
		return ErrForbidden
	}
	if conversationID <= 0 {
		return ErrInvalidInput
	}

	if _, err := s.conversationRepo.GetByIDForParticipant(ctx, conversationID, actorID); err != nil {
		return err
	}

	_, err := s.messageRepo.MarkConversationRead(ctx, conversationID, actorID)
	return err
}

func (s *ChatService) persistMessage(
	ctx context.Context,
	tx pgx.Tx,
	conversationID int64,
	senderID int64,
	content string,
) (*models.ChatMessage, error) {
	message, err := repository.NewMessageRepository(tx).Create(ctx, conversationID, senderID, content)
	if err != nil {
		return nil, err
	}

	if err := repository.NewConversationRepository(tx).Touch(ctx, conversationID); err != nil {
		return nil, err
	}

	return message, nil
}

// normalizeContent applies the same content rules to REST and socket sends.
func normalizeContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > maxMessageLength {
		return "", ErrInvalidInput
	}
	return trimmed, nil
}

func (s *ChatService) resolveParticipants(
	ctx context.Context,
	actorID int64,
	role string,
	peerID int64,
) (int64, int64, error) {
	if !isParticipantRole(role) {
		return 0, 0, ErrForbidden
	}
	if peerID <= 0 || peerID == actorID {
		return 0, 0, ErrInvalidInput
	}

	peer, err := s.userRepo.GetByID(ctx, peerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, ErrPeerNotFound
		}
		return 0, 0, err
	}

	switch {
	case role == models.RoleParent && peer.Role == models.RoleTutor:
		return actorID, peerID, nil
	case role == models.RoleTutor && peer.Role == models.RoleParent:
		return peerID, actorID, nil
	default:
		return 0, 0, ErrInvalidInput
	}
}
