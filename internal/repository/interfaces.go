package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gazette-chat/internal/domain"
)

type ConversationRepository interface {
	Create(ctx context.Context, c *domain.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Conversation, error)
	GetByDirectKey(ctx context.Context, key string) (domain.Conversation, error)
	GetUserConversations(ctx context.Context, userID uuid.UUID, page, limit int) ([]domain.Conversation, int64, error)
	UpdateMetadata(ctx context.Context, id uuid.UUID, name, description, imageURL *string) error
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
	// DeleteCascade removes the conversation with its participants, messages
	// and receipts. Callers run it inside a transaction.
	DeleteCascade(ctx context.Context, id uuid.UUID) error

	AddParticipant(ctx context.Context, p *domain.Participant) error
	RemoveParticipant(ctx context.Context, conversationID, userID uuid.UUID) error
	GetParticipant(ctx context.Context, conversationID, userID uuid.UUID) (domain.Participant, error)
	GetParticipants(ctx context.Context, conversationID uuid.UUID) ([]domain.Participant, error)
	IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
	CountParticipants(ctx context.Context, conversationID uuid.UUID) (int64, error)
	UpdateParticipantRole(ctx context.Context, conversationID, userID uuid.UUID, role domain.ParticipantRole) error
	SetParticipantMuted(ctx context.Context, conversationID, userID uuid.UUID, muted bool) error
	SetParticipantNickname(ctx context.Context, conversationID, userID uuid.UUID, nickname string) error
	AdvanceLastRead(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) error
}

type MessageRepository interface {
	Create(ctx context.Context, m *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Message, error)
	ListPage(ctx context.Context, conversationID uuid.UUID, page, limit int) ([]domain.Message, int64, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
	// MarkDirectRead flips the read flag on every unread message in the
	// conversation that was not sent by readerID. Returns affected ids.
	MarkDirectRead(ctx context.Context, conversationID, readerID uuid.UUID) ([]uuid.UUID, error)
	ListUnreadGlobal(ctx context.Context, conversationID uuid.UUID) ([]domain.Message, error)
	CountUnreadDirect(ctx context.Context, conversationID, userID uuid.UUID) (int64, error)
	CountUnacked(ctx context.Context, conversationID, userID uuid.UUID, since time.Time) (int64, error)

	CreateReceipt(ctx context.Context, r *domain.MessageReadReceipt) (created bool, err error)
	GetReceipts(ctx context.Context, messageID uuid.UUID) ([]domain.MessageReadReceipt, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)

	AddFollow(ctx context.Context, followerID, followeeID uuid.UUID) error
	IsMutualFollow(ctx context.Context, a, b uuid.UUID) (bool, error)

	AddPushSubscription(ctx context.Context, s *domain.PushSubscription) error
	GetPushSubscriptions(ctx context.Context, userID uuid.UUID) ([]domain.PushSubscription, error)
	RevokePushSubscription(ctx context.Context, userID, subscriptionID uuid.UUID) error
}
