package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"gazette-chat/internal/domain"
	"gazette-chat/internal/events"
	"gazette-chat/internal/redis"
	"gazette-chat/internal/repository"
	"gazette-chat/internal/tasks"
	gazette_errors "gazette-chat/pkg/errors"
	"gazette-chat/pkg/logger"
)

// MessageService is the message pipeline: validate, persist, bump the
// conversation, fan out. Fan-out and push enqueueing are best-effort and
// never fail an accepted message.
type MessageService struct {
	db        *gorm.DB
	receipts  *ReceiptService
	publisher events.Publisher
	enqueuer  tasks.Enqueuer
	unread    *redis.UnreadCache
	log       *logger.Logger
}

func NewMessageService(db *gorm.DB, receipts *ReceiptService, publisher events.Publisher, enqueuer tasks.Enqueuer, unread *redis.UnreadCache, log *logger.Logger) *MessageService {
	return &MessageService{
		db:        db,
		receipts:  receipts,
		publisher: publisher,
		enqueuer:  enqueuer,
		unread:    unread,
		log:       log,
	}
}

type SendMessageInput struct {
	Content   string
	Type      domain.MessageType
	MediaURL  string
	TempID    string
	ReplyToID uuid.NullUUID
}

// Send accepts a message for an existing conversation. Validation order:
// conversation exists, sender participates, then payload shape.
func (s *MessageService) Send(ctx context.Context, senderID, conversationID uuid.UUID, in SendMessageInput) (domain.Message, error) {
	convRepo := repository.NewConversationRepository(s.db)

	conv, err := convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return domain.Message{}, err
	}
	ok, err := convRepo.IsParticipant(ctx, conversationID, senderID)
	if err != nil {
		return domain.Message{}, err
	}
	if !ok {
		return domain.Message{}, gazette_errors.ErrForbidden
	}
	if err := validateMessageInput(&in); err != nil {
		return domain.Message{}, err
	}

	msg := buildMessage(senderID, conv, in)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewMessageRepository(tx).Create(ctx, &msg); err != nil {
			return err
		}
		return repository.NewConversationRepository(tx).Touch(ctx, conversationID, msg.CreatedAt)
	})
	if err != nil {
		return domain.Message{}, err
	}

	s.fanOut(ctx, conv, msg, in.TempID)
	return msg, nil
}

// SendDirect delivers to another user, creating the direct conversation on
// first contact. The conversation id stays opaque; the sorted participant
// pair is only a uniqueness key.
func (s *MessageService) SendDirect(ctx context.Context, senderID, recipientID uuid.UUID, in SendMessageInput) (domain.Message, error) {
	if senderID == recipientID {
		return domain.Message{}, gazette_errors.ErrValidation
	}
	if err := validateMessageInput(&in); err != nil {
		return domain.Message{}, err
	}

	conv, err := s.ensureDirectConversation(ctx, senderID, recipientID)
	if err != nil {
		return domain.Message{}, err
	}

	msg := buildMessage(senderID, conv, in)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewMessageRepository(tx).Create(ctx, &msg); err != nil {
			return err
		}
		return repository.NewConversationRepository(tx).Touch(ctx, conv.ID, msg.CreatedAt)
	})
	if err != nil {
		return domain.Message{}, err
	}

	s.fanOut(ctx, conv, msg, in.TempID)
	return msg, nil
}

type MessagePage struct {
	Messages []domain.Message
	Total    int64
	Page     int
	PageSize int
	HasMore  bool
}

// List returns one ascending page and, as a side effect, bulk-acknowledges
// the conversation for the reader (watermark semantics for groups).
func (s *MessageService) List(ctx context.Context, conversationID, requesterID uuid.UUID, page, pageSize int) (MessagePage, error) {
	convRepo := repository.NewConversationRepository(s.db)

	if _, err := convRepo.GetByID(ctx, conversationID); err != nil {
		return MessagePage{}, err
	}
	ok, err := convRepo.IsParticipant(ctx, conversationID, requesterID)
	if err != nil {
		return MessagePage{}, err
	}
	if !ok {
		return MessagePage{}, gazette_errors.ErrForbidden
	}

	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}

	messages, total, err := repository.NewMessageRepository(s.db).ListPage(ctx, conversationID, page, pageSize)
	if err != nil {
		return MessagePage{}, err
	}

	// Reading a page acknowledges it. Failure here must not fail the read.
	if s.receipts != nil {
		if err := s.receipts.MarkConversationRead(ctx, conversationID, requesterID); err != nil {
			logf(s.log, "list: mark conversation %s read for %s: %v", conversationID, requesterID, err)
		}
	}
	s.invalidateUnread(ctx, conversationID, []uuid.UUID{requesterID})

	return MessagePage{
		Messages: messages,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		HasMore:  int64(page*pageSize) < total,
	}, nil
}

// UnreadCount reports how many messages the user has not yet acknowledged in
// the conversation, consulting the short-TTL cache first.
func (s *MessageService) UnreadCount(ctx context.Context, conversationID, userID uuid.UUID) (int64, error) {
	convRepo := repository.NewConversationRepository(s.db)

	conv, err := convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	participant, err := convRepo.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		return 0, gazette_errors.ErrForbidden
	}

	if s.unread != nil {
		if n, hit, err := s.unread.Get(ctx, conversationID.String(), userID.String()); err == nil && hit {
			return n, nil
		}
	}

	msgRepo := repository.NewMessageRepository(s.db)
	var count int64
	if conv.Kind == domain.ConversationKindDirect {
		count, err = msgRepo.CountUnreadDirect(ctx, conversationID, userID)
	} else {
		since := time.Time{}
		if participant.LastReadAt.Valid {
			since = participant.LastReadAt.Time
		}
		count, err = msgRepo.CountUnacked(ctx, conversationID, userID, since)
	}
	if err != nil {
		return 0, err
	}

	if s.unread != nil {
		if err := s.unread.Set(ctx, conversationID.String(), userID.String(), count); err != nil {
			logf(s.log, "unread cache set: %v", err)
		}
	}
	return count, nil
}

func (s *MessageService) ensureDirectConversation(ctx context.Context, senderID, recipientID uuid.UUID) (domain.Conversation, error) {
	repo := repository.NewConversationRepository(s.db)
	key := domain.DirectPairKey(senderID, recipientID)

	conv, err := repo.GetByDirectKey(ctx, key)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, gazette_errors.ErrNotFound) {
		return domain.Conversation{}, err
	}

	now := time.Now()
	created := domain.Conversation{
		ID:        uuid.New(),
		Kind:      domain.ConversationKindDirect,
		DirectKey: sql.NullString{String: key, Valid: true},
		CreatorID: senderID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := repository.NewConversationRepository(tx)
		if err := txRepo.Create(ctx, &created); err != nil {
			return err
		}
		for _, id := range []uuid.UUID{senderID, recipientID} {
			p := domain.Participant{
				ConversationID: created.ID,
				UserID:         id,
				Role:           domain.ParticipantRoleMember,
				JoinedAt:       now,
			}
			if err := txRepo.AddParticipant(ctx, &p); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, gazette_errors.ErrConflict) {
		// A concurrent first message won the unique direct_key race.
		return repo.GetByDirectKey(ctx, key)
	}
	if err != nil {
		return domain.Conversation{}, err
	}
	return repo.GetByID(ctx, created.ID)
}

func (s *MessageService) fanOut(ctx context.Context, conv domain.Conversation, msg domain.Message, tempID string) {
	if env, err := events.NewEnvelope(events.EventTypeMessageCreated, events.AggregateTypeMessage, msg.ID.String(), tempID, msg); err == nil {
		notify(ctx, s.publisher, s.log, events.ConversationChannel(msg.ConversationID.String()), env)
	}

	recipients := make([]uuid.UUID, 0, len(conv.Participants))
	for _, p := range conv.Participants {
		if p.UserID == msg.SenderID || p.IsMuted {
			continue
		}
		recipients = append(recipients, p.UserID)
	}
	s.invalidateUnread(ctx, msg.ConversationID, recipients)

	if s.enqueuer != nil && len(recipients) > 0 {
		senderName := ""
		if sender, err := repository.NewUserRepository(s.db).GetByID(ctx, msg.SenderID); err == nil {
			senderName = sender.DisplayName
		}
		payload := tasks.NotifyMessagePayload{
			MessageID:      msg.ID,
			ConversationID: msg.ConversationID,
			SenderID:       msg.SenderID,
			SenderName:     senderName,
			Preview:        messagePreview(msg),
			RecipientIDs:   recipients,
		}
		if err := s.enqueuer.EnqueueNotifyMessage(ctx, payload); err != nil {
			logf(s.log, "fanout: enqueue push for %s: %v", msg.ID, err)
		}
	}
}

func (s *MessageService) invalidateUnread(ctx context.Context, conversationID uuid.UUID, userIDs []uuid.UUID) {
	if s.unread == nil || len(userIDs) == 0 {
		return
	}
	ids := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		ids = append(ids, id.String())
	}
	if err := s.unread.InvalidateConversation(ctx, conversationID.String(), ids); err != nil {
		logf(s.log, "unread cache invalidate: %v", err)
	}
}

func validateMessageInput(in *SendMessageInput) error {
	if !in.Type.Valid() {
		return gazette_errors.ErrValidation
	}
	if in.Type == domain.MessageTypeText {
		in.Content = strings.TrimSpace(in.Content)
		if in.Content == "" {
			return gazette_errors.ErrValidation
		}
	} else if strings.TrimSpace(in.MediaURL) == "" {
		return gazette_errors.ErrValidation
	}
	return nil
}

func buildMessage(senderID uuid.UUID, conv domain.Conversation, in SendMessageInput) domain.Message {
	msg := domain.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		Type:           in.Type,
		Content:        nullString(in.Content),
		MediaURL:       nullString(in.MediaURL),
		ReplyToID:      in.ReplyToID,
		CreatedAt:      time.Now(),
	}
	if conv.Kind == domain.ConversationKindDirect {
		// Direct messages address the single other participant and start
		// unread for them; the sender's copy is implicitly read.
		for _, p := range conv.Participants {
			if p.UserID != senderID {
				msg.ReceiverID = uuid.NullUUID{UUID: p.UserID, Valid: true}
				break
			}
		}
	}
	return msg
}

func messagePreview(msg domain.Message) string {
	if msg.Type != domain.MessageTypeText {
		return strings.ToLower(string(msg.Type))
	}
	const max = 80
	content := msg.Content.String
	if len(content) > max {
		return content[:max] + "…"
	}
	return content
}
