package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"gazette-chat/internal/domain"
	"gazette-chat/internal/events"
	"gazette-chat/internal/repository"
	gazette_errors "gazette-chat/pkg/errors"
	"gazette-chat/pkg/logger"
)

// ReceiptService tracks acknowledgements. Two regimes share one rule: a
// message is globally read once every eligible participant other than the
// sender has acknowledged it. Direct chats have a single receiver, so the
// flag flips on their first acknowledgement; groups combine lazy per-message
// receipt rows with the per-participant last_read_at watermark.
type ReceiptService struct {
	db        *gorm.DB
	publisher events.Publisher
	log       *logger.Logger
}

func NewReceiptService(db *gorm.DB, publisher events.Publisher, log *logger.Logger) *ReceiptService {
	return &ReceiptService{db: db, publisher: publisher, log: log}
}

// MarkMessageRead records userID's acknowledgement of a single message.
// Redundant acknowledgements are no-ops.
func (s *ReceiptService) MarkMessageRead(ctx context.Context, messageID, userID uuid.UUID) error {
	msgRepo := repository.NewMessageRepository(s.db)
	convRepo := repository.NewConversationRepository(s.db)

	msg, err := msgRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}

	conv, err := convRepo.GetByID(ctx, msg.ConversationID)
	if err != nil {
		return err
	}
	if _, err := convRepo.GetParticipant(ctx, msg.ConversationID, userID); err != nil {
		// Non-participants hit a permanent authorization failure; the client
		// is expected to remember it and stop retrying.
		return gazette_errors.ErrForbidden
	}
	if msg.SenderID == userID {
		// The sender's own copy is implicitly read.
		return nil
	}

	flipped := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txMsg := repository.NewMessageRepository(tx)
		txConv := repository.NewConversationRepository(tx)

		if conv.Kind == domain.ConversationKindDirect {
			if !msg.Read {
				if err := txMsg.MarkRead(ctx, messageID); err != nil {
					return err
				}
				flipped = true
			}
			return nil
		}

		receipt := domain.MessageReadReceipt{
			MessageID: messageID,
			UserID:    userID,
			ReadAt:    time.Now(),
		}
		if _, err := txMsg.CreateReceipt(ctx, &receipt); err != nil {
			return err
		}

		done, err := s.recomputeRead(ctx, txMsg, txConv, msg)
		if err != nil {
			return err
		}
		flipped = done
		return nil
	})
	if err != nil {
		return err
	}

	if flipped {
		if env, err := events.NewEnvelope(events.EventTypeMessageRead, events.AggregateTypeMessage, messageID.String(), "", msg.ConversationID); err == nil {
			notify(ctx, s.publisher, s.log, events.ConversationChannel(msg.ConversationID.String()), env)
		}
	}
	return nil
}

// MarkConversationRead is the bulk form: direct chats flip every unread
// message from the other party; groups advance the watermark without writing
// historical receipt rows.
func (s *ReceiptService) MarkConversationRead(ctx context.Context, conversationID, userID uuid.UUID) error {
	convRepo := repository.NewConversationRepository(s.db)

	conv, err := convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if _, err := convRepo.GetParticipant(ctx, conversationID, userID); err != nil {
		return gazette_errors.ErrForbidden
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txMsg := repository.NewMessageRepository(tx)
		txConv := repository.NewConversationRepository(tx)

		if conv.Kind == domain.ConversationKindDirect {
			_, err := txMsg.MarkDirectRead(ctx, conversationID, userID)
			return err
		}

		now := time.Now()
		if err := txConv.AdvanceLastRead(ctx, conversationID, userID, now); err != nil {
			return err
		}

		// The advanced watermark may complete the acknowledgement set of
		// messages that were one reader short.
		unread, err := txMsg.ListUnreadGlobal(ctx, conversationID)
		if err != nil {
			return err
		}
		for _, m := range unread {
			if _, err := s.recomputeRead(ctx, txMsg, txConv, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if env, err := events.NewEnvelope(events.EventTypeConversationRead, events.AggregateTypeConversation, conversationID.String(), "", userID); err == nil {
		notify(ctx, s.publisher, s.log, events.ConversationChannel(conversationID.String()), env)
	}
	return nil
}

// recomputeRead re-evaluates a group message's global read flag. Eligible
// acknowledgers are participants other than the sender who joined no later
// than the message; later joiners are excluded from the denominator. An
// acknowledgement is a receipt row or a watermark at/after the message time.
func (s *ReceiptService) recomputeRead(ctx context.Context, msgRepo repository.MessageRepository, convRepo repository.ConversationRepository, msg domain.Message) (bool, error) {
	if msg.Read {
		return false, nil
	}

	participants, err := convRepo.GetParticipants(ctx, msg.ConversationID)
	if err != nil {
		return false, err
	}
	receipts, err := msgRepo.GetReceipts(ctx, msg.ID)
	if err != nil {
		return false, err
	}

	acked := make(map[uuid.UUID]struct{}, len(receipts))
	for _, r := range receipts {
		acked[r.UserID] = struct{}{}
	}

	for _, p := range participants {
		if p.UserID == msg.SenderID {
			continue
		}
		if p.JoinedAt.After(msg.CreatedAt) {
			continue
		}
		if _, ok := acked[p.UserID]; ok {
			continue
		}
		if p.LastReadAt.Valid && !p.LastReadAt.Time.Before(msg.CreatedAt) {
			continue
		}
		// At least one eligible participant has not acknowledged yet.
		return false, nil
	}

	if err := msgRepo.MarkRead(ctx, msg.ID); err != nil {
		return false, err
	}
	return true, nil
}
