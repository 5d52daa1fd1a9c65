package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gazette-chat/internal/domain"
	gazette_errors "gazette-chat/pkg/errors"
)

type GormMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &GormMessageRepository{db: db}
}

func (r *GormMessageRepository) Create(ctx context.Context, m *domain.Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *GormMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Message, error) {
	var m domain.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Message{}, gazette_errors.ErrNotFound
		}
		return domain.Message{}, err
	}
	return m, nil
}

func (r *GormMessageRepository) ListPage(ctx context.Context, conversationID uuid.UUID, page, limit int) ([]domain.Message, int64, error) {
	var messages []domain.Message
	var total int64

	q := r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("conversation_id = ?", conversationID)

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if offset < 0 {
		offset = 0
	}
	// created_at ascending for rendering; id breaks timestamp ties.
	if err := q.
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}

func (r *GormMessageRepository) MarkRead(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ?", id).
		Update("read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gazette_errors.ErrNotFound
	}
	return nil
}

func (r *GormMessageRepository) MarkDirectRead(ctx context.Context, conversationID, readerID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND read = ?", conversationID, readerID, false).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	err = r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id IN ?", ids).
		Update("read", true).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *GormMessageRepository) ListUnreadGlobal(ctx context.Context, conversationID uuid.UUID) ([]domain.Message, error) {
	var messages []domain.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND read = ?", conversationID, false).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

func (r *GormMessageRepository) CountUnreadDirect(ctx context.Context, conversationID, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND read = ?", conversationID, userID, false).
		Count(&count).Error
	return count, err
}

// CountUnacked counts messages from others past the user's watermark that
// the user has not acknowledged individually either.
func (r *GormMessageRepository) CountUnacked(ctx context.Context, conversationID, userID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND created_at > ?", conversationID, userID, since).
		Where("NOT EXISTS (SELECT 1 FROM message_read_receipts mrr WHERE mrr.message_id = messages.id AND mrr.user_id = ?)", userID).
		Count(&count).Error
	return count, err
}

func (r *GormMessageRepository) CreateReceipt(ctx context.Context, receipt *domain.MessageReadReceipt) (bool, error) {
	// DoNothing keeps redundant acknowledgements idempotent: at most one
	// receipt per (message, user).
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(receipt)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GormMessageRepository) GetReceipts(ctx context.Context, messageID uuid.UUID) ([]domain.MessageReadReceipt, error) {
	var receipts []domain.MessageReadReceipt
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Find(&receipts).Error
	return receipts, err
}
