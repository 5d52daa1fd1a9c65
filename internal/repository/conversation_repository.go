package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"gazette-chat/internal/domain"
	gazette_errors "gazette-chat/pkg/errors"
)

type GormConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &GormConversationRepository{db: db}
}

func (r *GormConversationRepository) Create(ctx context.Context, c *domain.Conversation) error {
	res := r.db.WithContext(ctx).Create(c)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return gazette_errors.ErrConflict
		}
		return res.Error
	}
	return nil
}

func (r *GormConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Conversation, error) {
	var c domain.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Conversation{}, gazette_errors.ErrNotFound
		}
		return domain.Conversation{}, err
	}
	return c, nil
}

func (r *GormConversationRepository) GetByDirectKey(ctx context.Context, key string) (domain.Conversation, error) {
	var c domain.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("direct_key = ?", key).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Conversation{}, gazette_errors.ErrNotFound
		}
		return domain.Conversation{}, err
	}
	return c, nil
}

func (r *GormConversationRepository) GetUserConversations(ctx context.Context, userID uuid.UUID, page, limit int) ([]domain.Conversation, int64, error) {
	var conversations []domain.Conversation
	var total int64

	subQuery := r.db.Model(&domain.Participant{}).
		Select("conversation_id").
		Where("user_id = ?", userID)

	q := r.db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id IN (?)", subQuery)

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if offset < 0 {
		offset = 0
	}
	if err := q.
		Preload("Participants").
		Order("updated_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&conversations).Error; err != nil {
		return nil, 0, err
	}

	return conversations, total, nil
}

func (r *GormConversationRepository) UpdateMetadata(ctx context.Context, id uuid.UUID, name, description, imageURL *string) error {
	updates := map[string]interface{}{"updated_at": time.Now()}
	if name != nil {
		updates["name"] = *name
	}
	if description != nil {
		updates["description"] = *description
	}
	if imageURL != nil {
		updates["image_url"] = *imageURL
	}

	res := r.db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gazette_errors.ErrNotFound
	}
	return nil
}

func (r *GormConversationRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", id).
		Update("updated_at", at).Error
}

func (r *GormConversationRepository) DeleteCascade(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)

	msgIDs := db.Model(&domain.Message{}).
		Select("id").
		Where("conversation_id = ?", id)
	if err := db.Where("message_id IN (?)", msgIDs).Delete(&domain.MessageReadReceipt{}).Error; err != nil {
		return err
	}
	if err := db.Where("conversation_id = ?", id).Delete(&domain.Message{}).Error; err != nil {
		return err
	}
	if err := db.Where("conversation_id = ?", id).Delete(&domain.Participant{}).Error; err != nil {
		return err
	}

	res := db.Delete(&domain.Conversation{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gazette_errors.ErrNotFound
	}
	return nil
}

func (r *GormConversationRepository) AddParticipant(ctx context.Context, p *domain.Participant) error {
	res := r.db.WithContext(ctx).Create(p)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return gazette_errors.ErrConflict
		}
		return res.Error
	}
	return nil
}

func (r *GormConversationRepository) RemoveParticipant(ctx context.Context, conversationID, userID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Delete(&domain.Participant{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gazette_errors.ErrNotFound
	}
	return nil
}

func (r *GormConversationRepository) GetParticipant(ctx context.Context, conversationID, userID uuid.UUID) (domain.Participant, error) {
	var p domain.Participant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Participant{}, gazette_errors.ErrNotFound
		}
		return domain.Participant{}, err
	}
	return p, nil
}

func (r *GormConversationRepository) GetParticipants(ctx context.Context, conversationID uuid.UUID) ([]domain.Participant, error) {
	var participants []domain.Participant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("joined_at ASC, user_id ASC").
		Find(&participants).Error
	return participants, err
}

func (r *GormConversationRepository) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *GormConversationRepository) CountParticipants(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Participant{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error
	return count, err
}

func (r *GormConversationRepository) UpdateParticipantRole(ctx context.Context, conversationID, userID uuid.UUID, role domain.ParticipantRole) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("role", role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gazette_errors.ErrNotFound
	}
	return nil
}

func (r *GormConversationRepository) SetParticipantMuted(ctx context.Context, conversationID, userID uuid.UUID, muted bool) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("is_muted", muted)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gazette_errors.ErrNotFound
	}
	return nil
}

func (r *GormConversationRepository) SetParticipantNickname(ctx context.Context, conversationID, userID uuid.UUID, nickname string) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("nickname", nickname)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gazette_errors.ErrNotFound
	}
	return nil
}

func (r *GormConversationRepository) AdvanceLastRead(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) error {
	// The watermark only moves forward; a stale bulk-read never rewinds it.
	res := r.db.WithContext(ctx).
		Model(&domain.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Where("last_read_at IS NULL OR last_read_at < ?", at).
		Update("last_read_at", at)
	return res.Error
}
