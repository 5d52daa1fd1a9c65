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

type GormUserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) Create(ctx context.Context, u *domain.User) error {
	res := r.db.WithContext(ctx).Create(u)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return gazette_errors.ErrConflict
		}
		return res.Error
	}
	return nil
}

func (r *GormUserRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, gazette_errors.ErrNotFound
		}
		return domain.User{}, err
	}
	return u, nil
}

func (r *GormUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, gazette_errors.ErrNotFound
		}
		return domain.User{}, err
	}
	return u, nil
}

func (r *GormUserRepository) AddFollow(ctx context.Context, followerID, followeeID uuid.UUID) error {
	f := domain.Follow{FollowerID: followerID, FolloweeID: followeeID, CreatedAt: time.Now()}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&f).Error
}

func (r *GormUserRepository) IsMutualFollow(ctx context.Context, a, b uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Follow{}).
		Where("(follower_id = ? AND followee_id = ?) OR (follower_id = ? AND followee_id = ?)", a, b, b, a).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count == 2, nil
}

func (r *GormUserRepository) AddPushSubscription(ctx context.Context, s *domain.PushSubscription) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *GormUserRepository) GetPushSubscriptions(ctx context.Context, userID uuid.UUID) ([]domain.PushSubscription, error) {
	var subs []domain.PushSubscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Find(&subs).Error
	return subs, err
}

func (r *GormUserRepository) RevokePushSubscription(ctx context.Context, userID, subscriptionID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&domain.PushSubscription{}).
		Where("id = ? AND user_id = ? AND revoked_at IS NULL", subscriptionID, userID).
		Update("revoked_at", time.Now())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gazette_errors.ErrNotFound
	}
	return nil
}
