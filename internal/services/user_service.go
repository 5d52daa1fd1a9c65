package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"gazette-chat/internal/domain"
	"gazette-chat/internal/repository"
	gazette_errors "gazette-chat/pkg/errors"
)

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (domain.User, error) {
	return repository.NewUserRepository(s.db).GetByID(ctx, id)
}

func (s *UserService) Follow(ctx context.Context, followerID, followeeID uuid.UUID) error {
	if followerID == followeeID {
		return gazette_errors.ErrValidation
	}
	repo := repository.NewUserRepository(s.db)
	if _, err := repo.GetByID(ctx, followeeID); err != nil {
		return err
	}
	return repo.AddFollow(ctx, followerID, followeeID)
}

type PushSubscriptionInput struct {
	Endpoint  string
	KeyP256dh string
	KeyAuth   string
}

func (s *UserService) RegisterPushSubscription(ctx context.Context, userID uuid.UUID, in PushSubscriptionInput) (domain.PushSubscription, error) {
	if strings.TrimSpace(in.Endpoint) == "" || in.KeyP256dh == "" || in.KeyAuth == "" {
		return domain.PushSubscription{}, gazette_errors.ErrValidation
	}
	sub := domain.PushSubscription{
		ID:        uuid.New(),
		UserID:    userID,
		Endpoint:  in.Endpoint,
		KeyP256dh: in.KeyP256dh,
		KeyAuth:   in.KeyAuth,
		CreatedAt: time.Now(),
	}
	if err := repository.NewUserRepository(s.db).AddPushSubscription(ctx, &sub); err != nil {
		return domain.PushSubscription{}, err
	}
	return sub, nil
}

func (s *UserService) RevokePushSubscription(ctx context.Context, userID, subscriptionID uuid.UUID) error {
	return repository.NewUserRepository(s.db).RevokePushSubscription(ctx, userID, subscriptionID)
}
