package domain

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	DisplayName  string         `gorm:"type:varchar(120);not null" json:"display_name"`
	AvatarURL    sql.NullString `gorm:"type:text" json:"avatar_url,omitempty"`
	PasswordHash string         `gorm:"type:text;not null" json:"-"`
	Role         string         `gorm:"type:varchar(16);default:'user';not null" json:"role"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// Follow is a one-directional follow edge. The messaging core only reads it
// through the mutual-follower predicate; follow CRUD lives outside this
// service.
type Follow struct {
	FollowerID uuid.UUID `gorm:"type:uuid;primaryKey" json:"follower_id"`
	FolloweeID uuid.UUID `gorm:"type:uuid;primaryKey;index:idx_follows_followee" json:"followee_id"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Follow) TableName() string { return "follows" }

// PushSubscription is a stored Web Push endpoint for a user's browser.
type PushSubscription struct {
	ID        uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID    `gorm:"type:uuid;not null;index:idx_push_subscriptions_user" json:"user_id"`
	Endpoint  string       `gorm:"type:text;not null" json:"endpoint"`
	KeyP256dh string       `gorm:"type:text;not null" json:"p256dh"`
	KeyAuth   string       `gorm:"type:text;not null" json:"auth"`
	CreatedAt time.Time    `json:"created_at"`
	RevokedAt sql.NullTime `json:"revoked_at,omitempty"`
}

func (PushSubscription) TableName() string { return "push_subscriptions" }
