package domain

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Kind        ConversationKind `gorm:"type:varchar(16);not null;index" json:"kind"`
	Name        sql.NullString   `gorm:"type:text" json:"name,omitempty"`
	Description sql.NullString   `gorm:"type:text" json:"description,omitempty"`
	ImageURL    sql.NullString   `gorm:"type:text" json:"image_url,omitempty"`
	// DirectKey is the sorted participant pair for direct conversations; its
	// unique index collapses concurrent first-senders onto one row. Empty for
	// groups (NULL so the unique index ignores them).
	DirectKey sql.NullString `gorm:"type:varchar(80);uniqueIndex" json:"-"`
	CreatorID uuid.UUID      `gorm:"type:uuid;not null" json:"creator_id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `gorm:"index:idx_conversations_updated,sort:desc" json:"updated_at"`

	Participants []Participant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
}

func (Conversation) TableName() string { return "conversations" }

// IsGroup mirrors the Kind discriminant for JSON consumers.
func (c Conversation) IsGroup() bool { return c.Kind == ConversationKindGroup }

// DirectPairKey builds the deterministic lookup key for a two-party
// conversation, independent of argument order.
func DirectPairKey(a, b uuid.UUID) string {
	ids := []string{a.String(), b.String()}
	if strings.Compare(ids[0], ids[1]) > 0 {
		ids[0], ids[1] = ids[1], ids[0]
	}
	return ids[0] + ":" + ids[1]
}

type Participant struct {
	ConversationID uuid.UUID       `gorm:"type:uuid;primaryKey" json:"conversation_id"`
	UserID         uuid.UUID       `gorm:"type:uuid;primaryKey;index:idx_participants_user" json:"user_id"`
	Role           ParticipantRole `gorm:"type:varchar(16);default:'MEMBER';not null" json:"role"`
	Nickname       sql.NullString  `gorm:"type:text" json:"nickname,omitempty"`
	IsMuted        bool            `gorm:"default:false" json:"is_muted"`
	JoinedAt       time.Time       `json:"joined_at"`
	// LastReadAt is the group-chat read watermark: everything at or before it
	// counts as acknowledged by this participant.
	LastReadAt sql.NullTime `json:"last_read_at,omitempty"`

	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Participant) TableName() string { return "conversation_participants" }

// IsAdmin is the denormalized flag older clients still read.
func (p Participant) IsAdmin() bool { return p.Role.CanManageGroup() }
