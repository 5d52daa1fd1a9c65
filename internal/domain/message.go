package domain

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type Message struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID      `gorm:"type:uuid;not null;index:idx_messages_history,priority:1" json:"conversation_id"`
	SenderID       uuid.UUID      `gorm:"type:uuid;not null" json:"sender_id"`
	ReceiverID     uuid.NullUUID  `gorm:"type:uuid" json:"receiver_id,omitempty"`
	Type           MessageType    `gorm:"type:varchar(16);default:'TEXT';not null" json:"type"`
	Content        sql.NullString `gorm:"type:text" json:"content,omitempty"`
	MediaURL       sql.NullString `gorm:"type:text" json:"media_url,omitempty"`
	// Read is the global flag: true once every eligible non-sender has
	// acknowledged the message.
	Read      bool          `gorm:"default:false" json:"read"`
	ReplyToID uuid.NullUUID `gorm:"type:uuid" json:"reply_to_id,omitempty"`
	CreatedAt time.Time     `gorm:"index:idx_messages_history,priority:2" json:"created_at"`

	Receipts []MessageReadReceipt `gorm:"foreignKey:MessageID" json:"receipts,omitempty"`
}

func (Message) TableName() string { return "messages" }

// MessageReadReceipt is the lazily-created per-user acknowledgement for group
// messages. At most one row per (message, user); never updated.
type MessageReadReceipt struct {
	MessageID uuid.UUID `gorm:"type:uuid;primaryKey;index:idx_receipts_message" json:"message_id"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	ReadAt    time.Time `json:"read_at"`
}

func (MessageReadReceipt) TableName() string { return "message_read_receipts" }
