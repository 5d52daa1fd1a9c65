package httpdto

import (
	"time"

	"gazette-chat/internal/domain"
)

type SendMessageRequest struct {
	Content   string `json:"content"`
	Type      string `json:"type"`
	MediaURL  string `json:"mediaUrl"`
	TempID    string `json:"tempId"`
	ReplyToID string `json:"replyToId"`
}

type SendDirectMessageRequest struct {
	RecipientID string `json:"recipientId" binding:"required"`
	Content     string `json:"content"`
	Type        string `json:"type"`
	MediaURL    string `json:"mediaUrl"`
	TempID      string `json:"tempId"`
}

type MessageDTO struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	ReceiverID     string    `json:"receiverId,omitempty"`
	Type           string    `json:"type"`
	Content        string    `json:"content,omitempty"`
	MediaURL       string    `json:"mediaUrl,omitempty"`
	Read           bool      `json:"read"`
	ReplyToID      string    `json:"replyToId,omitempty"`
	TempID         string    `json:"tempId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type ListMessagesResponse struct {
	Messages []MessageDTO `json:"messages"`
	Total    int64        `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"pageSize"`
	HasMore  bool         `json:"hasMore"`
}

type UnreadCountResponse struct {
	ConversationID string `json:"conversationId"`
	Unread         int64  `json:"unread"`
}

type ReceiptDTO struct {
	MessageID string    `json:"messageId"`
	UserID    string    `json:"userId"`
	ReadAt    time.Time `json:"readAt"`
}

func FromMessage(m domain.Message) MessageDTO {
	dto := MessageDTO{
		ID:             m.ID.String(),
		ConversationID: m.ConversationID.String(),
		SenderID:       m.SenderID.String(),
		Type:           string(m.Type),
		Read:           m.Read,
		CreatedAt:      m.CreatedAt,
	}
	if m.ReceiverID.Valid {
		dto.ReceiverID = m.ReceiverID.UUID.String()
	}
	if m.Content.Valid {
		dto.Content = m.Content.String
	}
	if m.MediaURL.Valid {
		dto.MediaURL = m.MediaURL.String
	}
	if m.ReplyToID.Valid {
		dto.ReplyToID = m.ReplyToID.UUID.String()
	}
	return dto
}

func FromMessageSlice(items []domain.Message) []MessageDTO {
	out := make([]MessageDTO, 0, len(items))
	for _, m := range items {
		out = append(out, FromMessage(m))
	}
	return out
}

func FromReceipt(r domain.MessageReadReceipt) ReceiptDTO {
	return ReceiptDTO{
		MessageID: r.MessageID.String(),
		UserID:    r.UserID.String(),
		ReadAt:    r.ReadAt,
	}
}

func FromReceiptSlice(items []domain.MessageReadReceipt) []ReceiptDTO {
	out := make([]ReceiptDTO, 0, len(items))
	for _, r := range items {
		out = append(out, FromReceipt(r))
	}
	return out
}
