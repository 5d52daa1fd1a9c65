package httpdto

import (
	"time"

	"gazette-chat/internal/domain"
)

type CreateGroupRequest struct {
	Name           string   `json:"name" binding:"required"`
	Description    string   `json:"description"`
	ImageURL       string   `json:"imageUrl"`
	ParticipantIDs []string `json:"participantIds"`
}

type UpdateGroupRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	ImageURL    *string `json:"imageUrl"`
}

type AddParticipantsRequest struct {
	UserIDs []string `json:"userIds" binding:"required"`
}

type UpdateParticipantRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

type SetMutedRequest struct {
	Muted bool `json:"muted"`
}

type SetNicknameRequest struct {
	Nickname string `json:"nickname"`
}

type ParticipantDTO struct {
	UserID     string     `json:"userId"`
	Role       string     `json:"role"`
	Nickname   string     `json:"nickname,omitempty"`
	IsMuted    bool       `json:"isMuted"`
	JoinedAt   time.Time  `json:"joinedAt"`
	LastReadAt *time.Time `json:"lastReadAt,omitempty"`
}

type ConversationDTO struct {
	ID           string           `json:"id"`
	Kind         string           `json:"kind"`
	Name         string           `json:"name,omitempty"`
	Description  string           `json:"description,omitempty"`
	ImageURL     string           `json:"imageUrl,omitempty"`
	CreatorID    string           `json:"creatorId"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
	Participants []ParticipantDTO `json:"participants,omitempty"`
}

type ListConversationsResponse struct {
	Conversations []ConversationDTO `json:"conversations"`
	Total         int64             `json:"total"`
}

type RemoveParticipantResponse struct {
	Deleted    bool             `json:"deleted"`
	NewOwnerID string           `json:"newOwnerId,omitempty"`
	Group      *ConversationDTO `json:"group,omitempty"`
}

func FromParticipant(p domain.Participant) ParticipantDTO {
	dto := ParticipantDTO{
		UserID:   p.UserID.String(),
		Role:     string(p.Role),
		IsMuted:  p.IsMuted,
		JoinedAt: p.JoinedAt,
	}
	if p.Nickname.Valid {
		dto.Nickname = p.Nickname.String
	}
	if p.LastReadAt.Valid {
		t := p.LastReadAt.Time
		dto.LastReadAt = &t
	}
	return dto
}

func FromConversation(c domain.Conversation) ConversationDTO {
	dto := ConversationDTO{
		ID:        c.ID.String(),
		Kind:      string(c.Kind),
		CreatorID: c.CreatorID.String(),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if c.Name.Valid {
		dto.Name = c.Name.String
	}
	if c.Description.Valid {
		dto.Description = c.Description.String
	}
	if c.ImageURL.Valid {
		dto.ImageURL = c.ImageURL.String
	}
	for _, p := range c.Participants {
		dto.Participants = append(dto.Participants, FromParticipant(p))
	}
	return dto
}

func FromConversationSlice(items []domain.Conversation) []ConversationDTO {
	out := make([]ConversationDTO, 0, len(items))
	for _, c := range items {
		out = append(out, FromConversation(c))
	}
	return out
}
