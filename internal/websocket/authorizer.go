package websocket

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"gazette-chat/internal/events"
	"gazette-chat/internal/repository"
)

// ChannelAuthorizer gates channel subscriptions. Membership checks run
// against the store at subscribe time, never at delivery time.
type ChannelAuthorizer struct {
	conversationRepo repository.ConversationRepository
}

func NewChannelAuthorizer(conversationRepo repository.ConversationRepository) *ChannelAuthorizer {
	return &ChannelAuthorizer{conversationRepo: conversationRepo}
}

// CanSubscribe reports whether the user may receive events on the channel.
func (a *ChannelAuthorizer) CanSubscribe(ctx context.Context, userID string, channel string) (bool, error) {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return false, nil
	}

	// A user always owns their personal channel.
	if channel == events.UserChannel(userID) {
		return true, nil
	}

	if strings.HasPrefix(channel, events.ChannelPrefixConversation) {
		convID, err := uuid.Parse(strings.TrimPrefix(channel, events.ChannelPrefixConversation))
		if err != nil {
			return false, nil
		}
		return a.conversationRepo.IsParticipant(ctx, convID, userUUID)
	}

	return false, nil
}
