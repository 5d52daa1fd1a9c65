package events

// Event types follow the domain.action format.

// Message events
const (
	EventTypeMessageCreated = "message.created"
	EventTypeMessageRead    = "message.read"
	EventTypeMessageStatus  = "message.status"
)

// Conversation events
const (
	EventTypeConversationCreated = "conversation.created"
	EventTypeConversationUpdated = "conversation.updated"
	EventTypeConversationDeleted = "conversation.deleted"
	EventTypeConversationRead    = "conversation.read"
)

// Participant events
const (
	EventTypeParticipantAdded       = "participant.added"
	EventTypeParticipantRemoved     = "participant.removed"
	EventTypeParticipantLeft        = "participant.left"
	EventTypeParticipantRoleChanged = "participant.role_changed"
	EventTypeOwnershipTransferred   = "participant.ownership_transferred"
)

// Aggregate type constants
const (
	AggregateTypeMessage      = "message"
	AggregateTypeConversation = "conversation"
	AggregateTypeParticipant  = "participant"
)

// Redis channel prefixes
const (
	ChannelPrefixConversation = "channel:conversation:"
	ChannelPrefixUser         = "channel:user:"
)

// ConversationChannel returns the pub/sub channel for a conversation id.
func ConversationChannel(conversationID string) string {
	return ChannelPrefixConversation + conversationID
}

// UserChannel returns the pub/sub channel addressing a single user.
func UserChannel(userID string) string {
	return ChannelPrefixUser + userID
}
