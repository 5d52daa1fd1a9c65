package domain

// ConversationKind is the explicit discriminant between direct and group
// threads. There is no string-prefix encoding in ids.
type ConversationKind string

const (
	ConversationKindDirect ConversationKind = "DIRECT"
	ConversationKindGroup  ConversationKind = "GROUP"
)

type ParticipantRole string

const (
	ParticipantRoleOwner     ParticipantRole = "OWNER"
	ParticipantRoleAdmin     ParticipantRole = "ADMIN"
	ParticipantRoleModerator ParticipantRole = "MODERATOR"
	ParticipantRoleMember    ParticipantRole = "MEMBER"
)

// CanManageGroup is the single capability predicate for admin-only group
// actions. Every authorization site goes through it.
func (r ParticipantRole) CanManageGroup() bool {
	return r == ParticipantRoleOwner || r == ParticipantRoleAdmin
}

// Valid reports whether the role is one of the assignable values.
func (r ParticipantRole) Valid() bool {
	switch r {
	case ParticipantRoleOwner, ParticipantRoleAdmin, ParticipantRoleModerator, ParticipantRoleMember:
		return true
	}
	return false
}

type MessageType string

const (
	MessageTypeText  MessageType = "TEXT"
	MessageTypeImage MessageType = "IMAGE"
	MessageTypeVoice MessageType = "VOICE"
	MessageTypeFile  MessageType = "FILE"
	MessageTypeVideo MessageType = "VIDEO"
)

// RequiresMedia reports whether messages of this type must carry a media URL.
func (t MessageType) RequiresMedia() bool {
	switch t {
	case MessageTypeImage, MessageTypeVoice, MessageTypeFile, MessageTypeVideo:
		return true
	}
	return false
}

func (t MessageType) Valid() bool {
	return t == MessageTypeText || t.RequiresMedia()
}
