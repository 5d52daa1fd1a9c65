package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"gazette-chat/internal/domain"
	"gazette-chat/internal/events"
	gazette_errors "gazette-chat/pkg/errors"
)

type messageFixture struct {
	db       *gorm.DB
	pub      *capturePublisher
	queue    *captureEnqueuer
	receipts *ReceiptService
	svc      *MessageService
}

func newMessageFixture(t *testing.T) *messageFixture {
	t.Helper()

	db := newTestDB(t)
	pub := &capturePublisher{}
	queue := &captureEnqueuer{}
	receipts := NewReceiptService(db, pub, testLogger())
	return &messageFixture{
		db:       db,
		pub:      pub,
		queue:    queue,
		receipts: receipts,
		svc:      NewMessageService(db, receipts, pub, queue, nil, testLogger()),
	}
}

func TestSendToGroup(t *testing.T) {
	f := newMessageFixture(t)
	membership := newMembershipService(f.db, f.pub)

	alice := newTestUser(t, f.db, "alice")
	bob := newTestUser(t, f.db, "bob")
	conv := createTestGroup(t, f.db, membership, alice, bob)

	before := conv.UpdatedAt
	time.Sleep(5 * time.Millisecond)

	msg, err := f.svc.Send(context.Background(), alice.ID, conv.ID, SendMessageInput{
		Content: "hello",
		Type:    domain.MessageTypeText,
		TempID:  "tmp-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content.String)
	assert.False(t, msg.Read)
	assert.False(t, msg.ReceiverID.Valid)

	// Accepting a message bumps the conversation's activity timestamp.
	var reloaded domain.Conversation
	require.NoError(t, f.db.First(&reloaded, "id = ?", conv.ID).Error)
	assert.True(t, reloaded.UpdatedAt.After(before))

	// The created event lands on the conversation channel with the temp id.
	published := f.pub.all()
	var found bool
	for _, e := range published {
		if e.Channel == events.ConversationChannel(conv.ID.String()) {
			found = true
		}
	}
	assert.True(t, found)

	// Offline recipients get a queued push task that skips the sender.
	queued := f.queue.all()
	require.Len(t, queued, 1)
	assert.Equal(t, msg.ID, queued[0].MessageID)
	assert.Equal(t, []uuid.UUID{bob.ID}, queued[0].RecipientIDs)
	assert.Equal(t, "alice", queued[0].SenderName)
}

func TestSendValidation(t *testing.T) {
	f := newMessageFixture(t)
	membership := newMembershipService(f.db, f.pub)

	alice := newTestUser(t, f.db, "alice")
	bob := newTestUser(t, f.db, "bob")
	mallory := newTestUser(t, f.db, "mallory")
	conv := createTestGroup(t, f.db, membership, alice, bob)

	// Unknown conversation before anything else.
	_, err := f.svc.Send(context.Background(), alice.ID, uuid.New(), SendMessageInput{Content: "x", Type: domain.MessageTypeText})
	assert.ErrorIs(t, err, gazette_errors.ErrNotFound)

	// Non-participant is rejected even with a valid payload.
	_, err = f.svc.Send(context.Background(), mallory.ID, conv.ID, SendMessageInput{Content: "x", Type: domain.MessageTypeText})
	assert.ErrorIs(t, err, gazette_errors.ErrForbidden)

	// Whitespace-only text.
	_, err = f.svc.Send(context.Background(), alice.ID, conv.ID, SendMessageInput{Content: "   ", Type: domain.MessageTypeText})
	assert.ErrorIs(t, err, gazette_errors.ErrValidation)

	// Media types need a media URL.
	_, err = f.svc.Send(context.Background(), alice.ID, conv.ID, SendMessageInput{Type: domain.MessageTypeImage})
	assert.ErrorIs(t, err, gazette_errors.ErrValidation)

	_, err = f.svc.Send(context.Background(), alice.ID, conv.ID, SendMessageInput{Type: "BOGUS"})
	assert.ErrorIs(t, err, gazette_errors.ErrValidation)
}

func TestSendDirectBootstrapsConversation(t *testing.T) {
	f := newMessageFixture(t)

	alice := newTestUser(t, f.db, "alice")
	bob := newTestUser(t, f.db, "bob")

	msg1, err := f.svc.SendDirect(context.Background(), alice.ID, bob.ID, SendMessageInput{Content: "hi", Type: domain.MessageTypeText})
	require.NoError(t, err)
	assert.True(t, msg1.ReceiverID.Valid)
	assert.Equal(t, bob.ID, msg1.ReceiverID.UUID)
	assert.False(t, msg1.Read)

	// The reply reuses the same conversation regardless of direction.
	msg2, err := f.svc.SendDirect(context.Background(), bob.ID, alice.ID, SendMessageInput{Content: "hey", Type: domain.MessageTypeText})
	require.NoError(t, err)
	assert.Equal(t, msg1.ConversationID, msg2.ConversationID)

	var count int64
	f.db.Model(&domain.Conversation{}).Count(&count)
	assert.EqualValues(t, 1, count)

	var conv domain.Conversation
	require.NoError(t, f.db.First(&conv, "id = ?", msg1.ConversationID).Error)
	assert.Equal(t, domain.ConversationKindDirect, conv.Kind)
	assert.Equal(t, domain.DirectPairKey(alice.ID, bob.ID), conv.DirectKey.String)
}

func TestSendDirectToSelf(t *testing.T) {
	f := newMessageFixture(t)
	alice := newTestUser(t, f.db, "alice")

	_, err := f.svc.SendDirect(context.Background(), alice.ID, alice.ID, SendMessageInput{Content: "x", Type: domain.MessageTypeText})
	assert.ErrorIs(t, err, gazette_errors.ErrValidation)
}

func TestListPagination(t *testing.T) {
	f := newMessageFixture(t)

	alice := newTestUser(t, f.db, "alice")
	bob := newTestUser(t, f.db, "bob")

	var convID uuid.UUID
	for i := 0; i < 5; i++ {
		msg, err := f.svc.SendDirect(context.Background(), alice.ID, bob.ID, SendMessageInput{
			Content: fmt.Sprintf("m%d", i),
			Type:    domain.MessageTypeText,
		})
		require.NoError(t, err)
		convID = msg.ConversationID
		time.Sleep(2 * time.Millisecond)
	}

	page1, err := f.svc.List(context.Background(), convID, bob.ID, 1, 2)
	require.NoError(t, err)
	assert.Len(t, page1.Messages, 2)
	assert.EqualValues(t, 5, page1.Total)
	assert.True(t, page1.HasMore)
	assert.Equal(t, "m0", page1.Messages[0].Content.String)
	assert.Equal(t, "m1", page1.Messages[1].Content.String)

	page3, err := f.svc.List(context.Background(), convID, bob.ID, 3, 2)
	require.NoError(t, err)
	assert.Len(t, page3.Messages, 1)
	assert.False(t, page3.HasMore)

	// Reading acknowledged the messages for Bob.
	var unread int64
	f.db.Model(&domain.Message{}).
		Where("conversation_id = ? AND sender_id = ? AND read = ?", convID, alice.ID, false).
		Count(&unread)
	assert.Zero(t, unread)

	// Non-participant cannot list.
	mallory := newTestUser(t, f.db, "mallory")
	_, err = f.svc.List(context.Background(), convID, mallory.ID, 1, 10)
	assert.ErrorIs(t, err, gazette_errors.ErrForbidden)
}

func TestUnreadCount(t *testing.T) {
	f := newMessageFixture(t)

	alice := newTestUser(t, f.db, "alice")
	bob := newTestUser(t, f.db, "bob")

	var convID uuid.UUID
	for i := 0; i < 3; i++ {
		msg, err := f.svc.SendDirect(context.Background(), alice.ID, bob.ID, SendMessageInput{
			Content: "x",
			Type:    domain.MessageTypeText,
		})
		require.NoError(t, err)
		convID = msg.ConversationID
	}

	count, err := f.svc.UnreadCount(context.Background(), convID, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	// The sender's own messages are never unread for them.
	count, err = f.svc.UnreadCount(context.Background(), convID, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, f.receipts.MarkConversationRead(context.Background(), convID, bob.ID))
	count, err = f.svc.UnreadCount(context.Background(), convID, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGroupUnreadCountHonorsReceipts(t *testing.T) {
	f := newMessageFixture(t)
	membership := newMembershipService(f.db, f.pub)

	alice := newTestUser(t, f.db, "alice")
	bob := newTestUser(t, f.db, "bob")
	carol := newTestUser(t, f.db, "carol")
	conv := createTestGroup(t, f.db, membership, alice, bob, carol)

	m1, err := f.svc.Send(context.Background(), alice.ID, conv.ID, SendMessageInput{Content: "one", Type: domain.MessageTypeText})
	require.NoError(t, err)
	_, err = f.svc.Send(context.Background(), alice.ID, conv.ID, SendMessageInput{Content: "two", Type: domain.MessageTypeText})
	require.NoError(t, err)

	count, err := f.svc.UnreadCount(context.Background(), conv.ID, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	// An individual acknowledgement counts even before any bulk read moves
	// the watermark.
	require.NoError(t, f.receipts.MarkMessageRead(context.Background(), m1.ID, bob.ID))
	count, err = f.svc.UnreadCount(context.Background(), conv.ID, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	require.NoError(t, f.receipts.MarkConversationRead(context.Background(), conv.ID, bob.ID))
	count, err = f.svc.UnreadCount(context.Background(), conv.ID, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMutedParticipantSkippedInPushFanout(t *testing.T) {
	f := newMessageFixture(t)
	membership := newMembershipService(f.db, f.pub)

	alice := newTestUser(t, f.db, "alice")
	bob := newTestUser(t, f.db, "bob")
	carol := newTestUser(t, f.db, "carol")
	conv := createTestGroup(t, f.db, membership, alice, bob, carol)

	require.NoError(t, membership.SetMuted(context.Background(), conv.ID, carol.ID, true))

	_, err := f.svc.Send(context.Background(), alice.ID, conv.ID, SendMessageInput{Content: "ping", Type: domain.MessageTypeText})
	require.NoError(t, err)

	queued := f.queue.all()
	require.Len(t, queued, 1)
	assert.Equal(t, []uuid.UUID{bob.ID}, queued[0].RecipientIDs)
}
