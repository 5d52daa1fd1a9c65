package services

import (
	"context"
	"encoding/json"
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

func countReadEvents(pub *capturePublisher) int {
	n := 0
	for _, e := range pub.all() {
		var env events.Envelope
		if err := json.Unmarshal(e.Payload, &env); err != nil {
			continue
		}
		if env.EventType == events.EventTypeMessageRead {
			n++
		}
	}
	return n
}

func sendGroupMessage(t *testing.T, f *messageFixture, sender domain.User, convID uuid.UUID, text string) domain.Message {
	t.Helper()
	msg, err := f.svc.Send(context.Background(), sender.ID, convID, SendMessageInput{
		Content: text,
		Type:    domain.MessageTypeText,
	})
	require.NoError(t, err)
	return msg
}

func reloadMessage(t *testing.T, db *gorm.DB, id uuid.UUID) domain.Message {
	t.Helper()
	var msg domain.Message
	require.NoError(t, db.First(&msg, "id = ?", id).Error)
	return msg
}

func TestGroupReadFlipsOnLastAck(t *testing.T) {
	f := newMessageFixture(t)
	membership := newMembershipService(f.db, f.pub)

	alice := newTestUser(t, f.db, "alice")
	bob := newTestUser(t, f.db, "bob")
	carol := newTestUser(t, f.db, "carol")
	conv := createTestGroup(t, f.db, membership, alice, bob, carol)

	msg := sendGroupMessage(t, f, alice, conv.ID, "hello all")

	require.NoError(t, f.receipts.MarkMessageRead(context.Background(), msg.ID, bob.ID))
	assert.False(t, reloadMessage(t, f.db, msg.ID).Read)
	assert.Zero(t, countReadEvents(f.pub))

	require.NoError(t, f.receipts.MarkMessageRead(context.Background(), msg.ID, carol.ID))
	assert.True(t, reloadMessage(t, f.db, msg.ID).Read)
	assert.Equal(t, 1, countReadEvents(f.pub))

	// Redundant acknowledgements do not publish again.
	require.NoError(t, f.receipts.MarkMessageRead(context.Background(), msg.ID, carol.ID))
	require.NoError(t, f.receipts.MarkMessageRead(context.Background(), msg.ID, bob.ID))
	assert.Equal(t, 1, countReadEvents(f.pub))

	var receipts int64
	f.db.Model(&domain.MessageReadReceipt{}).Where("message_id = ?", msg.ID).Count(&receipts)
	assert.EqualValues(t, 2, receipts)
}

func TestSenderSelfAckIsNoop(t *testing.T) {
	f := newMessageFixture(t)
	membership := newMembershipService(f.db, f.pub)

	alice := newTestUser(t, f.db, "alice")
	bob := newTestUser(t, f.db, "bob")
	conv := createTestGroup(t, f.db, membership, alice, bob)

	msg := sendGroupMessage(t, f, alice, conv.ID, "hi")
	require.NoError(t, f.receipts.MarkMessageRead(context.Background(), msg.ID, alice.ID))

	var receipts int64
	f.db.Model(&domain.MessageReadReceipt{}).Where("message_id = ?", msg.ID).Count(&receipts)
	assert.Zero(t, receipts)
	assert.False(t, reloadMessage(t, f.db, msg.ID).Read)
}

func TestLateJoinerExcludedFromDenominator(t *testing.T) {
	f := newMessageFixture(t)
	membership := newMembershipService(f.db, f.pub)

	alice := newTestUser(t, f.db, "alice")
	bob := newTestUser(t, f.db, "bob")
	conv := createTestGroup(t, f.db, membership, alice, bob)

	msg := sendGroupMessage(t, f, alice, conv.ID, "before dave")
	time.Sleep(5 * time.Millisecond)

	dave := newTestUser(t, f.db, "dave")
	mutualFollow(t, f.db, alice.ID, dave.ID)
	_, err := membership.AddParticipants(context.Background(), conv.ID, alice.ID, []uuid.UUID{dave.ID})
	require.NoError(t, err)

	// Bob is the only eligible acknowledger; Dave joined after the message.
	require.NoError(t, f.receipts.MarkMessageRead(context.Background(), msg.ID, bob.ID))
	assert.True(t, reloadMessage(t, f.db, msg.ID).Read)
}

func TestWatermarkCompletesOlderMessages(t *testing.T) {
	f := newMessageFixture(t)
	membership := newMembershipService(f.db, f.pub)

	alice := newTestUser(t, f.db, "alice")
	bob := newTestUser(t, f.db, "bob")
	carol := newTestUser(t, f.db, "carol")
	conv := createTestGroup(t, f.db, membership, alice, bob, carol)

	m1 := sendGroupMessage(t, f, alice, conv.ID, "one")
	m2 := sendGroupMessage(t, f, alice, conv.ID, "two")

	require.NoError(t, f.receipts.MarkMessageRead(context.Background(), m1.ID, bob.ID))
	require.NoError(t, f.receipts.MarkMessageRead(context.Background(), m2.ID, bob.ID))
	assert.False(t, reloadMessage(t, f.db, m1.ID).Read)

	// Carol's bulk read advances her watermark past both messages without
	// writing receipt rows, which completes the acknowledgement sets.
	require.NoError(t, f.receipts.MarkConversationRead(context.Background(), conv.ID, carol.ID))
	assert.True(t, reloadMessage(t, f.db, m1.ID).Read)
	assert.True(t, reloadMessage(t, f.db, m2.ID).Read)

	var carolReceipts int64
	f.db.Model(&domain.MessageReadReceipt{}).Where("user_id = ?", carol.ID).Count(&carolReceipts)
	assert.Zero(t, carolReceipts)
}

func TestDirectMessageRead(t *testing.T) {
	f := newMessageFixture(t)

	alice := newTestUser(t, f.db, "alice")
	bob := newTestUser(t, f.db, "bob")

	msg, err := f.svc.SendDirect(context.Background(), alice.ID, bob.ID, SendMessageInput{Content: "hi", Type: domain.MessageTypeText})
	require.NoError(t, err)

	require.NoError(t, f.receipts.MarkMessageRead(context.Background(), msg.ID, bob.ID))
	assert.True(t, reloadMessage(t, f.db, msg.ID).Read)
	assert.Equal(t, 1, countReadEvents(f.pub))

	require.NoError(t, f.receipts.MarkMessageRead(context.Background(), msg.ID, bob.ID))
	assert.Equal(t, 1, countReadEvents(f.pub))
}

func TestMarkReadAuthorization(t *testing.T) {
	f := newMessageFixture(t)
	membership := newMembershipService(f.db, f.pub)

	alice := newTestUser(t, f.db, "alice")
	bob := newTestUser(t, f.db, "bob")
	mallory := newTestUser(t, f.db, "mallory")
	conv := createTestGroup(t, f.db, membership, alice, bob)

	msg := sendGroupMessage(t, f, alice, conv.ID, "secret")

	err := f.receipts.MarkMessageRead(context.Background(), msg.ID, mallory.ID)
	assert.ErrorIs(t, err, gazette_errors.ErrForbidden)

	err = f.receipts.MarkMessageRead(context.Background(), uuid.New(), bob.ID)
	assert.ErrorIs(t, err, gazette_errors.ErrNotFound)

	err = f.receipts.MarkConversationRead(context.Background(), conv.ID, mallory.ID)
	assert.ErrorIs(t, err, gazette_errors.ErrForbidden)

	err = f.receipts.MarkConversationRead(context.Background(), uuid.New(), bob.ID)
	assert.ErrorIs(t, err, gazette_errors.ErrNotFound)
}
