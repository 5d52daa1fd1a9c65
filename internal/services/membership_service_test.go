package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"gazette-chat/internal/domain"
	gazette_errors "gazette-chat/pkg/errors"
)

func newMembershipService(db *gorm.DB, pub *capturePublisher) *MembershipService {
	return NewMembershipService(db, pub, testLogger())
}

func createTestGroup(t *testing.T, db *gorm.DB, svc *MembershipService, creator domain.User, members ...domain.User) domain.Conversation {
	t.Helper()

	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		mutualFollow(t, db, creator.ID, m.ID)
		ids = append(ids, m.ID)
	}
	conv, err := svc.CreateGroup(context.Background(), creator.ID, CreateGroupInput{
		Name:           "book club",
		ParticipantIDs: ids,
	})
	require.NoError(t, err)
	return conv
}

func setJoinedAt(t *testing.T, db *gorm.DB, convID, userID uuid.UUID, at time.Time) {
	t.Helper()
	require.NoError(t, db.Model(&domain.Participant{}).
		Where("conversation_id = ? AND user_id = ?", convID, userID).
		Update("joined_at", at).Error)
}

func setRole(t *testing.T, db *gorm.DB, convID, userID uuid.UUID, role domain.ParticipantRole) {
	t.Helper()
	require.NoError(t, db.Model(&domain.Participant{}).
		Where("conversation_id = ? AND user_id = ?", convID, userID).
		Update("role", role).Error)
}

func TestCreateGroup(t *testing.T) {
	db := newTestDB(t)
	pub := &capturePublisher{}
	svc := newMembershipService(db, pub)

	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")
	carol := newTestUser(t, db, "carol")

	conv := createTestGroup(t, db, svc, alice, bob, carol)

	assert.Equal(t, domain.ConversationKindGroup, conv.Kind)
	assert.Equal(t, "book club", conv.Name.String)
	assert.Len(t, conv.Participants, 3)

	roles := map[uuid.UUID]domain.ParticipantRole{}
	for _, p := range conv.Participants {
		roles[p.UserID] = p.Role
	}
	assert.Equal(t, domain.ParticipantRoleOwner, roles[alice.ID])
	assert.Equal(t, domain.ParticipantRoleMember, roles[bob.ID])
	assert.Equal(t, domain.ParticipantRoleMember, roles[carol.ID])

	require.NotEmpty(t, pub.all())
}

func TestCreateGroupRequiresMutualFollow(t *testing.T) {
	db := newTestDB(t)
	svc := newMembershipService(db, &capturePublisher{})

	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")

	// Bob follows Alice but not the other way round.
	require.NoError(t, db.Create(&domain.Follow{FollowerID: bob.ID, FolloweeID: alice.ID, CreatedAt: time.Now()}).Error)

	_, err := svc.CreateGroup(context.Background(), alice.ID, CreateGroupInput{
		Name:           "g",
		ParticipantIDs: []uuid.UUID{bob.ID},
	})
	assert.ErrorIs(t, err, gazette_errors.ErrForbidden)
}

func TestCreateGroupValidation(t *testing.T) {
	db := newTestDB(t)
	svc := newMembershipService(db, &capturePublisher{})
	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")
	mutualFollow(t, db, alice.ID, bob.ID)

	_, err := svc.CreateGroup(context.Background(), alice.ID, CreateGroupInput{Name: "  ", ParticipantIDs: []uuid.UUID{bob.ID}})
	assert.ErrorIs(t, err, gazette_errors.ErrValidation)

	_, err = svc.CreateGroup(context.Background(), alice.ID, CreateGroupInput{Name: "g"})
	assert.ErrorIs(t, err, gazette_errors.ErrValidation)

	// Only the creator in the list leaves nothing to add.
	_, err = svc.CreateGroup(context.Background(), alice.ID, CreateGroupInput{Name: "g", ParticipantIDs: []uuid.UUID{alice.ID}})
	assert.ErrorIs(t, err, gazette_errors.ErrValidation)
}

func TestAddParticipants(t *testing.T) {
	db := newTestDB(t)
	svc := newMembershipService(db, &capturePublisher{})

	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")
	carol := newTestUser(t, db, "carol")
	conv := createTestGroup(t, db, svc, alice, bob)

	// A plain member may not add people.
	_, err := svc.AddParticipants(context.Background(), conv.ID, bob.ID, []uuid.UUID{carol.ID})
	assert.ErrorIs(t, err, gazette_errors.ErrForbidden)

	// The owner may; ids already present are skipped.
	updated, err := svc.AddParticipants(context.Background(), conv.ID, alice.ID, []uuid.UUID{carol.ID, bob.ID})
	require.NoError(t, err)
	assert.Len(t, updated.Participants, 3)

	// Nothing but already-present ids is a validation error.
	_, err = svc.AddParticipants(context.Background(), conv.ID, alice.ID, []uuid.UUID{bob.ID})
	assert.ErrorIs(t, err, gazette_errors.ErrValidation)
}

func TestRemoveParticipantPermissions(t *testing.T) {
	db := newTestDB(t)
	svc := newMembershipService(db, &capturePublisher{})

	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")
	carol := newTestUser(t, db, "carol")
	conv := createTestGroup(t, db, svc, alice, bob, carol)

	// A member cannot remove another member.
	_, err := svc.RemoveParticipant(context.Background(), conv.ID, bob.ID, carol.ID)
	assert.ErrorIs(t, err, gazette_errors.ErrForbidden)

	// But can always leave.
	res, err := svc.RemoveParticipant(context.Background(), conv.ID, bob.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, res.Deleted)
	assert.Len(t, res.Conversation.Participants, 2)
}

func TestOwnerLeavePromotesFirstAdmin(t *testing.T) {
	db := newTestDB(t)
	svc := newMembershipService(db, &capturePublisher{})

	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")
	carol := newTestUser(t, db, "carol")
	dave := newTestUser(t, db, "dave")
	conv := createTestGroup(t, db, svc, alice, bob, carol, dave)

	base := time.Now().Add(-time.Hour)
	setJoinedAt(t, db, conv.ID, alice.ID, base)
	setJoinedAt(t, db, conv.ID, bob.ID, base.Add(time.Minute))
	setJoinedAt(t, db, conv.ID, carol.ID, base.Add(2*time.Minute))
	setJoinedAt(t, db, conv.ID, dave.ID, base.Add(3*time.Minute))
	// Carol joined after Bob but both are admins; Carol earlier in admin
	// order only if she joined first, which she did not.
	setRole(t, db, conv.ID, bob.ID, domain.ParticipantRoleAdmin)
	setRole(t, db, conv.ID, carol.ID, domain.ParticipantRoleAdmin)

	res, err := svc.RemoveParticipant(context.Background(), conv.ID, alice.ID, alice.ID)
	require.NoError(t, err)
	require.True(t, res.NewOwnerID.Valid)
	assert.Equal(t, bob.ID, res.NewOwnerID.UUID)

	p, err := NewMembershipService(db, &capturePublisher{}, testLogger()).GetConversation(context.Background(), conv.ID, bob.ID)
	require.NoError(t, err)
	for _, participant := range p.Participants {
		if participant.UserID == bob.ID {
			assert.Equal(t, domain.ParticipantRoleOwner, participant.Role)
		}
	}
}

func TestOwnerLeaveWithoutAdminsPromotesOldestMember(t *testing.T) {
	db := newTestDB(t)
	svc := newMembershipService(db, &capturePublisher{})

	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")
	carol := newTestUser(t, db, "carol")
	conv := createTestGroup(t, db, svc, alice, bob, carol)

	base := time.Now().Add(-time.Hour)
	setJoinedAt(t, db, conv.ID, alice.ID, base)
	setJoinedAt(t, db, conv.ID, carol.ID, base.Add(time.Minute))
	setJoinedAt(t, db, conv.ID, bob.ID, base.Add(2*time.Minute))

	res, err := svc.RemoveParticipant(context.Background(), conv.ID, alice.ID, alice.ID)
	require.NoError(t, err)
	require.True(t, res.NewOwnerID.Valid)
	assert.Equal(t, carol.ID, res.NewOwnerID.UUID)
}

func TestLastMemberLeaveDissolvesGroup(t *testing.T) {
	db := newTestDB(t)
	pub := &capturePublisher{}
	svc := newMembershipService(db, pub)

	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")
	conv := createTestGroup(t, db, svc, alice, bob)

	msg := domain.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       alice.ID,
		Type:           domain.MessageTypeText,
		CreatedAt:      time.Now(),
	}
	require.NoError(t, db.Create(&msg).Error)

	_, err := svc.RemoveParticipant(context.Background(), conv.ID, bob.ID, bob.ID)
	require.NoError(t, err)

	res, err := svc.RemoveParticipant(context.Background(), conv.ID, alice.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, res.Deleted)

	var convCount, msgCount, partCount int64
	db.Model(&domain.Conversation{}).Where("id = ?", conv.ID).Count(&convCount)
	db.Model(&domain.Message{}).Where("conversation_id = ?", conv.ID).Count(&msgCount)
	db.Model(&domain.Participant{}).Where("conversation_id = ?", conv.ID).Count(&partCount)
	assert.Zero(t, convCount)
	assert.Zero(t, msgCount)
	assert.Zero(t, partCount)
}

func TestSetParticipantRole(t *testing.T) {
	db := newTestDB(t)
	svc := newMembershipService(db, &capturePublisher{})

	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")
	carol := newTestUser(t, db, "carol")
	conv := createTestGroup(t, db, svc, alice, bob, carol)

	// Member cannot grant roles.
	err := svc.SetParticipantRole(context.Background(), conv.ID, bob.ID, carol.ID, domain.ParticipantRoleModerator)
	assert.ErrorIs(t, err, gazette_errors.ErrForbidden)

	// Ownership is transferred by succession, never assigned.
	err = svc.SetParticipantRole(context.Background(), conv.ID, alice.ID, bob.ID, domain.ParticipantRoleOwner)
	assert.ErrorIs(t, err, gazette_errors.ErrValidation)

	require.NoError(t, svc.SetParticipantRole(context.Background(), conv.ID, alice.ID, bob.ID, domain.ParticipantRoleAdmin))

	conv2, err := svc.GetConversation(context.Background(), conv.ID, alice.ID)
	require.NoError(t, err)
	for _, p := range conv2.Participants {
		if p.UserID == bob.ID {
			assert.Equal(t, domain.ParticipantRoleAdmin, p.Role)
			assert.True(t, p.Role.CanManageGroup())
		}
	}
}

func TestUpdateGroupMetadata(t *testing.T) {
	db := newTestDB(t)
	svc := newMembershipService(db, &capturePublisher{})

	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")
	conv := createTestGroup(t, db, svc, alice, bob)

	_, err := svc.UpdateGroupMetadata(context.Background(), conv.ID, bob.ID, UpdateGroupMetadataInput{Name: strPtr("x")})
	assert.ErrorIs(t, err, gazette_errors.ErrForbidden)

	_, err = svc.UpdateGroupMetadata(context.Background(), conv.ID, alice.ID, UpdateGroupMetadataInput{})
	assert.ErrorIs(t, err, gazette_errors.ErrValidation)

	_, err = svc.UpdateGroupMetadata(context.Background(), conv.ID, alice.ID, UpdateGroupMetadataInput{Name: strPtr("   ")})
	assert.ErrorIs(t, err, gazette_errors.ErrValidation)

	updated, err := svc.UpdateGroupMetadata(context.Background(), conv.ID, alice.ID, UpdateGroupMetadataInput{
		Name:        strPtr("renamed"),
		Description: strPtr("new blurb"),
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name.String)
	assert.Equal(t, "new blurb", updated.Description.String)
}

func TestGetConversationRequiresMembership(t *testing.T) {
	db := newTestDB(t)
	svc := newMembershipService(db, &capturePublisher{})

	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")
	mallory := newTestUser(t, db, "mallory")
	conv := createTestGroup(t, db, svc, alice, bob)

	_, err := svc.GetConversation(context.Background(), conv.ID, mallory.ID)
	assert.ErrorIs(t, err, gazette_errors.ErrForbidden)

	_, err = svc.GetConversation(context.Background(), uuid.New(), alice.ID)
	assert.ErrorIs(t, err, gazette_errors.ErrNotFound)
}

func strPtr(s string) *string { return &s }
