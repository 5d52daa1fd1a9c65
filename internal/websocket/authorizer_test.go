package websocket

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"gazette-chat/internal/domain"
	"gazette-chat/internal/events"
	"gazette-chat/internal/repository"
	"gazette-chat/pkg/database"
)

func newAuthorizerFixture(t *testing.T) (*gorm.DB, *ChannelAuthorizer) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db, NewChannelAuthorizer(repository.NewConversationRepository(db))
}

func TestCanSubscribeOwnUserChannel(t *testing.T) {
	_, auth := newAuthorizerFixture(t)
	userID := uuid.NewString()

	ok, err := auth.CanSubscribe(context.Background(), userID, events.UserChannel(userID))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = auth.CanSubscribe(context.Background(), userID, events.UserChannel(uuid.NewString()))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanSubscribeConversationChannel(t *testing.T) {
	db, auth := newAuthorizerFixture(t)

	userID := uuid.New()
	convID := uuid.New()
	require.NoError(t, db.Create(&domain.Conversation{
		ID:        convID,
		Kind:      domain.ConversationKindGroup,
		CreatorID: userID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}).Error)
	require.NoError(t, db.Create(&domain.Participant{
		ConversationID: convID,
		UserID:         userID,
		Role:           domain.ParticipantRoleMember,
		JoinedAt:       time.Now(),
	}).Error)

	ok, err := auth.CanSubscribe(context.Background(), userID.String(), events.ConversationChannel(convID.String()))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = auth.CanSubscribe(context.Background(), uuid.NewString(), events.ConversationChannel(convID.String()))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanSubscribeRejectsUnknownChannels(t *testing.T) {
	_, auth := newAuthorizerFixture(t)
	userID := uuid.NewString()

	for _, channel := range []string{
		"channel:admin:all",
		"channel:conversation:not-a-uuid",
		"",
	} {
		ok, err := auth.CanSubscribe(context.Background(), userID, channel)
		require.NoError(t, err)
		assert.False(t, ok, channel)
	}
}
