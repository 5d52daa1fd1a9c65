package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"gazette-chat/internal/domain"
	"gazette-chat/internal/tasks"
	"gazette-chat/pkg/database"
	"gazette-chat/pkg/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func newTestUser(t *testing.T, db *gorm.DB, name string) domain.User {
	t.Helper()

	u := domain.User{
		ID:           uuid.New(),
		Email:        name + "@example.com",
		DisplayName:  name,
		PasswordHash: "x",
		Role:         "user",
		CreatedAt:    time.Now(),
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func mutualFollow(t *testing.T, db *gorm.DB, a, b uuid.UUID) {
	t.Helper()

	for _, f := range []domain.Follow{
		{FollowerID: a, FolloweeID: b, CreatedAt: time.Now()},
		{FollowerID: b, FolloweeID: a, CreatedAt: time.Now()},
	} {
		require.NoError(t, db.Create(&f).Error)
	}
}

type publishedEvent struct {
	Channel string
	Payload []byte
}

// capturePublisher records publishes for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *capturePublisher) Publish(_ context.Context, channel string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Channel: channel, Payload: payload})
	return nil
}

func (p *capturePublisher) all() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]publishedEvent, len(p.events))
	copy(out, p.events)
	return out
}

// captureEnqueuer records notification tasks instead of touching Redis.
type captureEnqueuer struct {
	mu       sync.Mutex
	payloads []tasks.NotifyMessagePayload
}

func (e *captureEnqueuer) EnqueueNotifyMessage(_ context.Context, p tasks.NotifyMessagePayload) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.payloads = append(e.payloads, p)
	return nil
}

func (e *captureEnqueuer) all() []tasks.NotifyMessagePayload {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]tasks.NotifyMessagePayload, len(e.payloads))
	copy(out, e.payloads)
	return out
}

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}
