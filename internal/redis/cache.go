package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// UnreadCache holds short-lived per-user unread counts so the conversation
// list does not recount on every poll. Invalidated on any write that could
// change the count.
type UnreadCache struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewUnreadCache(client *goredis.Client, ttl time.Duration) *UnreadCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &UnreadCache{client: client, ttl: ttl}
}

func (c *UnreadCache) key(conversationID, userID string) string {
	return fmt.Sprintf("unread:%s:%s", conversationID, userID)
}

// Get returns the cached count; ok is false on a miss.
func (c *UnreadCache) Get(ctx context.Context, conversationID, userID string) (int64, bool, error) {
	val, err := c.client.Get(ctx, c.key(conversationID, userID)).Result()
	if err == goredis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return n, true, nil
}

func (c *UnreadCache) Set(ctx context.Context, conversationID, userID string, count int64) error {
	return c.client.Set(ctx, c.key(conversationID, userID), count, c.ttl).Err()
}

func (c *UnreadCache) Invalidate(ctx context.Context, conversationID, userID string) error {
	return c.client.Del(ctx, c.key(conversationID, userID)).Err()
}

// InvalidateConversation drops the cached counts for every given user of a
// conversation, typically after a new message lands.
func (c *UnreadCache) InvalidateConversation(ctx context.Context, conversationID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(userIDs))
	for _, uid := range userIDs {
		keys = append(keys, c.key(conversationID, uid))
	}
	return c.client.Del(ctx, keys...).Err()
}
