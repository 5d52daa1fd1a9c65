package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Presence tracks which users hold a live WebSocket connection. The push
// worker consults it to skip users who will receive the message in real time.
// Keys carry a TTL so a crashed node cannot leave users online forever.
type Presence struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewPresence(client *goredis.Client, ttl time.Duration) *Presence {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Presence{client: client, ttl: ttl}
}

func (p *Presence) key(userID string) string {
	return fmt.Sprintf("presence:%s", userID)
}

// SetOnline marks the user connected. Call again on heartbeat to refresh.
func (p *Presence) SetOnline(ctx context.Context, userID string) error {
	return p.client.Set(ctx, p.key(userID), 1, p.ttl).Err()
}

func (p *Presence) SetOffline(ctx context.Context, userID string) error {
	return p.client.Del(ctx, p.key(userID)).Err()
}

func (p *Presence) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := p.client.Exists(ctx, p.key(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
