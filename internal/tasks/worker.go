package tasks

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	"gazette-chat/internal/push"
	"gazette-chat/internal/redis"
	"gazette-chat/internal/repository"
	"gazette-chat/pkg/logger"
)

// Worker consumes queued notification tasks. Push failures are logged and
// dropped once the queue stops retrying; they never touch the store.
type Worker struct {
	server   *asynq.Server
	users    repository.UserRepository
	presence *redis.Presence
	notifier *push.Notifier
	log      *logger.Logger
}

func NewWorker(redisAddr, redisPassword string, redisDB int, users repository.UserRepository, presence *redis.Presence, notifier *push.Notifier, log *logger.Logger) *Worker {
	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr, Password: redisPassword, DB: redisDB},
		asynq.Config{
			Concurrency: 10,
			Queues:      map[string]int{QueueNotifications: 1},
		},
	)
	return &Worker{
		server:   server,
		users:    users,
		presence: presence,
		notifier: notifier,
		log:      log,
	}
}

// Run blocks serving tasks until Shutdown is called.
func (w *Worker) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeNotifyMessage, w.handleNotifyMessage)
	return w.server.Run(mux)
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func (w *Worker) handleNotifyMessage(ctx context.Context, t *asynq.Task) error {
	var p NotifyMessagePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}

	for _, recipientID := range p.RecipientIDs {
		if recipientID == p.SenderID {
			continue
		}
		// A live socket already delivered the message in real time.
		if w.presence != nil {
			online, err := w.presence.IsOnline(ctx, recipientID.String())
			if err == nil && online {
				continue
			}
		}

		subs, err := w.users.GetPushSubscriptions(ctx, recipientID)
		if err != nil {
			if w.log != nil {
				w.log.Warnf("push worker: subscriptions for %s: %v", recipientID, err)
			}
			continue
		}
		for _, sub := range subs {
			w.notifier.Send(sub, push.Payload{
				Title:          p.SenderName,
				Body:           p.Preview,
				ConversationID: p.ConversationID.String(),
			})
		}
	}
	return nil
}
