package tasks

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/google/uuid"
)

const (
	// TypeNotifyMessage fans a new message out to the Web Push subscriptions
	// of participants without a live socket.
	TypeNotifyMessage = "push:notify_message"

	QueueNotifications = "notifications"
)

// NotifyMessagePayload is the task body for TypeNotifyMessage.
type NotifyMessagePayload struct {
	MessageID      uuid.UUID   `json:"message_id"`
	ConversationID uuid.UUID   `json:"conversation_id"`
	SenderID       uuid.UUID   `json:"sender_id"`
	SenderName     string      `json:"sender_name"`
	Preview        string      `json:"preview"`
	RecipientIDs   []uuid.UUID `json:"recipient_ids"`
}

// Enqueuer abstracts the task queue so services stay testable without Redis.
type Enqueuer interface {
	EnqueueNotifyMessage(ctx context.Context, p NotifyMessagePayload) error
}

// AsynqEnqueuer implements Enqueuer on top of an asynq client.
type AsynqEnqueuer struct {
	client *asynq.Client
}

func NewAsynqEnqueuer(redisAddr, redisPassword string, redisDB int) *AsynqEnqueuer {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})
	return &AsynqEnqueuer{client: client}
}

func (e *AsynqEnqueuer) EnqueueNotifyMessage(ctx context.Context, p NotifyMessagePayload) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeNotifyMessage, payload)
	_, err = e.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueNotifications),
		asynq.MaxRetry(3),
	)
	return err
}

func (e *AsynqEnqueuer) Close() error {
	return e.client.Close()
}
