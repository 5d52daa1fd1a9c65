package services

import (
	"context"
	"encoding/json"

	"gazette-chat/internal/events"
	"gazette-chat/pkg/logger"
)

// notify publishes an envelope to the conversation channel. Delivery is
// best-effort: a failure is logged and never propagated, so a committed
// store mutation can never be undone by a notification problem.
func notify(ctx context.Context, publisher events.Publisher, log *logger.Logger, channel string, env events.Envelope) {
	if publisher == nil {
		return
	}
	payload, err := json.Marshal(env)
	if err != nil {
		logf(log, "notify: marshal %s: %v", env.EventType, err)
		return
	}
	if err := publisher.Publish(ctx, channel, payload); err != nil {
		logf(log, "notify: publish %s to %s: %v", env.EventType, channel, err)
	}
}

func logf(log *logger.Logger, template string, args ...interface{}) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	if log != nil {
		log.Errorf(template, args...)
	}
}
