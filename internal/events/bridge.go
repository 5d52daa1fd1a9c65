package events

import (
	"context"
)

// Bridge fans events from the pub/sub backbone out to in-process sinks
// (WebSocket hub, SSE broker). One bridge per process.
type Bridge struct {
	subscriber Subscriber
	sinks      []Sink
}

func NewBridge(subscriber Subscriber, sinks ...Sink) *Bridge {
	return &Bridge{subscriber: subscriber, sinks: sinks}
}

// Run blocks until ctx is cancelled or the subscription fails.
func (b *Bridge) Run(ctx context.Context, patterns []string) error {
	return b.subscriber.Subscribe(ctx, patterns, func(channel string, payload []byte) {
		for _, sink := range b.sinks {
			sink.Deliver(channel, payload)
		}
	})
}
