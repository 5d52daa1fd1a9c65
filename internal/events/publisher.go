package events

import "context"

// Publisher pushes serialized envelopes to a named channel. Publishing is
// best-effort: callers log failures and never roll back store mutations.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Subscriber consumes channels matching the given patterns until ctx ends.
type Subscriber interface {
	Subscribe(ctx context.Context, patterns []string, handler func(channel string, payload []byte)) error
}

// Sink is anything that can take a delivered event for a channel. The
// WebSocket hub and the SSE broker both implement it.
type Sink interface {
	Deliver(channel string, payload []byte)
}
