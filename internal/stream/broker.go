package stream

import (
	"context"
	"sync"
	"time"
)

// Event is one buffered frame on a topic. Seq is per-topic monotonic and
// lets a polling client resume from its last observed position.
type Event struct {
	Seq     uint64 `json:"seq"`
	Payload []byte `json:"payload"`
}

type topic struct {
	mu       sync.Mutex
	events   []Event
	nextSeq  uint64
	capacity int
	lastUsed time.Time
	waiters  []chan struct{}
}

// Broker buffers delivery events per topic for clients that cannot hold a
// socket open. Buffers are bounded rings; a client that falls behind the
// oldest retained event must refetch state through the regular read API.
type Broker struct {
	mu       sync.RWMutex
	topics   map[string]*topic
	capacity int
	ttl      time.Duration
}

func NewBroker(capacity int, ttl time.Duration) *Broker {
	if capacity <= 0 {
		capacity = 256
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Broker{
		topics:   make(map[string]*topic),
		capacity: capacity,
		ttl:      ttl,
	}
}

// Deliver appends the payload to the topic's ring and wakes blocked polls.
func (b *Broker) Deliver(channel string, payload []byte) {
	t := b.getOrCreate(channel)

	t.mu.Lock()
	t.events = append(t.events, Event{Seq: t.nextSeq, Payload: payload})
	t.nextSeq++
	if len(t.events) > t.capacity {
		t.events = t.events[len(t.events)-t.capacity:]
	}
	t.lastUsed = time.Now()
	waiters := t.waiters
	t.waiters = nil
	t.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
}

// PollResult carries everything a resuming client needs: the events, the
// cursor to poll from next, and whether the ring already discarded frames
// between the client's cursor and the oldest retained event.
type PollResult struct {
	Events  []Event
	NextSeq uint64
	Gapped  bool
}

// Poll returns events with seq >= afterSeq, blocking up to wait for new
// ones when the topic is currently drained.
func (b *Broker) Poll(ctx context.Context, channel string, afterSeq uint64, wait time.Duration) (PollResult, error) {
	t := b.getOrCreate(channel)

	deadline := time.Now().Add(wait)
	for {
		t.mu.Lock()
		t.lastUsed = time.Now()
		res, ready := t.collect(afterSeq)
		if ready || wait <= 0 {
			t.mu.Unlock()
			return res, nil
		}
		wake := make(chan struct{})
		t.waiters = append(t.waiters, wake)
		t.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.removeWaiter(wake)
			return res, nil
		}
		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			t.removeWaiter(wake)
			return PollResult{NextSeq: afterSeq}, ctx.Err()
		case <-timer.C:
			t.mu.Lock()
			t.discardWaiter(wake)
			res, _ := t.collect(afterSeq)
			t.mu.Unlock()
			return res, nil
		case <-wake:
			timer.Stop()
		}
	}
}

func (t *topic) removeWaiter(w chan struct{}) {
	t.mu.Lock()
	t.discardWaiter(w)
	t.mu.Unlock()
}

// discardWaiter drops an abandoned wake channel so a timed-out poll does not
// pin the topic past the janitor's TTL. Caller holds t.mu. A waiter already
// consumed by Deliver is simply not found.
func (t *topic) discardWaiter(w chan struct{}) {
	for i, x := range t.waiters {
		if x == w {
			t.waiters = append(t.waiters[:i], t.waiters[i+1:]...)
			return
		}
	}
}

// collect gathers events at or past afterSeq. Caller holds t.mu.
func (t *topic) collect(afterSeq uint64) (PollResult, bool) {
	res := PollResult{NextSeq: t.nextSeq}
	if len(t.events) == 0 {
		res.Gapped = afterSeq < t.nextSeq
		return res, false
	}
	oldest := t.events[0].Seq
	if afterSeq < oldest {
		res.Gapped = true
	}
	for _, e := range t.events {
		if e.Seq >= afterSeq {
			res.Events = append(res.Events, e)
		}
	}
	return res, len(res.Events) > 0
}

func (b *Broker) getOrCreate(channel string) *topic {
	b.mu.RLock()
	t, ok := b.topics[channel]
	b.mu.RUnlock()
	if ok {
		return t
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.topics[channel]; ok {
		return t
	}
	t = &topic{capacity: b.capacity, lastUsed: time.Now()}
	b.topics[channel] = t
	return t
}

// RunJanitor evicts topics idle past the TTL so abandoned conversations do
// not pin memory.
func (b *Broker) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.evictIdle()
		}
	}
}

func (b *Broker) evictIdle() {
	cutoff := time.Now().Add(-b.ttl)

	b.mu.Lock()
	defer b.mu.Unlock()
	for name, t := range b.topics {
		t.mu.Lock()
		idle := t.lastUsed.Before(cutoff) && len(t.waiters) == 0
		t.mu.Unlock()
		if idle {
			delete(b.topics, name)
		}
	}
}

func (b *Broker) TopicCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics)
}
