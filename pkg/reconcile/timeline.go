package reconcile

import (
	"sort"
	"sync"
	"time"
)

// Entry is one message in the client's view of a conversation. ID is empty
// until the server acknowledges the send.
type Entry struct {
	ID        string
	TempID    string
	SenderID  string
	Content   string
	Status    Status
	CreatedAt time.Time
}

// Timeline reconciles the optimistic local view of one conversation with
// server events. Safe for concurrent use.
type Timeline struct {
	mu      sync.Mutex
	entries []Entry
	byID    map[string]int
	byTemp  map[string]int
}

func NewTimeline() *Timeline {
	return &Timeline{
		byID:   make(map[string]int),
		byTemp: make(map[string]int),
	}
}

// AppendLocal records an optimistic send. The entry shows immediately as
// sending and is later correlated with the server echo via tempID.
func (t *Timeline) AppendLocal(tempID, senderID, content string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.byTemp[tempID]; ok {
		return
	}
	t.entries = append(t.entries, Entry{
		TempID:    tempID,
		SenderID:  senderID,
		Content:   content,
		Status:    StatusSending,
		CreatedAt: time.Now(),
	})
	t.byTemp[tempID] = len(t.entries) - 1
}

// ApplyServer folds a server-acknowledged message into the timeline. A
// matching tempID upgrades the optimistic entry in place; a known ID is a
// duplicate delivery and only advances status; anything else is a new
// message from another party.
func (t *Timeline) ApplyServer(e Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e.Status.Rank() < StatusSent.Rank() {
		e.Status = StatusSent
	}

	if idx, ok := t.byID[e.ID]; ok && e.ID != "" {
		t.entries[idx].Status = t.entries[idx].Status.Advance(e.Status)
		// A leftover optimistic entry for the same send is dropped in favor
		// of the canonical one.
		if tempIdx, ok := t.byTemp[e.TempID]; ok && e.TempID != "" && tempIdx != idx {
			t.entries = append(t.entries[:tempIdx], t.entries[tempIdx+1:]...)
			t.resort()
		}
		return
	}

	if idx, ok := t.byTemp[e.TempID]; ok && e.TempID != "" {
		local := &t.entries[idx]
		local.ID = e.ID
		local.Content = e.Content
		local.CreatedAt = e.CreatedAt
		local.Status = local.Status.Advance(e.Status)
		// The canonical rewrite retires the correlation id; the entry is
		// addressed by its server id from here on.
		local.TempID = ""
		if e.ID != "" {
			t.byID[e.ID] = idx
		}
		t.resort()
		return
	}

	t.entries = append(t.entries, e)
	if e.ID != "" {
		t.byID[e.ID] = len(t.entries) - 1
	}
	if e.TempID != "" {
		t.byTemp[e.TempID] = len(t.entries) - 1
	}
	t.resort()
}

// ApplyStatus advances one message's delivery state. Regressions are
// ignored so a late "delivered" cannot undo "read".
func (t *Timeline) ApplyStatus(id string, status Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, ok := t.byID[id]
	if !ok {
		return
	}
	t.entries[idx].Status = t.entries[idx].Status.Advance(status)
}

// MarkFailed downgrades a still-pending optimistic entry. A send that was
// already acknowledged cannot fail retroactively.
func (t *Timeline) MarkFailed(tempID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, ok := t.byTemp[tempID]
	if !ok {
		return
	}
	if t.entries[idx].Status == StatusSending {
		t.entries[idx].Status = StatusFailed
	}
}

// Entries returns the timeline ordered by server time, pending local sends
// last among equals.
func (t *Timeline) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *Timeline) Get(id string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, ok := t.byID[id]
	if !ok {
		return Entry{}, false
	}
	return t.entries[idx], true
}

func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// resort restores creation order and rebuilds the index maps. Caller
// holds t.mu.
func (t *Timeline) resort() {
	sort.SliceStable(t.entries, func(i, j int) bool {
		return t.entries[i].CreatedAt.Before(t.entries[j].CreatedAt)
	})
	for k := range t.byID {
		delete(t.byID, k)
	}
	for k := range t.byTemp {
		delete(t.byTemp, k)
	}
	for i, e := range t.entries {
		if e.ID != "" {
			t.byID[e.ID] = i
		}
		if e.TempID != "" {
			t.byTemp[e.TempID] = i
		}
	}
}
