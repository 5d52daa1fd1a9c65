package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusAdvanceIsMonotone(t *testing.T) {
	s := StatusSending
	s = s.Advance(StatusSent)
	assert.Equal(t, StatusSent, s)

	s = s.Advance(StatusRead)
	assert.Equal(t, StatusRead, s)

	// Regressions are ignored.
	s = s.Advance(StatusDelivered)
	assert.Equal(t, StatusRead, s)
	s = s.Advance(StatusFailed)
	assert.Equal(t, StatusRead, s)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "sending", StatusSending.String())
	assert.Equal(t, "read", StatusRead.String())
	assert.Equal(t, "unknown", Status(42).String())
}

func TestServerEchoUpgradesOptimisticEntry(t *testing.T) {
	tl := NewTimeline()
	tl.AppendLocal("tmp-1", "alice", "hello")

	entries := tl.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, StatusSending, entries[0].Status)
	assert.Empty(t, entries[0].ID)

	tl.ApplyServer(Entry{
		ID:        "m-1",
		TempID:    "tmp-1",
		SenderID:  "alice",
		Content:   "hello",
		CreatedAt: time.Now(),
	})

	// The echo upgrades in place rather than appending a duplicate.
	entries = tl.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "m-1", entries[0].ID)
	assert.Equal(t, StatusSent, entries[0].Status)

	// The correlation id is retired once the canonical id takes over, so a
	// redelivered echo can only hit the id branch.
	got, ok := tl.Get("m-1")
	require.True(t, ok)
	assert.Empty(t, got.TempID)

	tl.ApplyServer(Entry{ID: "m-1", TempID: "tmp-1", SenderID: "alice", Content: "hello", CreatedAt: got.CreatedAt, Status: StatusDelivered})
	require.Equal(t, 1, tl.Len())
	got, _ = tl.Get("m-1")
	assert.Equal(t, StatusDelivered, got.Status)
}

func TestDuplicateServerDeliveryOnlyAdvancesStatus(t *testing.T) {
	tl := NewTimeline()
	now := time.Now()

	tl.ApplyServer(Entry{ID: "m-1", SenderID: "bob", Content: "hi", CreatedAt: now})
	tl.ApplyServer(Entry{ID: "m-1", SenderID: "bob", Content: "hi", CreatedAt: now, Status: StatusDelivered})

	assert.Equal(t, 1, tl.Len())
	got, _ := tl.Get("m-1")
	assert.Equal(t, StatusDelivered, got.Status)

	// A stale redelivery cannot regress the status.
	tl.ApplyServer(Entry{ID: "m-1", SenderID: "bob", Content: "hi", CreatedAt: now})
	got, _ = tl.Get("m-1")
	assert.Equal(t, StatusDelivered, got.Status)
}

func TestApplyStatus(t *testing.T) {
	tl := NewTimeline()
	tl.ApplyServer(Entry{ID: "m-1", SenderID: "bob", CreatedAt: time.Now()})

	tl.ApplyStatus("m-1", StatusRead)
	got, _ := tl.Get("m-1")
	assert.Equal(t, StatusRead, got.Status)

	tl.ApplyStatus("m-1", StatusDelivered)
	got, _ = tl.Get("m-1")
	assert.Equal(t, StatusRead, got.Status)

	// Unknown ids are ignored.
	tl.ApplyStatus("m-404", StatusRead)
	assert.Equal(t, 1, tl.Len())
}

func TestMarkFailedOnlyWhilePending(t *testing.T) {
	tl := NewTimeline()
	tl.AppendLocal("tmp-1", "alice", "first")
	tl.AppendLocal("tmp-2", "alice", "second")

	tl.MarkFailed("tmp-1")
	entries := tl.Entries()
	assert.Equal(t, StatusFailed, entries[0].Status)

	// Once the server acknowledged the send, a late local failure is a no-op.
	tl.ApplyServer(Entry{ID: "m-2", TempID: "tmp-2", SenderID: "alice", Content: "second", CreatedAt: time.Now()})
	tl.MarkFailed("tmp-2")
	got, _ := tl.Get("m-2")
	assert.Equal(t, StatusSent, got.Status)
}

func TestCanonicalEntryWinsOverStaleOptimistic(t *testing.T) {
	tl := NewTimeline()
	now := time.Now()

	// The broadcast without the temp id arrives before the send response, so
	// the message exists under its canonical id alongside the optimistic entry.
	tl.AppendLocal("tmp-1", "alice", "hello")
	tl.ApplyServer(Entry{ID: "m-1", SenderID: "alice", Content: "hello", CreatedAt: now})
	require.Equal(t, 2, tl.Len())

	tl.ApplyServer(Entry{ID: "m-1", TempID: "tmp-1", SenderID: "alice", Content: "hello", CreatedAt: now})

	require.Equal(t, 1, tl.Len())
	got, ok := tl.Get("m-1")
	require.True(t, ok)
	assert.Equal(t, StatusSent, got.Status)
}

func TestAppendLocalDedupesByTempID(t *testing.T) {
	tl := NewTimeline()
	tl.AppendLocal("tmp-1", "alice", "hello")
	tl.AppendLocal("tmp-1", "alice", "hello again")

	require.Equal(t, 1, tl.Len())
	assert.Equal(t, "hello", tl.Entries()[0].Content)
}

func TestTimelineOrdersByServerTime(t *testing.T) {
	tl := NewTimeline()
	base := time.Now()

	tl.AppendLocal("tmp-1", "alice", "mine")
	tl.ApplyServer(Entry{ID: "m-0", SenderID: "bob", Content: "earlier", CreatedAt: base.Add(-time.Hour)})
	tl.ApplyServer(Entry{ID: "m-1", TempID: "tmp-1", SenderID: "alice", Content: "mine", CreatedAt: base})
	tl.ApplyServer(Entry{ID: "m-2", SenderID: "bob", Content: "later", CreatedAt: base.Add(time.Hour)})

	entries := tl.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "m-0", entries[0].ID)
	assert.Equal(t, "m-1", entries[1].ID)
	assert.Equal(t, "m-2", entries[2].ID)

	// Index maps survive the resort.
	got, ok := tl.Get("m-0")
	require.True(t, ok)
	assert.Equal(t, "earlier", got.Content)
}

func TestForbiddenCache(t *testing.T) {
	fc := NewForbiddenCache(50 * time.Millisecond)

	assert.False(t, fc.IsForbidden("c-1"))
	fc.Add("c-1")
	assert.True(t, fc.IsForbidden("c-1"))

	fc.Clear("c-1")
	assert.False(t, fc.IsForbidden("c-1"))

	fc.Add("c-2")
	time.Sleep(70 * time.Millisecond)
	assert.False(t, fc.IsForbidden("c-2"))
}
