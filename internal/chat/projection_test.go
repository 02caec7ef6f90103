package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func conv(id, userA, userB int64, updatedAt time.Time) Conversation {
	return Conversation{ID: id, UserA: userA, UserB: userB, UpdatedAt: updatedAt}
}

func TestDedupeKeepsMostRecentPerCounterpart(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	me := int64(1)

	input := []Conversation{
		conv(10, me, 2, base.Add(time.Minute)),
		conv(11, me, 2, base.Add(5*time.Minute)), // duplicate pair, more recent
		conv(12, me, 3, base.Add(3*time.Minute)),
	}

	out := Dedupe(input, me)

	assert.Len(t, out, 2)
	assert.Equal(t, int64(11), out[0].ID, "most recent duplicate survives and leads")
	assert.Equal(t, int64(12), out[1].ID)
}

func TestDedupeEqualRecencyLaterWins(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	me := int64(1)

	out := Dedupe([]Conversation{
		conv(10, me, 2, ts),
		conv(11, me, 2, ts),
	}, me)

	assert.Len(t, out, 1)
	assert.Equal(t, int64(11), out[0].ID)
}

func TestDedupeFallsBackToCreatedAt(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	me := int64(1)

	// A thread that never carried a message has a zero updatedAt.
	empty := Conversation{ID: 10, UserA: me, UserB: 2, CreatedAt: base.Add(time.Hour)}
	active := conv(11, me, 3, base)

	out := Dedupe([]Conversation{active, empty}, me)

	assert.Len(t, out, 2)
	assert.Equal(t, int64(10), out[0].ID, "createdAt counts as recency for empty threads")
}

func TestDedupeSkipsForeignConversations(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	out := Dedupe([]Conversation{
		conv(10, 2, 3, ts), // caller is not a participant
		conv(11, 1, 2, ts),
	}, 1)

	assert.Len(t, out, 1)
	assert.Equal(t, int64(11), out[0].ID)
}

func TestReconcileActive(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	me := int64(1)

	prev := []Conversation{
		conv(10, me, 2, base.Add(time.Minute)),
		conv(11, me, 2, base.Add(5*time.Minute)),
		conv(12, me, 3, base.Add(3*time.Minute)),
	}
	next := Dedupe(prev, me)

	t.Run("nothing open", func(t *testing.T) {
		assert.Zero(t, ReconcileActive(0, prev, next, me))
	})

	t.Run("open thread follows the surviving duplicate", func(t *testing.T) {
		assert.Equal(t, int64(11), ReconcileActive(10, prev, next, me))
	})

	t.Run("canonical thread keeps its id", func(t *testing.T) {
		assert.Equal(t, int64(12), ReconcileActive(12, prev, next, me))
	})

	t.Run("unknown active id is left alone", func(t *testing.T) {
		assert.Equal(t, int64(99), ReconcileActive(99, prev, next, me))
	})

	t.Run("counterpart vanished falls back to most recent", func(t *testing.T) {
		trimmed := []Conversation{conv(11, me, 2, base.Add(5*time.Minute))}
		assert.Equal(t, int64(11), ReconcileActive(12, prev, trimmed, me))
	})

	t.Run("empty next clears the open thread", func(t *testing.T) {
		assert.Zero(t, ReconcileActive(12, prev, nil, me))
	})
}
