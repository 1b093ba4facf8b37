package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(start time.Time) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func TestMailboxDrain(t *testing.T) {
	m := NewMessageMailbox(fixedClock(time.Unix(1700000000, 0)))

	m.Send("alice", "bob", "hi", false)
	m.Send("carol", "bob", "yo", false)

	msgs := m.FetchUndelivered("bob")
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Body)
	assert.Equal(t, "yo", msgs[1].Body)
	assert.True(t, msgs[0].Delivered())
	assert.True(t, msgs[0].CreatedAt.Before(msgs[0].DeliveredAt))

	assert.Empty(t, m.FetchUndelivered("bob"))
	assert.Len(t, m.History("bob"), 2)
	assert.Empty(t, m.Delivered("bob"))
}

func TestMailboxOnline(t *testing.T) {
	m := NewMessageMailbox(nil)
	m.Send("alice", "bob", "live", true)

	assert.Empty(t, m.FetchUndelivered("bob"))
	delivered := m.Delivered("bob")
	require.Len(t, delivered, 1)
	assert.Equal(t, "live", delivered[0].Body)
	assert.False(t, delivered[0].Delivered())

	// 返回的是副本。
	delivered[0].Body = "changed"
	assert.Equal(t, "live", m.Delivered("bob")[0].Body)
}

func TestMailboxSnapshotRestore(t *testing.T) {
	m := NewMessageMailbox(nil)
	m.Send("a", "b", "1", false)
	m.Send("a", "c", "2", true)

	snap := m.SnapshotUndelivered()
	require.Len(t, snap, 1)
	require.Len(t, snap["b"], 1)

	restored := NewMessageMailbox(nil)
	restored.Restore(snap)
	assert.Equal(t, 1, restored.PendingCount())
	assert.Equal(t, "1", restored.Undelivered("b")[0].Body)

	snap["b"][0].Body = "mutated"
	assert.Equal(t, "1", restored.Undelivered("b")[0].Body)
}
