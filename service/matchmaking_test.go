package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgelsinger/maze-wars/game"
)

func newTestQueue(t *testing.T) (*MatchmakingQueue, *RoomManager) {
	t.Helper()
	rm := newTestManager(t)
	q, err := NewMatchmakingQueue(rm, MatchmakingOptions{
		BotFallbackWait: -1, // individual tests opt in
	})
	require.NoError(t, err)
	return q, rm
}

// backdate rewinds a queued entry's enqueue time, standing in for a real wait.
func backdate(q *MatchmakingQueue, id uuid.UUID, by time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if e.session.ID() == id {
			e.enqueuedAt = e.enqueuedAt.Add(-by)
		}
	}
}

func TestMatchmakingPairing(t *testing.T) {
	t.Run("close ratings are paired immediately", func(t *testing.T) {
		q, rm := newTestQueue(t)
		a, b := newFakeSession("alice"), newFakeSession("bob")
		require.NoError(t, q.Enqueue(a, 1400))
		require.NoError(t, q.Enqueue(b, 1550))

		q.Tick()

		assert.Zero(t, q.Waiting())
		assert.Equal(t, 1, rm.RoomCount())

		found := a.received(game.MsgMatchFound)
		require.Len(t, found, 1)
		payload := found[0].(game.MatchFoundPayload)
		assert.Equal(t, "bob", payload.Opponent)
		assert.False(t, payload.VsBot)
		assert.Len(t, b.received(game.MsgMatchFound), 1)
	})

	t.Run("wide gaps wait within the tight window", func(t *testing.T) {
		q, rm := newTestQueue(t)
		require.NoError(t, q.Enqueue(newFakeSession("alice"), 1200))
		require.NoError(t, q.Enqueue(newFakeSession("bob"), 1800))

		q.Tick()

		assert.Equal(t, 2, q.Waiting())
		assert.Zero(t, rm.RoomCount())
	})

	t.Run("tolerance widens after the tight window", func(t *testing.T) {
		q, _ := newTestQueue(t)
		a, b := newFakeSession("alice"), newFakeSession("bob")
		require.NoError(t, q.Enqueue(a, 1200))
		require.NoError(t, q.Enqueue(b, 1600))

		q.Tick()
		assert.Equal(t, 2, q.Waiting())

		backdate(q, a.ID(), 15*time.Second)
		q.Tick()
		assert.Zero(t, q.Waiting())
		assert.Len(t, a.received(game.MsgMatchFound), 1)
	})

	t.Run("a long waiter matches regardless of gap", func(t *testing.T) {
		q, _ := newTestQueue(t)
		a, b := newFakeSession("alice"), newFakeSession("bob")
		require.NoError(t, q.Enqueue(a, 800))
		require.NoError(t, q.Enqueue(b, 2600))

		backdate(q, a.ID(), 31*time.Second)
		q.Tick()

		assert.Zero(t, q.Waiting())
		assert.Len(t, b.received(game.MsgMatchFound), 1)
	})

	t.Run("oldest waiter is served first", func(t *testing.T) {
		q, _ := newTestQueue(t)
		first := newFakeSession("first")
		second := newFakeSession("second")
		third := newFakeSession("third")
		require.NoError(t, q.Enqueue(second, 1400))
		require.NoError(t, q.Enqueue(third, 1400))
		require.NoError(t, q.Enqueue(first, 1400))
		backdate(q, first.ID(), 5*time.Second)

		q.Tick()

		require.Len(t, first.received(game.MsgMatchFound), 1)
		assert.Equal(t, 1, q.Waiting())
	})
}

func TestMatchmakingBotFallback(t *testing.T) {
	rm := newTestManager(t)
	q, err := NewMatchmakingQueue(rm, MatchmakingOptions{
		BotFallbackWait: 100 * time.Millisecond,
	})
	require.NoError(t, err)

	a := newFakeSession("alice")
	require.NoError(t, q.Enqueue(a, 1400))

	q.Tick()
	assert.Equal(t, 1, q.Waiting(), "fallback must not fire early")

	backdate(q, a.ID(), time.Second)
	q.Tick()

	assert.Zero(t, q.Waiting())
	assert.Equal(t, 1, rm.RoomCount())
	found := a.received(game.MsgMatchFound)
	require.Len(t, found, 1)
	assert.True(t, found[0].(game.MatchFoundPayload).VsBot)
}

func TestMatchmakingQueueManagement(t *testing.T) {
	t.Run("double enqueue is refused", func(t *testing.T) {
		q, _ := newTestQueue(t)
		a := newFakeSession("alice")
		require.NoError(t, q.Enqueue(a, 1400))
		assert.ErrorIs(t, q.Enqueue(a, 1400), ErrAlreadyQueued)
		assert.Equal(t, 1, q.Waiting())
	})

	t.Run("cancel removes the entry", func(t *testing.T) {
		q, rm := newTestQueue(t)
		a := newFakeSession("alice")
		require.NoError(t, q.Enqueue(a, 1400))

		assert.True(t, q.Cancel(a.ID()))
		assert.Zero(t, q.Waiting())

		q.Tick()
		assert.Zero(t, rm.RoomCount())
		assert.Empty(t, a.received(game.MsgMatchFound))
	})

	t.Run("cancel of an unknown id reports false", func(t *testing.T) {
		q, _ := newTestQueue(t)
		assert.False(t, q.Cancel(uuid.New()))
	})

	t.Run("stop drops all entries", func(t *testing.T) {
		q, _ := newTestQueue(t)
		require.NoError(t, q.Enqueue(newFakeSession("alice"), 1400))
		q.Start()
		q.Stop()
		assert.Zero(t, q.Waiting())
	})
}
