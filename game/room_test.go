package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgelsinger/maze-wars/maze"
)

type sentMsg struct {
	msgType string
	payload any
}

// fakeSession records everything the room sends it.
type fakeSession struct {
	id   uuid.UUID
	name string

	mu   sync.Mutex
	sent []sentMsg
	room *Room
}

func newFakeSession(name string) *fakeSession {
	return &fakeSession{id: uuid.New(), name: name}
}

func (s *fakeSession) ID() uuid.UUID { return s.id }

func (s *fakeSession) Name() string { return s.name }

func (s *fakeSession) Send(msgType string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMsg{msgType: msgType, payload: payload})
}

func (s *fakeSession) Seat(room *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room = room
}

func (s *fakeSession) received(msgType string) []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []any
	for _, m := range s.sent {
		if m.msgType == msgType {
			out = append(out, m.payload)
		}
	}
	return out
}

func (s *fakeSession) countOf(msgType string) int {
	return len(s.received(msgType))
}

// stubStats records match reports and answers fixed rating changes.
type stubStats struct {
	mu    sync.Mutex
	calls int
}

func (st *stubStats) RecordVSMatch(_ context.Context, name1, name2, _ string, _ int, _, _ int64, _, _ MatchStats) (*MatchResult, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.calls++
	return &MatchResult{
		EloChanges: map[string]int{name1: 16, name2: -16},
		NewElos:    map[string]int{name1: 1416, name2: 1384},
	}, nil
}

func (st *stubStats) RecordSoloRun(context.Context, string, int, int64, MatchStats) error {
	return nil
}

func (st *stubStats) GetPlayerElo(context.Context, string) (int, error) { return 1400, nil }

func (st *stubStats) callCount() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.calls
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func testRoomConfig(seed uint32) RoomConfig {
	return RoomConfig{
		TickInterval: 10 * time.Millisecond,
		Countdown:    30 * time.Millisecond,
		SeedFn:       func() uint32 { return seed },
	}
}

// seatedRoom builds a room with both fake players seated and ready.
func seatedRoom(t *testing.T, cfg RoomConfig) (*Room, *fakeSession, *fakeSession) {
	t.Helper()
	r := NewRoom("TEST42", 1, cfg)
	a, b := newFakeSession("alice"), newFakeSession("bob")
	require.NoError(t, r.AddPlayer(a))
	require.NoError(t, r.AddPlayer(b))
	return r, a, b
}

// seedWithWallAtStart finds a seed whose level-1 maze has at least one
// walled direction at the start cell.
func seedWithWallAtStart(t *testing.T) (uint32, string) {
	t.Helper()
	w, h, extra := maze.ParamsForLevel(1)
	for seed := uint32(1); seed < 100; seed++ {
		m := maze.Generate(w, h, seed, extra)
		for _, dir := range maze.Directions {
			if m.Blocked(m.Start, dir) {
				return seed, dir
			}
		}
	}
	t.Fatal("no suitable seed found")
	return 0, ""
}

// seedWithShortPath finds a seed whose level-1 maze can be finished in few
// moves, keeping rate-limited walk tests fast. The quadrant placement of the
// endpoints puts a floor of 20 steps under every layout, so the target must
// sit above that; if no layout meets it the shortest one found wins.
func seedWithShortPath(t *testing.T, target int) uint32 {
	t.Helper()
	w, h, extra := maze.ParamsForLevel(1)

	best := uint32(1)
	bestLen := maze.Generate(w, h, best, extra).OptimalPath
	for seed := uint32(2); seed < 2000 && bestLen > target; seed++ {
		if m := maze.Generate(w, h, seed, extra); m.OptimalPath < bestLen {
			best, bestLen = seed, m.OptimalPath
		}
	}
	t.Logf("seed %d, optimal path %d", best, bestLen)
	return best
}

func TestRoomSeating(t *testing.T) {
	t.Run("third player is refused", func(t *testing.T) {
		r, _, _ := seatedRoom(t, testRoomConfig(1))
		err := r.AddPlayer(newFakeSession("carol"))
		assert.ErrorIs(t, err, ErrRoomFull)
		assert.Equal(t, 2, r.PlayerCount())
	})

	t.Run("double seating is refused", func(t *testing.T) {
		r := NewRoom("TEST42", 1, testRoomConfig(1))
		a := newFakeSession("alice")
		require.NoError(t, r.AddPlayer(a))
		assert.ErrorIs(t, r.AddPlayer(a), ErrAlreadySeated)
	})

	t.Run("first player hears about the second", func(t *testing.T) {
		r, a, b := seatedRoom(t, testRoomConfig(1))
		assert.Equal(t, 1, a.countOf(MsgOpponentJoined))
		assert.Equal(t, 0, b.countOf(MsgOpponentJoined))
		assert.Equal(t, "alice", r.OpponentName(b.ID()))
		assert.Equal(t, "bob", r.OpponentName(a.ID()))
	})

	t.Run("joining a started game is refused", func(t *testing.T) {
		r, a, b := seatedRoom(t, testRoomConfig(1))
		r.MarkReady(a.ID())
		r.MarkReady(b.ID())
		assert.ErrorIs(t, r.AddPlayer(newFakeSession("carol")), ErrGameInProgress)
	})
}

func TestRoomStartFlow(t *testing.T) {
	t.Run("both ready starts countdown then playing", func(t *testing.T) {
		r, a, b := seatedRoom(t, testRoomConfig(7))

		r.MarkReady(a.ID())
		assert.Equal(t, StateWaiting, r.State())

		r.MarkReady(b.ID())
		assert.Equal(t, StateCountdown, r.State())

		startsA := a.received(MsgGameStart)
		startsB := b.received(MsgGameStart)
		require.Len(t, startsA, 1)
		require.Len(t, startsB, 1)

		payloadA := startsA[0].(GameStartPayload)
		payloadB := startsB[0].(GameStartPayload)
		assert.Equal(t, a.ID(), payloadA.YourID)
		assert.Equal(t, b.ID(), payloadB.YourID)
		assert.Equal(t, uint32(7), payloadA.Seed)
		assert.Equal(t, payloadA.YourPosition, payloadB.YourPosition) // shared start cell
		assert.Equal(t, "bob", payloadA.OpponentName)

		waitFor(t, time.Second, func() bool { return r.State() == StatePlaying }, "playing state")
		waitFor(t, time.Second, func() bool { return a.countOf(MsgGameState) > 2 }, "tick snapshots")
	})

	t.Run("moves before the countdown ends are rejected", func(t *testing.T) {
		r, a, b := seatedRoom(t, testRoomConfig(7))
		r.MarkReady(a.ID())
		r.MarkReady(b.ID())

		r.HandleMove(a.ID(), maze.South, 1)
		rejects := a.received(MsgMoveRejected)
		require.Len(t, rejects, 1)
		assert.Equal(t, int64(1), rejects[0].(MoveRejectedPayload).Seq)
	})

	t.Run("one ready vote is not enough", func(t *testing.T) {
		r, a, _ := seatedRoom(t, testRoomConfig(7))
		r.MarkReady(a.ID())
		r.MarkReady(a.ID())
		assert.Equal(t, StateWaiting, r.State())
	})
}

func TestRoomMoveValidation(t *testing.T) {
	start := func(t *testing.T, seed uint32) (*Room, *fakeSession, *fakeSession, *maze.Maze) {
		t.Helper()
		r, a, b := seatedRoom(t, testRoomConfig(seed))
		r.MarkReady(a.ID())
		r.MarkReady(b.ID())
		waitFor(t, time.Second, func() bool { return r.State() == StatePlaying }, "playing state")
		w, h, extra := maze.ParamsForLevel(1)
		return r, a, b, maze.Generate(w, h, seed, extra)
	}

	t.Run("open direction is confirmed with the new position", func(t *testing.T) {
		seed, _ := seedWithWallAtStart(t)
		r, a, _, m := start(t, seed)

		var open string
		for _, dir := range maze.Directions {
			if !m.Blocked(m.Start, dir) {
				open = dir
				break
			}
		}
		require.NotEmpty(t, open)

		r.HandleMove(a.ID(), open, 10)
		confirms := a.received(MsgMoveConfirmed)
		require.Len(t, confirms, 1)
		payload := confirms[0].(MoveConfirmedPayload)
		assert.Equal(t, int64(10), payload.Seq)
		assert.Equal(t, m.Start.Step(open), payload.Position)
	})

	t.Run("wall move is rejected with the true position", func(t *testing.T) {
		seed, walled := seedWithWallAtStart(t)
		r, a, _, m := start(t, seed)

		r.HandleMove(a.ID(), walled, 11)
		rejects := a.received(MsgMoveRejected)
		require.Len(t, rejects, 1)
		payload := rejects[0].(MoveRejectedPayload)
		assert.Equal(t, int64(11), payload.Seq)
		assert.Equal(t, m.Start, payload.CorrectPosition)
	})

	t.Run("burst of moves is rate limited to the first", func(t *testing.T) {
		seed, _ := seedWithWallAtStart(t)
		r, a, _, m := start(t, seed)

		var open string
		for _, dir := range maze.Directions {
			if !m.Blocked(m.Start, dir) {
				open = dir
				break
			}
		}

		for seq := int64(1); seq <= 5; seq++ {
			r.HandleMove(a.ID(), open, seq)
		}
		assert.Equal(t, 1, a.countOf(MsgMoveConfirmed))
		assert.Equal(t, 4, a.countOf(MsgMoveRejected))
	})

	t.Run("unknown player is ignored", func(t *testing.T) {
		seed, _ := seedWithWallAtStart(t)
		r, a, b, _ := start(t, seed)

		r.HandleMove(uuid.New(), maze.North, 1)
		assert.Zero(t, a.countOf(MsgMoveRejected))
		assert.Zero(t, b.countOf(MsgMoveRejected))
	})
}

func TestRoomWinFlow(t *testing.T) {
	seed := seedWithShortPath(t, 26)
	w, h, extra := maze.ParamsForLevel(1)
	m := maze.Generate(w, h, seed, extra)
	path := BFSPath(m, m.Start, m.Exit)
	require.NotEmpty(t, path)

	stats := &stubStats{}
	cfg := testRoomConfig(seed)
	cfg.Stats = stats
	r, a, b := seatedRoom(t, cfg)
	r.MarkReady(a.ID())
	r.MarkReady(b.ID())
	waitFor(t, time.Second, func() bool { return r.State() == StatePlaying }, "playing state")

	gap := time.Duration(BaseMoveIntervalMs-MoveGraceMs+10) * time.Millisecond
	for seq, dir := range path {
		r.HandleMove(a.ID(), dir, int64(seq))
		if seq < len(path)-1 {
			time.Sleep(gap)
		}
	}

	assert.Equal(t, StateFinished, r.State())
	waitFor(t, time.Second, func() bool { return b.countOf(MsgGameOver) == 1 }, "game over broadcast")

	payload := b.received(MsgGameOver)[0].(GameOverPayload)
	assert.Equal(t, a.ID(), payload.WinnerID)
	assert.Equal(t, 16, payload.Stats.EloChanges["alice"])
	assert.Equal(t, 1416, payload.Stats.NewElos["alice"])
	assert.Equal(t, 1, stats.callCount())

	t.Run("moves after the finish are rejected", func(t *testing.T) {
		r.HandleMove(b.ID(), maze.North, 99)
		assert.Greater(t, b.countOf(MsgMoveRejected), 0)
	})

	t.Run("rematch resets the room", func(t *testing.T) {
		r.VoteRematch(a.ID())
		require.Equal(t, 1, b.countOf(MsgRematchVote))
		vote := b.received(MsgRematchVote)[0].(RematchVotePayload)
		assert.Equal(t, 1, vote.Votes)
		assert.Equal(t, 2, vote.Needed)

		r.VoteRematch(b.ID())
		assert.Equal(t, StateWaiting, r.State())
		assert.Equal(t, 1, a.countOf(MsgRematchReady))
		assert.Equal(t, 1, b.countOf(MsgRematchReady))
	})
}

func TestRoomDisconnect(t *testing.T) {
	t.Run("leaving mid-game is a walkover", func(t *testing.T) {
		r, a, b := seatedRoom(t, testRoomConfig(3))
		r.MarkReady(a.ID())
		r.MarkReady(b.ID())
		waitFor(t, time.Second, func() bool { return r.State() == StatePlaying }, "playing state")

		wasInProgress := r.RemovePlayer(b.ID())

		assert.True(t, wasInProgress)
		assert.Equal(t, StateWaiting, r.State())
		assert.Equal(t, 1, r.PlayerCount())
		assert.Equal(t, 1, a.countOf(MsgOpponentDisconnected))
	})

	t.Run("leaving during countdown cancels the start", func(t *testing.T) {
		cfg := testRoomConfig(3)
		cfg.Countdown = 100 * time.Millisecond
		r, a, b := seatedRoom(t, cfg)
		r.MarkReady(a.ID())
		r.MarkReady(b.ID())
		require.Equal(t, StateCountdown, r.State())

		assert.True(t, r.RemovePlayer(b.ID()))
		assert.Equal(t, StateWaiting, r.State())

		time.Sleep(150 * time.Millisecond)
		assert.Equal(t, StateWaiting, r.State())
		assert.Zero(t, a.countOf(MsgGameState))
	})

	t.Run("unknown player removal is a no-op", func(t *testing.T) {
		r, _, _ := seatedRoom(t, testRoomConfig(3))
		assert.False(t, r.RemovePlayer(uuid.New()))
		assert.Equal(t, 2, r.PlayerCount())
	})

	t.Run("empty room records when it emptied", func(t *testing.T) {
		r, a, b := seatedRoom(t, testRoomConfig(3))
		assert.True(t, r.EmptySince().IsZero())
		r.RemovePlayer(a.ID())
		r.RemovePlayer(b.ID())
		assert.False(t, r.EmptySince().IsZero())
		assert.True(t, r.Empty())
	})
}
