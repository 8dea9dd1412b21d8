package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgelsinger/maze-wars/maze"
)

func TestBotPlanning(t *testing.T) {
	m := maze.Generate(21, 21, 42, 8)

	t.Run("hard plans the optimal route", func(t *testing.T) {
		b := NewBot(BotHard, nil)
		b.maze = m
		b.pos = m.Start
		assert.Len(t, b.plan(), m.BFSDistance(m.Start, m.Exit))
	})

	t.Run("easy still reaches the exit", func(t *testing.T) {
		b := NewBot(BotEasy, nil)
		b.maze = m
		b.pos = m.Start
		path := b.plan()
		require.NotEmpty(t, path)
		assert.Equal(t, m.Exit, walk(t, m, m.Start, path))
	})

	t.Run("medium detour stays within budget", func(t *testing.T) {
		b := NewBot(BotMedium, nil)
		b.maze = m
		b.pos = m.Start

		detour := b.planDetour()
		if detour == nil {
			t.Skip("no powerup within the detour budget for this layout")
		}

		end := walk(t, m, m.Start, detour)
		assert.NotNil(t, m.PowerupAt(end))

		direct := m.BFSDistance(m.Start, m.Exit)
		total := len(detour) + m.BFSDistance(end, m.Exit)
		assert.LessOrEqual(t, total-direct, detourBudget)
	})
}

func TestBotPowerupTracking(t *testing.T) {
	t.Run("standing on a powerup cell never stalls the walk", func(t *testing.T) {
		m := maze.Generate(21, 21, 42, 8)
		b := NewBot(BotMedium, nil)
		b.maze = m
		b.pos = m.Powerups[0].Pos // local copy still shows it uncollected

		for i := 0; i < 5; i++ {
			dir, ok := b.nextDirection()
			require.True(t, ok, "decision tick %d produced no move", i)
			require.False(t, m.Blocked(b.pos, dir))
			b.pos = b.pos.Step(dir)
		}
	})

	t.Run("snapshot collected flags reach the local maze", func(t *testing.T) {
		m := maze.Generate(21, 21, 7, 8)
		b := NewBot(BotMedium, nil)
		b.maze = m

		b.handleGameState(GameStatePayload{
			Powerups: []PowerupState{{ID: m.Powerups[0].ID, Collected: true}},
		})

		assert.True(t, m.Powerups[0].Collected)
		assert.False(t, m.Powerups[1].Collected)
	})

	t.Run("collection broadcasts reach the local maze", func(t *testing.T) {
		m := maze.Generate(21, 21, 7, 8)
		b := NewBot(BotHard, nil)
		b.maze = m

		b.Send(MsgPowerupCollected, PowerupCollectedPayload{PowerupID: m.Powerups[1].ID})

		assert.True(t, m.Powerups[1].Collected)
	})

	t.Run("detour ignores collected powerups", func(t *testing.T) {
		m := maze.Generate(21, 21, 42, 8)
		b := NewBot(BotMedium, nil)
		b.maze = m
		b.pos = m.Start
		for _, pw := range m.Powerups {
			pw.Collected = true
		}

		assert.Nil(t, b.planDetour())
	})
}

func TestBotFreezePolicy(t *testing.T) {
	m := maze.Generate(15, 15, 3, 4)

	t.Run("lower tiers spend immediately", func(t *testing.T) {
		for _, tier := range []BotTier{BotEasy, BotMedium} {
			b := NewBot(tier, nil)
			b.maze = m
			b.opponentPos = m.Start
			assert.True(t, b.shouldFreeze(), tier)
		}
	})

	t.Run("hard waits for the opponent to approach the exit", func(t *testing.T) {
		b := NewBot(BotHard, nil)
		b.maze = m

		b.opponentPos = m.Start
		assert.False(t, b.shouldFreeze())

		b.opponentPos = m.Exit
		assert.True(t, b.shouldFreeze())
	})
}

func TestBotPlaysFullMatch(t *testing.T) {
	if testing.Short() {
		t.Skip("full bot match takes several seconds")
	}

	seed := seedWithShortPath(t, 26)
	r := NewRoom("BOTMATCH", 1, testRoomConfig(seed))
	human := newFakeSession("alice")
	bot := NewBot(BotHard, nil)
	require.NoError(t, r.AddPlayer(human))
	require.NoError(t, r.AddPlayer(bot))

	r.MarkReady(bot.ID())
	r.MarkReady(human.ID())
	waitFor(t, time.Second, func() bool { return r.State() == StatePlaying }, "playing state")

	// The human never moves; the bot must navigate to the exit on its own,
	// through the same validation path a network client uses.
	waitFor(t, 30*time.Second, func() bool { return human.countOf(MsgGameOver) > 0 }, "bot finishing the maze")

	payload := human.received(MsgGameOver)[0].(GameOverPayload)
	assert.Equal(t, bot.ID(), payload.WinnerID)
	assert.Zero(t, human.countOf(MsgMoveConfirmed))
}
