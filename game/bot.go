package game

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mgelsinger/maze-wars/maze"
	"github.com/sirupsen/logrus"
)

// BotTier selects pathfinding quality and play style.
type BotTier string

const (
	BotEasy   BotTier = "easy"
	BotMedium BotTier = "medium"
	BotHard   BotTier = "hard"
)

// Per-tier tuning. Easy thinks slowly, replans rarely and sometimes takes a
// wrong turn; hard replans every step and never misplays.
var botProfiles = map[BotTier]struct {
	interval      time.Duration
	replanEvery   int
	wrongTurnProb float64
	name          string
}{
	BotEasy:   {interval: 260 * time.Millisecond, replanEvery: 10, wrongTurnProb: 0.15, name: "RookieBot"},
	BotMedium: {interval: 190 * time.Millisecond, replanEvery: 4, wrongTurnProb: 0, name: "RacerBot"},
	BotHard:   {interval: 160 * time.Millisecond, replanEvery: 1, wrongTurnProb: 0, name: "MasterBot"},
}

const (
	// Medium detours to a powerup when the extra path length stays within
	// this budget.
	detourBudget = 6

	// Hard withholds a held freeze until the opponent is this close to the
	// exit (Manhattan distance).
	freezeThreshold = 6
)

// Bot is an autonomous session. It satisfies the same Session contract a
// network connection does and submits moves through the identical room
// validation entry points, driven by its own recurring timer.
type Bot struct {
	id   uuid.UUID
	tier BotTier

	mu          sync.Mutex
	room        *Room
	maze        *maze.Maze
	pos         maze.Position
	opponentPos maze.Position
	frozen      bool
	boosted     bool
	held        []maze.PowerupType
	path        []string
	sincePlan   int
	seq         int64
	stop        chan struct{}

	rng *rand.Rand
	log *logrus.Entry
}

func NewBot(tier BotTier, logger *logrus.Entry) *Bot {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	id := uuid.New()
	return &Bot{
		id:   id,
		tier: tier,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
		log:  logger.WithFields(logrus.Fields{"bot": botProfiles[tier].name, "tier": tier}),
	}
}

func (b *Bot) ID() uuid.UUID { return b.id }

func (b *Bot) Name() string { return botProfiles[b.tier].name }

// Seat stores the room the bot plays in.
func (b *Bot) Seat(room *Room) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.room = room
}

// Send is the bot's receive side. It only mutates bot state; any reaction
// that calls back into the room runs on a fresh goroutine, because rooms
// invoke Send while holding their lock.
func (b *Bot) Send(msgType string, payload any) {
	switch msg := payload.(type) {
	case GameStartPayload:
		if msgType != MsgGameStart {
			return
		}
		b.handleGameStart(msg)
	case GameStatePayload:
		b.handleGameState(msg)
	case PowerupCollectedPayload:
		b.mu.Lock()
		b.markCollected(msg.PowerupID)
		b.mu.Unlock()
	case MoveConfirmedPayload:
		b.mu.Lock()
		b.pos = msg.Position
		b.mu.Unlock()
	case MoveRejectedPayload:
		b.mu.Lock()
		b.pos = msg.CorrectPosition
		b.path = nil
		b.mu.Unlock()
	case GameOverPayload:
		b.stopLoop()
		// Bots always accept a rematch.
		go b.withRoom(func(r *Room) { r.VoteRematch(b.id) })
	case RematchReadyPayload:
		go b.withRoom(func(r *Room) { r.MarkReady(b.id) })
	default:
		if msgType == MsgOpponentDisconnected {
			b.stopLoop()
		}
	}
}

// handleGameStart regenerates the maze locally from the seed, like every
// other participant, and schedules the decision loop for when the countdown
// elapses.
func (b *Bot) handleGameStart(msg GameStartPayload) {
	width, height, _ := maze.ParamsForLevel(msg.Level)

	b.mu.Lock()
	b.maze = maze.Generate(width, height, msg.Seed, msg.ExtraOpenings)
	b.pos = msg.YourPosition
	b.opponentPos = msg.OpponentPosition
	b.frozen = false
	b.boosted = false
	b.held = nil
	b.path = nil
	b.sincePlan = 0
	countdown := DefaultCountdown
	if b.room != nil {
		countdown = b.room.cfg.Countdown
	}
	b.mu.Unlock()

	time.AfterFunc(countdown, b.startLoop)
	b.log.WithField("seed", msg.Seed).Info("match started")
}

// handleGameState syncs the bot to server truth: own position and effects,
// opponent position, held powerups, and which powerups are gone. The local
// maze copy must track collections or the planner keeps chasing (or
// standing on) spent powerups.
func (b *Bot) handleGameState(msg GameStatePayload) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range msg.Players {
		if p.ID == b.id {
			b.pos = p.Position
			b.frozen = p.Freeze > 0
			b.boosted = p.SpeedBoost > 0
			b.held = p.Held
		} else {
			b.opponentPos = p.Position
		}
	}
	for _, pw := range msg.Powerups {
		if pw.Collected {
			b.markCollected(pw.ID)
		}
	}
}

// markCollected flips the local copy of a powerup. Requires b.mu held.
func (b *Bot) markCollected(id string) {
	if b.maze == nil {
		return
	}
	for _, pw := range b.maze.Powerups {
		if pw.ID == id {
			pw.Collected = true
			return
		}
	}
}

func (b *Bot) startLoop() {
	b.mu.Lock()
	if b.stop != nil {
		b.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	b.stop = stop
	b.mu.Unlock()

	go func() {
		ticker := time.NewTicker(botProfiles[b.tier].interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				b.step()
			}
		}
	}()
}

func (b *Bot) stopLoop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stop != nil {
		close(b.stop)
		b.stop = nil
	}
}

func (b *Bot) withRoom(f func(*Room)) {
	b.mu.Lock()
	room := b.room
	b.mu.Unlock()
	if room != nil {
		f(room)
	}
}

// step decides and submits at most one move and any powerup activations.
// Decisions are made under the bot lock, but room calls happen after it is
// released: room and bot locks are never held together.
func (b *Bot) step() {
	b.mu.Lock()

	if b.room == nil || b.maze == nil || b.frozen {
		b.mu.Unlock()
		return
	}

	room := b.room
	var uses []maze.PowerupType
	if b.holds(maze.PowerupSpeedBoost) && !b.boosted {
		uses = append(uses, maze.PowerupSpeedBoost)
	}
	if b.holds(maze.PowerupFreeze) && b.shouldFreeze() {
		uses = append(uses, maze.PowerupFreeze)
	}

	direction, ok := b.nextDirection()
	seq := int64(0)
	if ok {
		b.seq++
		seq = b.seq
		// Optimistic, same as a predicting client; the server confirms
		// or rubber-bands via move-confirmed/move-rejected.
		if !b.maze.Blocked(b.pos, direction) {
			b.pos = b.pos.Step(direction)
		}
	}
	b.mu.Unlock()

	for _, ptype := range uses {
		room.HandlePowerupUse(b.id, ptype)
	}
	if ok {
		room.HandleMove(b.id, direction, seq)
	}
}

func (b *Bot) holds(ptype maze.PowerupType) bool {
	for _, held := range b.held {
		if held == ptype {
			return true
		}
	}
	return false
}

// shouldFreeze is the tier policy for spending a held freeze. Hard saves it
// for when the opponent is about to win; lower tiers spend immediately.
func (b *Bot) shouldFreeze() bool {
	if b.tier != BotHard {
		return true
	}
	return b.opponentPos.Manhattan(b.maze.Exit) <= freezeThreshold
}

// nextDirection pops the next planned step, replanning on the tier cadence.
// Requires b.mu held.
func (b *Bot) nextDirection() (string, bool) {
	profile := botProfiles[b.tier]

	b.sincePlan++
	if len(b.path) == 0 || b.sincePlan >= profile.replanEvery {
		b.path = b.plan()
		b.sincePlan = 0
	}
	if len(b.path) == 0 {
		return "", false
	}

	direction := b.path[0]
	b.path = b.path[1:]

	if profile.wrongTurnProb > 0 && b.rng.Float64() < profile.wrongTurnProb {
		// Simulated imperfection: a uniformly random legal turn instead.
		var legal []string
		for _, dir := range maze.Directions {
			if !b.maze.Blocked(b.pos, dir) {
				legal = append(legal, dir)
			}
		}
		if len(legal) > 0 {
			direction = legal[b.rng.Intn(len(legal))]
			b.path = nil // the plan no longer starts at our cell
		}
	}

	return direction, true
}

// plan computes a fresh route to the exit. Easy settles for BFS; medium and
// hard use A*. Medium additionally detours to a nearby powerup when the
// extra distance fits the budget. Requires b.mu held.
func (b *Bot) plan() []string {
	search := AStarPath
	if b.tier == BotEasy {
		search = BFSPath
	}

	if b.tier == BotMedium {
		if detour := b.planDetour(); detour != nil {
			return detour
		}
	}
	return search(b.maze, b.pos, b.maze.Exit)
}

func (b *Bot) planDetour() []string {
	direct := b.maze.BFSDistance(b.pos, b.maze.Exit)
	if direct < 0 {
		return nil
	}

	for _, pw := range b.maze.Powerups {
		// A target on the current cell would plan an empty route and
		// stall the walk.
		if pw.Collected || pw.Pos == b.pos {
			continue
		}
		toPw := b.maze.BFSDistance(b.pos, pw.Pos)
		pwToExit := b.maze.BFSDistance(pw.Pos, b.maze.Exit)
		if toPw < 0 || pwToExit < 0 {
			continue
		}
		if toPw+pwToExit-direct <= detourBudget {
			return AStarPath(b.maze, b.pos, pw.Pos)
		}
	}
	return nil
}
