package game

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mgelsinger/maze-wars/maze"
	"github.com/sirupsen/logrus"
)

// Room-related errors, answered to the offending session only; the room's
// state is never mutated on these paths.
var (
	ErrRoomFull       = errors.New("room is full")
	ErrAlreadySeated  = errors.New("already seated in this room")
	ErrGameInProgress = errors.New("game already started")
)

// State is the room's lifecycle phase. Transitions are forward-only except
// the finished-to-waiting rematch reset and the disconnect walkover.
type State string

const (
	StateWaiting   State = "waiting"
	StateCountdown State = "countdown"
	StatePlaying   State = "playing"
	StateFinished  State = "finished"
)

const (
	maxSeats = 2

	// DefaultTickInterval is the authoritative simulation rate (20 Hz).
	DefaultTickInterval = 50 * time.Millisecond

	// DefaultCountdown must equal the client-side countdown animation
	// length so optimistic input is never accepted before the server
	// reaches playing.
	DefaultCountdown = 3 * time.Second

	statsCallTimeout = 3 * time.Second
)

// RoomConfig carries the injectable knobs of a room. Zero values fall back
// to production defaults; tests shrink the intervals.
type RoomConfig struct {
	TickInterval time.Duration
	Countdown    time.Duration
	Stats        StatsStore // nil disables rating updates
	SeedFn       func() uint32
	Logger       *logrus.Entry
}

// Room is the authoritative per-match state machine. Every mutation of room
// state is serialized under a single mutex; two interleaved inputs for the
// same room would otherwise race past the rate-limit check.
type Room struct {
	mu sync.Mutex

	code  string
	level int
	state State

	players   []*Player // seat order, at most maxSeats
	maze      *maze.Maze
	collected map[string]uuid.UUID // powerup id -> collector, authoritative mirror

	tick      int64
	startedAt time.Time

	tickStop  chan struct{} // non-nil only while the tick loop runs
	countdown *time.Timer

	createdAt  time.Time
	emptySince time.Time

	cfg RoomConfig
	log *logrus.Entry
}

// NewRoom creates a room in the waiting state. The caller (RoomManager)
// owns code allocation and registry membership.
func NewRoom(code string, level int, cfg RoomConfig) *Room {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.Countdown <= 0 {
		cfg.Countdown = DefaultCountdown
	}
	if cfg.SeedFn == nil {
		cfg.SeedFn = rand.Uint32
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(logrus.StandardLogger())
	}

	now := time.Now()
	return &Room{
		code:       code,
		level:      level,
		state:      StateWaiting,
		createdAt:  now,
		emptySince: now,
		cfg:        cfg,
		log:        cfg.Logger.WithField("room", code),
	}
}

func (r *Room) Code() string { return r.code }

func (r *Room) Level() int { return r.level }

func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

func (r *Room) Empty() bool {
	return r.PlayerCount() == 0
}

// EmptySince reports when the room last became empty; zero while occupied.
func (r *Room) EmptySince() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.emptySince
}

// Sessions returns the currently seated sessions.
func (r *Room) Sessions() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Session, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p.Session)
	}
	return out
}

// AddPlayer seats a session. Joining is only possible while waiting and
// while a seat is free.
func (r *Room) AddPlayer(s Session) error {
	r.mu.Lock()

	if r.state != StateWaiting {
		r.mu.Unlock()
		return ErrGameInProgress
	}
	if len(r.players) >= maxSeats {
		r.mu.Unlock()
		return ErrRoomFull
	}
	if r.playerByID(s.ID()) != nil {
		r.mu.Unlock()
		return ErrAlreadySeated
	}

	for _, other := range r.players {
		other.Session.Send(MsgOpponentJoined, OpponentJoinedPayload{Opponent: s.Name()})
	}

	r.players = append(r.players, NewPlayer(s))
	r.emptySince = time.Time{}
	r.mu.Unlock()

	s.Seat(r)
	r.log.WithField("player", s.Name()).Info("player seated")
	return nil
}

// MarkReady flags a seated player as ready; when both seats are ready the
// room enters countdown and broadcasts game-start.
func (r *Room) MarkReady(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateWaiting {
		return
	}
	p := r.playerByID(id)
	if p == nil {
		return
	}
	p.Ready = true

	if len(r.players) < maxSeats {
		return
	}
	for _, p := range r.players {
		if !p.Ready {
			return
		}
	}
	r.startCountdownLocked()
}

// startCountdownLocked generates a fresh maze and moves the room into the
// countdown phase. The grace delay before playing matches the client
// animation, so no legitimate input can arrive early.
func (r *Room) startCountdownLocked() {
	seed := r.cfg.SeedFn()
	width, height, extra := maze.ParamsForLevel(r.level)
	r.maze = maze.Generate(width, height, seed, extra)
	r.collected = make(map[string]uuid.UUID)
	r.state = StateCountdown

	for _, p := range r.players {
		p.resetForMatch(r.maze.Start)
	}

	for i, p := range r.players {
		opponent := r.players[1-i]
		p.Session.Send(MsgGameStart, GameStartPayload{
			Seed:             seed,
			Level:            r.level,
			ExtraOpenings:    extra,
			YourID:           p.ID(),
			YourPosition:     p.Pos,
			OpponentPosition: opponent.Pos,
			OpponentName:     opponent.Name(),
		})
	}

	r.countdown = time.AfterFunc(r.cfg.Countdown, r.beginPlaying)
	r.log.WithFields(logrus.Fields{"seed": seed, "level": r.level}).Info("countdown started")
}

// beginPlaying fires when the countdown elapses.
func (r *Room) beginPlaying() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateCountdown {
		return // cancelled by a disconnect during countdown
	}

	r.state = StatePlaying
	r.startedAt = time.Now()
	r.tick = 0

	stop := make(chan struct{})
	r.tickStop = stop
	go r.tickLoop(stop)
	r.log.Info("playing")
}

func (r *Room) tickLoop(stop chan struct{}) {
	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.advanceTick()
		}
	}
}

// advanceTick is one fixed-rate simulation step: advance effect timers,
// then broadcast one consolidated snapshot.
func (r *Room) advanceTick() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StatePlaying {
		return
	}

	r.tick++
	dt := r.cfg.TickInterval.Milliseconds()
	for _, p := range r.players {
		TickEffects(p, dt)
	}

	r.broadcastLocked(MsgGameState, r.snapshotLocked())
}

func (r *Room) snapshotLocked() GameStatePayload {
	players := make([]PlayerState, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, p.state())
	}

	powerups := make([]PowerupState, 0, len(r.maze.Powerups))
	for _, pw := range r.maze.Powerups {
		powerups = append(powerups, PowerupState{ID: pw.ID, Type: pw.Type, Collected: pw.Collected})
	}

	return GameStatePayload{
		Tick:     r.tick,
		Elapsed:  time.Since(r.startedAt).Milliseconds(),
		Players:  players,
		Powerups: powerups,
	}
}

// HandleMove validates and applies one move request. Every rejection
// answers the true authoritative position so the client can rubber-band.
func (r *Room) HandleMove(id uuid.UUID, direction string, seq int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.playerByID(id)
	if p == nil {
		return
	}

	reject := func() {
		p.Session.Send(MsgMoveRejected, MoveRejectedPayload{Seq: seq, CorrectPosition: p.Pos})
	}

	if r.state != StatePlaying {
		reject()
		return
	}
	if p.FreezeMs > 0 {
		reject()
		return
	}
	// The current interval reflects an active speed boost, so the
	// anti-cheat threshold adapts to legitimate speed changes.
	minGap := time.Duration(p.MoveIntervalMs-MoveGraceMs) * time.Millisecond
	if !p.LastMoveAt.IsZero() && time.Since(p.LastMoveAt) < minGap {
		reject()
		return
	}
	if r.maze.Blocked(p.Pos, direction) {
		reject()
		return
	}

	p.Pos = p.Pos.Step(direction)
	p.LastMoveAt = time.Now()
	p.Session.Send(MsgMoveConfirmed, MoveConfirmedPayload{Seq: seq, Position: p.Pos})

	if pw := r.maze.PowerupAt(p.Pos); pw != nil {
		pw.Collected = true
		r.collected[pw.ID] = id
		p.Held = append(p.Held, pw.Type)
		p.PowerupsCollected++
		r.broadcastLocked(MsgPowerupCollected, PowerupCollectedPayload{
			PlayerID:  id,
			PowerupID: pw.ID,
			Type:      pw.Type,
		})
	}

	if p.Pos == r.maze.Exit {
		r.finishLocked(p)
	}
}

// HandlePowerupUse consumes the oldest held instance of ptype. Speed boost
// applies to self; freeze applies to the opponent with the actual (possibly
// shortened) duration broadcast separately.
func (r *Room) HandlePowerupUse(id uuid.UUID, ptype maze.PowerupType) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StatePlaying {
		return
	}
	p := r.playerByID(id)
	if p == nil {
		return
	}

	switch ptype {
	case maze.PowerupSpeedBoost:
		if !p.takeHeld(ptype) {
			return
		}
		ApplyEffect(p, ptype, nil)
		r.broadcastLocked(MsgPowerupActivated, PowerupActivatedPayload{PlayerID: id, Type: ptype, TargetID: id})
	case maze.PowerupFreeze:
		opponent := r.opponentOf(id)
		if opponent == nil || !p.takeHeld(ptype) {
			return
		}
		p.FreezesUsed++
		duration := ApplyEffect(p, ptype, opponent)
		r.broadcastLocked(MsgPowerupActivated, PowerupActivatedPayload{PlayerID: id, Type: ptype, TargetID: opponent.ID()})
		r.broadcastLocked(MsgPlayerFrozen, PlayerFrozenPayload{PlayerID: opponent.ID(), Duration: duration})
	}
}

// finishLocked transitions to finished, halts the tick and hands the
// outcome to an isolated goroutine for rating and broadcast.
func (r *Room) finishLocked(winner *Player) {
	r.state = StateFinished
	r.stopTickLocked()

	elapsed := time.Since(r.startedAt).Milliseconds()
	winner.FinishMs = elapsed

	sessions := make([]Session, 0, len(r.players))
	stats := make([]PlayerMatchStats, 0, len(r.players))
	matchStats := make([]MatchStats, 0, len(r.players))
	for _, p := range r.players {
		sessions = append(sessions, p.Session)
		stats = append(stats, PlayerMatchStats{
			Name:              p.Name(),
			FinishMs:          p.FinishMs,
			PowerupsCollected: p.PowerupsCollected,
			FreezesUsed:       p.FreezesUsed,
		})
		matchStats = append(matchStats, MatchStats{
			PowerupsCollected: p.PowerupsCollected,
			FreezesUsed:       p.FreezesUsed,
		})
	}

	r.log.WithField("winner", winner.Name()).Info("match finished")

	// Fire-and-forget: a slow or failing stats store must never stall
	// another room's tick, and this room's tick is already halted.
	go r.reportMatch(winner.ID(), winner.Name(), elapsed, sessions, stats, matchStats)
}

func (r *Room) reportMatch(winnerID uuid.UUID, winnerName string, elapsed int64, sessions []Session, stats []PlayerMatchStats, matchStats []MatchStats) {
	payload := GameOverPayload{
		WinnerID: winnerID,
		Stats: GameOverStats{
			Elapsed: elapsed,
			Players: stats,
		},
	}

	if r.cfg.Stats != nil && len(stats) == maxSeats {
		ctx, cancel := context.WithTimeout(context.Background(), statsCallTimeout)
		defer cancel()
		result, err := r.cfg.Stats.RecordVSMatch(ctx,
			stats[0].Name, stats[1].Name, winnerName, r.level,
			stats[0].FinishMs, stats[1].FinishMs, matchStats[0], matchStats[1])
		if err != nil {
			// Non-fatal: the outcome still goes out, ratings stay put.
			r.log.WithError(err).Error("recording match result")
		} else {
			payload.Stats.EloChanges = result.EloChanges
			payload.Stats.NewElos = result.NewElos
		}
	}

	for _, s := range sessions {
		s.Send(MsgGameOver, payload)
	}
}

// VoteRematch registers a rematch vote; once every remaining player has
// voted the room resets to waiting.
func (r *Room) VoteRematch(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateFinished {
		return
	}
	p := r.playerByID(id)
	if p == nil {
		return
	}
	p.RematchVote = true
	r.checkRematchLocked()
}

func (r *Room) checkRematchLocked() {
	votes := 0
	for _, p := range r.players {
		if p.RematchVote {
			votes++
		}
	}

	if votes < len(r.players) {
		r.broadcastLocked(MsgRematchVote, RematchVotePayload{Votes: votes, Needed: len(r.players)})
		return
	}

	r.state = StateWaiting
	for _, p := range r.players {
		p.Ready = false
		p.RematchVote = false
		p.resetForMatch(maze.Position{})
	}
	r.collected = nil

	for i, p := range r.players {
		opponent := r.players[1-i]
		p.Session.Send(MsgRematchReady, RematchReadyPayload{OpponentName: opponent.Name()})
	}
	r.log.Info("rematch agreed, room reset")
}

// RemovePlayer unseats a session. Removal during countdown or playing is a
// walkover: the tick halts synchronously, the room reverts to waiting and
// the remaining player is notified. Returns whether a game was in progress.
func (r *Room) RemovePlayer(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, p := range r.players {
		if p.ID() == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return false
	}

	wasInProgress := r.state == StatePlaying || r.state == StateCountdown
	name := r.players[idx].Name()
	r.players = append(r.players[:idx], r.players[idx+1:]...)

	if wasInProgress {
		r.stopTickLocked()
		if r.countdown != nil {
			r.countdown.Stop()
			r.countdown = nil
		}
		r.state = StateWaiting
		for _, p := range r.players {
			p.Ready = false
			p.resetForMatch(maze.Position{})
			p.Session.Send(MsgOpponentDisconnected, struct{}{})
		}
	} else if r.state == StateFinished {
		for _, p := range r.players {
			p.Session.Send(MsgOpponentDisconnected, struct{}{})
		}
		// A lone remaining voter should not wait on a seat that left.
		if len(r.players) > 0 {
			allVoted := true
			for _, p := range r.players {
				if !p.RematchVote {
					allVoted = false
				}
			}
			if allVoted {
				r.checkRematchLocked()
			}
		}
	}

	if len(r.players) == 0 {
		r.emptySince = time.Now()
	}

	r.log.WithField("player", name).Info("player left")
	return wasInProgress
}

// stopTickLocked halts the tick loop before any further broadcast can go
// out; advanceTick re-checks state under the lock, so a ticker firing in
// flight cannot observe the old phase.
func (r *Room) stopTickLocked() {
	if r.tickStop != nil {
		close(r.tickStop)
		r.tickStop = nil
	}
}

// OpponentName returns the display name of the other seated player, or ""
// when no opponent is seated.
func (r *Room) OpponentName(id uuid.UUID) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p := r.opponentOf(id); p != nil {
		return p.Name()
	}
	return ""
}

func (r *Room) playerByID(id uuid.UUID) *Player {
	for _, p := range r.players {
		if p.ID() == id {
			return p
		}
	}
	return nil
}

func (r *Room) opponentOf(id uuid.UUID) *Player {
	for _, p := range r.players {
		if p.ID() != id {
			return p
		}
	}
	return nil
}

func (r *Room) broadcastLocked(msgType string, payload any) {
	for _, p := range r.players {
		p.Session.Send(msgType, payload)
	}
}
