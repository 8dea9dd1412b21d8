package service

import (
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mgelsinger/maze-wars/game"
	"github.com/sirupsen/logrus"
)

const (
	defaultMatchInterval   = 2 * time.Second
	defaultMatchLevel      = 2
	defaultBotFallbackWait = 45 * time.Second

	// Rating tolerance widens with wait time, trading match quality for
	// wait time.
	tightTolerance   = 200
	tightWindow      = 10 * time.Second
	relaxedTolerance = 500
	relaxedWindow    = 30 * time.Second
)

var ErrAlreadyQueued = errors.New("already in matchmaking queue")

type queueEntry struct {
	session    game.Session
	rating     int
	enqueuedAt time.Time
}

// MatchmakingOptions configures the queue.
type MatchmakingOptions struct {
	TickInterval    time.Duration
	MatchLevel      int
	BotFallbackWait time.Duration // 0 keeps the default; negative disables
	Logger          *logrus.Entry
}

// MatchmakingQueue pairs waiting players by rating proximity on its own
// periodic tick, independent of any room's tick. Pairing is greedy, not a
// globally optimal assignment.
type MatchmakingQueue struct {
	mu      sync.Mutex
	entries []*queueEntry

	rooms *RoomManager
	opts  MatchmakingOptions
	log   *logrus.Entry

	stop chan struct{}
}

func NewMatchmakingQueue(rooms *RoomManager, opts MatchmakingOptions) (*MatchmakingQueue, error) {
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultMatchInterval
	}
	if opts.MatchLevel < minLevel || opts.MatchLevel > maxLevel {
		opts.MatchLevel = defaultMatchLevel
	}
	if opts.BotFallbackWait == 0 {
		opts.BotFallbackWait = defaultBotFallbackWait
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}

	return &MatchmakingQueue{
		rooms: rooms,
		opts:  opts,
		log:   opts.Logger.WithField("component", "matchmaking"),
	}, nil
}

// Start launches the pairing tick.
func (q *MatchmakingQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stop != nil {
		return
	}
	stop := make(chan struct{})
	q.stop = stop
	go q.loop(stop)
}

// Stop cancels the pairing tick; queued entries are dropped.
func (q *MatchmakingQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stop != nil {
		close(q.stop)
		q.stop = nil
	}
	q.entries = nil
}

// Enqueue registers a session for pairing.
func (q *MatchmakingQueue) Enqueue(s game.Session, rating int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, e := range q.entries {
		if e.session.ID() == s.ID() {
			return ErrAlreadyQueued
		}
	}
	q.entries = append(q.entries, &queueEntry{session: s, rating: rating, enqueuedAt: time.Now()})
	q.log.WithFields(logrus.Fields{"player": s.Name(), "rating": rating}).Info("queued")
	return nil
}

// Cancel removes a session from the queue; used for explicit cancellation
// and for disconnects.
func (q *MatchmakingQueue) Cancel(id uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.session.ID() == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Waiting reports the current queue length.
func (q *MatchmakingQueue) Waiting() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *MatchmakingQueue) loop(stop chan struct{}) {
	ticker := time.NewTicker(q.opts.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			q.Tick()
		}
	}
}

// Tick runs one pairing pass: oldest-first for fairness, first compatible
// match per entry, widening tolerance with wait time.
func (q *MatchmakingQueue) Tick() {
	now := time.Now()

	q.mu.Lock()
	sort.Slice(q.entries, func(i, j int) bool {
		return q.entries[i].enqueuedAt.Before(q.entries[j].enqueuedAt)
	})

	var pairs [][2]*queueEntry
	var botBound []*queueEntry
	taken := make(map[uuid.UUID]bool)

	for i, a := range q.entries {
		if taken[a.session.ID()] {
			continue
		}
		for _, b := range q.entries[i+1:] {
			if taken[b.session.ID()] {
				continue
			}
			gap := abs(a.rating - b.rating)
			// The longer waiter's window decides; an entry past the
			// relaxed window matches regardless of gap.
			if gap <= max(tolerance(now.Sub(a.enqueuedAt)), tolerance(now.Sub(b.enqueuedAt))) {
				taken[a.session.ID()] = true
				taken[b.session.ID()] = true
				pairs = append(pairs, [2]*queueEntry{a, b})
				break
			}
		}
		if !taken[a.session.ID()] && q.opts.BotFallbackWait > 0 && now.Sub(a.enqueuedAt) >= q.opts.BotFallbackWait {
			taken[a.session.ID()] = true
			botBound = append(botBound, a)
		}
	}

	if len(taken) > 0 {
		kept := q.entries[:0]
		for _, e := range q.entries {
			if !taken[e.session.ID()] {
				kept = append(kept, e)
			}
		}
		q.entries = kept
	}
	q.mu.Unlock()

	for _, pair := range pairs {
		q.makeMatch(pair[0], pair[1])
	}
	for _, e := range botBound {
		q.makeBotMatch(e)
	}
}

func (q *MatchmakingQueue) makeMatch(a, b *queueEntry) {
	room, err := q.rooms.CreateMatch(a.session, b.session, q.opts.MatchLevel)
	if err != nil {
		// Not dropped: both go back with refreshed timestamps.
		q.log.WithError(err).Error("match room creation failed, re-enqueueing pair")
		q.requeue(a, b)
		return
	}

	a.session.Send(game.MsgMatchFound, game.MatchFoundPayload{RoomCode: room.Code(), Opponent: b.session.Name()})
	b.session.Send(game.MsgMatchFound, game.MatchFoundPayload{RoomCode: room.Code(), Opponent: a.session.Name()})
	q.log.WithFields(logrus.Fields{
		"room": room.Code(), "a": a.session.Name(), "b": b.session.Name(),
	}).Info("match made")
}

func (q *MatchmakingQueue) makeBotMatch(e *queueEntry) {
	room, err := q.rooms.CreateBotMatch(e.session, q.opts.MatchLevel, game.BotMedium)
	if err != nil {
		q.log.WithError(err).Error("bot match creation failed, re-enqueueing")
		q.requeue(e)
		return
	}

	e.session.Send(game.MsgMatchFound, game.MatchFoundPayload{
		RoomCode: room.Code(),
		Opponent: room.OpponentName(e.session.ID()),
		VsBot:    true,
	})
	q.log.WithFields(logrus.Fields{"room": room.Code(), "player": e.session.Name()}).Info("bot match made")
}

func (q *MatchmakingQueue) requeue(entries ...*queueEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range entries {
		e.enqueuedAt = time.Now()
		q.entries = append(q.entries, e)
	}
}

// tolerance returns the acceptable rating gap for an entry that has waited
// the given duration.
func tolerance(waited time.Duration) int {
	switch {
	case waited < tightWindow:
		return tightTolerance
	case waited < relaxedWindow:
		return relaxedTolerance
	default:
		return math.MaxInt32
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
