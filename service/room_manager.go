package service

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mgelsinger/maze-wars/game"
	"github.com/sirupsen/logrus"
)

const (
	roomCodeLength = 6
	// No 0/O/1/I: codes get read aloud.
	roomCodeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeRetryLimit  = 50

	minLevel = 1
	maxLevel = 4

	defaultIdleTimeout   = 2 * time.Minute
	defaultSweepInterval = 30 * time.Second
)

var (
	ErrRoomNotFound = errors.New("unknown room code")
	ErrInvalidLevel = errors.New("invalid difficulty level")
	ErrCodeSpace    = errors.New("could not allocate a room code")
)

// RoomManagerConfig configures a RoomManager.
type RoomManagerConfig struct {
	Stats         game.StatsStore
	Logger        *logrus.Entry
	IdleTimeout   time.Duration // empty-room grace before the sweep collects it
	SweepInterval time.Duration
	Room          game.RoomConfig // template for created rooms
}

// RoomManager owns the code-to-room registry. All three session origins
// (manual create/join, matchmaking, bot matches) construct the same
// game.Room through it, so gameplay rules are never duplicated per entry
// path.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]*game.Room

	cfg RoomManagerConfig
	log *logrus.Entry

	sweepStop chan struct{}
}

// NewRoomManager builds a manager; Start launches the lifecycle sweep.
func NewRoomManager(cfg RoomManagerConfig) (*RoomManager, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	cfg.Room.Stats = cfg.Stats
	if cfg.Room.Logger == nil {
		cfg.Room.Logger = cfg.Logger
	}

	return &RoomManager{
		rooms: make(map[string]*game.Room),
		cfg:   cfg,
		log:   cfg.Logger.WithField("component", "room-manager"),
	}, nil
}

// Start launches the periodic sweep that collects idle empty rooms.
func (rm *RoomManager) Start() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.sweepStop != nil {
		return
	}
	stop := make(chan struct{})
	rm.sweepStop = stop
	go rm.sweepLoop(stop)
}

// Stop cancels the sweep. Rooms themselves stop as they empty.
func (rm *RoomManager) Stop() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.sweepStop != nil {
		close(rm.sweepStop)
		rm.sweepStop = nil
	}
}

// Create allocates a collision-checked code, registers a fresh room and
// seats the host.
func (rm *RoomManager) Create(host game.Session, level int) (*game.Room, error) {
	if level < minLevel || level > maxLevel {
		return nil, ErrInvalidLevel
	}

	rm.mu.Lock()
	code, err := rm.newCodeLocked()
	if err != nil {
		rm.mu.Unlock()
		return nil, err
	}
	room := game.NewRoom(code, level, rm.cfg.Room)
	rm.rooms[code] = room
	rm.mu.Unlock()

	if err := room.AddPlayer(host); err != nil {
		rm.remove(code)
		return nil, err
	}

	rm.log.WithFields(logrus.Fields{"room": code, "level": level}).Info("room created")
	return room, nil
}

// Join seats a session into an existing room.
func (rm *RoomManager) Join(code string, s game.Session) (*game.Room, error) {
	rm.mu.RLock()
	room, ok := rm.rooms[code]
	rm.mu.RUnlock()
	if !ok {
		return nil, ErrRoomNotFound
	}
	if err := room.AddPlayer(s); err != nil {
		return nil, err
	}
	return room, nil
}

// CreateMatch builds a room for a matched pair. On any seating failure the
// room is torn down and the error surfaces to the matchmaker, which
// re-enqueues the pair.
func (rm *RoomManager) CreateMatch(a, b game.Session, level int) (*game.Room, error) {
	room, err := rm.Create(a, level)
	if err != nil {
		return nil, err
	}
	if err := room.AddPlayer(b); err != nil {
		room.RemovePlayer(a.ID())
		rm.remove(room.Code())
		return nil, err
	}
	return room, nil
}

// CreateBotMatch seats a session against a bot. The bot is marked ready
// immediately; the game starts once the human readies up.
func (rm *RoomManager) CreateBotMatch(s game.Session, level int, tier game.BotTier) (*game.Room, error) {
	room, err := rm.Create(s, level)
	if err != nil {
		return nil, err
	}

	bot := game.NewBot(tier, rm.cfg.Logger)
	if err := room.AddPlayer(bot); err != nil {
		room.RemovePlayer(s.ID())
		rm.remove(room.Code())
		return nil, err
	}
	room.MarkReady(bot.ID())
	return room, nil
}

// Leave unseats a session and applies the destruction rules: a room emptied
// mid-game goes away immediately, an empty waiting room is retained for the
// idle grace and collected by the sweep. A room left with only bots sheds
// them too.
func (rm *RoomManager) Leave(room *game.Room, id uuid.UUID) {
	wasInProgress := room.RemovePlayer(id)

	onlyBots := true
	for _, s := range room.Sessions() {
		if _, ok := s.(*game.Bot); !ok {
			onlyBots = false
			break
		}
	}
	if onlyBots {
		for _, s := range room.Sessions() {
			room.RemovePlayer(s.ID())
		}
	}

	if room.Empty() && wasInProgress {
		rm.remove(room.Code())
	}
}

// RoomCount reports the number of registered rooms.
func (rm *RoomManager) RoomCount() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.rooms)
}

func (rm *RoomManager) remove(code string) {
	rm.mu.Lock()
	delete(rm.rooms, code)
	rm.mu.Unlock()
	rm.log.WithField("room", code).Info("room destroyed")
}

func (rm *RoomManager) sweepLoop(stop chan struct{}) {
	ticker := time.NewTicker(rm.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			rm.sweep()
		}
	}
}

func (rm *RoomManager) sweep() {
	rm.mu.Lock()
	var stale []string
	for code, room := range rm.rooms {
		if since := room.EmptySince(); room.Empty() && !since.IsZero() && time.Since(since) > rm.cfg.IdleTimeout {
			stale = append(stale, code)
		}
	}
	for _, code := range stale {
		delete(rm.rooms, code)
	}
	rm.mu.Unlock()

	for _, code := range stale {
		rm.log.WithField("room", code).Info("idle room swept")
	}
}

// newCodeLocked draws short codes until one misses the registry, bounded.
func (rm *RoomManager) newCodeLocked() (string, error) {
	for attempt := 0; attempt < codeRetryLimit; attempt++ {
		buf := make([]byte, roomCodeLength)
		for i := range buf {
			buf[i] = roomCodeCharset[rand.Intn(len(roomCodeCharset))]
		}
		code := string(buf)
		if _, taken := rm.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", ErrCodeSpace
}
