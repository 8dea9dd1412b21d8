package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/mgelsinger/maze-wars/maze"
)

// Player is the per-match, per-session state a room keeps for a seat.
// All fields are guarded by the owning room's lock.
type Player struct {
	Session Session

	Pos            maze.Position
	SpeedBoostMs   int64
	FreezeMs       int64
	MoveIntervalMs int64
	Held           []maze.PowerupType // consumed FIFO
	LastMoveAt     time.Time
	FinishMs       int64 // 0 until the player reaches the exit

	PowerupsCollected int
	FreezesUsed       int

	Ready       bool
	RematchVote bool
}

func NewPlayer(s Session) *Player {
	return &Player{
		Session:        s,
		MoveIntervalMs: BaseMoveIntervalMs,
	}
}

func (p *Player) ID() uuid.UUID { return p.Session.ID() }

func (p *Player) Name() string { return p.Session.Name() }

// resetForMatch clears all per-match state ahead of a fresh start.
func (p *Player) resetForMatch(start maze.Position) {
	p.Pos = start
	p.SpeedBoostMs = 0
	p.FreezeMs = 0
	p.MoveIntervalMs = BaseMoveIntervalMs
	p.Held = nil
	p.LastMoveAt = time.Time{}
	p.FinishMs = 0
	p.PowerupsCollected = 0
	p.FreezesUsed = 0
	p.RematchVote = false
}

// takeHeld removes the oldest held instance of ptype, reporting whether one
// was held at all.
func (p *Player) takeHeld(ptype maze.PowerupType) bool {
	for i, held := range p.Held {
		if held == ptype {
			p.Held = append(p.Held[:i], p.Held[i+1:]...)
			return true
		}
	}
	return false
}

func (p *Player) state() PlayerState {
	held := make([]maze.PowerupType, len(p.Held))
	copy(held, p.Held)
	return PlayerState{
		ID:         p.ID(),
		Name:       p.Name(),
		Position:   p.Pos,
		SpeedBoost: p.SpeedBoostMs,
		Freeze:     p.FreezeMs,
		Held:       held,
	}
}
