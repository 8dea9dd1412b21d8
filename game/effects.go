package game

import "github.com/mgelsinger/maze-wars/maze"

// Effect timing constants. BoostedMoveIntervalMs is a fixed value rather
// than a ratio so client prediction can match it exactly.
const (
	BaseMoveIntervalMs    int64 = 160
	BoostedMoveIntervalMs int64 = 90

	SpeedBoostDurationMs int64 = 4000
	FreezeDurationMs     int64 = 2500
	// A boosted target shakes off a freeze faster (counterplay rule).
	FreezeBoostedDurationMs int64 = 1200

	// MoveGraceMs is subtracted from the rate limit to absorb network and
	// processing jitter.
	MoveGraceMs int64 = 35
)

// ApplyEffect mutates player state for a powerup activation and returns the
// applied duration in milliseconds. Speed boost acts on the actor; freeze
// requires a target. Callers hold whatever lock guards the players.
func ApplyEffect(actor *Player, ptype maze.PowerupType, target *Player) int64 {
	switch ptype {
	case maze.PowerupSpeedBoost:
		actor.SpeedBoostMs = SpeedBoostDurationMs
		actor.MoveIntervalMs = BoostedMoveIntervalMs
		return SpeedBoostDurationMs
	case maze.PowerupFreeze:
		if target == nil {
			return 0
		}
		duration := FreezeDurationMs
		if target.SpeedBoostMs > 0 {
			duration = FreezeBoostedDurationMs
		}
		target.FreezeMs = duration
		return duration
	}
	return 0
}

// TickEffects advances both effect timers by dtMs, clamping at zero, and
// returns the effects that expired on this tick. Expiring speed boost
// restores the base move interval.
func TickEffects(p *Player, dtMs int64) []maze.PowerupType {
	var expired []maze.PowerupType

	if p.SpeedBoostMs > 0 {
		p.SpeedBoostMs -= dtMs
		if p.SpeedBoostMs <= 0 {
			p.SpeedBoostMs = 0
			p.MoveIntervalMs = BaseMoveIntervalMs
			expired = append(expired, maze.PowerupSpeedBoost)
		}
	}

	if p.FreezeMs > 0 {
		p.FreezeMs -= dtMs
		if p.FreezeMs <= 0 {
			p.FreezeMs = 0
			expired = append(expired, maze.PowerupFreeze)
		}
	}

	return expired
}
