package game

import (
	"context"

	"github.com/google/uuid"
)

// Session is the contract a room has with a participant. Two variants
// exist: the websocket-backed network session and the timer-driven Bot.
// Room logic never branches on which one it is talking to.
type Session interface {
	// ID is the stable per-connection identity of the participant.
	ID() uuid.UUID

	// Name is the display name used in broadcasts and stats.
	Name() string

	// Send delivers a server message to the participant. Implementations
	// must not call back into the room synchronously; rooms invoke Send
	// while holding their own lock.
	Send(msgType string, payload any)

	// Seat hands the participant its room once seating succeeds. This is
	// how both humans and bots learn where to submit their input.
	Seat(room *Room)
}

// MatchStats is the per-player summary handed to the stats store.
type MatchStats struct {
	PowerupsCollected int
	FreezesUsed       int
}

// MatchResult is what the stats store reports back after recording a match.
// Keys are player display names.
type MatchResult struct {
	EloChanges map[string]int
	NewElos    map[string]int
	PlayerIDs  map[string]uuid.UUID
}

// StatsStore is the external rating/persistence collaborator, consumed only
// at match end. A slow or failing store must never stall a room tick, so
// rooms call it from an isolated goroutine and treat errors as log-only.
type StatsStore interface {
	RecordVSMatch(ctx context.Context, name1, name2, winnerName string, level int, time1, time2 int64, stats1, stats2 MatchStats) (*MatchResult, error)
	RecordSoloRun(ctx context.Context, name string, level int, elapsedMs int64, stats MatchStats) error
	GetPlayerElo(ctx context.Context, name string) (int, error)
}
