package game

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/mgelsinger/maze-wars/maze"
)

// Client-to-server message types.
const (
	MsgCreateRoom        = "create-room"
	MsgJoinRoom          = "join-room"
	MsgPlayerReady       = "player-ready"
	MsgPlayerInput       = "player-input"
	MsgUsePowerup        = "use-powerup"
	MsgRematch           = "rematch"
	MsgLeaveRoom         = "leave-room"
	MsgFindMatch         = "find-match"
	MsgCancelMatchmaking = "cancel-matchmaking"
)

// Server-to-client message types.
const (
	MsgError                = "error"
	MsgRoomCreated          = "room-created"
	MsgRoomJoined           = "room-joined"
	MsgOpponentJoined       = "opponent-joined"
	MsgGameStart            = "game-start"
	MsgMoveConfirmed        = "move-confirmed"
	MsgMoveRejected         = "move-rejected"
	MsgPowerupCollected     = "powerup-collected"
	MsgPowerupActivated     = "powerup-activated"
	MsgPlayerFrozen         = "player-frozen"
	MsgGameState            = "game-state"
	MsgGameOver             = "game-over"
	MsgRematchVote          = "rematch-vote"
	MsgRematchReady         = "rematch-ready"
	MsgOpponentDisconnected = "opponent-disconnected"
	MsgMatchmakingStatus    = "matchmaking-status"
	MsgMatchFound           = "match-found"
	MsgMatchmakingCancelled = "matchmaking-cancelled"
)

// Envelope frames every message on the wire.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Inbound payloads.

type CreateRoomPayload struct {
	PlayerName string `json:"playerName"`
	Level      int    `json:"level"`
}

type JoinRoomPayload struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
}

type PlayerInputPayload struct {
	Direction string `json:"direction"`
	Seq       int64  `json:"seq"`
}

type UsePowerupPayload struct {
	PowerupType maze.PowerupType `json:"powerupType"`
}

type FindMatchPayload struct {
	PlayerName string `json:"playerName"`
}

// Outbound payloads.

type ErrorPayload struct {
	Message string `json:"message"`
}

type RoomCreatedPayload struct {
	RoomCode string `json:"roomCode"`
	Level    int    `json:"level"`
}

type RoomJoinedPayload struct {
	RoomCode string `json:"roomCode"`
	Level    int    `json:"level"`
	Opponent string `json:"opponent"`
}

type OpponentJoinedPayload struct {
	Opponent string `json:"opponent"`
}

// GameStartPayload carries everything a client needs to regenerate the maze
// locally; the maze itself never crosses the wire.
type GameStartPayload struct {
	Seed             uint32        `json:"seed"`
	Level            int           `json:"level"`
	ExtraOpenings    int           `json:"extraOpenings"`
	YourID           uuid.UUID     `json:"yourId"`
	YourPosition     maze.Position `json:"yourPosition"`
	OpponentPosition maze.Position `json:"opponentPosition"`
	OpponentName     string        `json:"opponentName"`
}

// MoveConfirmedPayload echoes the client's sequence number so predicted
// movement can be reconciled against the authoritative position.
type MoveConfirmedPayload struct {
	Seq      int64         `json:"seq"`
	Position maze.Position `json:"position"`
}

// MoveRejectedPayload always carries the true position so the client can
// rubber-band back to it.
type MoveRejectedPayload struct {
	Seq             int64         `json:"seq"`
	CorrectPosition maze.Position `json:"correctPosition"`
}

type PowerupCollectedPayload struct {
	PlayerID  uuid.UUID        `json:"playerId"`
	PowerupID string           `json:"powerupId"`
	Type      maze.PowerupType `json:"type"`
}

type PowerupActivatedPayload struct {
	PlayerID uuid.UUID        `json:"playerId"`
	Type     maze.PowerupType `json:"type"`
	TargetID uuid.UUID        `json:"targetId"`
}

// PlayerFrozenPayload carries the actual duration, which is shorter than the
// base freeze when the target was speed-boosted.
type PlayerFrozenPayload struct {
	PlayerID uuid.UUID `json:"playerId"`
	Duration int64     `json:"duration"`
}

type PlayerState struct {
	ID          uuid.UUID          `json:"id"`
	Name        string             `json:"name"`
	Position    maze.Position      `json:"position"`
	SpeedBoost  int64              `json:"speedBoostMs"`
	Freeze      int64              `json:"freezeMs"`
	Held        []maze.PowerupType `json:"held"`
}

type PowerupState struct {
	ID        string           `json:"id"`
	Type      maze.PowerupType `json:"type"`
	Collected bool             `json:"collected"`
}

type GameStatePayload struct {
	Tick     int64          `json:"tick"`
	Elapsed  int64          `json:"elapsed"`
	Players  []PlayerState  `json:"players"`
	Powerups []PowerupState `json:"powerups"`
}

type PlayerMatchStats struct {
	Name              string `json:"name"`
	FinishMs          int64  `json:"finishMs"`
	PowerupsCollected int    `json:"powerupsCollected"`
	FreezesUsed       int    `json:"freezesUsed"`
}

type GameOverStats struct {
	Elapsed    int64              `json:"elapsed"`
	EloChanges map[string]int     `json:"eloChanges"`
	NewElos    map[string]int     `json:"newElos"`
	Players    []PlayerMatchStats `json:"players"`
}

type GameOverPayload struct {
	WinnerID uuid.UUID     `json:"winnerId"`
	Stats    GameOverStats `json:"stats"`
}

type RematchVotePayload struct {
	Votes  int `json:"votes"`
	Needed int `json:"needed"`
}

type RematchReadyPayload struct {
	OpponentName string `json:"opponentName"`
}

type MatchmakingStatusPayload struct {
	InQueue bool `json:"inQueue"`
}

type MatchFoundPayload struct {
	RoomCode string `json:"roomCode"`
	Opponent string `json:"opponent"`
	VsBot    bool   `json:"vsBot,omitempty"`
}
