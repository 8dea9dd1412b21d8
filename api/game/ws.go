// Package gameapi bridges websocket connections into game sessions.
package gameapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	dmn "github.com/mgelsinger/maze-wars/domain"
	"github.com/mgelsinger/maze-wars/game"
	"github.com/mgelsinger/maze-wars/service"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Game clients connect from arbitrary origins; auth happens per-action.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Config holds the dependencies a WSController needs.
type Config struct {
	Rooms  *service.RoomManager
	Queue  *service.MatchmakingQueue
	Stats  game.StatsStore
	Logger *logrus.Logger
}

// WSController upgrades HTTP requests to websocket game sessions.
type WSController struct {
	rooms  *service.RoomManager
	queue  *service.MatchmakingQueue
	stats  game.StatsStore
	logger *logrus.Logger
}

// NewWSController initializes a WSController.
func NewWSController(cfg Config) (*WSController, error) {
	return &WSController{
		rooms:  cfg.Rooms,
		queue:  cfg.Queue,
		stats:  cfg.Stats,
		logger: cfg.Logger,
	}, nil
}

// RegisterPublic registers public routes.
func (wc *WSController) RegisterPublic(route *gin.RouterGroup) {
	route.GET("/ws", wc.serveWS)
}

// RegisterProtected registers protected routes.
func (wc *WSController) RegisterProtected(route *gin.RouterGroup) {}

func (wc *WSController) serveWS(ctx *gin.Context) {
	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		wc.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &client{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		ctrl: wc,
		log:  wc.logger.WithField("client", conn.RemoteAddr().String()),
	}

	go c.writePump()
	go c.readPump()
}

// client is the websocket-backed game.Session. The room owns all game
// state; the client only shuttles messages and remembers where it is
// seated.
type client struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
	ctrl *WSController
	log  *logrus.Entry

	mu   sync.Mutex
	name string
	room *game.Room
}

// ID implements game.Session.
func (c *client) ID() uuid.UUID { return c.id }

// Name implements game.Session.
func (c *client) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// Send implements game.Session. The message is dropped if the outbound
// buffer is full; a client that slow is effectively gone and the read
// pump will reap it shortly.
func (c *client) Send(msgType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.log.WithError(err).WithField("type", msgType).Error("marshal payload")
		return
	}
	frame, err := json.Marshal(game.Envelope{Type: msgType, Data: data})
	if err != nil {
		c.log.WithError(err).WithField("type", msgType).Error("marshal envelope")
		return
	}

	select {
	case c.send <- frame:
	default:
		c.log.WithField("type", msgType).Warn("send buffer full, dropping message")
	}
}

// Seat implements game.Session.
func (c *client) Seat(room *game.Room) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room = room
}

func (c *client) currentRoom() *game.Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *client) setName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name != "" {
		c.name = name
	}
}

func (c *client) sendError(msg string) {
	c.Send(game.MsgError, game.ErrorPayload{Message: msg})
}

func (c *client) readPump() {
	defer c.cleanup()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithError(err).Debug("websocket read error")
			}
			return
		}

		var env game.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.sendError("malformed message")
			continue
		}
		c.dispatch(env)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) dispatch(env game.Envelope) {
	switch env.Type {
	case game.MsgCreateRoom:
		c.handleCreateRoom(env.Data)
	case game.MsgJoinRoom:
		c.handleJoinRoom(env.Data)
	case game.MsgPlayerReady:
		c.handlePlayerReady()
	case game.MsgPlayerInput:
		c.handlePlayerInput(env.Data)
	case game.MsgUsePowerup:
		c.handleUsePowerup(env.Data)
	case game.MsgRematch:
		c.handleRematch()
	case game.MsgLeaveRoom:
		c.handleLeaveRoom()
	case game.MsgFindMatch:
		c.handleFindMatch(env.Data)
	case game.MsgCancelMatchmaking:
		c.handleCancelMatchmaking()
	default:
		c.sendError("unknown message type")
	}
}

func (c *client) handleCreateRoom(data json.RawMessage) {
	var payload game.CreateRoomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.sendError("malformed create-room payload")
		return
	}
	if c.currentRoom() != nil {
		c.sendError("already in a room")
		return
	}
	c.setName(payload.PlayerName)

	room, err := c.ctrl.rooms.Create(c, payload.Level)
	if err != nil {
		c.sendError(err.Error())
		return
	}

	c.Send(game.MsgRoomCreated, game.RoomCreatedPayload{
		RoomCode: room.Code(),
		Level:    room.Level(),
	})
}

func (c *client) handleJoinRoom(data json.RawMessage) {
	var payload game.JoinRoomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.sendError("malformed join-room payload")
		return
	}
	if c.currentRoom() != nil {
		c.sendError("already in a room")
		return
	}
	c.setName(payload.PlayerName)

	room, err := c.ctrl.rooms.Join(payload.RoomCode, c)
	if err != nil {
		c.sendError(err.Error())
		return
	}

	c.Send(game.MsgRoomJoined, game.RoomJoinedPayload{
		RoomCode: room.Code(),
		Level:    room.Level(),
		Opponent: room.OpponentName(c.id),
	})
}

func (c *client) handlePlayerReady() {
	room := c.currentRoom()
	if room == nil {
		c.sendError("not in a room")
		return
	}
	room.MarkReady(c.id)
}

func (c *client) handlePlayerInput(data json.RawMessage) {
	var payload game.PlayerInputPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.sendError("malformed player-input payload")
		return
	}
	room := c.currentRoom()
	if room == nil {
		c.sendError("not in a room")
		return
	}
	room.HandleMove(c.id, payload.Direction, payload.Seq)
}

func (c *client) handleUsePowerup(data json.RawMessage) {
	var payload game.UsePowerupPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.sendError("malformed use-powerup payload")
		return
	}
	room := c.currentRoom()
	if room == nil {
		c.sendError("not in a room")
		return
	}
	room.HandlePowerupUse(c.id, payload.PowerupType)
}

func (c *client) handleRematch() {
	room := c.currentRoom()
	if room == nil {
		c.sendError("not in a room")
		return
	}
	room.VoteRematch(c.id)
}

func (c *client) handleLeaveRoom() {
	room := c.currentRoom()
	if room == nil {
		return
	}
	c.Seat(nil)
	c.ctrl.rooms.Leave(room, c.id)
}

func (c *client) handleFindMatch(data json.RawMessage) {
	var payload game.FindMatchPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.sendError("malformed find-match payload")
		return
	}
	if c.currentRoom() != nil {
		c.sendError("already in a room")
		return
	}
	c.setName(payload.PlayerName)

	lookupCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	rating, err := c.ctrl.stats.GetPlayerElo(lookupCtx, c.Name())
	cancel()
	if err != nil {
		c.log.WithError(err).Warn("rating lookup failed, using default")
		rating = dmn.DefaultRating
	}

	if err := c.ctrl.queue.Enqueue(c, rating); err != nil {
		c.sendError(err.Error())
		return
	}
	c.Send(game.MsgMatchmakingStatus, game.MatchmakingStatusPayload{InQueue: true})
}

func (c *client) handleCancelMatchmaking() {
	if c.ctrl.queue.Cancel(c.id) {
		c.Send(game.MsgMatchmakingCancelled, struct{}{})
	}
}

// cleanup tears down everything the connection was attached to. Runs
// exactly once, when the read pump exits.
func (c *client) cleanup() {
	c.ctrl.queue.Cancel(c.id)
	if room := c.currentRoom(); room != nil {
		c.Seat(nil)
		c.ctrl.rooms.Leave(room, c.id)
	}
	close(c.send)
	_ = c.conn.Close()
}
