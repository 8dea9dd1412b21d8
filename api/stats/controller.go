// Package statsapi exposes leaderboard and rating lookups.
package statsapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mgelsinger/maze-wars/game"
	"github.com/mgelsinger/maze-wars/service/i"
)

const (
	defaultTopN = 10
	maxTopN     = 100

	lookupTimeout = 2 * time.Second
)

// StatsController serves read-only rating data.
type StatsController struct {
	stats       game.StatsStore
	leaderboard i.Leaderboard
}

// NewStatsController initializes a StatsController.
func NewStatsController(stats game.StatsStore, leaderboard i.Leaderboard) (*StatsController, error) {
	return &StatsController{
		stats:       stats,
		leaderboard: leaderboard,
	}, nil
}

// RegisterPublic registers public routes.
func (sc *StatsController) RegisterPublic(route *gin.RouterGroup) {
	stats := route.Group("/stats")
	{
		stats.GET("/leaderboard", sc.leaderboardTop)
		stats.GET("/elo/:name", sc.playerElo)
	}
}

// RegisterProtected registers protected routes.
func (sc *StatsController) RegisterProtected(route *gin.RouterGroup) {}

func (sc *StatsController) leaderboardTop(ctx *gin.Context) {
	n, err := strconv.ParseInt(ctx.DefaultQuery("limit", strconv.Itoa(defaultTopN)), 10, 64)
	if err != nil || n <= 0 || n > maxTopN {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()
	entries, err := sc.leaderboard.Top(timeoutCtx, n)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "leaderboard unavailable"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

func (sc *StatsController) playerElo(ctx *gin.Context) {
	name := ctx.Params.ByName("name")

	timeoutCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()
	rating, err := sc.stats.GetPlayerElo(timeoutCtx, name)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "rating unavailable"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"username": name, "rating": rating})
}
