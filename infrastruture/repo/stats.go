package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	dmn "github.com/mgelsinger/maze-wars/domain"
	"github.com/mgelsinger/maze-wars/game"
	"github.com/mgelsinger/maze-wars/service/i"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection    = "users"
	matchesCollection  = "matches"
	soloRunsCollection = "solo_runs"
)

// StatsRepo is the MongoDB-backed stats store rooms report to at match end.
// Ratings are mirrored into the leaderboard; mirror failures are log-only.
type StatsRepo struct {
	users       *mongo.Collection
	matches     *mongo.Collection
	soloRuns    *mongo.Collection
	leaderboard i.Leaderboard
	log         *logrus.Entry
}

func NewStatsRepo(client *mongo.Client, dbName string, leaderboard i.Leaderboard, logger *logrus.Entry) *StatsRepo {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	db := client.Database(dbName)
	return &StatsRepo{
		users:       db.Collection(usersCollection),
		matches:     db.Collection(matchesCollection),
		soloRuns:    db.Collection(soloRunsCollection),
		leaderboard: leaderboard,
		log:         logger.WithField("component", "stats-repo"),
	}
}

// RecordVSMatch persists the match outcome, applies symmetric ELO deltas
// and returns the changes keyed by display name.
func (s *StatsRepo) RecordVSMatch(ctx context.Context, name1, name2, winnerName string, level int, time1, time2 int64, stats1, stats2 game.MatchStats) (*game.MatchResult, error) {
	u1, err := s.fetchOrCreate(ctx, name1)
	if err != nil {
		return nil, err
	}
	u2, err := s.fetchOrCreate(ctx, name2)
	if err != nil {
		return nil, err
	}

	winner, loser := u1, u2
	if winnerName == u2.Username {
		winner, loser = u2, u1
	}

	delta := dmn.EloDelta(winner.Rating, loser.Rating)
	winner.Rating += delta
	winner.Wins++
	loser.Rating -= delta
	loser.Losses++

	if err := s.applyRating(ctx, winner); err != nil {
		return nil, err
	}
	if err := s.applyRating(ctx, loser); err != nil {
		return nil, err
	}

	doc := bson.M{
		"player1":  name1,
		"player2":  name2,
		"winner":   winnerName,
		"level":    level,
		"time1":    time1,
		"time2":    time2,
		"stats1":   bson.M{"powerups": stats1.PowerupsCollected, "freezes": stats1.FreezesUsed},
		"stats2":   bson.M{"powerups": stats2.PowerupsCollected, "freezes": stats2.FreezesUsed},
		"eloDelta": delta,
		"playedAt": time.Now(),
	}
	if _, err := s.matches.InsertOne(ctx, doc); err != nil {
		// The rating updates already landed; the history row is best effort.
		s.log.WithError(err).Error("recording match document")
	}

	return &game.MatchResult{
		EloChanges: map[string]int{winner.Username: delta, loser.Username: -delta},
		NewElos:    map[string]int{winner.Username: winner.Rating, loser.Username: loser.Rating},
		PlayerIDs:  map[string]uuid.UUID{u1.Username: u1.ID, u2.Username: u2.ID},
	}, nil
}

// RecordSoloRun stores a single-player completion; no rating change.
func (s *StatsRepo) RecordSoloRun(ctx context.Context, name string, level int, elapsedMs int64, stats game.MatchStats) error {
	user, err := s.fetchOrCreate(ctx, name)
	if err != nil {
		return err
	}

	_, err = s.soloRuns.InsertOne(ctx, bson.M{
		"playerId": user.ID,
		"player":   name,
		"level":    level,
		"elapsed":  elapsedMs,
		"powerups": stats.PowerupsCollected,
		"freezes":  stats.FreezesUsed,
		"playedAt": time.Now(),
	})
	return err
}

// GetPlayerElo returns the player's rating; unknown players get the
// default rating rather than an error.
func (s *StatsRepo) GetPlayerElo(ctx context.Context, name string) (int, error) {
	var user dmn.User
	err := s.users.FindOne(ctx, bson.M{"username": name}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return dmn.DefaultRating, nil
	}
	if err != nil {
		return dmn.DefaultRating, err
	}
	return user.Rating, nil
}

// fetchOrCreate loads a user by name, upserting a guest record with the
// default rating when none exists (guests play without registering).
func (s *StatsRepo) fetchOrCreate(ctx context.Context, name string) (*dmn.User, error) {
	var user dmn.User
	err := s.users.FindOne(ctx, bson.M{"username": name}).Decode(&user)
	if err == nil {
		return &user, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, err
	}

	user = dmn.User{
		ID:       uuid.New(),
		Username: name,
		Rating:   dmn.DefaultRating,
	}
	opts := options.Update().SetUpsert(true)
	_, err = s.users.UpdateOne(ctx,
		bson.M{"username": name},
		bson.M{"$setOnInsert": bson.M{"_id": user.ID, "username": name, "rating": user.Rating}},
		opts)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *StatsRepo) applyRating(ctx context.Context, user *dmn.User) error {
	_, err := s.users.UpdateOne(ctx,
		bson.M{"_id": user.ID},
		bson.M{"$set": bson.M{
			"rating":    user.Rating,
			"wins":      user.Wins,
			"losses":    user.Losses,
			"updatedAt": time.Now(),
		}})
	if err != nil {
		return err
	}

	if s.leaderboard != nil {
		if err := s.leaderboard.SetRating(ctx, user.Username, user.Rating); err != nil {
			s.log.WithError(err).Error("mirroring rating to leaderboard")
		}
	}
	return nil
}
