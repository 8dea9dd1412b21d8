package leaderboard

import (
	"context"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/mgelsinger/maze-wars/service/i"
	"github.com/redis/go-redis/v9"
)

const defaultKey = "leaderboard:rating"

// RedisLeaderboard keeps player ratings in a sorted set for cheap top-N
// reads. Writes take a redsync lock so concurrent rating updates from
// multiple server instances do not interleave.
type RedisLeaderboard struct {
	client *redis.Client
	locker *redsync.Redsync
	key    string
}

// NewRedisLeaderboard initializes a RedisLeaderboard on the given client.
func NewRedisLeaderboard(client *redis.Client, key string) (i.Leaderboard, error) {
	if key == "" {
		key = defaultKey
	}
	lb := &RedisLeaderboard{
		client: client,
		key:    key,
	}
	pool := goredis.NewPool(client)
	lb.locker = redsync.New(pool)
	return lb, nil
}

// SetRating records the player's current rating.
func (lb *RedisLeaderboard) SetRating(ctx context.Context, username string, rating int) error {
	mutex := lb.locker.NewMutex(lb.key + ":write_lock")
	if err := mutex.Lock(); err != nil {
		return err
	}
	defer func() {
		_, _ = mutex.Unlock()
	}()

	return lb.client.ZAdd(ctx, lb.key, redis.Z{Score: float64(rating), Member: username}).Err()
}

// Top returns the best n players by rating, descending.
func (lb *RedisLeaderboard) Top(ctx context.Context, n int64) ([]i.LeaderboardEntry, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := lb.client.ZRevRangeWithScores(ctx, lb.key, 0, n-1).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]i.LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		name, ok := row.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, i.LeaderboardEntry{Username: name, Rating: int(row.Score)})
	}
	return entries, nil
}
