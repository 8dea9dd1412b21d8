package i

import "context"

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Username string `json:"username"`
	Rating   int    `json:"rating"`
}

// Leaderboard mirrors player ratings into a ranked structure for cheap
// top-N reads.
type Leaderboard interface {
	// SetRating records the player's current rating.
	SetRating(ctx context.Context, username string, rating int) error

	// Top returns the best n players by rating, descending.
	Top(ctx context.Context, n int64) ([]LeaderboardEntry, error)
}
