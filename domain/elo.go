package domain

import "math"

// KFactor bounds the magnitude of a single match's rating change.
const KFactor = 32

// ExpectedScore returns the logistic win expectation of a player rated
// `rating` against an opponent rated `opponent`.
func ExpectedScore(rating, opponent int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(opponent-rating)/400.0))
}

// EloDelta returns the rating change for the winner of a match. The loser
// receives the negated delta, keeping the rating pool constant.
func EloDelta(winnerRating, loserRating int) int {
	return int(math.Round(KFactor * (1.0 - ExpectedScore(winnerRating, loserRating))))
}
