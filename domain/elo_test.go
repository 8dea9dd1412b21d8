package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpectedScore(t *testing.T) {
	t.Run("equal ratings expect half", func(t *testing.T) {
		assert.InDelta(t, 0.5, ExpectedScore(1400, 1400), 1e-9)
	})

	t.Run("higher rating expects more", func(t *testing.T) {
		assert.Greater(t, ExpectedScore(1600, 1400), 0.5)
		assert.Less(t, ExpectedScore(1400, 1600), 0.5)
	})

	t.Run("expectations of both sides sum to one", func(t *testing.T) {
		a := ExpectedScore(1523, 1388)
		b := ExpectedScore(1388, 1523)
		assert.InDelta(t, 1.0, a+b, 1e-9)
	})
}

func TestEloDelta(t *testing.T) {
	t.Run("evenly matched win moves half the K factor", func(t *testing.T) {
		assert.Equal(t, KFactor/2, EloDelta(1400, 1400))
	})

	t.Run("upset win pays more than expected win", func(t *testing.T) {
		upset := EloDelta(1200, 1600)
		expected := EloDelta(1600, 1200)
		assert.Greater(t, upset, expected)
	})

	t.Run("delta stays within the K factor", func(t *testing.T) {
		cases := [][2]int{{1000, 2400}, {2400, 1000}, {1400, 1400}, {1500, 1450}}
		for _, tc := range cases {
			d := EloDelta(tc[0], tc[1])
			assert.GreaterOrEqual(t, d, 0)
			assert.LessOrEqual(t, d, KFactor)
		}
	})
}
