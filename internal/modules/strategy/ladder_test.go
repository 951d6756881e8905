package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReductionLadder_Product1(t *testing.T) {
	ladder := ReductionLadder(700, 35, 7)

	assert.Equal(t, []int{350, 175, 84, 42, 35}, ladder)
}

func TestReductionLadder_Invariants(t *testing.T) {
	tests := []struct {
		start, min, divisor int
	}{
		{700, 35, 7},
		{350, 35, 7},
		{140, 35, 7},
		{900, 45, 9},
		{450, 45, 9},
		{1000, 50, 10},
	}

	for _, tt := range tests {
		ladder := ReductionLadder(tt.start, tt.min, tt.divisor)
		require.NotEmpty(t, ladder)

		prev := tt.start
		for _, q := range ladder {
			assert.Less(t, q, prev, "ladder must strictly decrease")
			assert.GreaterOrEqual(t, q, tt.min)
			assert.Zero(t, q%tt.divisor, "%d is not a multiple of %d", q, tt.divisor)
			prev = q
		}
		assert.Equal(t, tt.min, ladder[len(ladder)-1])
	}
}

func TestReductionLadder_AtMinimumIsEmpty(t *testing.T) {
	assert.Empty(t, ReductionLadder(35, 35, 7))
	assert.Empty(t, ReductionLadder(20, 35, 7))
}

func TestReductionLadder_ZeroDivisor(t *testing.T) {
	assert.Equal(t, []int{50, 25, 12, 10}, ReductionLadder(100, 10, 0))
}
