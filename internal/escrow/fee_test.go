package escrow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeFee(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		want   int64
	}{
		{"two percent of 1000", 1000, 20},
		{"zero amount", 0, 0},
		{"rounds half up at boundary", 25, 1},
		{"rounds down below boundary", 24, 0},
		{"rounds up above boundary", 26, 1},
		{"small amount", 100, 2},
		{"odd amount rounds", 1075, 22},
		{"large amount", 5_000_000, 100_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeFee(tt.amount))
		})
	}
}

func TestComputeFee_NeverExceedsAmount(t *testing.T) {
	for _, amount := range []int64{0, 1, 10, 25, 49, 50, 51, 1000} {
		fee := ComputeFee(amount)
		assert.GreaterOrEqual(t, fee, int64(0))
		assert.LessOrEqual(t, fee, amount)
	}
}
