package valuation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCenter(t *testing.T) {
	tests := []struct {
		name     string
		baseline int64
		want     int64
	}{
		{"typical mid-market home", 412_300, 425_000},
		{"already clean step", 500_000, 515_000}, // 512,000 rounds up
		{"small value", 100_000, 105_000},
		{"adjustment lands exactly on step", 0, 0},
		{"luxury value", 2_000_000, 2_050_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Center(tt.baseline))
		})
	}
}

// The center value is always at or above the adjusted baseline and always a
// multiple of $5,000.
func TestCenterRoundsUpToStep(t *testing.T) {
	for _, baseline := range []int64{1, 4_999, 5_000, 123_456, 999_999, 7_345_678} {
		got := Center(baseline)
		assert.Zero(t, got%5_000, "baseline %d", baseline)
		assert.GreaterOrEqual(t, float64(got), float64(baseline)*1.024, "baseline %d", baseline)
	}
}

func TestFromBaseline(t *testing.T) {
	t.Run("provided baseline", func(t *testing.T) {
		got := FromBaseline(412_300)
		assert.Equal(t, int64(425_000), got.Center)
		assert.Equal(t, int64(412_300), got.Baseline)
		assert.Equal(t, SourceProvided, got.Source)
	})

	t.Run("missing baseline falls back", func(t *testing.T) {
		got := FromBaseline(0)
		assert.Equal(t, int64(467_500), got.Baseline) // 1,700 sqft * $275
		assert.Equal(t, int64(480_000), got.Center)
		assert.Equal(t, SourceFallback, got.Source)
	})

	t.Run("negative baseline falls back", func(t *testing.T) {
		got := FromBaseline(-5)
		assert.Equal(t, SourceFallback, got.Source)
	})
}
