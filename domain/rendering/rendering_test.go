package rendering

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDurationWithinBounds(t *testing.T) {
	tolerance := 5 * time.Second

	tests := []struct {
		name     string
		duration float64
		slot     int
		want     bool
	}{
		{"exact", 600, 600, true},
		{"five short", 595, 600, true},
		{"five long", 605, 600, true},
		{"six short", 594, 600, false},
		{"six long", 606, 600, false},
		{"fractional inside", 602.5, 600, true},
		{"fractional outside", 605.1, 600, false},
		{"zero slot accepts anything", 47, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DurationWithinBounds(tt.duration, tt.slot, tolerance))
		})
	}
}
