package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaginate(t *testing.T) {
	tests := []struct {
		name               string
		n, page, limit     int
		wantStart, wantEnd int
	}{
		{"first page", 5, 1, 2, 0, 2},
		{"last partial page", 5, 3, 2, 4, 5},
		{"past the end", 5, 4, 2, 5, 5},
		{"empty", 0, 1, 20, 0, 0},
		{"huge page", 5, math.MaxInt, 100, 5, 5},
		{"huge page small limit", 5, math.MaxInt / 2, 3, 5, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := Paginate(tt.n, tt.page, tt.limit)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}
