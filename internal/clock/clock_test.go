package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToday(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	c := Fixed{T: time.Date(2025, 7, 4, 23, 30, 0, 0, loc)}
	assert.Equal(t, time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC), Today(c))
}

func TestReal(t *testing.T) {
	before := time.Now()
	now := Real{}.Now()
	assert.False(t, now.Before(before))
}
