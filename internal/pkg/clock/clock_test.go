package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMockClock(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.FixedZone("x", 3600))
	c := NewMockClock(start)

	assert.Equal(t, time.UTC, c.Now().Location())
	assert.True(t, c.Now().Equal(start))

	c.Advance(time.Minute)
	assert.Equal(t, time.Minute, c.Since(start))
	assert.Equal(t, -time.Minute, c.Until(start))

	c.Set(start.Add(time.Hour))
	assert.True(t, c.Now().Equal(start.Add(time.Hour)))
}
