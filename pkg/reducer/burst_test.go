package reducer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBurstDetectorFiresAtThreshold(t *testing.T) {
	t.Parallel()

	b := NewBurstDetector(time.Minute, 3)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	isBurst, _ := b.Observe("user1", base)
	assert.False(t, isBurst)

	isBurst, _ = b.Observe("user1", base.Add(time.Second))
	assert.False(t, isBurst)

	isBurst, rate := b.Observe("user1", base.Add(2*time.Second))
	assert.True(t, isBurst)
	assert.Greater(t, rate, 0.0)
}

func TestBurstDetectorWindowExpiry(t *testing.T) {
	t.Parallel()

	b := NewBurstDetector(time.Minute, 2)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	b.Observe("user1", base)

	isBurst, _ := b.Observe("user1", base.Add(2*time.Minute))
	assert.False(t, isBurst, "earlier event should have aged out of the window")
}

func TestBurstDetectorTracksIdentitiesIndependently(t *testing.T) {
	t.Parallel()

	b := NewBurstDetector(time.Minute, 2)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	b.Observe("user1", base)

	isBurst, _ := b.Observe("user2", base)
	assert.False(t, isBurst)
}
