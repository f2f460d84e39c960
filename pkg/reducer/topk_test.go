package reducer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopKSelectsHighestScores(t *testing.T) {
	t.Parallel()

	items := []Scored{{ID: "a", Score: 1}, {ID: "b", Score: 3}, {ID: "c", Score: 2}}

	selected, dropped := TopK{K: 2}.Select(items)

	require.Len(t, selected, 2)
	assert.Equal(t, "b", selected[0].ID)
	assert.Equal(t, "c", selected[1].ID)
	require.Len(t, dropped, 1)
	assert.Equal(t, "a", dropped[0].ID)
}

func TestTopKStableOnTies(t *testing.T) {
	t.Parallel()

	items := []Scored{{ID: "first", Score: 1}, {ID: "second", Score: 1}}

	selected, _ := TopK{K: 2}.Select(items)

	assert.Equal(t, "first", selected[0].ID)
	assert.Equal(t, "second", selected[1].ID)
}

func TestTopKOverCapacityClamps(t *testing.T) {
	t.Parallel()

	items := []Scored{{ID: "a", Score: 1}}

	selected, dropped := TopK{K: 5}.Select(items)

	assert.Len(t, selected, 1)
	assert.Empty(t, dropped)
}
