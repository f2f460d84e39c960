package reducer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBM25RanksMoreRelevantDocumentHigher(t *testing.T) {
	t.Parallel()

	docs := []BM25Document{
		{ID: "d1", Text: "the quick brown fox jumps over the lazy dog"},
		{ID: "d2", Text: "cats and dogs are common household pets"},
		{ID: "d3", Text: "dog dog dog dog training tips for new owners"},
	}

	scores := NewBM25().Score("dog training", docs)

	require.Len(t, scores, 3)
	assert.Equal(t, "d3", scores[0].ID)
}

func TestBM25EmptyCorpusReturnsNil(t *testing.T) {
	t.Parallel()

	assert.Nil(t, NewBM25().Score("anything", nil))
}

func TestBM25NoQueryTermMatchesScoresZero(t *testing.T) {
	t.Parallel()

	docs := []BM25Document{{ID: "d1", Text: "alpha beta gamma"}}
	scores := NewBM25().Score("zzz", docs)

	require.Len(t, scores, 1)
	assert.Equal(t, 0.0, scores[0].Score)
}
