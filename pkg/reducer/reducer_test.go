package reducer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeDropsShortTokensAndLowercases(t *testing.T) {
	t.Parallel()

	toks := tokenize("The Quick, Brown fox-jumps a 2nd Time!")
	assert.Equal(t, []string{"the", "quick", "brown", "fox", "jumps", "2nd", "time"}, toks)
}

func TestCosineSimilarityIdentical(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, cosineSimilarity([]float64{1, 2, 3}, []float64{1, 2, 3}), 1e-9)
}

func TestCosineSimilarityOrthogonal(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
}

func TestCosineSimilarityMismatchedLength(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, cosineSimilarity([]float64{1, 2}, []float64{1}))
}

func TestCosineBigramSimilarityIdentical(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, cosineBigramSimilarity("hello", "hello"), 1e-9)
}

func TestStableSortByScoreDescPreservesTieOrder(t *testing.T) {
	t.Parallel()

	scores := []float64{1, 3, 3, 2}
	order := stableSortByScoreDesc(len(scores), func(i int) float64 { return scores[i] })

	assert.Equal(t, []int{1, 2, 3, 0}, order)
}
