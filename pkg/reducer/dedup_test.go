package reducer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJaroWinklerIdentical(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, jaroWinkler("martha", "martha"), 1e-9)
}

func TestJaroWinklerClassicExample(t *testing.T) {
	t.Parallel()

	// Winkler's canonical MARTHA/MARHTA example, similarity ~0.961.
	assert.InDelta(t, 0.961, jaroWinkler("MARTHA", "MARHTA"), 0.005)
}

func TestNormalizedLevenshteinIdentical(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, normalizedLevenshtein("kitten", "kitten"), 1e-9)
}

func TestNormalizedLevenshteinBothEmpty(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, normalizedLevenshtein("", ""), 1e-9)
}

func TestDeduplicatorClustersNearDuplicates(t *testing.T) {
	t.Parallel()

	items := []string{
		"Acme Corporation",
		"Acme Corporaton", // typo, near-duplicate
		"Globex Inc",
	}

	clusters := NewDeduplicator().Cluster(items)

	require.Len(t, clusters, 2)

	var acmeCluster *DedupCluster

	for i := range clusters {
		if len(clusters[i].Members) == 2 {
			acmeCluster = &clusters[i]
		}
	}

	require.NotNil(t, acmeCluster)
	assert.Equal(t, 0, acmeCluster.Representative)
}

func TestDeduplicatorDuplicatesRemovedCount(t *testing.T) {
	t.Parallel()

	items := []string{"same", "same", "different"}

	assert.Equal(t, 1, NewDeduplicator().DuplicatesRemoved(items))
}

func TestDeduplicatorDissimilarItemsStaySingletons(t *testing.T) {
	t.Parallel()

	items := []string{"apple", "zebra", "quantum"}

	clusters := NewDeduplicator().Cluster(items)

	assert.Len(t, clusters, 3)
}
