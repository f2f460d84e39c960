package reducer

import (
	"github.com/flowrt/flowrt/pkg/levenshtein"
)

// DedupDefaultThreshold is the combined-similarity cutoff above which two
// items are considered duplicates.
const DedupDefaultThreshold = 0.9

const (
	dedupJaroWinklerWeight = 0.5
	dedupLevenshteinWeight = 0.3
	dedupCosineWeight      = 0.2
	jaroWinklerPrefixBoost = 0.1
	jaroWinklerMaxPrefix   = 4
)

// DedupCluster groups items judged duplicates of one another. Representative
// is the smallest original index in the cluster.
type DedupCluster struct {
	Representative int
	Members        []int
}

// Deduplicator clusters a list of strings by combined string similarity:
// 50% Jaro-Winkler, 30% normalized Levenshtein, 20% cosine similarity over
// character bigrams.
type Deduplicator struct {
	Threshold float64
}

// NewDeduplicator returns a Deduplicator using the spec default threshold.
func NewDeduplicator() Deduplicator {
	return Deduplicator{Threshold: DedupDefaultThreshold}
}

// Similarity returns the combined similarity score in [0, 1] between a and
// b.
func (d Deduplicator) Similarity(a, b string) float64 {
	jw := jaroWinkler(a, b)
	lev := normalizedLevenshtein(a, b)
	cos := cosineBigramSimilarity(a, b)

	return dedupJaroWinklerWeight*jw + dedupLevenshteinWeight*lev + dedupCosineWeight*cos
}

// Cluster groups items into duplicate clusters using the combined
// similarity threshold. Every item belongs to exactly one cluster; a
// singleton item forms a cluster of its own. Representative is the
// smallest index in each cluster.
func (d Deduplicator) Cluster(items []string) []DedupCluster {
	threshold := d.Threshold
	if threshold == 0 {
		threshold = DedupDefaultThreshold
	}

	parent := make([]int, len(items))
	for i := range parent {
		parent[i] = i
	}

	var find func(int) int

	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}

		return parent[x]
	}

	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[max(ra, rb)] = min(ra, rb)
		}
	}

	for i := range items {
		for j := i + 1; j < len(items); j++ {
			if d.Similarity(items[i], items[j]) >= threshold {
				union(i, j)
			}
		}
	}

	groups := make(map[int][]int)
	for i := range items {
		root := find(i)
		groups[root] = append(groups[root], i)
	}

	out := make([]DedupCluster, 0, len(groups))

	for root, members := range groups {
		out = append(out, DedupCluster{Representative: root, Members: members})
	}

	return out
}

// DuplicatesRemoved reports how many of items would be dropped by keeping
// only each cluster's representative.
func (d Deduplicator) DuplicatesRemoved(items []string) int {
	clusters := d.Cluster(items)

	return len(items) - len(clusters)
}

// normalizedLevenshtein returns 1 - (edit distance / max length), in
// [0, 1]; two empty strings are considered identical.
func normalizedLevenshtein(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}

	var ctx levenshtein.Context

	dist := ctx.Distance(a, b)

	maxLen := len([]rune(a))
	if bl := len([]rune(b)); bl > maxLen {
		maxLen = bl
	}

	if maxLen == 0 {
		return 1
	}

	return 1 - float64(dist)/float64(maxLen)
}

// jaroWinkler computes the Jaro-Winkler similarity between a and b.
func jaroWinkler(a, b string) float64 {
	jaro := jaroSimilarity(a, b)

	prefix := commonPrefixLen(a, b, jaroWinklerMaxPrefix)

	return jaro + float64(prefix)*jaroWinklerPrefixBoost*(1-jaro)
}

func jaroSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 1
	}

	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	matchDistance := max(len(ra), len(rb))/2 - 1
	if matchDistance < 0 {
		matchDistance = 0
	}

	aMatches := make([]bool, len(ra))
	bMatches := make([]bool, len(rb))

	var matches int

	for i := range ra {
		lo := max(0, i-matchDistance)
		hi := min(len(rb)-1, i+matchDistance)

		for j := lo; j <= hi; j++ {
			if bMatches[j] || ra[i] != rb[j] {
				continue
			}

			aMatches[i] = true
			bMatches[j] = true
			matches++

			break
		}
	}

	if matches == 0 {
		return 0
	}

	var transpositions int

	k := 0

	for i := range ra {
		if !aMatches[i] {
			continue
		}

		for !bMatches[k] {
			k++
		}

		if ra[i] != rb[k] {
			transpositions++
		}

		k++
	}

	m := float64(matches)

	return (m/float64(len(ra)) + m/float64(len(rb)) + (m-float64(transpositions)/2)/m) / 3
}

func commonPrefixLen(a, b string, limit int) int {
	ra, rb := []rune(a), []rune(b)

	n := min(len(ra), len(rb))
	if n > limit {
		n = limit
	}

	count := 0

	for i := 0; i < n; i++ {
		if ra[i] != rb[i] {
			break
		}

		count++
	}

	return count
}
