// Package reducer implements the windowed reducers and scorers: ordinary
// atoms that read entries out of a named signalbus window and emit ranked
// or aggregated result signals. The scoring math (BM25, RRF, MMR, TF-IDF,
// dedup, burst/periodicity detection) is exposed as plain functions so it
// can be unit tested independent of the atom wiring.
package reducer

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/flowrt/flowrt/pkg/atom"
	"github.com/flowrt/flowrt/pkg/signalbus"
)

// WindowReader is the narrow signalbus dependency a reducer atom needs: the
// named window it reads from. Captured at registration time rather than
// threaded through atom.RunContext, which stays free of a signalbus import.
type WindowReader interface {
	WindowQuery() []signalbus.WindowEntry
}

// asFloat coerces a dynamically-typed signal value to float64.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// asText coerces a dynamically-typed signal value to a string, returning ""
// for values with no reasonable text form.
func asText(v any) string {
	s, _ := v.(string)

	return s
}

// floatsFromWindow extracts the numeric `value` field from every entry in
// entries, skipping non-numeric entries.
func floatsFromWindow(entries []signalbus.WindowEntry) []float64 {
	out := make([]float64, 0, len(entries))

	for _, e := range entries {
		if f, ok := asFloat(e.Signal.Value); ok {
			out = append(out, f)
		}
	}

	return out
}

// tokenize lowercases text, splits on Unicode word boundaries, and drops
// tokens of length <= 1.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	out := make([]string, 0, len(fields))

	for _, f := range fields {
		if len([]rune(f)) > 1 {
			out = append(out, f)
		}
	}

	return out
}

// cosineSimilarity computes cosine similarity between two equal-length
// vectors. Returns 0 if either vector has zero magnitude or lengths differ.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64

	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// charBigrams returns the overlapping two-rune substrings of lowercased s,
// in order and with repeats; a one-rune string yields itself.
func charBigrams(s string) []string {
	r := []rune(strings.ToLower(s))
	if len(r) < 2 {
		if len(r) == 1 {
			return []string{string(r)}
		}

		return nil
	}

	out := make([]string, 0, len(r)-1)
	for i := 0; i < len(r)-1; i++ {
		out = append(out, string(r[i:i+2]))
	}

	return out
}

// cosineBigramSimilarity scores two strings by cosine similarity over their
// character-bigram frequency vectors.
func cosineBigramSimilarity(a, b string) float64 {
	fa := bigramFreq(a)
	fb := bigramFreq(b)

	keys := make(map[string]struct{}, len(fa)+len(fb))
	for k := range fa {
		keys[k] = struct{}{}
	}

	for k := range fb {
		keys[k] = struct{}{}
	}

	var dot, normA, normB float64

	for k := range keys {
		va := fa[k]
		vb := fb[k]
		dot += va * vb
		normA += va * va
		normB += vb * vb
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func bigramFreq(s string) map[string]float64 {
	freq := make(map[string]float64)
	for _, bg := range charBigrams(s) {
		freq[bg]++
	}

	return freq
}

// stableSortByScoreDesc sorts indices [0, n) by score descending, breaking
// ties by ascending original index (insertion order).
func stableSortByScoreDesc(n int, score func(i int) float64) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	sort.SliceStable(idx, func(a, b int) bool {
		return score(idx[a]) > score(idx[b])
	})

	return idx
}

// atomFromCompute wraps compute into an atom.Executor that reads win and
// passes its entries and the run context to compute, which emits its own
// result signals through rc.
// This is the common shape behind every reducer's Atom constructor.
func atomFromCompute(win WindowReader, compute func(entries []signalbus.WindowEntry, rc atom.RunContext)) atom.Executor {
	return func(_ context.Context, rc atom.RunContext, _ atom.Input) error {
		entries := win.WindowQuery()
		compute(entries, rc)

		return nil
	}
}
