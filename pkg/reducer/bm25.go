package reducer

import (
	"context"
	"math"

	"github.com/flowrt/flowrt/pkg/atom"
)

// BM25DefaultK1 and BM25DefaultB are the default free parameters of the
// Okapi BM25 scoring function.
const (
	BM25DefaultK1 = 1.5
	BM25DefaultB  = 0.75
)

// BM25Document is one document scored against a query.
type BM25Document struct {
	ID   string
	Text string
}

// BM25Score is a single document's BM25 result.
type BM25Score struct {
	ID    string
	Score float64
}

// BM25 scores a tokenized query against a corpus of documents using Okapi
// BM25: score(q,d) = sum_t IDF(t) * (tf*(k1+1)) / (tf + k1*(1-b+b*|d|/avgdl)).
type BM25 struct {
	K1 float64
	B  float64
}

// NewBM25 returns a BM25 scorer with the spec defaults (k1=1.5, b=0.75).
func NewBM25() BM25 {
	return BM25{K1: BM25DefaultK1, B: BM25DefaultB}
}

// Score ranks docs against query, descending by score, ties broken by
// insertion order (stable sort over the original slice order).
func (m BM25) Score(query string, docs []BM25Document) []BM25Score {
	if len(docs) == 0 {
		return nil
	}

	k1, b := m.K1, m.B
	if k1 == 0 {
		k1 = BM25DefaultK1
	}

	if b == 0 {
		b = BM25DefaultB
	}

	docTokens := make([][]string, len(docs))
	lengths := make([]int, len(docs))

	var totalLen int

	df := make(map[string]int)

	for i, d := range docs {
		toks := tokenize(d.Text)
		docTokens[i] = toks
		lengths[i] = len(toks)
		totalLen += len(toks)

		seen := make(map[string]bool)
		for _, t := range toks {
			if !seen[t] {
				df[t]++
				seen[t] = true
			}
		}
	}

	avgdl := float64(totalLen) / float64(len(docs))
	n := float64(len(docs))

	queryTerms := tokenize(query)

	scores := make([]float64, len(docs))

	for i, toks := range docTokens {
		termFreq := make(map[string]int, len(toks))
		for _, t := range toks {
			termFreq[t]++
		}

		var score float64

		for _, qt := range queryTerms {
			tf := float64(termFreq[qt])
			if tf == 0 {
				continue
			}

			idf := math.Log((n-float64(df[qt])+0.5)/(float64(df[qt])+0.5) + 1)
			numerator := tf * (k1 + 1)
			denominator := tf + k1*(1-b+b*float64(lengths[i])/avgdl)
			score += idf * (numerator / denominator)
		}

		scores[i] = score
	}

	order := stableSortByScoreDesc(len(docs), func(i int) float64 { return scores[i] })

	out := make([]BM25Score, len(docs))
	for rank, i := range order {
		out[rank] = BM25Score{ID: docs[i].ID, Score: scores[i]}
	}

	return out
}

// Atom adapts m into an atom.Executor: the triggering input's "query" key
// selects the query string, and win supplies the document corpus (each
// entry's value must be a BM25Document). Emits "bm25.results" as []BM25Score.
func (m BM25) Atom(win WindowReader) atom.Executor {
	return func(_ context.Context, rc atom.RunContext, in atom.Input) error {
		query, _ := in.Triggers["query"].(string)

		entries := win.WindowQuery()

		docs := make([]BM25Document, 0, len(entries))

		for _, e := range entries {
			if d, ok := e.Signal.Value.(BM25Document); ok {
				docs = append(docs, d)
			}
		}

		rc.Emit("bm25.results", m.Score(query, docs), 1)

		return nil
	}
}
