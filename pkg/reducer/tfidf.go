package reducer

import (
	"math"
	"sort"
)

// TFVariant selects the term-frequency weighting scheme.
type TFVariant string

const (
	TFRaw             TFVariant = "raw"
	TFBoolean         TFVariant = "boolean"
	TFLog             TFVariant = "log"
	TFDoubleNormal    TFVariant = "doubleNormalized"
	TFAugmented       TFVariant = "augmented"
	tfDoubleNormalK             = 0.5
	tfAugmentedK                = 0.4
)

// IDFVariant selects the inverse-document-frequency weighting scheme.
type IDFVariant string

const (
	IDFStandard     IDFVariant = "standard"
	IDFSmooth       IDFVariant = "smooth"
	IDFProbabilisic IDFVariant = "probabilistic"
)

// TFIDF computes term-frequency/inverse-document-frequency weights over a
// document corpus. The zero value uses the spec default: log-normalized TF
// times smooth IDF.
type TFIDF struct {
	TF  TFVariant
	IDF IDFVariant
}

func (t TFIDF) tfVariant() TFVariant {
	if t.TF == "" {
		return TFLog
	}

	return t.TF
}

func (t TFIDF) idfVariant() IDFVariant {
	if t.IDF == "" {
		return IDFSmooth
	}

	return t.IDF
}

// TermScore is one term's weight within a single document.
type TermScore struct {
	Term  string
	Score float64
}

// Documents scores every document's terms, returning one []TermScore per
// document aligned to the input order.
func (t TFIDF) Documents(texts []string) [][]TermScore {
	if len(texts) == 0 {
		return nil
	}

	docTokens := make([][]string, len(texts))
	df := make(map[string]int)

	for i, text := range texts {
		toks := tokenize(text)
		docTokens[i] = toks

		seen := make(map[string]bool)
		for _, tok := range toks {
			if !seen[tok] {
				df[tok]++
				seen[tok] = true
			}
		}
	}

	n := float64(len(texts))
	out := make([][]TermScore, len(texts))

	for i, toks := range docTokens {
		termFreq := make(map[string]int, len(toks))
		for _, tok := range toks {
			termFreq[tok]++
		}

		maxFreq := 0
		for _, c := range termFreq {
			if c > maxFreq {
				maxFreq = c
			}
		}

		scores := make([]TermScore, 0, len(termFreq))

		for term, count := range termFreq {
			tf := t.computeTF(count, len(toks), maxFreq)
			idf := t.computeIDF(df[term], n)
			scores = append(scores, TermScore{Term: term, Score: tf * idf})
		}

		sort.Slice(scores, func(a, b int) bool {
			if scores[a].Score != scores[b].Score {
				return scores[a].Score > scores[b].Score
			}

			return scores[a].Term < scores[b].Term
		})

		out[i] = scores
	}

	return out
}

func (t TFIDF) computeTF(count, docLen, maxFreq int) float64 {
	switch t.tfVariant() {
	case TFRaw:
		return float64(count)
	case TFBoolean:
		if count > 0 {
			return 1
		}

		return 0
	case TFDoubleNormal:
		if maxFreq == 0 {
			return 0
		}

		return tfDoubleNormalK + tfDoubleNormalK*float64(count)/float64(maxFreq)
	case TFAugmented:
		if maxFreq == 0 {
			return 0
		}

		return tfAugmentedK + (1-tfAugmentedK)*float64(count)/float64(maxFreq)
	case TFLog:
		fallthrough
	default:
		if count == 0 {
			return 0
		}

		return 1 + math.Log(float64(count))
	}
}

func (t TFIDF) computeIDF(df int, n float64) float64 {
	switch t.idfVariant() {
	case IDFStandard:
		if df == 0 {
			return 0
		}

		return math.Log(n / float64(df))
	case IDFProbabilisic:
		if df == 0 {
			return 0
		}

		return math.Log((n - float64(df)) / float64(df))
	case IDFSmooth:
		fallthrough
	default:
		return math.Log(n/(1+float64(df))) + 1
	}
}

// TopTerms returns the k highest-scoring distinct terms for a single
// document's already-sorted score list.
func TopTerms(scores []TermScore, k int) []TermScore {
	if k <= 0 || k > len(scores) {
		k = len(scores)
	}

	return scores[:k]
}
