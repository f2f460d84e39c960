package reducer

// MMRDefaultLambda is the default relevance/diversity trade-off.
const MMRDefaultLambda = 0.7

// MMRCandidate is one item eligible for MMR selection.
type MMRCandidate struct {
	ID        string
	Embedding []float64
	// Relevance is sim(query, candidate), precomputed by the caller (the
	// query embedding itself is not needed once this is supplied).
	Relevance float64
}

// MMR greedily selects a diverse top-K set via Maximal Marginal Relevance:
// argmax_{d in R\S} [ lambda*sim(q,d) - (1-lambda)*max_{s in S} sim(d,s) ].
type MMR struct {
	Lambda float64
}

// NewMMR returns an MMR selector with the spec default lambda=0.7.
func NewMMR() MMR {
	return MMR{Lambda: MMRDefaultLambda}
}

// Select returns up to topK candidate ids in selection order.
func (m MMR) Select(candidates []MMRCandidate, topK int) []string {
	lambda := m.Lambda
	if lambda == 0 {
		lambda = MMRDefaultLambda
	}

	if topK <= 0 || topK > len(candidates) {
		topK = len(candidates)
	}

	remaining := make([]int, len(candidates))
	for i := range remaining {
		remaining[i] = i
	}

	var selected []int

	out := make([]string, 0, topK)

	for len(out) < topK && len(remaining) > 0 {
		bestPos := -1

		var bestScore float64

		for pos, ci := range remaining {
			maxSim := 0.0

			for _, si := range selected {
				sim := cosineSimilarity(candidates[ci].Embedding, candidates[si].Embedding)
				if sim > maxSim {
					maxSim = sim
				}
			}

			score := lambda*candidates[ci].Relevance - (1-lambda)*maxSim

			if bestPos == -1 || score > bestScore {
				bestPos = pos
				bestScore = score
			}
		}

		chosen := remaining[bestPos]
		selected = append(selected, chosen)
		out = append(out, candidates[chosen].ID)
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}

	return out
}
