package reducer

import (
	"context"

	"github.com/flowrt/flowrt/pkg/atom"
)

// Scored is a single item eligible for top-K selection.
type Scored struct {
	ID    string
	Score float64
}

// TopK selects the topK highest-scoring items, stable on ties (earlier
// input position wins).
type TopK struct {
	K int
}

// Select partitions items into the selected (descending score) and
// dropped sets.
func (t TopK) Select(items []Scored) (selected, dropped []Scored) {
	k := t.K
	if k < 0 {
		k = 0
	}

	if k > len(items) {
		k = len(items)
	}

	order := stableSortByScoreDesc(len(items), func(i int) float64 { return items[i].Score })

	selected = make([]Scored, 0, k)
	dropped = make([]Scored, 0, len(items)-k)

	for rank, i := range order {
		if rank < k {
			selected = append(selected, items[i])
		} else {
			dropped = append(dropped, items[i])
		}
	}

	return selected, dropped
}

// Atom adapts t into an atom.Executor that reads scored items directly
// from the triggering input's "items" key (a []Scored), emitting
// "topk.count", "topk.dropped", and the selected items.
func (t TopK) Atom() atom.Executor {
	return func(_ context.Context, rc atom.RunContext, in atom.Input) error {
		items, _ := in.Triggers["items"].([]Scored)

		selected, dropped := t.Select(items)

		rc.Emit("topk.count", len(selected), 1)
		rc.Emit("topk.dropped", len(dropped), 1)
		rc.Emit("topk.selected", selected, 1)

		return nil
	}
}
