package reducer

import (
	"github.com/flowrt/flowrt/pkg/alg/stats"
	"github.com/flowrt/flowrt/pkg/atom"
	"github.com/flowrt/flowrt/pkg/metrics"
	"github.com/flowrt/flowrt/pkg/signalbus"
)

// NumericOp selects which fold a NumericReducer computes.
type NumericOp string

const (
	OpSum    NumericOp = "sum"
	OpAvg    NumericOp = "avg"
	OpMin    NumericOp = "min"
	OpMax    NumericOp = "max"
	OpMedian NumericOp = "median"
	OpStdDev NumericOp = "stddev"
)

// NumericReducer folds the numeric `value` field of every window entry
// into a single scalar. An empty window yields 0 for every op.
type NumericReducer struct {
	metrics.MetricMeta

	Op NumericOp
}

// NewNumericReducer builds a NumericReducer named after op (e.g.
// "sum.reducer"), satisfying metrics.Metric[[]float64, float64].
func NewNumericReducer(op NumericOp) NumericReducer {
	return NumericReducer{
		MetricMeta: metrics.MetricMeta{
			MetricName: string(op) + ".reducer",
			MetricType: "aggregate",
		},
		Op: op,
	}
}

// Compute folds values according to r.Op.
func (r NumericReducer) Compute(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	switch r.Op {
	case OpSum:
		return stats.Sum(values)
	case OpAvg:
		return stats.Mean(values)
	case OpMin:
		return stats.Min(values)
	case OpMax:
		return stats.Max(values)
	case OpMedian:
		return stats.Median(values)
	case OpStdDev:
		_, sd := stats.MeanStdDev(values)

		return sd
	default:
		return 0
	}
}

// Atom adapts the reducer into an atom.Executor over win: emits
// "<op>.value" and "<op>.count" every firing.
func (r NumericReducer) Atom(win WindowReader) atom.Executor {
	return atomFromCompute(win, func(entries []signalbus.WindowEntry, rc atom.RunContext) {
		values := floatsFromWindow(entries)
		result := r.Compute(values)

		rc.Emit(string(r.Op)+".value", result, 1)
		rc.Emit(string(r.Op)+".count", len(values), 1)
	})
}
