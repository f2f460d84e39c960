// Package commands implements the workflowctl CLI subcommands: run,
// validate, license, render, and serve.
package commands

import (
	"time"

	"github.com/flowrt/flowrt/pkg/atom"
	"github.com/flowrt/flowrt/pkg/metrics"
	"github.com/flowrt/flowrt/pkg/reducer"
	"github.com/flowrt/flowrt/pkg/signalbus"
)

// Exit codes, per spec §6.
const (
	ExitSuccess           = 0
	ExitValidationFailure = 1
	ExitLicenseInvalid    = 2
	ExitThrottled         = 3
	ExitInternalError     = 4
)

// builtinAtomNames lists the reducer atoms registerBuiltinAtoms wires up,
// in registration order.
var builtinAtomNames = []string{
	"reducer.sum", "reducer.avg", "reducer.min", "reducer.max",
	"reducer.median", "reducer.stddev",
	"reducer.bm25", "reducer.topk", "reducer.burst", "reducer.accumulate",
}

// registerBuiltinAtoms binds the in-repo windowed reducers (spec §4.8) as
// runnable atoms against a window named after the node invoking them, so
// workflowctl run has something to execute without requiring an external
// atom plugin. Real deployments register domain atoms through the same
// *atom.Registry before constructing a workflow.Scheduler. It also
// returns a metrics.Registry carrying the numeric reducers' MetricMeta
// descriptions, so an operator can list what a "reducer.sum"-style atom
// actually computes without reading the source.
func registerBuiltinAtoms(registry *atom.Registry, sink *signalbus.Sink) (*metrics.Registry, error) {
	win := sink.Window("reducer.window", signalbus.WindowConfig{})
	metricsRegistry := metrics.NewRegistry()

	numeric := []reducer.NumericOp{
		reducer.OpSum, reducer.OpAvg, reducer.OpMin,
		reducer.OpMax, reducer.OpMedian, reducer.OpStdDev,
	}

	for _, op := range numeric {
		r := reducer.NewNumericReducer(op)

		metrics.Register(metricsRegistry, r)

		err := registry.Register("reducer."+string(op), r.Atom(win), atom.Contract{
			Kind:        atom.KindAnalyzer,
			Determinism: atom.Deterministic,
			Persistence: atom.Stateless,
			Reads:       []string{atom.Wildcard},
			Writes:      []string{string(op) + ".value", string(op) + ".count"},
		})
		if err != nil {
			return nil, err
		}
	}

	bm25Err := registry.Register("reducer.bm25", reducer.NewBM25().Atom(win), atom.Contract{
		Kind:        atom.KindAnalyzer,
		Determinism: atom.Deterministic,
		Persistence: atom.Stateless,
		Reads:       []string{"query"},
		Writes:      []string{"bm25.results"},
	})
	if bm25Err != nil {
		return nil, bm25Err
	}

	topkErr := registry.Register("reducer.topk", reducer.TopK{K: 10}.Atom(), atom.Contract{
		Kind:        atom.KindAnalyzer,
		Determinism: atom.Deterministic,
		Persistence: atom.Stateless,
		Reads:       []string{"items"},
		Writes:      []string{"topk.count", "topk.dropped", "topk.selected"},
	})
	if topkErr != nil {
		return nil, topkErr
	}

	burst := reducer.NewBurstDetector(30*time.Second, reducer.BurstDefaultThreshold)

	burstErr := registry.Register("reducer.burst", burst.Atom(time.Now), atom.Contract{
		Kind:        atom.KindAnalyzer,
		Determinism: atom.Nondeterministic,
		Persistence: atom.Stateful,
		Reads:       []string{atom.Wildcard},
		Writes:      []string{"burst.detected", "burst.rate", "burst.description"},
	})
	if burstErr != nil {
		return nil, burstErr
	}

	accumulator := reducer.Accumulator{Window: win}

	accumulateErr := registry.Register("reducer.accumulate", accumulator.Atom(), atom.Contract{
		Kind:        atom.KindAnalyzer,
		Determinism: atom.Deterministic,
		Persistence: atom.Stateful,
		Reads:       []string{atom.Wildcard},
		Writes:      []string{"accumulator.count"},
	})
	if accumulateErr != nil {
		return nil, accumulateErr
	}

	return metricsRegistry, nil
}
