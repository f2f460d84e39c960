// Package atom implements the atom registry: the name-to-(contract,
// executor) map the workflow scheduler resolves nodes against.
package atom

import (
	"context"

	"github.com/flowrt/flowrt/pkg/license"
)

// Kind classifies what an atom does, used by tooling and by the
// scheduler's lane assignment.
type Kind string

const (
	KindSensor      Kind = "Sensor"
	KindExtractor   Kind = "Extractor"
	KindAnalyzer    Kind = "Analyzer"
	KindProposer    Kind = "Proposer"
	KindConstrainer Kind = "Constrainer"
	KindRenderer    Kind = "Renderer"
	KindShaper      Kind = "Shaper"
	KindCoordinator Kind = "Coordinator"
)

// Determinism classifies whether repeated invocations with the same
// inputs produce the same output, used by the scheduler's coalescing and
// retry policies.
type Determinism string

const (
	Deterministic    Determinism = "deterministic"
	Nondeterministic Determinism = "nondeterministic"
)

// Persistence classifies whether an atom has side effects outside the
// signal sink (e.g. writes through a Storage adapter).
type Persistence string

const (
	Stateless Persistence = "stateless"
	Stateful  Persistence = "stateful"
)

// Wildcard is the sentinel entry in Reads/Writes meaning "any signal
// name".
const Wildcard = "*"

// Contract is the immutable metadata describing an atom: its trigger
// surface, emission surface, and the licensed-gate preconditions applied
// before every invocation. Once registered, a Contract is never mutated.
type Contract struct {
	Name        string
	Kind        Kind
	Determinism Determinism
	Persistence Persistence
	Reads       []string
	Writes      []string

	// MinimumTier is the license tier required to run this atom.
	MinimumTier license.Tier
	// RequiredFeatures lists feature patterns (trailing-wildcard allowed)
	// that must all be enabled on the active license.
	RequiredFeatures []string
	// CostBase and CostPerKB parameterize the gate's linear cost model:
	// cost = CostBase + CostPerKB * sizeKb.
	CostBase  float64
	CostPerKB float64
}

// ReadsAny reports whether the contract declares a wildcard read.
func (c Contract) ReadsAny() bool {
	return containsWildcard(c.Reads)
}

// WritesAny reports whether the contract declares a wildcard write.
func (c Contract) WritesAny() bool {
	return containsWildcard(c.Writes)
}

func containsWildcard(names []string) bool {
	for _, n := range names {
		if n == Wildcard {
			return true
		}
	}

	return false
}

// Cost computes the gate's linear budget cost for a payload of the given
// size.
func (c Contract) Cost(sizeKb float64) float64 {
	return c.CostBase + c.CostPerKB*sizeKb
}

// Input is what the scheduler hands an atom on invocation: the triggering
// signal(s) coalesced per spec §4.7, plus the run context.
type Input struct {
	RunID  string
	NodeID string
	// Triggers holds the most recent value seen per signal name since the
	// node's last firing (coalesced per-name).
	Triggers map[string]any
}

// Executor is the function an atom registers to actually do work. ctx
// carries cancellation; rc is the borrowed per-invocation run context.
type Executor func(ctx context.Context, rc RunContext, in Input) error

// RunContext is the narrow per-invocation handle an executor receives. It
// mirrors spec §3's RunContext: sink, ids, config, logger, and services,
// but is declared here as an interface to avoid an import cycle between
// atom and the packages (signalbus, workflow) that construct it.
type RunContext interface {
	Emit(name string, value any, confidence float64)
	Config() map[string]any
	RunID() string
	NodeID() string
}
