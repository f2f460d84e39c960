// Package signalbus implements the in-process, lifetime-scoped signal bus:
// an append-only ring of immutable Signal values, fan-out subscriptions,
// and named sliding windows used by the reducers in pkg/reducer.
package signalbus

import "time"

// Signal is an immutable record broadcast through a Sink. Once appended to
// a Sink, a Signal is never mutated.
type Signal struct {
	// RunID correlates a signal to the workflow run that produced it.
	RunID string
	// Source is the node id (or "system") that emitted the signal.
	Source string
	// Name is a dot-delimited path, e.g. "sentiment.score".
	Name string
	// Key is an optional correlation token.
	Key string
	// Value is a dynamically-typed payload: scalar, string, sequence, or
	// structured record.
	Value any
	// Confidence is in [0, 1]; zero when not meaningful for this signal.
	Confidence float64
	// EmittedAt is monotonic per Sink.
	EmittedAt time.Time
}

// WithValue returns a copy of s with Value replaced. Signals are immutable;
// this never mutates the receiver.
func (s Signal) WithValue(v any) Signal {
	s.Value = v

	return s
}
