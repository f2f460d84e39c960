package reducer

import (
	"context"

	"github.com/flowrt/flowrt/pkg/atom"
	"github.com/flowrt/flowrt/pkg/signalbus"
)

// WindowWriter is the narrow signalbus dependency the accumulator needs: a
// window it can append entities to.
type WindowWriter interface {
	WindowAdd(signalbus.Signal)
	WindowQuery() []signalbus.WindowEntry
}

// Accumulator adds recently observed entities to a named window and
// reports the window's resulting size.
type Accumulator struct {
	Window WindowWriter
}

// Add appends sig to the accumulator's window and returns the new count.
func (a Accumulator) Add(sig signalbus.Signal) int {
	a.Window.WindowAdd(sig)

	return len(a.Window.WindowQuery())
}

// Atom adapts the accumulator into an atom.Executor: every coalesced
// trigger value becomes one window entry, keyed by the triggering signal
// name, then emits accumulator.count.
func (a Accumulator) Atom() atom.Executor {
	return func(_ context.Context, rc atom.RunContext, in atom.Input) error {
		var count int

		for name, value := range in.Triggers {
			count = a.Add(signalbus.Signal{
				RunID:  rc.RunID(),
				Source: rc.NodeID(),
				Name:   name,
				Value:  value,
			})
		}

		rc.Emit("accumulator.count", count, 1)

		return nil
	}
}
