package reducer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowrt/flowrt/pkg/atom"
	"github.com/flowrt/flowrt/pkg/reducer"
	"github.com/flowrt/flowrt/pkg/signalbus"
)

type fakeRunContext struct {
	emitted map[string]any
}

func newFakeRunContext() *fakeRunContext { return &fakeRunContext{emitted: make(map[string]any)} }

func (f *fakeRunContext) Emit(name string, value any, _ float64) { f.emitted[name] = value }
func (f *fakeRunContext) Config() map[string]any                 { return nil }
func (f *fakeRunContext) RunID() string                          { return "run1" }
func (f *fakeRunContext) NodeID() string                         { return "node1" }

func TestAccumulatorAtomAddsAndEmitsCount(t *testing.T) {
	t.Parallel()

	sink := signalbus.New(signalbus.Config{})
	win := sink.Window("docs", signalbus.WindowConfig{})

	acc := reducer.Accumulator{Window: win}
	executor := acc.Atom()

	rc := newFakeRunContext()

	require.NoError(t, executor(context.Background(), rc, atom.Input{Triggers: map[string]any{"doc.seen": "hello"}}))

	assert.Equal(t, 1, rc.emitted["accumulator.count"])
	assert.Len(t, win.WindowQuery(), 1)
}

func TestNumericReducerAtomEmitsValueAndCount(t *testing.T) {
	t.Parallel()

	sink := signalbus.New(signalbus.Config{})
	win := sink.Window("numbers", signalbus.WindowConfig{})

	win.WindowAdd(signalbus.Signal{Name: "n", Value: 1.0})
	win.WindowAdd(signalbus.Signal{Name: "n", Value: 2.0})
	win.WindowAdd(signalbus.Signal{Name: "n", Value: 3.0})

	executor := reducer.NewNumericReducer(reducer.OpAvg).Atom(win)

	rc := newFakeRunContext()
	require.NoError(t, executor(context.Background(), rc, atom.Input{}))

	assert.InDelta(t, 2.0, rc.emitted["avg.value"], 1e-9)
	assert.Equal(t, 3, rc.emitted["avg.count"])
}
