package atom_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowrt/flowrt/pkg/atom"
)

func noopExecutor(context.Context, atom.RunContext, atom.Input) error { return nil }

func TestRegistryRegisterAndGet(t *testing.T) {
	t.Parallel()

	r := atom.NewRegistry()

	err := r.Register("sentiment.extract", noopExecutor, atom.Contract{
		Kind:   atom.KindExtractor,
		Writes: []string{"sentiment.score"},
	})
	require.NoError(t, err)

	entry, err := r.Get("sentiment.extract")
	require.NoError(t, err)
	assert.Equal(t, "sentiment.extract", entry.Contract.Name)
	assert.Equal(t, atom.KindExtractor, entry.Contract.Kind)
}

func TestRegistryGetUnknownAtom(t *testing.T) {
	t.Parallel()

	r := atom.NewRegistry()

	_, err := r.Get("missing")
	assert.ErrorIs(t, err, atom.ErrUnknownAtom)
}

func TestRegistryRejectsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	r := atom.NewRegistry()

	require.NoError(t, r.Register("x", noopExecutor, atom.Contract{}))

	err := r.Register("x", noopExecutor, atom.Contract{})
	assert.ErrorIs(t, err, atom.ErrAlreadyRegistered)
}

func TestRegistryDiscoverBulk(t *testing.T) {
	t.Parallel()

	r := atom.NewRegistry()

	err := r.Discover([]atom.Descriptor{
		{Contract: atom.Contract{Name: "a"}, Executor: noopExecutor},
		{Contract: atom.Contract{Name: "b"}, Executor: noopExecutor},
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a", "b"}, r.Names())
}

func TestContractCostAndWildcards(t *testing.T) {
	t.Parallel()

	c := atom.Contract{
		Reads:     []string{"*"},
		Writes:    []string{"out.value"},
		CostBase:  1,
		CostPerKB: 0.5,
	}

	assert.True(t, c.ReadsAny())
	assert.False(t, c.WritesAny())
	assert.InDelta(t, 3.5, c.Cost(5), 0.001)
}
