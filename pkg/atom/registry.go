package atom

import (
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownAtom is returned by Get when no atom is registered under the
// requested name.
var ErrUnknownAtom = errors.New("atom: unknown atom")

// ErrAlreadyRegistered is returned by Register when name is already bound.
var ErrAlreadyRegistered = errors.New("atom: already registered")

// Entry pairs an atom's immutable contract with its executor.
type Entry struct {
	Contract Contract
	Executor Executor
}

// Descriptor is a compiled-in atom a Discover pass can register in bulk.
type Descriptor struct {
	Contract Contract
	Executor Executor
}

// Registry maps atom name to (contract, executor). Contracts are
// immutable once registered: Register rejects a second registration
// under the same name.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register binds name to executor and contract. Returns ErrAlreadyRegistered
// if name is already bound.
func (r *Registry) Register(name string, executor Executor, contract Contract) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}

	contract.Name = name
	r.entries[name] = Entry{Contract: contract, Executor: executor}

	return nil
}

// Discover registers every descriptor in descs, stopping at the first
// collision.
func (r *Registry) Discover(descs []Descriptor) error {
	for _, d := range descs {
		if err := r.Register(d.Contract.Name, d.Executor, d.Contract); err != nil {
			return err
		}
	}

	return nil
}

// Get returns the (contract, executor) pair registered under name.
func (r *Registry) Get(name string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnknownAtom, name)
	}

	return e, nil
}

// Names returns every registered atom name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}

	return out
}
