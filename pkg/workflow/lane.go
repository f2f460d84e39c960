package workflow

import (
	"context"
	"sync"
)

// Lane identifies the concurrency pool an atom runs under.
type Lane string

const (
	LaneFast Lane = "fast"
	LaneIO   Lane = "io"
	LaneML   Lane = "ml"
	LaneLLM  Lane = "llm"
)

// DefaultLaneConcurrency returns the default maximum concurrency per lane.
func DefaultLaneConcurrency() map[Lane]int {
	return map[Lane]int{
		LaneFast: 8,
		LaneIO:   4,
		LaneML:   2,
		LaneLLM:  1,
	}
}

// laneSemaphore is a fair (FIFO-waiter) counting semaphore: a buffered
// channel token pool. Go channels already dispatch blocked senders/
// receivers in FIFO order, which is what "fair semaphore with FIFO
// waiters" requires.
type laneSemaphore struct {
	tokens chan struct{}
}

func newLaneSemaphore(n int) *laneSemaphore {
	if n <= 0 {
		n = 1
	}

	s := &laneSemaphore{tokens: make(chan struct{}, n)}

	for range n {
		s.tokens <- struct{}{}
	}

	return s
}

// Acquire blocks until a slot is available or ctx is canceled.
func (s *laneSemaphore) Acquire(ctx context.Context) error {
	select {
	case <-s.tokens:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot to the pool.
func (s *laneSemaphore) Release() {
	select {
	case s.tokens <- struct{}{}:
	default:
	}
}

// Lanes owns one semaphore per configured lane.
type Lanes struct {
	mu   sync.Mutex
	sems map[Lane]*laneSemaphore
}

// NewLanes creates a Lanes set from a lane -> max-concurrency map. A nil
// map uses DefaultLaneConcurrency; a lane missing from a non-nil map gets
// a single slot on first Acquire, not its default value.
func NewLanes(concurrency map[Lane]int) *Lanes {
	if concurrency == nil {
		concurrency = DefaultLaneConcurrency()
	}

	l := &Lanes{sems: make(map[Lane]*laneSemaphore, len(concurrency))}

	for lane, n := range concurrency {
		l.sems[lane] = newLaneSemaphore(n)
	}

	return l
}

// Acquire blocks for a slot in lane, creating a single-slot lane on first
// use if lane was not preconfigured.
func (l *Lanes) Acquire(ctx context.Context, lane Lane) error {
	l.mu.Lock()
	sem, ok := l.sems[lane]
	if !ok {
		sem = newLaneSemaphore(1)
		l.sems[lane] = sem
	}
	l.mu.Unlock()

	return sem.Acquire(ctx)
}

// Release returns a slot to lane.
func (l *Lanes) Release(lane Lane) {
	l.mu.Lock()
	sem, ok := l.sems[lane]
	l.mu.Unlock()

	if ok {
		sem.Release()
	}
}
