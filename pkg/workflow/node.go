package workflow

import (
	"sync"
	"time"
)

const (
	// QuarantineFailureThreshold is the number of failures within
	// QuarantineWindow that quarantines a node.
	QuarantineFailureThreshold = 5
	// QuarantineWindow is the rolling window over which failures count
	// toward quarantine.
	QuarantineWindow = time.Minute
)

// nodeState is the scheduler's per-node runtime state: the serial
// execution lock, the coalesced pending trigger set, and the rolling
// failure count used for quarantine.
type nodeState struct {
	id      string
	trigger TriggerSet
	lane    Lane

	serial  chan struct{} // capacity 1: the per-node serial lock
	pending *pendingState

	mu          sync.Mutex
	failures    []time.Time
	quarantined bool
}

func newNodeState(id string, trigger TriggerSet, lane Lane) *nodeState {
	s := &nodeState{
		id:      id,
		trigger: trigger,
		lane:    lane,
		serial:  make(chan struct{}, 1),
		pending: newPendingState(),
	}
	s.serial <- struct{}{}

	return s
}

// TryAcquireSerial attempts the non-blocking per-node serial lock
// required before every firing (step 1 of the admission sequence). On
// contention the caller coalesces and returns without firing.
func (s *nodeState) TryAcquireSerial() bool {
	select {
	case <-s.serial:
		return true
	default:
		return false
	}
}

// ReleaseSerial returns the per-node serial lock.
func (s *nodeState) ReleaseSerial() {
	s.serial <- struct{}{}
}

// RecordFailure appends a failure timestamp and reports whether the node
// crosses into quarantine as a result (5 failures in a rolling minute).
func (s *nodeState) RecordFailure(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures = append(s.failures, now)
	s.failures = pruneOlderThan(s.failures, now, QuarantineWindow)

	if len(s.failures) >= QuarantineFailureThreshold {
		s.quarantined = true
	}

	return s.quarantined
}

func pruneOlderThan(times []time.Time, now time.Time, window time.Duration) []time.Time {
	kept := times[:0]

	for _, t := range times {
		if now.Sub(t) <= window {
			kept = append(kept, t)
		}
	}

	return kept
}

// Quarantined reports whether the node is currently quarantined.
func (s *nodeState) Quarantined() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.quarantined
}

// Reset clears quarantine and failure history, in response to an external
// atom.reset(nodeId) signal.
func (s *nodeState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.quarantined = false
	s.failures = nil
}
