package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/flowrt/flowrt/pkg/atom"
	"github.com/flowrt/flowrt/pkg/gate"
	"github.com/flowrt/flowrt/pkg/signalbus"
)

const (
	// DefaultAtomTimeout bounds a single atom invocation.
	DefaultAtomTimeout = 30 * time.Second
	// DefaultCoordinatorTimeout is the outer deadline a run never exceeds
	// regardless of an individual atom's own timeout.
	DefaultCoordinatorTimeout = 60 * time.Second
)

// ErrUnknownAtom wraps atom.ErrUnknownAtom for a node whose AtomName does
// not resolve in the registry at preparation time.
var ErrUnknownAtom = errors.New("workflow: node references unknown atom")

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	Sink     *signalbus.Sink
	Registry *atom.Registry
	Gate     *gate.Gate
	Lanes    *Lanes

	AtomTimeout        time.Duration
	CoordinatorTimeout time.Duration

	// SizeKb estimates the payload size in KB for the gate's cost formula,
	// given a node's coalesced triggers. Nil uses a fixed size of zero.
	SizeKb func(in atom.Input) float64
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.AtomTimeout <= 0 {
		c.AtomTimeout = DefaultAtomTimeout
	}

	if c.CoordinatorTimeout <= 0 {
		c.CoordinatorTimeout = DefaultCoordinatorTimeout
	}

	if c.SizeKb == nil {
		c.SizeKb = func(atom.Input) float64 { return 0 }
	}

	return c
}

// Scheduler is the graph interpreter: it matches emitted signals against
// compiled node triggers, dispatches atoms concurrently subject to lane
// and gate admission, and propagates resulting emissions back through the
// sink.
type Scheduler struct {
	cfg   SchedulerConfig
	def   Definition
	graph *Graph

	nodesByID map[string]Node
	states    map[string]*nodeState

	wildcardNodes []Node

	runID string

	wg     sync.WaitGroup
	subMu  sync.Mutex
	subs   []signalbus.Handle
	cancel context.CancelFunc
}

// NewScheduler prepares a Scheduler for def: builds the graph, compiles
// trigger sets, and resolves every node's atom contract from registry.
// wildcard-reading nodes (reads=["*"]) are excluded from the trigger index
// and instead subscribe to the sink directly.
func NewScheduler(def Definition, runID string, cfg SchedulerConfig) (*Scheduler, error) {
	cfg = cfg.withDefaults()

	triggers := CompileTriggers(def)

	s := &Scheduler{
		cfg:       cfg,
		def:       def,
		graph:     BuildGraph(def),
		nodesByID: make(map[string]Node, len(def.Nodes)),
		states:    make(map[string]*nodeState, len(def.Nodes)),
		runID:     runID,
	}

	for _, n := range def.Nodes {
		s.nodesByID[n.ID] = n

		entry, err := cfg.Registry.Get(n.AtomName)
		if err != nil {
			return nil, fmt.Errorf("%w: node %s atom %s", ErrUnknownAtom, n.ID, n.AtomName)
		}

		lane := Lane(n.Lane)
		if lane == "" {
			lane = laneForKind(entry.Contract.Kind)
		}

		if entry.Contract.ReadsAny() {
			s.wildcardNodes = append(s.wildcardNodes, n)
			// Wildcard nodes never participate in trigger coalescing and
			// skip lane and gate admission, but still take the per-node
			// serial lock;
			// their state is created here, not lazily on first dispatch,
			// so s.states is read-only once the scheduler starts (onSignal
			// and dispatchWildcard run on different sink-dispatch
			// goroutines with no shared lock).
			s.states[n.ID] = newNodeState(n.ID, TriggerSet{}, lane)
			continue
		}

		s.states[n.ID] = newNodeState(n.ID, triggers[n.ID], lane)
	}

	return s, nil
}

func laneForKind(k atom.Kind) Lane {
	switch k {
	case atom.KindProposer:
		return LaneLLM
	case atom.KindAnalyzer, atom.KindExtractor:
		return LaneML
	case atom.KindSensor, atom.KindRenderer:
		return LaneIO
	default:
		return LaneFast
	}
}

// Start subscribes the scheduler to the sink and begins reacting to
// emissions. It returns the run context and its cancel function; calling
// cancel cancels the run context, and with it every in-flight atom's
// context, at once. Start applies no shutdown grace period of its own.
func (s *Scheduler) Start(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	handle := s.cfg.Sink.Subscribe(func(sig signalbus.Signal) {
		s.onSignal(runCtx, sig)
	})

	resetHandle := s.cfg.Sink.Subscribe(func(sig signalbus.Signal) {
		if sig.Name != "atom.reset" {
			return
		}

		if nodeID, ok := sig.Value.(string); ok {
			s.ResetNode(nodeID)
		}
	})

	s.subMu.Lock()
	s.subs = append(s.subs, handle, resetHandle)
	s.subMu.Unlock()

	for _, n := range s.wildcardNodes {
		node := n

		wh := s.cfg.Sink.Subscribe(func(sig signalbus.Signal) {
			s.dispatchWildcard(runCtx, node, sig)
		})

		s.subMu.Lock()
		s.subs = append(s.subs, wh)
		s.subMu.Unlock()
	}

	return runCtx, cancel
}

// Wait blocks until every in-flight atom invocation started by this
// scheduler has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Stop unsubscribes the scheduler from the sink. Call after canceling the
// run context and Wait-ing for in-flight atoms to settle.
func (s *Scheduler) Stop() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, h := range s.subs {
		s.cfg.Sink.Unsubscribe(h)
	}

	s.subs = nil
}

// onSignal routes an emitted signal to every node whose trigger set
// includes it, offering the value into that node's pending state and
// attempting a firing.
func (s *Scheduler) onSignal(ctx context.Context, sig signalbus.Signal) {
	for _, nodeID := range s.graph.Targets(sig.Name) {
		state, ok := s.states[nodeID]
		if !ok {
			continue
		}

		state.pending.Offer(sig.Name, sig.Value)
		s.tryFire(ctx, state)
	}
}

// dispatchWildcard runs a wildcard (reads=["*"]) node directly off the
// sink subscription, bypassing the trigger index entirely. Its state was
// created up front in NewScheduler, since s.states is read-only for the
// scheduler's lifetime and concurrent sink dispatch gives no safe point to
// create it lazily.
func (s *Scheduler) dispatchWildcard(ctx context.Context, n Node, sig signalbus.Signal) {
	state, ok := s.states[n.ID]
	if !ok {
		return
	}

	in := atom.Input{
		RunID:    s.runID,
		NodeID:   n.ID,
		Triggers: map[string]any{sig.Name: sig.Value},
	}

	s.wg.Add(1)

	go s.runOnce(ctx, n, state, in)
}

// tryFire implements the admission sequence's step 1: a non-blocking
// attempt at the per-node serial lock. On contention the firing is
// already coalesced into pending state and the next completion will
// drain it; tryFire simply returns.
func (s *Scheduler) tryFire(ctx context.Context, state *nodeState) {
	if state.Quarantined() {
		return
	}

	if !state.pending.ShouldFire(state.trigger) {
		return
	}

	if !state.TryAcquireSerial() {
		return
	}

	triggers := state.pending.Drain(state.trigger)
	n := s.nodesByID[state.id]

	in := atom.Input{
		RunID:    s.runID,
		NodeID:   state.id,
		Triggers: triggers,
	}

	s.wg.Add(1)

	go s.runGated(ctx, n, state, in)
}

// runGated performs admission steps 2-5 for a firing that already holds
// the serial lock: lane admission, the gate check, the timed invocation,
// then release and coalesced-pending drain.
func (s *Scheduler) runGated(ctx context.Context, n Node, state *nodeState, in atom.Input) {
	defer s.wg.Done()
	defer state.ReleaseSerial()

	if err := s.cfg.Lanes.Acquire(ctx, state.lane); err != nil {
		return
	}
	defer s.cfg.Lanes.Release(state.lane)

	entry, err := s.cfg.Registry.Get(n.AtomName)
	if err != nil {
		return
	}

	result := s.cfg.Gate.Check(ctx, entry.Contract, s.cfg.SizeKb(in))

	switch result.Verdict {
	case gate.Admitted:
		s.invoke(ctx, n, entry, in, state)
	case gate.Throttled:
		s.cfg.Sink.Emit(signalbus.Signal{RunID: s.runID, Source: "scheduler", Name: "atom.throttled", Value: n.ID})
	case gate.DegradedSkip:
		// Silent skip per gate policy; nothing more to do.
	case gate.LicenseRequired:
		s.cfg.Sink.Emit(signalbus.Signal{RunID: s.runID, Source: "scheduler", Name: "atom.error", Value: map[string]string{"nodeId": n.ID, "kind": "license_required"}})
	}

	// Drain one more pending firing if signals coalesced while this one ran.
	if state.pending.HasAny() && state.pending.ShouldFire(state.trigger) {
		s.tryFire(ctx, state)
	}
}

// runOnce invokes a wildcard node's atom without lane/gate admission: it
// always runs, since it has no trigger-driven cost accounting of its own.
func (s *Scheduler) runOnce(ctx context.Context, n Node, state *nodeState, in atom.Input) {
	defer s.wg.Done()

	if !state.TryAcquireSerial() {
		return
	}
	defer state.ReleaseSerial()

	entry, err := s.cfg.Registry.Get(n.AtomName)
	if err != nil {
		return
	}

	s.invoke(ctx, n, entry, in, state)
}

// invoke runs entry.Executor with the per-invocation deadline
// min(atomTimeout, coordinatorTimeout), translating a caught error into
// atom.error and tracking quarantine.
func (s *Scheduler) invoke(ctx context.Context, n Node, entry atom.Entry, in atom.Input, state *nodeState) {
	deadline := s.cfg.AtomTimeout
	if s.cfg.CoordinatorTimeout < deadline {
		deadline = s.cfg.CoordinatorTimeout
	}

	invokeCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	rc := &runContext{
		sink:   s.cfg.Sink,
		runID:  s.runID,
		nodeID: n.ID,
		config: n.Config,
	}

	done := make(chan error, 1)

	go func() {
		done <- safeInvoke(entry.Executor, invokeCtx, rc, in)
	}()

	select {
	case err := <-done:
		if err != nil {
			s.onAtomError(n, err, state)
		}
	case <-invokeCtx.Done():
		// Give the atom up to one more deadline to observe cancellation,
		// then abandon it (2x deadline in all); an abandoned goroutine is
		// left to terminate on its own.
		select {
		case <-done:
		case <-time.After(deadline):
		}

		s.onAtomError(n, invokeCtx.Err(), state)
	}
}

// safeInvoke runs executor and converts a panic into an error so a single
// misbehaving atom cannot take down the scheduler's dispatch goroutine.
func safeInvoke(executor atom.Executor, ctx context.Context, rc atom.RunContext, in atom.Input) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("workflow: atom panic: %v", r)
		}
	}()

	return executor(ctx, rc, in)
}

func (s *Scheduler) onAtomError(n Node, cause error, state *nodeState) {
	kind := "error"
	if errors.Is(cause, context.DeadlineExceeded) {
		kind = "timeout"
	}

	s.cfg.Sink.Emit(signalbus.Signal{
		RunID:  s.runID,
		Source: "scheduler",
		Name:   "atom.error",
		Value:  map[string]string{"nodeId": n.ID, "kind": kind},
	})

	quarantined := state.RecordFailure(time.Now())
	if quarantined {
		s.cfg.Sink.Emit(signalbus.Signal{RunID: s.runID, Source: "scheduler", Name: "atom.quarantined", Value: n.ID})
	}
}

// ResetNode clears a node's quarantine state, the scheduler's response to
// an observed atom.reset(nodeId) signal.
func (s *Scheduler) ResetNode(nodeID string) {
	if state, ok := s.states[nodeID]; ok {
		state.Reset()
	}
}

// runContext is the concrete atom.RunContext handed to every invocation.
type runContext struct {
	sink   *signalbus.Sink
	runID  string
	nodeID string
	config map[string]any
}

func (rc *runContext) Emit(name string, value any, confidence float64) {
	rc.sink.Emit(signalbus.Signal{
		RunID:      rc.runID,
		Source:     rc.nodeID,
		Name:       name,
		Value:      value,
		Confidence: confidence,
	})
}

func (rc *runContext) Config() map[string]any { return rc.config }
func (rc *runContext) RunID() string          { return rc.runID }
func (rc *runContext) NodeID() string         { return rc.nodeID }
