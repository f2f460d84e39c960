package workflow

import "sync"

// TriggerSet is the compiled trigger predicate for a single node: the
// distinct signal names appearing on its incoming edges, and the mode
// (any/all) used to decide when those arrivals constitute a firing.
type TriggerSet struct {
	Names []string
	Mode  TriggerMode
}

// CompileTriggers derives each node's TriggerSet from the edges whose
// target is that node.
func CompileTriggers(def Definition) map[string]TriggerSet {
	names := make(map[string]map[string]bool)

	for _, e := range def.Edges {
		if names[e.TargetNode] == nil {
			names[e.TargetNode] = make(map[string]bool)
		}

		names[e.TargetNode][e.SignalName] = true
	}

	modeByNode := make(map[string]TriggerMode, len(def.Nodes))
	for _, n := range def.Nodes {
		mode := n.TriggerMode
		if mode == "" {
			mode = TriggerAny
		}

		modeByNode[n.ID] = mode
	}

	out := make(map[string]TriggerSet, len(names))

	for nodeID, nameSet := range names {
		list := make([]string, 0, len(nameSet))
		for name := range nameSet {
			list = append(list, name)
		}

		out[nodeID] = TriggerSet{Names: list, Mode: modeByNode[nodeID]}
	}

	return out
}

// pendingState tracks, for a single node, the coalesced trigger values
// accumulated since its last completed firing: most recent value per
// signal name (the coalescing rule for both any and all modes), plus
// which required names have been seen at least once since that firing —
// the basis for triggerMode=all's "seen since last firing" resolution.
type pendingState struct {
	mu     sync.Mutex
	values map[string]any
	seen   map[string]bool
}

func newPendingState() *pendingState {
	return &pendingState{
		values: make(map[string]any),
		seen:   make(map[string]bool),
	}
}

// Offer records an arriving signal's value for name, coalescing with any
// prior unconsumed value for the same name.
func (p *pendingState) Offer(name string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.values[name] = value
	p.seen[name] = true
}

// ShouldFire reports whether the accumulated pending state satisfies
// trigger, given trigger's mode and required names.
func (p *pendingState) ShouldFire(trigger TriggerSet) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(trigger.Names) == 0 {
		return false
	}

	switch trigger.Mode {
	case TriggerAll:
		for _, name := range trigger.Names {
			if !p.seen[name] {
				return false
			}
		}

		return true
	default: // TriggerAny
		for _, name := range trigger.Names {
			if p.seen[name] {
				return true
			}
		}

		return false
	}
}

// Drain returns a snapshot of the coalesced values for trigger's names and
// resets the seen/values state for those names, matching "firing drains
// and resets the set" for triggerMode=all, and the equivalent per-name
// consumption for triggerMode=any.
func (p *pendingState) Drain(trigger TriggerSet) map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]any, len(trigger.Names))

	for _, name := range trigger.Names {
		if v, ok := p.values[name]; ok {
			out[name] = v
		}

		delete(p.values, name)
		delete(p.seen, name)
	}

	return out
}

// HasAny reports whether there is at least one unconsumed value pending,
// used to decide whether to drain-and-refire after a node finishes.
func (p *pendingState) HasAny() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.seen) > 0
}
