// Package workflow implements the graph interpreter: trigger matching,
// lane-bounded concurrent dispatch, per-node coalescing, cancellation, and
// quarantine.
package workflow

import (
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// TriggerMode controls whether a node fires on any or all of its distinct
// incoming signal names.
type TriggerMode string

const (
	// TriggerAny fires the node when any configured signal name arrives.
	// This is the default.
	TriggerAny TriggerMode = "any"
	// TriggerAll fires the node only once every configured signal name
	// has been seen since the node's last firing.
	TriggerAll TriggerMode = "all"
)

// Node is one vertex in a WorkflowDefinition.
type Node struct {
	ID          string         `json:"id" yaml:"id"`
	AtomName    string         `json:"atomName" yaml:"atomName"`
	Config      map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	TriggerMode TriggerMode    `json:"triggerMode,omitempty" yaml:"triggerMode,omitempty"`
	Lane        string         `json:"lane,omitempty" yaml:"lane,omitempty"`
}

// Edge is one directed link in a WorkflowDefinition. Its JSON form
// (UnmarshalJSON) accepts the canonical field names as well as the
// sourceNodeId/targetNodeId/signalKey aliases; YAML manifests read through
// LoadDefinitionYAML use the canonical names only.
type Edge struct {
	SourceNode string `json:"sourceNode" yaml:"sourceNode"`
	SignalName string `json:"signalName" yaml:"signalName"`
	TargetNode string `json:"targetNode" yaml:"targetNode"`
}

// UnmarshalJSON accepts both the canonical field names and the
// sourceNodeId/targetNodeId/signalKey aliases.
func (e *Edge) UnmarshalJSON(data []byte) error {
	var raw struct {
		SourceNode   string `json:"sourceNode"`
		SourceNodeID string `json:"sourceNodeId"`
		SignalName   string `json:"signalName"`
		SignalKey    string `json:"signalKey"`
		TargetNode   string `json:"targetNode"`
		TargetNodeID string `json:"targetNodeId"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	e.SourceNode = firstNonEmpty(raw.SourceNode, raw.SourceNodeID)
	e.SignalName = firstNonEmpty(raw.SignalName, raw.SignalKey)
	e.TargetNode = firstNonEmpty(raw.TargetNode, raw.TargetNodeID)

	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}

	return ""
}

// Definition is a declarative workflow: nodes plus the edges routing
// signals between them. ManifestName is an optional human-facing alias
// some manifests carry alongside ID.
type Definition struct {
	ID           string `json:"id" yaml:"id"`
	ManifestName string `json:"manifestName,omitempty" yaml:"manifestName,omitempty"`
	Nodes        []Node `json:"nodes" yaml:"nodes"`
	Edges        []Edge `json:"edges" yaml:"edges"`
}

var (
	// ErrUnknownNode is returned when an edge references a node id not
	// present in Nodes.
	ErrUnknownNode = errors.New("workflow: edge references unknown node")
	// ErrSignalNotWritten is returned when an edge's signal is not
	// declared by the source atom's contract.
	ErrSignalNotWritten = errors.New("workflow: signal not declared as written by source")
	// ErrSignalNotRead is returned when an edge's signal is not declared
	// consumable by the target atom's contract.
	ErrSignalNotRead = errors.New("workflow: signal not declared as read by target")
	// ErrSelfEdge is returned for a node-to-itself edge when not
	// explicitly allowed.
	ErrSelfEdge = errors.New("workflow: self-edge not allowed")
)

// ContractLookup resolves a node's atom contract surface for validation.
// Only the fields Validate needs are exposed, avoiding an import of
// pkg/atom from this package's core types.
type ContractLookup func(atomName string) (reads, writes []string, ok bool)

// Validate checks structural invariants: every edge references declared
// nodes, every edge's signal is in the source's writes (or source writes
// "*") and the target's reads (or target reads "*"), no self-edges unless
// allowSelfEdges is true, and duplicate (source, signal, target) triples
// are deduplicated in place.
func (d *Definition) Validate(lookup ContractLookup, allowSelfEdges bool) error {
	nodeIndex := make(map[string]Node, len(d.Nodes))
	for _, n := range d.Nodes {
		nodeIndex[n.ID] = n
	}

	seen := make(map[string]bool, len(d.Edges))
	deduped := make([]Edge, 0, len(d.Edges))

	for _, e := range d.Edges {
		src, srcOK := nodeIndex[e.SourceNode]
		tgt, tgtOK := nodeIndex[e.TargetNode]

		if !srcOK || !tgtOK {
			return fmt.Errorf("%w: %s -> %s", ErrUnknownNode, e.SourceNode, e.TargetNode)
		}

		if !allowSelfEdges && e.SourceNode == e.TargetNode {
			return fmt.Errorf("%w: %s", ErrSelfEdge, e.SourceNode)
		}

		if lookup != nil {
			if err := validateSignalSurface(e, src, tgt, lookup); err != nil {
				return err
			}
		}

		key := e.SourceNode + "\x00" + e.SignalName + "\x00" + e.TargetNode
		if seen[key] {
			continue
		}

		seen[key] = true
		deduped = append(deduped, e)
	}

	d.Edges = deduped

	return nil
}

func validateSignalSurface(e Edge, src, tgt Node, lookup ContractLookup) error {
	srcReads, srcWrites, ok := lookup(src.AtomName)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, src.AtomName)
	}

	_ = srcReads

	if !containsOrWildcard(srcWrites, e.SignalName) {
		return fmt.Errorf("%w: %s on edge %s->%s", ErrSignalNotWritten, e.SignalName, e.SourceNode, e.TargetNode)
	}

	tgtReads, _, ok := lookup(tgt.AtomName)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, tgt.AtomName)
	}

	if !containsOrWildcard(tgtReads, e.SignalName) {
		return fmt.Errorf("%w: %s on edge %s->%s", ErrSignalNotRead, e.SignalName, e.SourceNode, e.TargetNode)
	}

	return nil
}

func containsOrWildcard(names []string, name string) bool {
	for _, n := range names {
		if n == "*" || n == name {
			return true
		}
	}

	return false
}

// LoadDefinitionYAML parses a workflow manifest authored in YAML into a
// Definition. JSON remains the canonical wire format; this is a
// convenience for hand-authored manifests.
func LoadDefinitionYAML(data []byte) (Definition, error) {
	var def Definition

	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, fmt.Errorf("workflow: parse yaml manifest: %w", err)
	}

	return def, nil
}
