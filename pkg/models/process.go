// Package models defines the core domain models for process orchestration
// and entropy-driven regeneration.
package models

import (
	"time"
)

// NodeKind represents the kind of a process node.
type NodeKind string

const (
	NodeKindTask             NodeKind = "task"
	NodeKindExclusiveGateway NodeKind = "exclusive_gateway"
	NodeKindParallelGateway  NodeKind = "parallel_gateway"
	NodeKindTimerEvent       NodeKind = "timer_event"
	NodeKindBoundaryEvent    NodeKind = "boundary_event"
	NodeKindStartEvent       NodeKind = "start_event"
	NodeKindEndEvent         NodeKind = "end_event"
)

// Node represents a single node instance in a process graph.
type Node struct {
	ID   string   `json:"id"   validate:"required"`
	Kind NodeKind `json:"kind" validate:"required"`
	Name string   `json:"name"`

	// TaskName references a registered task handler. Task nodes only.
	TaskName string `json:"task_name,omitempty"`

	// Timeout bounds a single task dispatch. Zero means no limit.
	Timeout time.Duration `json:"timeout,omitempty"`

	// Duration is the wait interval for timer events.
	Duration time.Duration `json:"duration,omitempty"`

	// AttachedTo names the task node this boundary event is attached to.
	// Boundary events only.
	AttachedTo string `json:"attached_to,omitempty"`

	Config map[string]any `json:"config,omitempty"`
}

// Edge is a directed sequence flow between two nodes, optionally guarded
// by a boolean expression over the execution's variable bag.
type Edge struct {
	ID      string `json:"id"   validate:"required"`
	From    string `json:"from" validate:"required"`
	To      string `json:"to"   validate:"required"`
	Guard   string `json:"guard,omitempty"`
	Default bool   `json:"default,omitempty"`
}

// ProcessSpec is an immutable, validated process graph keyed by name.
// Specs are built once by the definition loader and never mutated.
type ProcessSpec struct {
	Name        string  `json:"name" validate:"required,min=1"`
	Description string  `json:"description,omitempty"`
	Version     string  `json:"version,omitempty"`
	Nodes       []*Node `json:"nodes" validate:"required,min=1,dive"`
	Edges       []*Edge `json:"edges" validate:"dive"`

	nodesByID map[string]*Node
	outgoing  map[string][]*Edge
	incoming  map[string][]*Edge
	startID   string
}

// Index builds the lookup tables used during execution. The definition
// loader calls this exactly once after structural validation.
func (s *ProcessSpec) Index() {
	s.nodesByID = make(map[string]*Node, len(s.Nodes))
	s.outgoing = make(map[string][]*Edge, len(s.Nodes))
	s.incoming = make(map[string][]*Edge, len(s.Nodes))

	for _, node := range s.Nodes {
		s.nodesByID[node.ID] = node

		if node.Kind == NodeKindStartEvent {
			s.startID = node.ID
		}
	}

	for _, edge := range s.Edges {
		s.outgoing[edge.From] = append(s.outgoing[edge.From], edge)
		s.incoming[edge.To] = append(s.incoming[edge.To], edge)
	}
}

// NodeByID returns the node with the given identifier.
func (s *ProcessSpec) NodeByID(id string) (*Node, bool) {
	node, ok := s.nodesByID[id]

	return node, ok
}

// StartNode returns the single start event of the process.
func (s *ProcessSpec) StartNode() *Node {
	return s.nodesByID[s.startID]
}

// Outgoing returns the outgoing edges of a node in declaration order.
func (s *ProcessSpec) Outgoing(nodeID string) []*Edge {
	return s.outgoing[nodeID]
}

// Incoming returns the incoming edges of a node in declaration order.
func (s *ProcessSpec) Incoming(nodeID string) []*Edge {
	return s.incoming[nodeID]
}

// BoundaryFor returns the boundary event attached to the given task node,
// if the process declares one.
func (s *ProcessSpec) BoundaryFor(taskNodeID string) (*Node, bool) {
	for _, node := range s.Nodes {
		if node.Kind == NodeKindBoundaryEvent && node.AttachedTo == taskNodeID {
			return node, true
		}
	}

	return nil, false
}
