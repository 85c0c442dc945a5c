// Package graph holds the validated trust-graph snapshot the scoring and
// clustering engines operate on. A Snapshot is immutable after construction
// and iterates in a fixed order, so every pass over the same snapshot is
// deterministic regardless of how the input was assembled.
package graph

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Node is a participant in the trust graph.
type Node struct {
	ID            string            `json:"id"`
	Stake         float64           `json:"stake"`
	PaymentVolume float64           `json:"paymentVolume"`
	Quality       float64           `json:"quality"`
	Minority      bool              `json:"minority,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Edge kinds. Scoring treats every kind alike; the field is carried for
// callers that differentiate endorsement strength downstream.
const (
	EdgeTypeEndorse     = "ENDORSE"
	EdgeTypeFollow      = "FOLLOW"
	EdgeTypeCollaborate = "COLLABORATE"
)

// Edge is a directed, weighted endorsement from one node to another.
// Type, StakeBacked and Verified are descriptive passthrough fields.
type Edge struct {
	From        string    `json:"from"`
	To          string    `json:"to"`
	Weight      float64   `json:"weight"`
	Timestamp   time.Time `json:"timestamp"`
	Type        string    `json:"edgeType,omitempty"`
	StakeBacked bool      `json:"stakeBacked,omitempty"`
	Verified    bool      `json:"verified,omitempty"`
}

// InvalidGraphError reports a snapshot construction failure. ID names the
// offending node or endpoint when known; EdgeIndex is the position of the
// offending edge in the input slice, or -1 when the failure is not
// edge-scoped.
type InvalidGraphError struct {
	Reason    string
	ID        string
	EdgeIndex int
}

func (e *InvalidGraphError) Error() string {
	switch {
	case e.EdgeIndex >= 0 && e.ID != "":
		return fmt.Sprintf("invalid graph: %s (edge %d, id %q)", e.Reason, e.EdgeIndex, e.ID)
	case e.EdgeIndex >= 0:
		return fmt.Sprintf("invalid graph: %s (edge %d)", e.Reason, e.EdgeIndex)
	case e.ID != "":
		return fmt.Sprintf("invalid graph: %s (id %q)", e.Reason, e.ID)
	default:
		return fmt.Sprintf("invalid graph: %s", e.Reason)
	}
}

// Snapshot is a validated, indexed trust graph. Nodes are held sorted by ID
// and addressed by dense index; edges keep their input order. Accessors
// return internal slices which callers must treat as read-only.
type Snapshot struct {
	nodes []Node
	edges []Edge
	index map[string]int

	out [][]int // edge indices by source node
	in  [][]int // edge indices by target node

	neighbors [][]int // sorted undirected neighbor indices, deduplicated

	oldest time.Time
	newest time.Time
}

// NewSnapshot validates nodes and edges and builds the indexed snapshot.
// An empty node list is valid and yields an empty snapshot.
func NewSnapshot(nodes []Node, edges []Edge) (*Snapshot, error) {
	s := &Snapshot{
		nodes: make([]Node, len(nodes)),
		edges: make([]Edge, len(edges)),
		index: make(map[string]int, len(nodes)),
	}
	copy(s.nodes, nodes)
	copy(s.edges, edges)

	sort.Slice(s.nodes, func(i, j int) bool { return s.nodes[i].ID < s.nodes[j].ID })

	for i, n := range s.nodes {
		if n.ID == "" {
			return nil, &InvalidGraphError{Reason: "node has empty id", EdgeIndex: -1}
		}
		if _, dup := s.index[n.ID]; dup {
			return nil, &InvalidGraphError{Reason: "duplicate node id", ID: n.ID, EdgeIndex: -1}
		}
		if n.Stake < 0 || math.IsNaN(n.Stake) || math.IsInf(n.Stake, 0) {
			return nil, &InvalidGraphError{Reason: "stake must be a non-negative finite number", ID: n.ID, EdgeIndex: -1}
		}
		if n.PaymentVolume < 0 || math.IsNaN(n.PaymentVolume) || math.IsInf(n.PaymentVolume, 0) {
			return nil, &InvalidGraphError{Reason: "payment volume must be a non-negative finite number", ID: n.ID, EdgeIndex: -1}
		}
		s.index[n.ID] = i
	}

	s.out = make([][]int, len(s.nodes))
	s.in = make([][]int, len(s.nodes))

	for i, e := range s.edges {
		from, ok := s.index[e.From]
		if !ok {
			return nil, &InvalidGraphError{Reason: "edge source is not a known node", ID: e.From, EdgeIndex: i}
		}
		to, ok := s.index[e.To]
		if !ok {
			return nil, &InvalidGraphError{Reason: "edge target is not a known node", ID: e.To, EdgeIndex: i}
		}
		if e.From == e.To {
			return nil, &InvalidGraphError{Reason: "self-loop is not allowed", ID: e.From, EdgeIndex: i}
		}
		if e.Weight <= 0 || math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) {
			return nil, &InvalidGraphError{Reason: "edge weight must be a positive finite number", ID: e.From, EdgeIndex: i}
		}
		s.out[from] = append(s.out[from], i)
		s.in[to] = append(s.in[to], i)

		if s.newest.IsZero() || e.Timestamp.After(s.newest) {
			s.newest = e.Timestamp
		}
		if s.oldest.IsZero() || e.Timestamp.Before(s.oldest) {
			s.oldest = e.Timestamp
		}
	}

	s.buildNeighbors()
	return s, nil
}

func (s *Snapshot) buildNeighbors() {
	s.neighbors = make([][]int, len(s.nodes))
	seen := make([]map[int]struct{}, len(s.nodes))
	for i := range seen {
		seen[i] = make(map[int]struct{})
	}
	for _, e := range s.edges {
		from := s.index[e.From]
		to := s.index[e.To]
		seen[from][to] = struct{}{}
		seen[to][from] = struct{}{}
	}
	for i, m := range seen {
		list := make([]int, 0, len(m))
		for j := range m {
			list = append(list, j)
		}
		sort.Ints(list)
		s.neighbors[i] = list
	}
}

// Len returns the number of nodes.
func (s *Snapshot) Len() int { return len(s.nodes) }

// NumEdges returns the number of edges.
func (s *Snapshot) NumEdges() int { return len(s.edges) }

// Node returns the node at dense index i.
func (s *Snapshot) Node(i int) Node { return s.nodes[i] }

// Nodes returns all nodes sorted by ID.
func (s *Snapshot) Nodes() []Node { return s.nodes }

// Edges returns all edges in input order.
func (s *Snapshot) Edges() []Edge { return s.edges }

// Index maps a node ID to its dense index.
func (s *Snapshot) Index(id string) (int, bool) {
	i, ok := s.index[id]
	return i, ok
}

// ID returns the node ID at dense index i.
func (s *Snapshot) ID(i int) string { return s.nodes[i].ID }

// OutEdges returns the indices of edges leaving node i.
func (s *Snapshot) OutEdges(i int) []int { return s.out[i] }

// InEdges returns the indices of edges entering node i.
func (s *Snapshot) InEdges(i int) []int { return s.in[i] }

// Neighbors returns the sorted undirected neighbor indices of node i.
func (s *Snapshot) Neighbors(i int) []int { return s.neighbors[i] }

// NewestEdgeTime is the reference instant for temporal decay. It is the
// zero time when the snapshot has no edges.
func (s *Snapshot) NewestEdgeTime() time.Time { return s.newest }

// TimeSpan returns the oldest and newest edge timestamps. Both are the zero
// time when the snapshot has no edges.
func (s *Snapshot) TimeSpan() (oldest, newest time.Time) { return s.oldest, s.newest }

// WithoutEdge returns a new snapshot with the edge at index removed. It is
// used by the sensitivity audit, which re-scores the graph one missing edge
// at a time.
func (s *Snapshot) WithoutEdge(index int) (*Snapshot, error) {
	if index < 0 || index >= len(s.edges) {
		return nil, &InvalidGraphError{Reason: "edge index out of range", EdgeIndex: index}
	}
	edges := make([]Edge, 0, len(s.edges)-1)
	edges = append(edges, s.edges[:index]...)
	edges = append(edges, s.edges[index+1:]...)
	return NewSnapshot(s.nodes, edges)
}
