package graph

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestNewSnapshotValidation(t *testing.T) {
	valid := []Node{{ID: "alice"}, {ID: "bob"}}

	tests := []struct {
		name    string
		nodes   []Node
		edges   []Edge
		wantErr string
	}{
		{
			name:  "valid graph",
			nodes: valid,
			edges: []Edge{{From: "alice", To: "bob", Weight: 1, Timestamp: day(0)}},
		},
		{
			name:  "empty graph is valid",
			nodes: nil,
			edges: nil,
		},
		{
			name:    "duplicate node id",
			nodes:   []Node{{ID: "alice"}, {ID: "alice"}},
			wantErr: "duplicate node id",
		},
		{
			name:    "empty node id",
			nodes:   []Node{{ID: ""}},
			wantErr: "empty id",
		},
		{
			name:    "negative stake",
			nodes:   []Node{{ID: "alice", Stake: -1}},
			wantErr: "stake",
		},
		{
			name:    "nan payment volume",
			nodes:   []Node{{ID: "alice", PaymentVolume: math.NaN()}},
			wantErr: "payment volume",
		},
		{
			name:    "unknown edge source",
			nodes:   valid,
			edges:   []Edge{{From: "mallory", To: "bob", Weight: 1}},
			wantErr: "mallory",
		},
		{
			name:    "unknown edge target",
			nodes:   valid,
			edges:   []Edge{{From: "alice", To: "mallory", Weight: 1}},
			wantErr: "mallory",
		},
		{
			name:    "self loop",
			nodes:   valid,
			edges:   []Edge{{From: "alice", To: "alice", Weight: 1}},
			wantErr: "self-loop",
		},
		{
			name:    "zero weight",
			nodes:   valid,
			edges:   []Edge{{From: "alice", To: "bob", Weight: 0}},
			wantErr: "weight",
		},
		{
			name:    "negative weight",
			nodes:   valid,
			edges:   []Edge{{From: "alice", To: "bob", Weight: -0.5}},
			wantErr: "weight",
		},
		{
			name:    "infinite weight",
			nodes:   valid,
			edges:   []Edge{{From: "alice", To: "bob", Weight: math.Inf(1)}},
			wantErr: "weight",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSnapshot(tt.nodes, tt.edges)
			if tt.wantErr == "" {
				require.NoError(t, err)
				require.NotNil(t, s)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			var ige *InvalidGraphError
			assert.ErrorAs(t, err, &ige)
		})
	}
}

func TestSnapshotIndexIsSortedAndStable(t *testing.T) {
	// Same nodes in two different input orders must index identically.
	a := []Node{{ID: "carol"}, {ID: "alice"}, {ID: "bob"}}
	b := []Node{{ID: "bob"}, {ID: "carol"}, {ID: "alice"}}

	sa, err := NewSnapshot(a, nil)
	require.NoError(t, err)
	sb, err := NewSnapshot(b, nil)
	require.NoError(t, err)

	require.Equal(t, sa.Len(), sb.Len())
	for i := 0; i < sa.Len(); i++ {
		assert.Equal(t, sa.ID(i), sb.ID(i))
	}
	assert.Equal(t, "alice", sa.ID(0))
	assert.Equal(t, "bob", sa.ID(1))
	assert.Equal(t, "carol", sa.ID(2))
}

func TestSnapshotAdjacency(t *testing.T) {
	nodes := []Node{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	edges := []Edge{
		{From: "a", To: "b", Weight: 1, Timestamp: day(0)},
		{From: "b", To: "a", Weight: 2, Timestamp: day(1)},
		{From: "a", To: "c", Weight: 3, Timestamp: day(2)},
	}
	s, err := NewSnapshot(nodes, edges)
	require.NoError(t, err)

	ai, _ := s.Index("a")
	bi, _ := s.Index("b")
	ci, _ := s.Index("c")

	assert.Len(t, s.OutEdges(ai), 2)
	assert.Len(t, s.InEdges(ai), 1)
	assert.Len(t, s.OutEdges(bi), 1)
	assert.Len(t, s.InEdges(ci), 1)

	// Reciprocal a<->b edges collapse into one undirected neighbor entry.
	assert.Equal(t, []int{bi, ci}, s.Neighbors(ai))
	assert.Equal(t, []int{ai}, s.Neighbors(bi))
	assert.Equal(t, []int{ai}, s.Neighbors(ci))
}

func TestSnapshotTimeSpan(t *testing.T) {
	t.Run("no edges yields zero times", func(t *testing.T) {
		s, err := NewSnapshot([]Node{{ID: "a"}}, nil)
		require.NoError(t, err)
		assert.True(t, s.NewestEdgeTime().IsZero())
		oldest, newest := s.TimeSpan()
		assert.True(t, oldest.IsZero())
		assert.True(t, newest.IsZero())
	})

	t.Run("span covers oldest and newest edges", func(t *testing.T) {
		nodes := []Node{{ID: "a"}, {ID: "b"}}
		edges := []Edge{
			{From: "a", To: "b", Weight: 1, Timestamp: day(5)},
			{From: "b", To: "a", Weight: 1, Timestamp: day(1)},
		}
		s, err := NewSnapshot(nodes, edges)
		require.NoError(t, err)
		oldest, newest := s.TimeSpan()
		assert.Equal(t, day(1), oldest)
		assert.Equal(t, day(5), newest)
		assert.Equal(t, day(5), s.NewestEdgeTime())
	})
}

func TestWithoutEdge(t *testing.T) {
	nodes := []Node{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	edges := []Edge{
		{From: "a", To: "b", Weight: 1, Timestamp: day(0)},
		{From: "b", To: "c", Weight: 2, Timestamp: day(3)},
	}
	s, err := NewSnapshot(nodes, edges)
	require.NoError(t, err)

	reduced, err := s.WithoutEdge(1)
	require.NoError(t, err)
	assert.Equal(t, 1, reduced.NumEdges())
	assert.Equal(t, "b", reduced.Edges()[0].To)
	// Removing the newest edge moves the decay reference back.
	assert.Equal(t, day(0), reduced.NewestEdgeTime())
	// The original snapshot is untouched.
	assert.Equal(t, 2, s.NumEdges())
	assert.Equal(t, day(3), s.NewestEdgeTime())

	_, err = s.WithoutEdge(7)
	assert.Error(t, err)
}

func TestEdgeDescriptiveFieldsPassThrough(t *testing.T) {
	edge := Edge{
		From:        "alice",
		To:          "bob",
		Weight:      2,
		Timestamp:   day(0),
		Type:        EdgeTypeEndorse,
		StakeBacked: true,
		Verified:    true,
	}
	s, err := NewSnapshot([]Node{{ID: "alice"}, {ID: "bob"}}, []Edge{edge})
	require.NoError(t, err)

	got := s.Edges()[0]
	assert.Equal(t, EdgeTypeEndorse, got.Type)
	assert.True(t, got.StakeBacked)
	assert.True(t, got.Verified)
}
