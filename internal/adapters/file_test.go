package adapters

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sybilwatch/trustgraph/internal/graph"
)

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileAdapterLoadSnapshot(t *testing.T) {
	path := writeFixture(t, `{
		"nodes": [
			{"id": "alice", "stake": 10, "paymentVolume": 5, "quality": 0.8},
			{"id": "bob", "stake": 2, "quality": 0.4}
		],
		"edges": [
			{"from": "alice", "to": "bob", "weight": 1.5, "timestamp": "2026-01-15T00:00:00Z"}
		]
	}`)

	snap, err := NewFileAdapter(path).LoadSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Len())
	assert.Equal(t, 1, snap.NumEdges())

	i, ok := snap.Index("alice")
	require.True(t, ok)
	assert.InDelta(t, 10, snap.Node(i).Stake, 1e-9)
}

func TestFileAdapterRejectsInvalidGraph(t *testing.T) {
	path := writeFixture(t, `{
		"nodes": [{"id": "alice"}],
		"edges": [{"from": "alice", "to": "ghost", "weight": 1, "timestamp": "2026-01-15T00:00:00Z"}]
	}`)

	_, err := NewFileAdapter(path).LoadSnapshot(context.Background())
	var graphErr *graph.InvalidGraphError
	assert.ErrorAs(t, err, &graphErr)
}

func TestFileAdapterMissingFile(t *testing.T) {
	_, err := NewFileAdapter(filepath.Join(t.TempDir(), "missing.json")).LoadSnapshot(context.Background())
	assert.Error(t, err)
}

func TestFileAdapterLoadAccounts(t *testing.T) {
	path := writeFixture(t, `{
		"accounts": [
			{"id": "a1", "reputation": 0.5, "connections": ["a2"]},
			{"id": "a2", "reputation": 0.3}
		]
	}`)

	set, err := NewFileAdapter(path).LoadAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
}

func TestAccountsFromSnapshot(t *testing.T) {
	ts := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	snap, err := graph.NewSnapshot(
		[]graph.Node{
			{ID: "alice", Stake: 10, PaymentVolume: 3, Quality: 0.9},
			{ID: "bob", Stake: 1},
		},
		[]graph.Edge{{From: "alice", To: "bob", Weight: 1, Timestamp: ts}},
	)
	require.NoError(t, err)

	set, err := AccountsFromSnapshot(snap, map[string]float64{"alice": 0.8, "bob": 0.2})
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())

	i, ok := set.Index("alice")
	require.True(t, ok)
	alice := set.Account(i)
	assert.InDelta(t, 0.8, alice.Reputation, 1e-9)
	assert.Equal(t, []string{"bob"}, alice.Connections)
	assert.InDelta(t, 10, alice.Metadata["stake"], 1e-9)
	require.Len(t, alice.Activity, 1)
	assert.True(t, alice.Activity[0].Equal(ts))

	j, ok := set.Index("bob")
	require.True(t, ok)
	assert.Equal(t, []string{"alice"}, set.Account(j).Connections)
}
