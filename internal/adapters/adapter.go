// Package adapters loads trust graph snapshots and account sets from
// external sources: JSON files for batch runs and a Memgraph instance
// for live graphs.
package adapters

import (
	"context"

	"github.com/sybilwatch/trustgraph/internal/clustering"
	"github.com/sybilwatch/trustgraph/internal/graph"
)

// SnapshotSource loads a validated trust graph snapshot.
type SnapshotSource interface {
	LoadSnapshot(ctx context.Context) (*graph.Snapshot, error)
	Name() string
}

// AccountSource loads a validated account set for clustering.
type AccountSource interface {
	LoadAccounts(ctx context.Context) (*clustering.AccountSet, error)
	Name() string
}

// AccountsFromSnapshot derives a clustering account set from a snapshot,
// optionally merging reputation scores by node ID. Edges become
// undirected connections; edge timestamps become activity instants on
// both endpoints.
func AccountsFromSnapshot(s *graph.Snapshot, reputationByID map[string]float64) (*clustering.AccountSet, error) {
	accounts := make([]clustering.Account, 0, s.Len())
	byID := make(map[string]*clustering.Account, s.Len())

	for _, node := range s.Nodes() {
		metadata := map[string]float64{
			"stake":          node.Stake,
			"payment_volume": node.PaymentVolume,
			"quality":        node.Quality,
		}
		accounts = append(accounts, clustering.Account{
			ID:         node.ID,
			Reputation: reputationByID[node.ID],
			Metadata:   metadata,
		})
	}
	for i := range accounts {
		byID[accounts[i].ID] = &accounts[i]
	}

	for _, edge := range s.Edges() {
		from, to := byID[edge.From], byID[edge.To]
		from.Connections = append(from.Connections, edge.To)
		to.Connections = append(to.Connections, edge.From)
		from.Activity = append(from.Activity, edge.Timestamp)
		to.Activity = append(to.Activity, edge.Timestamp)
	}

	return clustering.NewAccountSet(accounts)
}
