package adapters

import (
	"context"
	"fmt"
	"os"

	"github.com/sybilwatch/trustgraph/internal/clustering"
	"github.com/sybilwatch/trustgraph/internal/encoding"
	"github.com/sybilwatch/trustgraph/internal/graph"
)

// FileAdapter reads snapshots and account sets from JSON files. It backs
// the CLI and batch scoring jobs.
type FileAdapter struct {
	path string
}

// NewFileAdapter creates an adapter over the given JSON file.
func NewFileAdapter(path string) *FileAdapter {
	return &FileAdapter{path: path}
}

// Name identifies the source in logs and metrics.
func (a *FileAdapter) Name() string { return "file" }

type snapshotFile struct {
	Nodes []graph.Node `json:"nodes"`
	Edges []graph.Edge `json:"edges"`
}

// LoadSnapshot parses and validates the file as a trust graph snapshot.
func (a *FileAdapter) LoadSnapshot(_ context.Context) (*graph.Snapshot, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file %s: %w", a.path, err)
	}

	var payload snapshotFile
	if err := encoding.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot file %s: %w", a.path, err)
	}
	return graph.NewSnapshot(payload.Nodes, payload.Edges)
}

type accountsFile struct {
	Accounts []clustering.Account `json:"accounts"`
}

// LoadAccounts parses and validates the file as a clustering account set.
func (a *FileAdapter) LoadAccounts(_ context.Context) (*clustering.AccountSet, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts file %s: %w", a.path, err)
	}

	var payload accountsFile
	if err := encoding.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse accounts file %s: %w", a.path, err)
	}
	return clustering.NewAccountSet(payload.Accounts)
}
