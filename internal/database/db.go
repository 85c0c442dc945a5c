// Package database persists run history: every scoring and clustering run
// is recorded with its per-node scores or per-cluster rows so operators
// can inspect past output and the rankings views can aggregate over it.
package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the sqlite connection with pooling configuration.
type DB struct {
	*sql.DB
	path string
}

// NewDB opens (or creates) the run-history database under dataDir with
// WAL journaling and runs migrations.
func NewDB(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "trustgraph.db")
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=ON&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	database := &DB{DB: db, path: dbPath}
	if err := database.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("run-history database initialized", "path", dbPath)
	return database, nil
}

func (db *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,            -- 'score' or 'cluster'
			method TEXT,                   -- clustering method, empty for score runs
			params_digest TEXT NOT NULL,   -- md5 of the request body
			num_nodes INTEGER NOT NULL,
			num_edges INTEGER NOT NULL,
			num_clusters INTEGER NOT NULL,
			converged BOOLEAN NOT NULL,
			iterations INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS scores (
			run_id TEXT NOT NULL,
			node_id TEXT NOT NULL,
			graph_score REAL NOT NULL,
			quality_score REAL NOT NULL,
			stake_score REAL NOT NULL,
			payment_score REAL NOT NULL,
			final_score REAL NOT NULL,
			percentile REAL NOT NULL,
			sybil_probability REAL NOT NULL,
			PRIMARY KEY (run_id, node_id),
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS clusters (
			run_id TEXT NOT NULL,
			cluster_id TEXT NOT NULL,
			account_ids TEXT NOT NULL,     -- JSON array
			size INTEGER NOT NULL,
			density REAL NOT NULL,
			cohesion REAL NOT NULL,
			avg_reputation REAL NOT NULL,
			risk_score REAL NOT NULL,
			patterns TEXT NOT NULL,        -- JSON array
			PRIMARY KEY (run_id, cluster_id),
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_runs_kind_created ON runs(kind, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_final ON scores(run_id, final_score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_clusters_risk ON clusters(run_id, risk_score DESC)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	return nil
}

// Close closes the connection.
func (db *DB) Close() error {
	return db.DB.Close()
}

// GetPoolStats returns connection pool statistics.
func (db *DB) GetPoolStats() map[string]interface{} {
	stats := db.Stats()
	return map[string]interface{}{
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"wait_count":       stats.WaitCount,
		"wait_duration_ms": stats.WaitDuration.Milliseconds(),
	}
}
