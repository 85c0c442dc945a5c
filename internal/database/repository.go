package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bytedance/sonic"
)

// Repository provides run-history persistence.
type Repository struct {
	db *DB
}

// NewRepository creates a repository over the given database.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SaveScoreRun persists a run record and its per-node scores in one
// transaction. The rows slice may be empty.
func (r *Repository) SaveScoreRun(ctx context.Context, run *Run, rows []ScoreRow) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertRun(ctx, tx, run); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scores (run_id, node_id, graph_score, quality_score, stake_score,
			payment_score, final_score, percentile, sybil_probability)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare score insert: %w", err)
	}
	defer stmt.Close()

	for i := range rows {
		row := &rows[i]
		if _, err := stmt.ExecContext(ctx, run.ID, row.NodeID,
			row.GraphScore, row.QualityScore, row.StakeScore, row.PaymentScore,
			row.FinalScore, row.Percentile, row.SybilProbability); err != nil {
			return fmt.Errorf("failed to insert score for %s: %w", row.NodeID, err)
		}
	}

	return tx.Commit()
}

// SaveClusterRun persists a run record and its cluster rows in one
// transaction.
func (r *Repository) SaveClusterRun(ctx context.Context, run *Run, rows []ClusterRow) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertRun(ctx, tx, run); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO clusters (run_id, cluster_id, account_ids, size, density,
			cohesion, avg_reputation, risk_score, patterns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare cluster insert: %w", err)
	}
	defer stmt.Close()

	for i := range rows {
		row := &rows[i]
		accounts, err := sonic.MarshalString(row.AccountIDs)
		if err != nil {
			return fmt.Errorf("failed to marshal account ids: %w", err)
		}
		patterns, err := sonic.MarshalString(row.Patterns)
		if err != nil {
			return fmt.Errorf("failed to marshal patterns: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, run.ID, row.ClusterID, accounts,
			row.Size, row.Density, row.Cohesion, row.AvgReputation,
			row.RiskScore, patterns); err != nil {
			return fmt.Errorf("failed to insert cluster %s: %w", row.ClusterID, err)
		}
	}

	return tx.Commit()
}

func insertRun(ctx context.Context, tx *sql.Tx, run *Run) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, kind, method, params_digest, num_nodes, num_edges,
			num_clusters, converged, iterations, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Kind, run.Method, run.ParamsDigest, run.NumNodes, run.NumEdges,
		run.NumClusters, run.Converged, run.Iterations, run.DurationMS, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, optionally filtered by kind.
func (r *Repository) ListRuns(ctx context.Context, kind string, limit int) ([]Run, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := `
		SELECT id, kind, method, params_digest, num_nodes, num_edges, num_clusters,
			converged, iterations, duration_ms, created_at
		FROM runs`
	args := []interface{}{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	dbRows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer dbRows.Close()

	var runs []Run
	for dbRows.Next() {
		var run Run
		if err := dbRows.Scan(&run.ID, &run.Kind, &run.Method, &run.ParamsDigest,
			&run.NumNodes, &run.NumEdges, &run.NumClusters, &run.Converged,
			&run.Iterations, &run.DurationMS, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, dbRows.Err()
}

// GetRun returns a single run, or sql.ErrNoRows if it does not exist.
func (r *Repository) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := r.db.QueryRowContext(ctx, `
		SELECT id, kind, method, params_digest, num_nodes, num_edges, num_clusters,
			converged, iterations, duration_ms, created_at
		FROM runs WHERE id = ?`, id).
		Scan(&run.ID, &run.Kind, &run.Method, &run.ParamsDigest,
			&run.NumNodes, &run.NumEdges, &run.NumClusters, &run.Converged,
			&run.Iterations, &run.DurationMS, &run.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// GetScores returns the persisted scores for a run, highest final score first.
func (r *Repository) GetScores(ctx context.Context, runID string) ([]ScoreRow, error) {
	dbRows, err := r.db.QueryContext(ctx, `
		SELECT run_id, node_id, graph_score, quality_score, stake_score,
			payment_score, final_score, percentile, sybil_probability
		FROM scores WHERE run_id = ? ORDER BY final_score DESC, node_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer dbRows.Close()

	var rows []ScoreRow
	for dbRows.Next() {
		var row ScoreRow
		if err := dbRows.Scan(&row.RunID, &row.NodeID, &row.GraphScore,
			&row.QualityScore, &row.StakeScore, &row.PaymentScore,
			&row.FinalScore, &row.Percentile, &row.SybilProbability); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, dbRows.Err()
}

// GetClusters returns the persisted clusters for a run, riskiest first.
func (r *Repository) GetClusters(ctx context.Context, runID string) ([]ClusterRow, error) {
	dbRows, err := r.db.QueryContext(ctx, `
		SELECT run_id, cluster_id, account_ids, size, density, cohesion,
			avg_reputation, risk_score, patterns
		FROM clusters WHERE run_id = ? ORDER BY risk_score DESC, cluster_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query clusters: %w", err)
	}
	defer dbRows.Close()

	var rows []ClusterRow
	for dbRows.Next() {
		var row ClusterRow
		var accounts, patterns string
		if err := dbRows.Scan(&row.RunID, &row.ClusterID, &accounts, &row.Size,
			&row.Density, &row.Cohesion, &row.AvgReputation, &row.RiskScore,
			&patterns); err != nil {
			return nil, fmt.Errorf("failed to scan cluster: %w", err)
		}
		if err := sonic.UnmarshalString(accounts, &row.AccountIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal account ids: %w", err)
		}
		if err := sonic.UnmarshalString(patterns, &row.Patterns); err != nil {
			return nil, fmt.Errorf("failed to unmarshal patterns: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, dbRows.Err()
}

// LatestRun returns the newest run of the given kind, or sql.ErrNoRows.
func (r *Repository) LatestRun(ctx context.Context, kind string) (*Run, error) {
	var run Run
	err := r.db.QueryRowContext(ctx, `
		SELECT id, kind, method, params_digest, num_nodes, num_edges, num_clusters,
			converged, iterations, duration_ms, created_at
		FROM runs WHERE kind = ? ORDER BY created_at DESC LIMIT 1`, kind).
		Scan(&run.ID, &run.Kind, &run.Method, &run.ParamsDigest,
			&run.NumNodes, &run.NumEdges, &run.NumClusters, &run.Converged,
			&run.Iterations, &run.DurationMS, &run.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// DeleteRun removes a run and, via cascade, its scores and clusters.
// It reports whether a row was deleted.
func (r *Repository) DeleteRun(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PruneOldRuns deletes runs older than the given number of days and
// returns how many were removed.
func (r *Repository) PruneOldRuns(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM runs WHERE created_at < datetime('now', ?)`,
		fmt.Sprintf("-%d days", retentionDays))
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return res.RowsAffected()
}

// IsNotFound reports whether err indicates a missing row.
func IsNotFound(err error) bool {
	return err == sql.ErrNoRows
}
