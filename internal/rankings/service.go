// Package rankings serves aggregate views over persisted run history:
// the top-reputation nodes from the latest scoring run and the riskiest
// clusters from the latest clustering run.
package rankings

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sybilwatch/trustgraph/internal/database"
)

// TopScoreEntry is one ranked node in the top-scores view.
type TopScoreEntry struct {
	Rank             int     `json:"rank"`
	NodeID           string  `json:"node_id"`
	FinalScore       float64 `json:"final_score"`
	Percentile       float64 `json:"percentile"`
	SybilProbability float64 `json:"sybil_probability"`
}

// TopScoresResponse is the top-scores view over the latest scoring run.
type TopScoresResponse struct {
	RunID     string          `json:"run_id"`
	RunAt     time.Time       `json:"run_at"`
	Total     int             `json:"total"`
	Entries   []TopScoreEntry `json:"entries"`
	Converged bool            `json:"converged"`
}

// RiskyClusterEntry is one ranked cluster in the risky-clusters view.
type RiskyClusterEntry struct {
	Rank       int      `json:"rank"`
	ClusterID  string   `json:"cluster_id"`
	Size       int      `json:"size"`
	RiskScore  float64  `json:"risk_score"`
	Density    float64  `json:"density"`
	Patterns   []string `json:"patterns"`
	AccountIDs []string `json:"account_ids"`
}

// RiskyClustersResponse is the risky-clusters view over the latest
// clustering run.
type RiskyClustersResponse struct {
	RunID   string              `json:"run_id"`
	RunAt   time.Time           `json:"run_at"`
	Method  string              `json:"method"`
	Total   int                 `json:"total"`
	Entries []RiskyClusterEntry `json:"entries"`
}

// Service builds ranking views with a read-through cache.
type Service struct {
	repo  *database.Repository
	cache *rankingsCache
}

// NewService creates a rankings service with a 5 minute cache TTL.
func NewService(repo *database.Repository) *Service {
	return NewServiceWithTTL(repo, 5*time.Minute)
}

// NewServiceWithTTL creates a rankings service with a custom cache TTL.
func NewServiceWithTTL(repo *database.Repository, ttl time.Duration) *Service {
	return &Service{
		repo:  repo,
		cache: newRankingsCache(ttl),
	}
}

// ErrNoRuns is returned when no run of the requested kind has been
// persisted yet.
var ErrNoRuns = fmt.Errorf("no runs recorded")

// TopScores returns the top nodes by final score from the newest scoring
// run.
func (s *Service) TopScores(ctx context.Context, limit int) (*TopScoresResponse, error) {
	limit = clampLimit(limit)

	if cached, found := s.cache.getTopScores(limit); found {
		return cached, nil
	}

	run, err := s.repo.LatestRun(ctx, database.RunKindScore)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrNoRuns
		}
		return nil, fmt.Errorf("failed to load latest score run: %w", err)
	}

	rows, err := s.repo.GetScores(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load scores: %w", err)
	}

	response := &TopScoresResponse{
		RunID:     run.ID,
		RunAt:     run.CreatedAt,
		Total:     len(rows),
		Converged: run.Converged,
	}
	for i, row := range rows {
		if i >= limit {
			break
		}
		response.Entries = append(response.Entries, TopScoreEntry{
			Rank:             i + 1,
			NodeID:           row.NodeID,
			FinalScore:       row.FinalScore,
			Percentile:       row.Percentile,
			SybilProbability: row.SybilProbability,
		})
	}

	s.cache.setTopScores(limit, response)
	return response, nil
}

// RiskyClusters returns the riskiest clusters from the newest clustering
// run.
func (s *Service) RiskyClusters(ctx context.Context, limit int) (*RiskyClustersResponse, error) {
	limit = clampLimit(limit)

	if cached, found := s.cache.getRiskyClusters(limit); found {
		return cached, nil
	}

	run, err := s.repo.LatestRun(ctx, database.RunKindCluster)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrNoRuns
		}
		return nil, fmt.Errorf("failed to load latest cluster run: %w", err)
	}

	rows, err := s.repo.GetClusters(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load clusters: %w", err)
	}

	response := &RiskyClustersResponse{
		RunID:  run.ID,
		RunAt:  run.CreatedAt,
		Method: run.Method,
		Total:  len(rows),
	}
	for i, row := range rows {
		if i >= limit {
			break
		}
		response.Entries = append(response.Entries, RiskyClusterEntry{
			Rank:       i + 1,
			ClusterID:  row.ClusterID,
			Size:       row.Size,
			RiskScore:  row.RiskScore,
			Density:    row.Density,
			Patterns:   row.Patterns,
			AccountIDs: row.AccountIDs,
		})
	}

	s.cache.setRiskyClusters(limit, response)
	return response, nil
}

// Invalidate drops the cached views. Called after a new run is persisted
// so the rankings reflect it immediately.
func (s *Service) Invalidate() {
	s.cache.invalidateAll()
	slog.Debug("rankings cache invalidated")
}

// CacheStats returns cache statistics for the admin surface.
func (s *Service) CacheStats() map[string]interface{} {
	return s.cache.stats()
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 100 {
		return 100
	}
	return limit
}
