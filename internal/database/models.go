package database

import (
	"time"

	"github.com/google/uuid"
)

// Run kinds stored in the runs table.
const (
	RunKindScore   = "score"
	RunKindCluster = "cluster"
)

// Run is one recorded engine invocation.
type Run struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	Method       string    `json:"method,omitempty"`
	ParamsDigest string    `json:"params_digest"`
	NumNodes     int       `json:"num_nodes"`
	NumEdges     int       `json:"num_edges"`
	NumClusters  int       `json:"num_clusters"`
	Converged    bool      `json:"converged"`
	Iterations   int       `json:"iterations"`
	DurationMS   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// ScoreRow is one node's persisted scores for a run.
type ScoreRow struct {
	RunID            string  `json:"run_id"`
	NodeID           string  `json:"node_id"`
	GraphScore       float64 `json:"graph_score"`
	QualityScore     float64 `json:"quality_score"`
	StakeScore       float64 `json:"stake_score"`
	PaymentScore     float64 `json:"payment_score"`
	FinalScore       float64 `json:"final_score"`
	Percentile       float64 `json:"percentile"`
	SybilProbability float64 `json:"sybil_probability"`
}

// ClusterRow is one detected cluster persisted for a run.
type ClusterRow struct {
	RunID         string   `json:"run_id"`
	ClusterID     string   `json:"cluster_id"`
	AccountIDs    []string `json:"account_ids"`
	Size          int      `json:"size"`
	Density       float64  `json:"density"`
	Cohesion      float64  `json:"cohesion"`
	AvgReputation float64  `json:"avg_reputation"`
	RiskScore     float64  `json:"risk_score"`
	Patterns      []string `json:"patterns"`
}

// NewScoreRun builds a Run record for a scoring invocation.
func NewScoreRun(paramsDigest string, nodes, edges, iterations int, converged bool, duration time.Duration) *Run {
	return &Run{
		ID:           uuid.New().String(),
		Kind:         RunKindScore,
		ParamsDigest: paramsDigest,
		NumNodes:     nodes,
		NumEdges:     edges,
		Converged:    converged,
		Iterations:   iterations,
		DurationMS:   duration.Milliseconds(),
		CreatedAt:    time.Now().UTC(),
	}
}

// NewClusterRun builds a Run record for a clustering invocation.
func NewClusterRun(paramsDigest, method string, accounts, clusters int, duration time.Duration) *Run {
	return &Run{
		ID:           uuid.New().String(),
		Kind:         RunKindCluster,
		Method:       method,
		ParamsDigest: paramsDigest,
		NumNodes:     accounts,
		NumClusters:  clusters,
		Converged:    true,
		DurationMS:   duration.Milliseconds(),
		CreatedAt:    time.Now().UTC(),
	}
}
