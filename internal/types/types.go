// Package types holds the HTTP request and response shapes for the v1 API.
package types

import (
	"time"

	"github.com/sybilwatch/trustgraph/internal/clustering"
	"github.com/sybilwatch/trustgraph/internal/graph"
	"github.com/sybilwatch/trustgraph/internal/reputation"
)

// SnapshotPayload is the trust graph carried by scoring requests.
type SnapshotPayload struct {
	Nodes []graph.Node `json:"nodes" binding:"required"`
	Edges []graph.Edge `json:"edges"`
}

// ScoreRequest asks for a reputation scoring run. Config fields left nil
// fall back to the server's engine profile; AdjustBias applies the
// fairness correction with the given strength when positive. Source
// names a configured live graph source ("memgraph"); when set, the
// inline snapshot is ignored and the graph is pulled from the store.
type ScoreRequest struct {
	Snapshot   SnapshotPayload    `json:"snapshot"`
	Source     string             `json:"source,omitempty"`
	Config     *reputation.Config `json:"config,omitempty"`
	AdjustBias float64            `json:"adjustBias,omitempty"`
}

// ScoreResponse is a completed scoring run.
type ScoreResponse struct {
	RunID       string                    `json:"runId"`
	Scores      []reputation.Score        `json:"scores"`
	Converged   bool                      `json:"converged"`
	Iterations  int                       `json:"iterations"`
	Fairness    reputation.FairnessReport `json:"fairness"`
	Config      reputation.Config         `json:"config"`
	NumNodes    int                       `json:"numNodes"`
	NumEdges    int                       `json:"numEdges"`
	DurationMS  int64                     `json:"durationMs"`
	GeneratedAt time.Time                 `json:"generatedAt"`
}

// ClusterRequest asks for a sybil cluster detection run. Source names a
// configured live graph source; when set, accounts are derived from the
// store's snapshot with freshly computed reputation scores merged in.
type ClusterRequest struct {
	Accounts []clustering.Account `json:"accounts"`
	Source   string               `json:"source,omitempty"`
	Config   *clustering.Config   `json:"config,omitempty"`
}

// ClusterResponse is a completed detection run.
type ClusterResponse struct {
	RunID        string               `json:"runId"`
	Clusters     []clustering.Cluster `json:"clusters"`
	Method       string               `json:"method"`
	NumAccounts  int                  `json:"numAccounts"`
	NumClustered int                  `json:"numClustered"`
	Config       clustering.Config    `json:"config"`
	DurationMS   int64                `json:"durationMs"`
	GeneratedAt  time.Time            `json:"generatedAt"`
}

// SimilarityRequest asks for the pairwise similarity of two accounts.
type SimilarityRequest struct {
	A       clustering.Account         `json:"a" binding:"required"`
	B       clustering.Account         `json:"b" binding:"required"`
	Weights *clustering.FeatureWeights `json:"weights,omitempty"`
}

// SimilarityResponse is one pairwise similarity.
type SimilarityResponse struct {
	Similarity float64                   `json:"similarity"`
	Weights    clustering.FeatureWeights `json:"weights"`
}

// AuditRequest asks for a leave-one-out edge sensitivity audit of one
// node. TopK caps how many edges come back; zero means the server default.
type AuditRequest struct {
	Snapshot SnapshotPayload    `json:"snapshot" binding:"required"`
	NodeID   string             `json:"nodeId" binding:"required"`
	TopK     int                `json:"topK,omitempty"`
	Config   *reputation.Config `json:"config,omitempty"`
}

// AuditResponse is a completed sensitivity audit.
type AuditResponse struct {
	NodeID      string                  `json:"nodeId"`
	Impacts     []reputation.EdgeImpact `json:"impacts"`
	NumNodes    int                     `json:"numNodes"`
	NumEdges    int                     `json:"numEdges"`
	DurationMS  int64                   `json:"durationMs"`
	GeneratedAt time.Time               `json:"generatedAt"`
}

// TuneRequest asks for a clustering threshold sweep. Thresholds left
// empty uses the default sweep grid.
type TuneRequest struct {
	Accounts   []clustering.Account `json:"accounts" binding:"required"`
	Config     *clustering.Config   `json:"config,omitempty"`
	Thresholds []float64            `json:"thresholds,omitempty"`
}

// TuneResponse is a completed threshold sweep.
type TuneResponse struct {
	Steps       []clustering.TuningStep `json:"steps"`
	Best        float64                 `json:"best"`
	DurationMS  int64                   `json:"durationMs"`
	GeneratedAt time.Time               `json:"generatedAt"`
}
