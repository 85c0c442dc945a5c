package reputation

import (
	"context"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/sybilwatch/trustgraph/internal/graph"
)

// EdgeImpact reports how much a single edge moves the audited node's final
// score. Impact is scoreWithout - scoreWith: a negative impact means the
// edge props the score up.
type EdgeImpact struct {
	Edge         graph.Edge `json:"edge"`
	EdgeIndex    int        `json:"edgeIndex"`
	ScoreWith    float64    `json:"scoreWith"`
	ScoreWithout float64    `json:"scoreWithout"`
	Impact       float64    `json:"impact"`
}

// AuditEdges runs a leave-one-out sensitivity audit over every edge
// incident to nodeID: each candidate edge is removed, the full pipeline is
// re-run, and the topK edges by absolute impact are returned, largest
// first. There is no incremental approximation, so cost grows with the
// audited node's degree; callers bound it with topK and rate limiting.
func AuditEdges(ctx context.Context, s *graph.Snapshot, cfg Config, nodeID string, topK int) ([]EdgeImpact, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if topK < 1 {
		return nil, &ConfigError{Fields: map[string]string{"topK": "must be at least 1"}}
	}
	idx, ok := s.Index(nodeID)
	if !ok {
		return nil, &graph.InvalidGraphError{Reason: "unknown node", ID: nodeID, EdgeIndex: -1}
	}

	baseline, err := ComputeScores(ctx, s, cfg)
	if err != nil {
		return nil, err
	}
	base, _ := baseline.ByID(nodeID)

	incident := make([]int, 0, len(s.InEdges(idx))+len(s.OutEdges(idx)))
	incident = append(incident, s.InEdges(idx)...)
	incident = append(incident, s.OutEdges(idx)...)
	sort.Ints(incident)

	impacts := make([]EdgeImpact, len(incident))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for k, edgeIndex := range incident {
		k, edgeIndex := k, edgeIndex
		g.Go(func() error {
			reduced, err := s.WithoutEdge(edgeIndex)
			if err != nil {
				return err
			}
			set, err := ComputeScores(gctx, reduced, cfg)
			if err != nil {
				return err
			}
			row, _ := set.ByID(nodeID)
			impacts[k] = EdgeImpact{
				Edge:         s.Edges()[edgeIndex],
				EdgeIndex:    edgeIndex,
				ScoreWith:    base.FinalScore,
				ScoreWithout: row.FinalScore,
				Impact:       row.FinalScore - base.FinalScore,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(impacts, func(a, b int) bool {
		ia, ib := math.Abs(impacts[a].Impact), math.Abs(impacts[b].Impact)
		if ia != ib {
			return ia > ib
		}
		return impacts[a].EdgeIndex < impacts[b].EdgeIndex
	})
	if topK < len(impacts) {
		impacts = impacts[:topK]
	}
	return impacts, nil
}
