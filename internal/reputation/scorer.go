package reputation

import (
	"context"
	"math"
	"sort"

	"github.com/sybilwatch/trustgraph/internal/graph"
)

// Score is the per-node scoring row.
type Score struct {
	NodeID           string  `json:"nodeId"`
	GraphScore       float64 `json:"graphScore"`
	QualityScore     float64 `json:"qualityScore"`
	StakeScore       float64 `json:"stakeScore"`
	PaymentScore     float64 `json:"paymentScore"`
	FinalScore       float64 `json:"finalScore"`
	Percentile       float64 `json:"percentile"`
	SybilProbability float64 `json:"sybilProbability"`
}

// ScoreSet is the full scoring result. Scores are sorted by FinalScore
// descending, ties broken by node ID.
type ScoreSet struct {
	Scores     []Score        `json:"scores"`
	Converged  bool           `json:"converged"`
	Iterations int            `json:"iterations"`
	Fairness   FairnessReport `json:"fairness"`
	Config     Config         `json:"config"`

	byID map[string]int
}

// ByID looks up a node's score row.
func (s *ScoreSet) ByID(id string) (Score, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Score{}, false
	}
	return s.Scores[i], true
}

func (s *ScoreSet) reindex() {
	s.byID = make(map[string]int, len(s.Scores))
	for i, row := range s.Scores {
		s.byID[row.NodeID] = i
	}
}

func sortScores(rows []Score) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].FinalScore != rows[j].FinalScore {
			return rows[i].FinalScore > rows[j].FinalScore
		}
		return rows[i].NodeID < rows[j].NodeID
	})
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ComputeScores runs the full pipeline: temporal PageRank, hybrid blend,
// percentiles, Sybil probabilities and the fairness report. An empty
// snapshot yields an empty, converged ScoreSet rather than an error.
func ComputeScores(ctx context.Context, s *graph.Snapshot, cfg Config) (*ScoreSet, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n := s.Len()
	set := &ScoreSet{
		Scores:    make([]Score, 0, n),
		Converged: true,
		Config:    cfg,
		Fairness:  neutralFairness(),
	}
	if n == 0 {
		set.reindex()
		return set, nil
	}

	pr, err := runPageRank(ctx, s, cfg)
	if err != nil {
		return nil, err
	}
	set.Converged = pr.converged
	set.Iterations = pr.iterations

	maxStake, maxPayment := 0.0, 0.0
	for i := 0; i < n; i++ {
		node := s.Node(i)
		if node.Stake > maxStake {
			maxStake = node.Stake
		}
		if node.PaymentVolume > maxPayment {
			maxPayment = node.PaymentVolume
		}
	}

	blend := cfg.blendSum()
	finals := make([]float64, n)
	for i := 0; i < n; i++ {
		node := s.Node(i)
		row := Score{
			NodeID: node.ID,
			// Scaled by N so a uniformly trusted node scores ~1 at any
			// graph size.
			GraphScore:   pr.ranks[i] * float64(n),
			QualityScore: clamp01(node.Quality),
		}
		if maxStake > 0 {
			row.StakeScore = math.Log1p(node.Stake) / math.Log1p(maxStake)
		}
		if maxPayment > 0 {
			row.PaymentScore = math.Log1p(node.PaymentVolume) / math.Log1p(maxPayment)
		}
		row.FinalScore = (cfg.GraphWeight*row.GraphScore +
			cfg.QualityWeight*row.QualityScore +
			cfg.StakeWeight*row.StakeScore +
			cfg.PaymentWeight*row.PaymentScore) / blend
		finals[i] = row.FinalScore
		set.Scores = append(set.Scores, row)
	}

	pct := percentiles(finals)
	sybil := sybilProbabilities(s)
	for i := range set.Scores {
		set.Scores[i].Percentile = pct[i]
		set.Scores[i].SybilProbability = sybil[i]
	}

	sortScores(set.Scores)
	set.reindex()
	set.Fairness = computeFairness(s, set.Scores)
	return set, nil
}

// percentiles assigns each value the average 1-based rank of its tie
// group, scaled to [0,100]. A unique maximum lands on exactly 100; a
// full tie puts every value on the same mid percentile.
func percentiles(values []float64) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n == 0 {
		return out
	}

	ord := make([]int, n)
	for i := range ord {
		ord[i] = i
	}
	sort.Slice(ord, func(a, b int) bool { return values[ord[a]] < values[ord[b]] })

	for lo := 0; lo < n; {
		hi := lo
		for hi+1 < n && values[ord[hi+1]] == values[ord[lo]] {
			hi++
		}
		// ranks lo+1 .. hi+1, averaged over the tie group
		avgRank := float64(lo+hi+2) / 2
		p := avgRank / float64(n) * 100
		for k := lo; k <= hi; k++ {
			out[ord[k]] = p
		}
		lo = hi + 1
	}
	return out
}
