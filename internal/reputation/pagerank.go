package reputation

import (
	"context"
	"math"

	"github.com/sybilwatch/trustgraph/internal/graph"
)

type pagerankResult struct {
	ranks      []float64
	iterations int
	converged  bool
}

// teleportVector builds the personalized restart distribution. Every node
// gets a floor of 1 so unstaked nodes remain reachable; stake and payment
// volume are log-damped and normalized against the graph maximum, so the
// heaviest whale biases its restart mass by at most 1 + the teleport
// weights, never proportionally to raw holdings.
func teleportVector(s *graph.Snapshot, cfg Config) []float64 {
	n := s.Len()
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

	pref := make([]float64, n)
	total := 0.0
	for i := 0; i < n; i++ {
		node := s.Node(i)
		p := 1.0
		if maxStake > 0 {
			p += cfg.TeleportStakeWeight * math.Log1p(node.Stake) / math.Log1p(maxStake)
		}
		if maxPayment > 0 {
			p += cfg.TeleportPaymentWeight * math.Log1p(node.PaymentVolume) / math.Log1p(maxPayment)
		}
		pref[i] = p
		total += p
	}
	for i := range pref {
		pref[i] /= total
	}
	return pref
}

// effectiveWeights applies temporal decay to every edge, anchored at the
// newest edge timestamp so re-scoring an unchanged snapshot is stable.
// The second return value is the decayed out-weight sum per node.
func effectiveWeights(s *graph.Snapshot, cfg Config) ([]float64, []float64) {
	ref := s.NewestEdgeTime()
	eff := make([]float64, s.NumEdges())
	outSum := make([]float64, s.Len())
	for i, e := range s.Edges() {
		w := e.Weight * DecayWeight(AgeDays(ref, e.Timestamp), cfg.DecayRate)
		eff[i] = w
		from, _ := s.Index(e.From)
		outSum[from] += w
	}
	return eff, outSum
}

// runPageRank executes the damped power iteration. Dangling mass (nodes
// with no effective out-weight) is redistributed through the teleport
// vector every step. Non-convergence within MaxIterations is reported via
// the converged flag, not as an error.
func runPageRank(ctx context.Context, s *graph.Snapshot, cfg Config) (pagerankResult, error) {
	n := s.Len()
	if n == 0 {
		return pagerankResult{ranks: []float64{}, converged: true}, nil
	}

	teleport := teleportVector(s, cfg)
	eff, outSum := effectiveWeights(s, cfg)
	edges := s.Edges()

	ranks := make([]float64, n)
	copy(ranks, teleport)
	next := make([]float64, n)

	res := pagerankResult{iterations: cfg.MaxIterations}
	for it := 1; it <= cfg.MaxIterations; it++ {
		if err := ctx.Err(); err != nil {
			return pagerankResult{}, err
		}

		dangling := 0.0
		for i := 0; i < n; i++ {
			if outSum[i] == 0 {
				dangling += ranks[i]
			}
		}

		base := 1 - cfg.Damping
		for i := 0; i < n; i++ {
			next[i] = (base + cfg.Damping*dangling) * teleport[i]
		}
		for ei, e := range edges {
			if eff[ei] == 0 {
				continue
			}
			from, _ := s.Index(e.From)
			to, _ := s.Index(e.To)
			next[to] += cfg.Damping * ranks[from] * eff[ei] / outSum[from]
		}

		delta := 0.0
		for i := 0; i < n; i++ {
			delta += math.Abs(next[i] - ranks[i])
		}
		ranks, next = next, ranks

		if delta <= cfg.Tolerance {
			res.iterations = it
			res.converged = true
			break
		}
	}

	res.ranks = ranks
	return res, nil
}
