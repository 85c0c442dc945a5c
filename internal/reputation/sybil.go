package reputation

import (
	"math"
	"time"

	"github.com/sybilwatch/trustgraph/internal/graph"
)

// recentWindow is the trailing fraction of the snapshot's time span that
// counts as "very recent" for burst detection.
const recentWindow = 0.10

// sybilProbabilities assigns each node a smooth [0,1] suspicion value from
// three equally weighted signals: local clustering density, very-recent
// edge mass, and endorsement volume unbacked by economic signals. It is a
// heuristic prior for review queues, never a boolean classifier.
func sybilProbabilities(s *graph.Snapshot) []float64 {
	n := s.Len()
	probs := make([]float64, n)
	if n == 0 {
		return probs
	}

	density := clusteringDensity(s)
	recent := recentMassFraction(s)
	deficit := economicDeficit(s)

	for i := 0; i < n; i++ {
		probs[i] = clamp01((density[i] + recent[i] + deficit[i]) / 3)
	}
	return probs
}

// clusteringDensity computes the local clustering coefficient per node
// over the undirected neighbor sets. Dense small cliques, the classic
// Sybil-ring footprint, score near 1.
func clusteringDensity(s *graph.Snapshot) []float64 {
	n := s.Len()
	sets := make([]map[int]struct{}, n)
	for i := 0; i < n; i++ {
		nb := s.Neighbors(i)
		sets[i] = make(map[int]struct{}, len(nb))
		for _, j := range nb {
			sets[i][j] = struct{}{}
		}
	}

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		nb := s.Neighbors(i)
		k := len(nb)
		if k < 2 {
			continue
		}
		links := 0
		for a := 0; a < k; a++ {
			for b := a + 1; b < k; b++ {
				if _, ok := sets[nb[a]][nb[b]]; ok {
					links++
				}
			}
		}
		out[i] = float64(2*links) / float64(k*(k-1))
	}
	return out
}

// recentMassFraction measures, per node, the share of incident raw edge
// weight carried by edges in the most recent tenth of the snapshot's time
// span. A zero span yields zero everywhere: with a single instant there is
// no burst to detect.
func recentMassFraction(s *graph.Snapshot) []float64 {
	n := s.Len()
	out := make([]float64, n)
	oldest, newest := s.TimeSpan()
	span := newest.Sub(oldest)
	if span <= 0 {
		return out
	}
	cutoff := newest.Add(-time.Duration(float64(span) * recentWindow))

	total := make([]float64, n)
	fresh := make([]float64, n)
	for _, e := range s.Edges() {
		from, _ := s.Index(e.From)
		to, _ := s.Index(e.To)
		total[from] += e.Weight
		total[to] += e.Weight
		if !e.Timestamp.Before(cutoff) {
			fresh[from] += e.Weight
			fresh[to] += e.Weight
		}
	}
	for i := 0; i < n; i++ {
		if total[i] > 0 {
			out[i] = fresh[i] / total[i]
		}
	}
	return out
}

// economicDeficit flags nodes that collect heavy endorsement volume while
// holding near-zero stake and payment history relative to the rest of the
// graph.
func economicDeficit(s *graph.Snapshot) []float64 {
	n := s.Len()
	endorse := make([]float64, n)
	backing := make([]float64, n)
	maxEndorse, maxBacking := 0.0, 0.0

	for _, e := range s.Edges() {
		to, _ := s.Index(e.To)
		endorse[to] += e.Weight
	}
	for i := 0; i < n; i++ {
		node := s.Node(i)
		backing[i] = math.Log1p(node.Stake) + math.Log1p(node.PaymentVolume)
		if endorse[i] > maxEndorse {
			maxEndorse = endorse[i]
		}
		if backing[i] > maxBacking {
			maxBacking = backing[i]
		}
	}

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		eN := 0.0
		if maxEndorse > 0 {
			eN = endorse[i] / maxEndorse
		}
		bN := 0.0
		if maxBacking > 0 {
			bN = backing[i] / maxBacking
		}
		out[i] = eN * (1 - bN)
	}
	return out
}
