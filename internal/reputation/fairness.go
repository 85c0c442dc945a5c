package reputation

import (
	"math"
	"sort"

	"github.com/sybilwatch/trustgraph/internal/graph"
)

// groupKey is the node metadata field used for top-decile diversity.
const groupKey = "group"

// FairnessReport summarizes the distributional properties of a scoring
// run. It is always computed; the bias adjustment only runs on request.
type FairnessReport struct {
	// Gini over final scores: 0 is perfect equality.
	Gini float64 `json:"gini"`
	// MinorityRepresentation is the minority share of the top decile
	// divided by the minority share overall. 1.0 is proportional; values
	// below 1 mean minority nodes are under-represented at the top.
	MinorityRepresentation float64 `json:"minorityRepresentation"`
	// TopDecileDiversity is the normalized Shannon entropy of the "group"
	// metadata values within the top decile.
	TopDecileDiversity float64 `json:"topDecileDiversity"`
	// BiasScore is clamp(1 - MinorityRepresentation, 0, 1).
	BiasScore float64 `json:"biasScore"`
}

func neutralFairness() FairnessReport {
	return FairnessReport{MinorityRepresentation: 1}
}

// computeFairness expects rows sorted by FinalScore descending.
func computeFairness(s *graph.Snapshot, rows []Score) FairnessReport {
	n := len(rows)
	if n == 0 {
		return neutralFairness()
	}

	finals := make([]float64, n)
	for i, r := range rows {
		finals[i] = r.FinalScore
	}

	rep := FairnessReport{Gini: gini(finals)}

	decile := n / 10
	if decile < 1 {
		decile = 1
	}

	minorityTotal := 0
	minorityTop := 0
	for i, r := range rows {
		idx, ok := s.Index(r.NodeID)
		if !ok {
			continue
		}
		if s.Node(idx).Minority {
			minorityTotal++
			if i < decile {
				minorityTop++
			}
		}
	}

	if minorityTotal == 0 {
		rep.MinorityRepresentation = 1
	} else {
		overallShare := float64(minorityTotal) / float64(n)
		topShare := float64(minorityTop) / float64(decile)
		rep.MinorityRepresentation = topShare / overallShare
	}
	rep.BiasScore = clamp01(1 - rep.MinorityRepresentation)
	rep.TopDecileDiversity = decileDiversity(s, rows, decile)
	return rep
}

// gini computes the Gini coefficient of the values. Zero-mass and
// single-value inputs report 0.
func gini(values []float64) float64 {
	n := len(values)
	if n <= 1 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	total := 0.0
	weighted := 0.0
	for i, v := range sorted {
		total += v
		weighted += float64(2*(i+1)-n-1) * v
	}
	if total <= 0 {
		return 0
	}
	return weighted / (float64(n) * total)
}

// decileDiversity is the normalized Shannon entropy of group labels within
// the top decile: 1 when every member carries a distinct label, 0 when the
// decile is uniform or too small to measure.
func decileDiversity(s *graph.Snapshot, rows []Score, decile int) float64 {
	if decile <= 1 {
		return 0
	}
	freq := make(map[string]int)
	for i := 0; i < decile && i < len(rows); i++ {
		idx, ok := s.Index(rows[i].NodeID)
		if !ok {
			continue
		}
		freq[s.Node(idx).Metadata[groupKey]]++
	}
	if len(freq) <= 1 {
		return 0
	}
	entropy := 0.0
	for _, c := range freq {
		p := float64(c) / float64(decile)
		entropy -= p * math.Log(p)
	}
	return entropy / math.Log(float64(decile))
}

// AdjustForBias returns a new ScoreSet where under-represented minority
// nodes have their final scores multiplied by 1 + strength*(1 - rep), with
// the total score mass preserved and percentiles recomputed. The input set
// is never modified, so the unadjusted scores stay available. A strength
// of zero, or a set with no under-representation, returns an unchanged
// copy.
func AdjustForBias(s *graph.Snapshot, set *ScoreSet, strength float64) (*ScoreSet, error) {
	if strength < 0 || math.IsNaN(strength) || math.IsInf(strength, 0) {
		return nil, &ConfigError{Fields: map[string]string{
			"strength": "must be a non-negative finite number",
		}}
	}

	out := &ScoreSet{
		Scores:     make([]Score, len(set.Scores)),
		Converged:  set.Converged,
		Iterations: set.Iterations,
		Fairness:   set.Fairness,
		Config:     set.Config,
	}
	copy(out.Scores, set.Scores)

	deficit := 1 - set.Fairness.MinorityRepresentation
	if strength == 0 || deficit <= 0 {
		out.reindex()
		return out, nil
	}

	boost := 1 + strength*deficit
	before := 0.0
	after := 0.0
	for i, row := range out.Scores {
		before += row.FinalScore
		idx, ok := s.Index(row.NodeID)
		if ok && s.Node(idx).Minority {
			out.Scores[i].FinalScore *= boost
		}
		after += out.Scores[i].FinalScore
	}
	if after > 0 && before > 0 {
		factor := before / after
		for i := range out.Scores {
			out.Scores[i].FinalScore *= factor
		}
	}

	finals := make([]float64, len(out.Scores))
	for i, row := range out.Scores {
		finals[i] = row.FinalScore
	}
	pct := percentiles(finals)
	for i := range out.Scores {
		out.Scores[i].Percentile = pct[i]
	}

	sortScores(out.Scores)
	out.reindex()
	out.Fairness = computeFairness(s, out.Scores)
	return out, nil
}
