package clustering

import (
	"context"
	"math"
)

// defaultSweep is the MinSimilarity candidate grid used when the caller
// supplies none.
func defaultSweep() []float64 {
	return []float64{0.20, 0.25, 0.30, 0.35, 0.40, 0.45, 0.50, 0.55, 0.60}
}

// TuningStep is one point of the threshold sweep.
type TuningStep struct {
	MinSimilarity float64 `json:"minSimilarity"`
	NumClusters   int     `json:"numClusters"`
	NumClustered  int     `json:"numClustered"`
	Silhouette    float64 `json:"silhouette"`
	Penalized     float64 `json:"penalized"`
}

// TuningResult reports every sweep step plus the winning threshold.
type TuningResult struct {
	Steps []TuningStep `json:"steps"`
	Best  float64      `json:"best"`
}

// Tune sweeps MinSimilarity candidates (and Eps, for dbscan) over one
// shared similarity matrix and scores each clustering with a silhouette
// discounted by the fragmentation penalty. Ties go to the lower threshold,
// preferring coarser clusterings at equal quality. This is an offline
// batch tool, never part of the scoring hot path.
func Tune(ctx context.Context, set *AccountSet, cfg Config, thresholds []float64) (*TuningResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(thresholds) == 0 {
		thresholds = defaultSweep()
	}
	for _, t := range thresholds {
		if !unitInterval(t) {
			return nil, &ConfigError{Fields: map[string]string{"thresholds": "every candidate must be in [0,1]"}}
		}
	}

	res := &TuningResult{Steps: make([]TuningStep, 0, len(thresholds))}
	if set.Len() < 2 {
		if len(thresholds) > 0 {
			res.Best = thresholds[0]
		}
		return res, nil
	}

	m, err := buildMatrix(ctx, set, cfg)
	if err != nil {
		return nil, err
	}

	bestScore := math.Inf(-1)
	for _, t := range thresholds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stepCfg := cfg
		stepCfg.MinSimilarity = t
		stepCfg.Eps = t

		groups := make([][]int, 0)
		for _, g := range groupAccounts(m, stepCfg) {
			if len(g) >= 2 {
				groups = append(groups, g)
			}
		}

		step := TuningStep{MinSimilarity: t, NumClusters: len(groups)}
		for _, g := range groups {
			step.NumClustered += len(g)
		}
		step.Silhouette = silhouette(m, groups)
		step.Penalized = step.Silhouette -
			stepCfg.FragmentationPenalty*float64(len(groups))/float64(set.Len())

		res.Steps = append(res.Steps, step)
		if step.Penalized > bestScore {
			bestScore = step.Penalized
			res.Best = t
		}
	}
	return res, nil
}

// silhouette scores a clustering with distance 1-similarity: a is the mean
// intra-cluster distance, b the mean distance to the nearest other
// cluster. Unclustered accounts are excluded; fewer than two clusters
// score 0 because b is undefined.
func silhouette(m *simMatrix, groups [][]int) float64 {
	if len(groups) < 2 {
		return 0
	}

	total := 0.0
	count := 0
	for gi, g := range groups {
		for _, p := range g {
			a := meanDistance(m, p, g, true)
			b := math.Inf(1)
			for gj, other := range groups {
				if gj == gi {
					continue
				}
				if d := meanDistance(m, p, other, false); d < b {
					b = d
				}
			}
			denom := math.Max(a, b)
			if denom > 0 {
				total += (b - a) / denom
			}
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// meanDistance averages 1-similarity from p to the members of group,
// skipping p itself when it belongs to the group.
func meanDistance(m *simMatrix, p int, group []int, skipSelf bool) float64 {
	sum := 0.0
	n := 0
	for _, q := range group {
		if skipSelf && q == p {
			continue
		}
		sum += 1 - m.at(p, q)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
