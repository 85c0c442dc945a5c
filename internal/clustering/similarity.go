package clustering

import (
	"context"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// sharedConnectionsSaturation is the shared-peer count at which the
// shared-connections feature saturates to 1.
const sharedConnectionsSaturation = 5

// Similarity scores two accounts in [0,1] with the weighted feature blend.
// It is symmetric in its account arguments. This entry point serves ad-hoc
// pair queries; batch runs go through the precomputed matrix.
func Similarity(a, b Account, w FeatureWeights) float64 {
	connected := false
	aConn := connectionSet(a)
	bConn := connectionSet(b)
	if _, ok := aConn[b.ID]; ok {
		connected = true
	}
	if _, ok := bConn[a.ID]; ok {
		connected = true
	}
	return similarityCore(&a, &b, aConn, bConn, bucketSet(a), bucketSet(b), connected, w)
}

func similarityCore(a, b *Account, aConn, bConn map[string]struct{}, aBuckets, bBuckets map[int64]struct{}, connected bool, w FeatureWeights) float64 {
	total := w.sum()
	if total <= 0 {
		return 0
	}

	score := w.SharedConnections * sharedConnectionsFeature(aConn, bConn)
	score += w.ConnectionOverlap * jaccardStrings(aConn, bConn)
	score += w.TemporalSimilarity * temporalFeature(aBuckets, bBuckets)
	score += w.MetadataSimilarity * metadataFeature(a, b)
	if connected {
		score += w.GraphDistance
	}
	score /= total

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// sharedConnectionsFeature saturates at sharedConnectionsSaturation common
// peers: five shared victims are as telling as fifty.
func sharedConnectionsFeature(a, b map[string]struct{}) float64 {
	shared := 0
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	for peer := range small {
		if _, ok := large[peer]; ok {
			shared++
		}
	}
	f := float64(shared) / sharedConnectionsSaturation
	if f > 1 {
		return 1
	}
	return f
}

// jaccardStrings is |a∩b| / |a∪b|, 0 when both sets are empty.
func jaccardStrings(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	for k := range small {
		if _, ok := large[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// temporalFeature is the Jaccard overlap of 24h activity buckets. An
// account with no recorded activity shares nothing, so either empty set
// yields 0.
func temporalFeature(a, b map[int64]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	for k := range small {
		if _, ok := large[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// metadataFeature averages an exact email-domain match with per-field
// numeric closeness over metadata fields present in both accounts. With
// nothing comparable it is 0.
func metadataFeature(a, b *Account) float64 {
	sum := 0.0
	parts := 0

	if a.EmailDomain != "" && b.EmailDomain != "" {
		if a.EmailDomain == b.EmailDomain {
			sum++
		}
		parts++
	}

	// Sorted key walk keeps float accumulation order fixed.
	keys := make([]string, 0, len(a.Metadata))
	for k := range a.Metadata {
		if _, ok := b.Metadata[k]; ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		sum += numericCloseness(a.Metadata[k], b.Metadata[k])
		parts++
	}

	if parts == 0 {
		return 0
	}
	return sum / float64(parts)
}

// numericCloseness is 1 minus the relative difference: identical values
// score 1, values of opposite magnitude approach 0.
func numericCloseness(x, y float64) float64 {
	if x == y {
		return 1
	}
	denom := math.Max(math.Abs(x), math.Abs(y))
	if denom == 0 {
		return 1
	}
	c := 1 - math.Abs(x-y)/denom
	if c < 0 {
		return 0
	}
	return c
}

// simMatrix is a condensed upper-triangle similarity matrix.
type simMatrix struct {
	n    int
	vals []float64
}

func (m *simMatrix) at(i, j int) float64 {
	if i == j {
		return 1
	}
	if i > j {
		i, j = j, i
	}
	return m.vals[i*m.n-i*(i+1)/2+(j-i-1)]
}

// buildMatrix computes every pair similarity once, rows fanned out over an
// errgroup. Each entry has exactly one writer, so worker count never
// changes the result.
func buildMatrix(ctx context.Context, set *AccountSet, cfg Config) (*simMatrix, error) {
	n := set.Len()
	m := &simMatrix{n: n, vals: make([]float64, n*(n-1)/2)}

	workers := cfg.Parallelism
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n-1; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			a := &set.accounts[i]
			base := i*n - i*(i+1)/2 - i - 1
			for j := i + 1; j < n; j++ {
				b := &set.accounts[j]
				m.vals[base+j] = similarityCore(
					a, b,
					set.connSets[i], set.connSets[j],
					set.bucketSets[i], set.bucketSets[j],
					set.connected(i, j),
					cfg.FeatureWeights,
				)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return m, nil
}
