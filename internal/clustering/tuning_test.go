package clustering

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoRings builds two tight groups with clearly separated pairwise
// similarity so the sweep has a meaningful optimum between them.
func twoRings(t *testing.T) *AccountSet {
	t.Helper()
	dayA := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	dayB := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	ring := func(prefix string, day time.Time, domain string, age float64) []Account {
		ids := []string{prefix + "1", prefix + "2", prefix + "3"}
		accounts := make([]Account, 0, len(ids))
		for _, id := range ids {
			conns := make([]string, 0, 2)
			for _, peer := range ids {
				if peer != id {
					conns = append(conns, peer)
				}
			}
			accounts = append(accounts, Account{
				ID:          id,
				EmailDomain: domain,
				Connections: conns,
				Activity:    []time.Time{day},
				Metadata:    map[string]float64{"age_days": age},
			})
		}
		return accounts
	}

	accounts := append(ring("a", dayA, "one.biz", 3), ring("b", dayB, "two.biz", 700)...)
	set, err := NewAccountSet(accounts)
	require.NoError(t, err)
	return set
}

func TestTuneSweepsEveryThreshold(t *testing.T) {
	set := twoRings(t)
	thresholds := []float64{0.2, 0.4, 0.6, 0.95}

	res, err := Tune(context.Background(), set, DefaultConfig(), thresholds)
	require.NoError(t, err)
	require.Len(t, res.Steps, len(thresholds))
	for i, step := range res.Steps {
		assert.InDelta(t, thresholds[i], step.MinSimilarity, 1e-12)
	}
	assert.Contains(t, thresholds, res.Best)
}

func TestTunePrefersSeparatingThreshold(t *testing.T) {
	set := twoRings(t)

	res, err := Tune(context.Background(), set, DefaultConfig(), []float64{0.4, 0.95})
	require.NoError(t, err)

	// At 0.4 the two rings split cleanly; at 0.95 nothing clusters and
	// the silhouette collapses to zero.
	require.Len(t, res.Steps, 2)
	assert.Equal(t, 2, res.Steps[0].NumClusters)
	assert.Equal(t, 6, res.Steps[0].NumClustered)
	assert.Equal(t, 0, res.Steps[1].NumClusters)
	assert.Greater(t, res.Steps[0].Penalized, res.Steps[1].Penalized)
	assert.InDelta(t, 0.4, res.Best, 1e-12)
}

func TestTuneDefaultSweep(t *testing.T) {
	set := twoRings(t)

	res, err := Tune(context.Background(), set, DefaultConfig(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Steps)
}

func TestTuneRejectsBadThreshold(t *testing.T) {
	set := twoRings(t)

	_, err := Tune(context.Background(), set, DefaultConfig(), []float64{0.5, 1.5})
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Fields, "thresholds")
}

func TestTuneTinySet(t *testing.T) {
	set, err := NewAccountSet([]Account{{ID: "only"}})
	require.NoError(t, err)

	res, err := Tune(context.Background(), set, DefaultConfig(), []float64{0.3, 0.6})
	require.NoError(t, err)
	assert.Empty(t, res.Steps)
	assert.InDelta(t, 0.3, res.Best, 1e-12)
}
