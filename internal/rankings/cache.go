package rankings

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/bytedance/sonic"

	"github.com/sybilwatch/trustgraph/internal/cache"
)

// rankingsCache caches serialized ranking views so repeated dashboard
// polls do not hit sqlite.
type rankingsCache struct {
	cache *cache.Cache
}

func newRankingsCache(ttl time.Duration) *rankingsCache {
	return &rankingsCache{cache: cache.New(ttl)}
}

func topScoresKey(limit int) string {
	return fmt.Sprintf("rankings:scores:%d", limit)
}

func riskyClustersKey(limit int) string {
	return fmt.Sprintf("rankings:clusters:%d", limit)
}

func (rc *rankingsCache) getTopScores(limit int) (*TopScoresResponse, bool) {
	data, found := rc.cache.Get(topScoresKey(limit))
	if !found {
		return nil, false
	}
	var response TopScoresResponse
	if err := sonic.Unmarshal(data, &response); err != nil {
		slog.Error("failed to unmarshal cached top scores", "error", err)
		return nil, false
	}
	return &response, true
}

func (rc *rankingsCache) setTopScores(limit int, response *TopScoresResponse) {
	data, err := sonic.Marshal(response)
	if err != nil {
		slog.Error("failed to marshal top scores for cache", "error", err)
		return
	}
	rc.cache.Set(topScoresKey(limit), data)
}

func (rc *rankingsCache) getRiskyClusters(limit int) (*RiskyClustersResponse, bool) {
	data, found := rc.cache.Get(riskyClustersKey(limit))
	if !found {
		return nil, false
	}
	var response RiskyClustersResponse
	if err := sonic.Unmarshal(data, &response); err != nil {
		slog.Error("failed to unmarshal cached risky clusters", "error", err)
		return nil, false
	}
	return &response, true
}

func (rc *rankingsCache) setRiskyClusters(limit int, response *RiskyClustersResponse) {
	data, err := sonic.Marshal(response)
	if err != nil {
		slog.Error("failed to marshal risky clusters for cache", "error", err)
		return
	}
	rc.cache.Set(riskyClustersKey(limit), data)
}

func (rc *rankingsCache) invalidateAll() {
	rc.cache.Clear()
}

func (rc *rankingsCache) stats() map[string]interface{} {
	return map[string]interface{}{
		"entries": rc.cache.Size(),
	}
}
