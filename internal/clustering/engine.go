package clustering

import (
	"context"
	"sort"
	"time"
)

// Suspicion patterns attached to clusters.
const (
	PatternSharedEmailDomain = "shared_email_domain"
	PatternLowReputation     = "low_reputation"
	PatternLargeCluster      = "large_cluster"
	PatternHighConnectivity  = "high_connectivity"
	PatternOversized         = "oversized_component"
)

const (
	lowReputationThreshold = 0.3
	largeClusterThreshold  = 10
	highCohesionThreshold  = 0.8
	// sharedDomainMin is exclusive: a domain must cover more than this
	// many members before it counts as homogeneity.
	sharedDomainMin = 3
)

// riskWeights blends the cluster-level suspicion signals into RiskScore.
var riskWeights = map[string]float64{
	"density":        0.30,
	"cohesion":       0.20,
	"size":           0.15,
	"low_reputation": 0.20,
	"email_domain":   0.15,
}

// Cluster is one detected account group.
type Cluster struct {
	ID            string   `json:"id"`
	AccountIDs    []string `json:"accountIds"`
	Size          int      `json:"size"`
	Density       float64  `json:"density"`
	Cohesion      float64  `json:"cohesion"`
	AvgReputation float64  `json:"avgReputation"`
	RiskScore     float64  `json:"riskScore"`
	Patterns      []string `json:"patterns"`
}

// Result is a full detection run. Clusters are sorted by RiskScore
// descending, ties by ID. GeneratedAt is stamped by the service layer and
// excluded from determinism comparisons.
type Result struct {
	Clusters     []Cluster `json:"clusters"`
	Method       string    `json:"method"`
	NumAccounts  int       `json:"numAccounts"`
	NumClustered int       `json:"numClustered"`
	Config       Config    `json:"config"`
	GeneratedAt  time.Time `json:"generatedAt,omitempty"`
}

// Detect runs the full pipeline: similarity matrix, grouping with the
// configured method, assembly and risk scoring. Fewer than two accounts
// yields an empty result rather than an error; groups below
// MinClusterSize are never reported as clusters.
func Detect(ctx context.Context, set *AccountSet, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res := &Result{
		Clusters:    []Cluster{},
		Method:      cfg.Method,
		NumAccounts: set.Len(),
		Config:      cfg,
	}
	if set.Len() < 2 {
		return res, nil
	}

	m, err := buildMatrix(ctx, set, cfg)
	if err != nil {
		return nil, err
	}
	res.Clusters = assembleClusters(set, m, groupAccounts(m, cfg), cfg)
	for _, c := range res.Clusters {
		res.NumClustered += c.Size
	}
	return res, nil
}

// groupAccounts dispatches to the configured method over a prebuilt
// matrix. The tuning sweep calls it directly to reuse one matrix across
// thresholds.
func groupAccounts(m *simMatrix, cfg Config) [][]int {
	switch cfg.Method {
	case MethodDBSCAN:
		return clusterDBSCAN(m, cfg.Eps, cfg.MinPts, cfg.MaxClusterSize)
	case MethodHierarchical:
		return clusterHierarchical(m, cfg.MinSimilarity, cfg.MaxClusterSize)
	case MethodComponents:
		return clusterComponents(m, cfg.MinSimilarity)
	default:
		return clusterUnionFind(m, cfg.MinSimilarity)
	}
}

func assembleClusters(set *AccountSet, m *simMatrix, groups [][]int, cfg Config) []Cluster {
	clusters := make([]Cluster, 0, len(groups))
	for _, members := range groups {
		if len(members) < cfg.MinClusterSize {
			continue
		}
		clusters = append(clusters, assembleCluster(set, m, members, cfg))
	}
	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].RiskScore != clusters[j].RiskScore {
			return clusters[i].RiskScore > clusters[j].RiskScore
		}
		return clusters[i].ID < clusters[j].ID
	})
	return clusters
}

// assembleCluster computes the descriptive stats, risk score and patterns
// for one member group. Members arrive as ascending dense indices, which
// is ascending account ID order.
func assembleCluster(set *AccountSet, m *simMatrix, members []int, cfg Config) Cluster {
	size := len(members)
	c := Cluster{
		AccountIDs: make([]string, size),
		Size:       size,
	}

	domains := make(map[string]int)
	repSum := 0.0
	for k, i := range members {
		a := set.Account(i)
		c.AccountIDs[k] = a.ID
		repSum += a.Reputation
		if a.EmailDomain != "" {
			domains[a.EmailDomain]++
		}
	}
	c.ID = "cluster-" + c.AccountIDs[0]
	c.AvgReputation = repSum / float64(size)

	pairs := 0
	simSum := 0.0
	connectedPairs := 0
	for x := 0; x < size-1; x++ {
		for y := x + 1; y < size; y++ {
			pairs++
			simSum += m.at(members[x], members[y])
			if set.connected(members[x], members[y]) {
				connectedPairs++
			}
		}
	}
	c.Density = simSum / float64(pairs)
	c.Cohesion = float64(connectedPairs) / float64(pairs)

	dominantDomain := 0
	for _, count := range domains {
		if count > dominantDomain {
			dominantDomain = count
		}
	}

	sizeFactor := float64(size) / float64(cfg.MaxClusterSize)
	if sizeFactor > 1 {
		sizeFactor = 1
	}
	lowRepFactor := 1 - c.AvgReputation
	if lowRepFactor < 0 {
		lowRepFactor = 0
	}
	if lowRepFactor > 1 {
		lowRepFactor = 1
	}
	domainFactor := 0.0
	if dominantDomain > sharedDomainMin {
		domainFactor = float64(dominantDomain) / float64(size)
	}

	risk := riskWeights["density"]*c.Density +
		riskWeights["cohesion"]*c.Cohesion +
		riskWeights["size"]*sizeFactor +
		riskWeights["low_reputation"]*lowRepFactor +
		riskWeights["email_domain"]*domainFactor
	if risk > 1 {
		risk = 1
	}
	c.RiskScore = risk

	patterns := make([]string, 0, 5)
	if dominantDomain > sharedDomainMin {
		patterns = append(patterns, PatternSharedEmailDomain)
	}
	if c.AvgReputation < lowReputationThreshold {
		patterns = append(patterns, PatternLowReputation)
	}
	if size >= largeClusterThreshold {
		patterns = append(patterns, PatternLargeCluster)
	}
	if c.Cohesion >= highCohesionThreshold {
		patterns = append(patterns, PatternHighConnectivity)
	}
	if size > cfg.MaxClusterSize {
		patterns = append(patterns, PatternOversized)
	}
	sort.Strings(patterns)
	c.Patterns = patterns

	return c
}
