package clustering

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Clustering methods. Union-find connectivity is the production default;
// the others are selectable per run.
const (
	MethodUnionFind    = "unionfind"
	MethodDBSCAN       = "dbscan"
	MethodHierarchical = "hierarchical"
	MethodComponents   = "components"
)

// FeatureWeights controls the pairwise similarity blend. Weights are
// renormalized to sum 1 before use.
type FeatureWeights struct {
	SharedConnections  float64 `json:"sharedConnections" yaml:"sharedConnections"`
	ConnectionOverlap  float64 `json:"connectionOverlap" yaml:"connectionOverlap"`
	TemporalSimilarity float64 `json:"temporalSimilarity" yaml:"temporalSimilarity"`
	MetadataSimilarity float64 `json:"metadataSimilarity" yaml:"metadataSimilarity"`
	GraphDistance      float64 `json:"graphDistance" yaml:"graphDistance"`
}

// DefaultFeatureWeights returns the production similarity blend.
func DefaultFeatureWeights() FeatureWeights {
	return FeatureWeights{
		SharedConnections:  0.30,
		ConnectionOverlap:  0.25,
		TemporalSimilarity: 0.20,
		MetadataSimilarity: 0.15,
		GraphDistance:      0.10,
	}
}

func (w FeatureWeights) sum() float64 {
	return w.SharedConnections + w.ConnectionOverlap + w.TemporalSimilarity +
		w.MetadataSimilarity + w.GraphDistance
}

// Config controls a detection run.
type Config struct {
	Method        string  `json:"method" yaml:"method"`
	MinSimilarity float64 `json:"minSimilarity" yaml:"minSimilarity"`

	// DBSCAN parameters. Eps is a similarity floor: neighbors are pairs
	// with similarity >= Eps. MinPts counts neighbors, not the point
	// itself.
	Eps    float64 `json:"eps" yaml:"eps"`
	MinPts int     `json:"minPts" yaml:"minPts"`

	// MinClusterSize drops groups below this many members from the
	// result. Never below 2; a singleton is not a cluster.
	MinClusterSize int `json:"minClusterSize" yaml:"minClusterSize"`

	// MaxClusterSize caps cluster growth for dbscan and hierarchical.
	// Connectivity methods never split a component; they tag oversized
	// ones instead.
	MaxClusterSize int `json:"maxClusterSize" yaml:"maxClusterSize"`

	// FragmentationPenalty discounts the tuning score by
	// penalty * numClusters/numAccounts.
	FragmentationPenalty float64 `json:"fragmentationPenalty" yaml:"fragmentationPenalty"`

	// Parallelism bounds the similarity matrix workers; <= 0 means one
	// worker per available CPU. Results never depend on it.
	Parallelism int `json:"parallelism,omitempty" yaml:"parallelism,omitempty"`

	FeatureWeights FeatureWeights `json:"featureWeights" yaml:"featureWeights"`
}

// DefaultConfig returns the tuning used in production.
func DefaultConfig() Config {
	return Config{
		Method:               MethodUnionFind,
		MinSimilarity:        0.30,
		Eps:                  0.30,
		MinPts:               3,
		MinClusterSize:       2,
		MaxClusterSize:       50,
		FragmentationPenalty: 0.5,
		FeatureWeights:       DefaultFeatureWeights(),
	}
}

// ConfigError collects per-field validation failures.
type ConfigError struct {
	Fields map[string]string
}

func (e *ConfigError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid clustering config: " + strings.Join(parts, "; ")
}

func unitInterval(v float64) bool {
	return v >= 0 && v <= 1 && !math.IsNaN(v)
}

// Validate reports every out-of-range field at once.
func (c Config) Validate() error {
	fields := make(map[string]string)

	switch c.Method {
	case MethodUnionFind, MethodDBSCAN, MethodHierarchical, MethodComponents:
	default:
		fields["method"] = fmt.Sprintf("unknown method %q", c.Method)
	}
	if !unitInterval(c.MinSimilarity) {
		fields["minSimilarity"] = "must be in [0,1]"
	}
	if !unitInterval(c.Eps) {
		fields["eps"] = "must be in [0,1]"
	}
	if c.MinPts < 1 {
		fields["minPts"] = "must be at least 1"
	}
	if c.MinClusterSize < 2 {
		fields["minClusterSize"] = "must be at least 2"
	}
	if c.MaxClusterSize < 2 {
		fields["maxClusterSize"] = "must be at least 2"
	} else if c.MinClusterSize >= 2 && c.MaxClusterSize < c.MinClusterSize {
		fields["maxClusterSize"] = "must be at least minClusterSize"
	}
	if c.FragmentationPenalty < 0 || math.IsNaN(c.FragmentationPenalty) || math.IsInf(c.FragmentationPenalty, 0) {
		fields["fragmentationPenalty"] = "must be a non-negative finite number"
	}

	w := c.FeatureWeights
	for name, v := range map[string]float64{
		"featureWeights.sharedConnections":  w.SharedConnections,
		"featureWeights.connectionOverlap":  w.ConnectionOverlap,
		"featureWeights.temporalSimilarity": w.TemporalSimilarity,
		"featureWeights.metadataSimilarity": w.MetadataSimilarity,
		"featureWeights.graphDistance":      w.GraphDistance,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			fields[name] = "must be a non-negative finite number"
		}
	}
	if len(fields) == 0 && w.sum() == 0 {
		fields["featureWeights"] = "at least one feature weight must be positive"
	}

	if len(fields) > 0 {
		return &ConfigError{Fields: fields}
	}
	return nil
}
