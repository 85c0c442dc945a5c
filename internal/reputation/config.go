// Package reputation scores trust-graph nodes with a temporal,
// economically-weighted personalized PageRank blended with off-graph
// quality, stake and payment signals. All entry points are deterministic:
// the same snapshot and config produce identical results on every run.
package reputation

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Config controls the PageRank pass and the hybrid blend.
type Config struct {
	// Damping is the PageRank follow probability, in (0,1).
	Damping float64 `json:"damping" yaml:"damping"`
	// MaxIterations bounds the power iteration.
	MaxIterations int `json:"maxIterations" yaml:"maxIterations"`
	// Tolerance is the L1 delta below which iteration stops.
	Tolerance float64 `json:"tolerance" yaml:"tolerance"`
	// DecayRate is the per-day exponential decay applied to edge weights,
	// measured from the newest edge timestamp in the snapshot.
	DecayRate float64 `json:"decayRate" yaml:"decayRate"`

	// Teleport bias: how strongly stake and payment history pull the
	// personalized restart distribution toward economically backed nodes.
	TeleportStakeWeight   float64 `json:"teleportStakeWeight" yaml:"teleportStakeWeight"`
	TeleportPaymentWeight float64 `json:"teleportPaymentWeight" yaml:"teleportPaymentWeight"`

	// Hybrid blend weights. The final score divides by their sum, so an
	// all-zero blend is rejected by Validate.
	GraphWeight   float64 `json:"graphWeight" yaml:"graphWeight"`
	QualityWeight float64 `json:"qualityWeight" yaml:"qualityWeight"`
	StakeWeight   float64 `json:"stakeWeight" yaml:"stakeWeight"`
	PaymentWeight float64 `json:"paymentWeight" yaml:"paymentWeight"`
}

// DefaultConfig returns the tuning used in production.
func DefaultConfig() Config {
	return Config{
		Damping:               0.85,
		MaxIterations:         100,
		Tolerance:             1e-6,
		DecayRate:             0.05,
		TeleportStakeWeight:   0.5,
		TeleportPaymentWeight: 0.5,
		GraphWeight:           0.50,
		QualityWeight:         0.20,
		StakeWeight:           0.15,
		PaymentWeight:         0.15,
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
	return "invalid reputation config: " + strings.Join(parts, "; ")
}

func finiteNonNegative(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Validate reports every out-of-range field at once.
func (c Config) Validate() error {
	fields := make(map[string]string)

	if !(c.Damping > 0 && c.Damping < 1) || math.IsNaN(c.Damping) {
		fields["damping"] = "must be in (0,1)"
	}
	if c.MaxIterations < 1 {
		fields["maxIterations"] = "must be at least 1"
	}
	if !(c.Tolerance > 0) || math.IsInf(c.Tolerance, 0) || math.IsNaN(c.Tolerance) {
		fields["tolerance"] = "must be a positive finite number"
	}
	if !finiteNonNegative(c.DecayRate) {
		fields["decayRate"] = "must be a non-negative finite number"
	}
	if !finiteNonNegative(c.TeleportStakeWeight) {
		fields["teleportStakeWeight"] = "must be a non-negative finite number"
	}
	if !finiteNonNegative(c.TeleportPaymentWeight) {
		fields["teleportPaymentWeight"] = "must be a non-negative finite number"
	}

	blend := map[string]float64{
		"graphWeight":   c.GraphWeight,
		"qualityWeight": c.QualityWeight,
		"stakeWeight":   c.StakeWeight,
		"paymentWeight": c.PaymentWeight,
	}
	sum := 0.0
	for name, w := range blend {
		if !finiteNonNegative(w) {
			fields[name] = "must be a non-negative finite number"
		} else {
			sum += w
		}
	}
	if len(fields) == 0 && sum == 0 {
		fields["blend"] = "at least one blend weight must be positive"
	}

	if len(fields) > 0 {
		return &ConfigError{Fields: fields}
	}
	return nil
}

func (c Config) blendSum() float64 {
	return c.GraphWeight + c.QualityWeight + c.StakeWeight + c.PaymentWeight
}
