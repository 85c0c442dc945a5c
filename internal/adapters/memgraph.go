package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sony/gobreaker"

	"github.com/sybilwatch/trustgraph/internal/graph"
)

// Cypher queries for the trust graph schema. Nodes carry the economic
// signals as properties; TRUSTS relationships carry weight and timestamp.
const (
	loadNodesQuery = `
		MATCH (n:Account)
		RETURN n.id AS id,
		       coalesce(n.stake, 0.0) AS stake,
		       coalesce(n.payment_volume, 0.0) AS payment_volume,
		       coalesce(n.quality, 0.0) AS quality,
		       coalesce(n.minority, false) AS minority`

	loadEdgesQuery = `
		MATCH (a:Account)-[r:TRUSTS]->(b:Account)
		RETURN a.id AS from, b.id AS to,
		       coalesce(r.weight, 1.0) AS weight,
		       r.timestamp AS timestamp`
)

// MemgraphAdapter loads live trust graphs from a Memgraph instance over
// the Bolt protocol. All queries run behind a circuit breaker so a
// flapping graph store degrades to fast failures instead of piling up
// timeouts.
type MemgraphAdapter struct {
	driver  neo4j.DriverWithContext
	breaker *gobreaker.CircuitBreaker
}

// NewMemgraphAdapter connects to Memgraph and verifies connectivity.
func NewMemgraphAdapter(uri, username, password string) (*MemgraphAdapter, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create memgraph driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to memgraph: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "memgraph",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("memgraph circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})

	slog.Info("connected to memgraph", "uri", uri)
	return &MemgraphAdapter{driver: driver, breaker: breaker}, nil
}

// Name identifies the source in logs and metrics.
func (a *MemgraphAdapter) Name() string { return "memgraph" }

// Close releases the driver.
func (a *MemgraphAdapter) Close(ctx context.Context) error {
	return a.driver.Close(ctx)
}

// HealthCheck verifies connectivity, through the breaker.
func (a *MemgraphAdapter) HealthCheck(ctx context.Context) error {
	_, err := a.breaker.Execute(func() (interface{}, error) {
		return nil, a.driver.VerifyConnectivity(ctx)
	})
	return err
}

// LoadSnapshot reads every account node and trust relationship and builds
// a validated snapshot.
func (a *MemgraphAdapter) LoadSnapshot(ctx context.Context) (*graph.Snapshot, error) {
	nodes, err := a.loadNodes(ctx)
	if err != nil {
		return nil, err
	}
	edges, err := a.loadEdges(ctx)
	if err != nil {
		return nil, err
	}
	return graph.NewSnapshot(nodes, edges)
}

func (a *MemgraphAdapter) loadNodes(ctx context.Context) ([]graph.Node, error) {
	result, err := a.execute(ctx, loadNodesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to load account nodes: %w", err)
	}

	nodes := make([]graph.Node, 0, len(result.Records))
	for _, record := range result.Records {
		id, err := stringValue(record, "id")
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, graph.Node{
			ID:            id,
			Stake:         floatValue(record, "stake"),
			PaymentVolume: floatValue(record, "payment_volume"),
			Quality:       floatValue(record, "quality"),
			Minority:      boolValue(record, "minority"),
		})
	}
	return nodes, nil
}

func (a *MemgraphAdapter) loadEdges(ctx context.Context) ([]graph.Edge, error) {
	result, err := a.execute(ctx, loadEdgesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to load trust edges: %w", err)
	}

	edges := make([]graph.Edge, 0, len(result.Records))
	for _, record := range result.Records {
		from, err := stringValue(record, "from")
		if err != nil {
			return nil, err
		}
		to, err := stringValue(record, "to")
		if err != nil {
			return nil, err
		}
		timestamp, err := timeValue(record, "timestamp")
		if err != nil {
			return nil, err
		}
		edges = append(edges, graph.Edge{
			From:      from,
			To:        to,
			Weight:    floatValue(record, "weight"),
			Timestamp: timestamp,
		})
	}
	return edges, nil
}

func (a *MemgraphAdapter) execute(ctx context.Context, query string) (*neo4j.EagerResult, error) {
	result, err := a.breaker.Execute(func() (interface{}, error) {
		return neo4j.ExecuteQuery(ctx, a.driver, query, nil, neo4j.EagerResultTransformer)
	})
	if err != nil {
		return nil, err
	}
	return result.(*neo4j.EagerResult), nil
}

func stringValue(record *neo4j.Record, key string) (string, error) {
	raw, ok := record.Get(key)
	if !ok || raw == nil {
		return "", fmt.Errorf("memgraph record missing %q", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("memgraph record %q is not a string", key)
	}
	return s, nil
}

func floatValue(record *neo4j.Record, key string) float64 {
	raw, ok := record.Get(key)
	if !ok {
		return 0
	}
	switch v := raw.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func boolValue(record *neo4j.Record, key string) bool {
	raw, ok := record.Get(key)
	if !ok {
		return false
	}
	b, _ := raw.(bool)
	return b
}

func timeValue(record *neo4j.Record, key string) (time.Time, error) {
	raw, ok := record.Get(key)
	if !ok || raw == nil {
		return time.Time{}, fmt.Errorf("memgraph record missing %q", key)
	}
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("memgraph timestamp %q is not RFC3339: %w", v, err)
		}
		return t, nil
	case int64:
		return time.Unix(v, 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("memgraph record %q has unsupported timestamp type %T", key, raw)
	}
}
