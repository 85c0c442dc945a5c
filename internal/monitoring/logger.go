package monitoring

import (
	"log/slog"
	"os"
	"time"
)

// Logger provides structured logging with domain helpers for scoring and
// clustering runs.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a JSON logger writing to stdout.
func NewLogger() *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
				}
			}
			return a
		},
	})

	return &Logger{Logger: slog.New(handler)}
}

// RequestLogger logs HTTP request details.
func (l *Logger) RequestLogger(method, path, ip string, statusCode int, duration time.Duration) {
	l.Info("http request",
		"method", method,
		"path", path,
		"ip", ip,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	)
}

// ScoreRunLogger logs a completed reputation scoring run.
func (l *Logger) ScoreRunLogger(runID string, nodes, edges, iterations int, converged bool, duration time.Duration) {
	l.Info("scoring run completed",
		"run_id", runID,
		"nodes", nodes,
		"edges", edges,
		"iterations", iterations,
		"converged", converged,
		"duration_ms", duration.Milliseconds(),
	)
}

// ClusterRunLogger logs a completed cluster detection run.
func (l *Logger) ClusterRunLogger(runID, method string, accounts, clusters, clustered int, duration time.Duration) {
	l.Info("clustering run completed",
		"run_id", runID,
		"method", method,
		"accounts", accounts,
		"clusters", clusters,
		"clustered", clustered,
		"duration_ms", duration.Milliseconds(),
	)
}

// ConvergenceWarning flags a scoring run that exhausted its iteration
// budget. The partial scores are still returned to the caller.
func (l *Logger) ConvergenceWarning(runID string, iterations int, tolerance float64) {
	l.Warn("pagerank did not converge",
		"run_id", runID,
		"iterations", iterations,
		"tolerance", tolerance,
	)
}

// StoreLogger logs run-history store operations.
func (l *Logger) StoreLogger(operation, runID string, rows int, err error) {
	if err != nil {
		l.Error("store operation failed", "operation", operation, "run_id", runID, "error", err)
		return
	}
	l.Debug("store operation", "operation", operation, "run_id", runID, "rows", rows)
}

// AdapterLogger logs graph-source adapter calls.
func (l *Logger) AdapterLogger(source string, nodes, edges int, duration time.Duration, err error) {
	if err != nil {
		l.Warn("snapshot load failed", "source", source, "error", err, "duration_ms", duration.Milliseconds())
		return
	}
	l.Info("snapshot loaded",
		"source", source,
		"nodes", nodes,
		"edges", edges,
		"duration_ms", duration.Milliseconds(),
	)
}

// CacheLogger logs response-cache operations.
func (l *Logger) CacheLogger(operation, key string, hit bool, itemCount int) {
	short := key
	if len(short) > 8 {
		short = short[:8] + "..."
	}
	l.Debug("cache operation",
		"operation", operation,
		"key_hash", short,
		"hit", hit,
		"cache_size", itemCount,
	)
}

// SystemLogger logs system-level events.
func (l *Logger) SystemLogger(event, details string) {
	l.Info("system event",
		"event", event,
		"details", details,
		"uptime", time.Since(startTime).String(),
	)
}

// PerformanceLogger logs performance observations such as slow requests.
func (l *Logger) PerformanceLogger(metric string, value float64, unit string) {
	l.Warn("performance",
		"metric", metric,
		"value", value,
		"unit", unit,
	)
}

// SetLevel replaces the handler with one at the given level.
func (l *Logger) SetLevel(level slog.Level) {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	l.Logger = slog.New(handler)
}

var startTime = time.Now()
