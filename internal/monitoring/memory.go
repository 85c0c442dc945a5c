package monitoring

import (
	"runtime"
	"sync"
	"time"
)

// MemoryStats is a point-in-time heap sample.
type MemoryStats struct {
	HeapAlloc    uint64    `json:"heap_alloc_bytes"`
	HeapSys      uint64    `json:"heap_sys_bytes"`
	HeapObjects  uint64    `json:"heap_objects"`
	NumGC        uint32    `json:"num_gc"`
	NumGoroutine int       `json:"num_goroutine"`
	Timestamp    time.Time `json:"timestamp"`
}

// MemoryMonitor samples heap usage in the background. The similarity
// matrix is quadratic in account count, so a warning when the heap grows
// past the threshold is the first line of defense against oversized
// clustering requests.
type MemoryMonitor struct {
	interval      time.Duration
	warnThreshold uint64
	logger        *Logger

	mu   sync.RWMutex
	last MemoryStats

	stop chan struct{}
	once sync.Once
}

// NewMemoryMonitor creates a monitor that samples every interval and warns
// once per sample while heap allocation exceeds warnThreshold bytes.
func NewMemoryMonitor(interval time.Duration, warnThreshold uint64, logger *Logger) *MemoryMonitor {
	return &MemoryMonitor{
		interval:      interval,
		warnThreshold: warnThreshold,
		logger:        logger,
		stop:          make(chan struct{}),
	}
}

// Start begins background sampling.
func (m *MemoryMonitor) Start() {
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sample()
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop ends background sampling. Safe to call more than once.
func (m *MemoryMonitor) Stop() {
	m.once.Do(func() { close(m.stop) })
}

func (m *MemoryMonitor) sample() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := MemoryStats{
		HeapAlloc:    ms.HeapAlloc,
		HeapSys:      ms.HeapSys,
		HeapObjects:  ms.HeapObjects,
		NumGC:        ms.NumGC,
		NumGoroutine: runtime.NumGoroutine(),
		Timestamp:    time.Now(),
	}

	m.mu.Lock()
	m.last = stats
	m.mu.Unlock()

	if m.warnThreshold > 0 && stats.HeapAlloc > m.warnThreshold {
		m.logger.Warn("heap usage above threshold",
			"heap_alloc_bytes", stats.HeapAlloc,
			"threshold_bytes", m.warnThreshold,
			"goroutines", stats.NumGoroutine,
		)
	}
}

// GetStats returns the most recent sample.
func (m *MemoryMonitor) GetStats() MemoryStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}
