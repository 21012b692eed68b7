package cache

import (
	"context"
	"time"

	"saveup/internal/log"
)

// Cleaner is a cache whose expired entries can be swept.
type Cleaner interface {
	CleanExpired() int
}

// Manager periodically sweeps the registered caches: replayable HTTP
// responses in the API server, goal snapshots in the event worker.
type Manager struct {
	caches   []named
	interval time.Duration
	logger   *log.Logger
}

type named struct {
	name  string
	cache Cleaner
}

// NewManager creates a cache manager sweeping every interval.
func NewManager(interval time.Duration, logger *log.Logger) *Manager {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Manager{interval: interval, logger: logger.WithComponent(log.ComponentCache)}
}

// Register adds a cache under name. Not safe after Run.
func (m *Manager) Register(name string, c Cleaner) {
	m.caches = append(m.caches, named{name: name, cache: c})
}

// Sweep cleans every registered cache once and returns the evictions per
// cache name. Caches with nothing to evict are left out.
func (m *Manager) Sweep() map[string]int {
	evicted := make(map[string]int)
	for _, c := range m.caches {
		if n := c.cache.CleanExpired(); n > 0 {
			evicted[c.name] += n
		}
	}
	return evicted
}

// Run sweeps until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for name, n := range m.Sweep() {
				m.logger.DebugContext(ctx, "Evicted expired cache entries", "cache", name, "count", n)
			}
		case <-ctx.Done():
			return nil
		}
	}
}
