// Package cache holds the in-process read caches for API responses.
// Entries are keyed on the profile's data version, so invalidation is
// implicit: a mutation changes the key and stale entries age out by TTL
// or LRU pressure.
package cache

import (
	"log/slog"
	"time"
)

// Sweeper is a cache the Manager can purge of expired entries.
type Sweeper interface {
	Sweep() int
}

// Manager runs the periodic expiry sweep over registered caches.
type Manager struct {
	sweepers []Sweeper
	stop     chan struct{}
	done     chan struct{}
}

func NewManager() *Manager {
	return &Manager{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Register adds a cache to the sweep rotation. Not safe to call after
// Start.
func (m *Manager) Register(s Sweeper) {
	m.sweepers = append(m.sweepers, s)
}

// Start launches the sweep loop in its own goroutine.
func (m *Manager) Start(interval time.Duration) {
	go m.run(interval)
}

func (m *Manager) run(interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := 0
			for _, s := range m.sweepers {
				removed += s.Sweep()
			}
			if removed > 0 {
				slog.Debug("Swept expired cache entries", "removed", removed)
			}
		case <-m.stop:
			return
		}
	}
}

// Stop ends the sweep loop and waits for it to exit. Call once, after
// Start.
func (m *Manager) Stop() {
	close(m.stop)
	<-m.done
}
