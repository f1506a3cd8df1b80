package manager

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"textgend/internal/assets"
	"textgend/internal/model"
)

// Manager is the model handle table. It is safe for concurrent use and is
// meant to be shared by every worker and HTTP request of a process.
type Manager struct {
	mu      sync.RWMutex
	handles map[string]*Handle
	loading map[string]time.Time
	lastErr string
	loads   uint64

	group     singleflight.Group
	fetcher   *assets.Fetcher
	backends  func(string) (model.Backend, error)
	publisher EventPublisher
	log       zerolog.Logger
	now       func() time.Time
	startTime time.Time

	maxQueueDepth int
	maxWait       time.Duration
	drainTimeout  time.Duration
}

// Ready reports whether at least one handle is ready to serve.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, h := range m.handles {
		if h.State() == StateReady {
			return true
		}
	}
	return false
}

// Lookup returns the registered handle for id without loading.
func (m *Manager) Lookup(id string) (*Handle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.handles[id]
	return h, ok
}

// Loaded lists the ids of registered handles in sorted order.
func (m *Manager) Loaded() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.handles))
	for id := range m.handles {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Fetcher returns the asset fetcher shared by all loads.
func (m *Manager) Fetcher() *assets.Fetcher { return m.fetcher }

// Close unloads every handle, draining in-flight generations first.
func (m *Manager) Close() error {
	for _, id := range m.Loaded() {
		if err := m.Unload(id); err != nil && !IsModelNotFound(err) {
			return err
		}
	}
	return nil
}
