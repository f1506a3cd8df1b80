package manager

import (
	"sync"
	"time"

	"textgend/internal/model"
)

// State represents the lifecycle state of a handle.
type State string

const (
	StateReady    State = "ready"
	StateDraining State = "draining"
)

// LoadSpec identifies a model and where its assets live.
type LoadSpec struct {
	ModelID string
	// Weights holds one URL, or several for a sharded file.
	Weights      []string
	TokenizerURL string
	ConfigURL    string
	// Backend names the model backend; "" selects the default.
	Backend string
}

// Handle is a loaded model. The wrapped model.Model is only safe to use
// between a successful Begin and the matching release.
type Handle struct {
	ID         string
	Backend    string
	LoadedAt   time.Time
	AssetBytes int64

	model model.Model

	mu       sync.Mutex
	state    State
	lastUsed time.Time
	now      func() time.Time

	// Queueing primitives
	genCh   chan struct{} // size 1: single in-flight generation
	queueCh chan struct{} // buffered: queue slots
	maxWait time.Duration
}

// Model returns the loaded model.
func (h *Handle) Model() model.Model { return h.model }

func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Handle) LastUsed() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastUsed
}

func (h *Handle) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}
