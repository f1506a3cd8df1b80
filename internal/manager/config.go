package manager

import (
	"time"

	"github.com/rs/zerolog"

	"textgend/internal/assets"
	"textgend/internal/model"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
	defaultDrainTimeout  = 30 * time.Second
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// Fetcher retrieves model assets. A Fetcher over an unbounded
	// MemoryCache is created when nil.
	Fetcher       *assets.Fetcher
	MaxQueueDepth int
	MaxWait       time.Duration
	DrainTimeout  time.Duration
	Publisher     EventPublisher
	Logger        zerolog.Logger
	// Backends resolves a backend name; model.Lookup when nil.
	Backends func(name string) (model.Backend, error)
	Now      func() time.Time
}

// New constructs a Manager from cfg.
func New(cfg ManagerConfig) *Manager {
	m := &Manager{
		fetcher:   cfg.Fetcher,
		handles:   make(map[string]*Handle),
		loading:   make(map[string]time.Time),
		publisher: cfg.Publisher,
		log:       cfg.Logger,
		backends:  cfg.Backends,
		now:       cfg.Now,
	}
	if m.fetcher == nil {
		m.fetcher = assets.NewFetcher(assets.Options{Logger: cfg.Logger})
	}
	if cfg.MaxQueueDepth <= 0 {
		m.maxQueueDepth = defaultMaxQueueDepth
	} else {
		m.maxQueueDepth = cfg.MaxQueueDepth
	}
	if cfg.MaxWait <= 0 {
		m.maxWait = defaultMaxWait
	} else {
		m.maxWait = cfg.MaxWait
	}
	if cfg.DrainTimeout <= 0 {
		m.drainTimeout = defaultDrainTimeout
	} else {
		m.drainTimeout = cfg.DrainTimeout
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	if m.backends == nil {
		m.backends = model.Lookup
	}
	if m.now == nil {
		m.now = time.Now
	}
	m.startTime = m.now()
	return m
}
