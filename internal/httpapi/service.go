package httpapi

import (
	"context"

	"github.com/rs/zerolog"

	"textgend/internal/catalog"
	"textgend/internal/generation"
	"textgend/internal/manager"
	"textgend/internal/storage"
	"textgend/internal/worker"
	"textgend/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.Model
	Status() types.StatusResponse
	Ready() bool
	// Prepare fills defaults and rejects requests that cannot start.
	Prepare(req generation.Request) (generation.Request, error)
	// Generate runs req to a terminal event, calling emit for each event.
	Generate(ctx context.Context, req generation.Request, emit func(generation.Event)) error
	Unload(modelID string) error
	// NewSession returns a worker for one WebSocket connection.
	NewSession() Session
	// Storage returns nil when persistence is disabled.
	Storage() KV
}

// Session is a worker owned by one connection.
type Session interface {
	Send(worker.Command) error
	Events() <-chan generation.Event
	Close() error
}

// KV is the key-value surface exposed under /storage.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttlSeconds int) error
	Remove(ctx context.Context, key string) error
	All(ctx context.Context) ([]storage.Item, error)
}

// EngineConfig wires an Engine.
type EngineConfig struct {
	Catalog      *catalog.Catalog
	Manager      *manager.Manager
	Store        *storage.Store
	DefaultModel string
	// Preload lists models that must be loaded before Ready reports true.
	Preload []string
	Logger  zerolog.Logger
}

// Engine is the Service backed by the model manager and catalog.
type Engine struct {
	catalog      *catalog.Catalog
	manager      *manager.Manager
	store        *storage.Store
	runner       *generation.Runner
	defaultModel string
	preload      []string
	log          zerolog.Logger
}

func NewEngine(cfg EngineConfig) *Engine {
	cat := cfg.Catalog
	if cat == nil {
		cat = catalog.New(nil)
	}
	return &Engine{
		catalog:      cat,
		manager:      cfg.Manager,
		store:        cfg.Store,
		defaultModel: cfg.DefaultModel,
		preload:      cfg.Preload,
		log:          cfg.Logger,
		runner: generation.NewRunner(generation.RunnerConfig{
			Loader:   cfg.Manager,
			Resolver: cat,
			Logger:   cfg.Logger,
		}),
	}
}

// Runner returns the generation runner shared by HTTP and WebSocket runs.
func (e *Engine) Runner() *generation.Runner { return e.runner }

func (e *Engine) ListModels() []types.Model {
	models := e.catalog.List()
	for i := range models {
		_, models[i].Loaded = e.manager.Lookup(models[i].ID)
	}
	return models
}

func (e *Engine) Status() types.StatusResponse { return e.manager.Status() }

// Ready reports whether every preloaded model is loaded. Without preloads
// models load on demand and the engine is always ready.
func (e *Engine) Ready() bool {
	for _, id := range e.preload {
		h, ok := e.manager.Lookup(id)
		if !ok || h.State() != manager.StateReady {
			return false
		}
	}
	return true
}

// Preload loads the configured models. Failures are logged and returned.
func (e *Engine) Preload(ctx context.Context) error {
	for _, id := range e.preload {
		spec, err := e.catalog.Resolve(id)
		if err != nil {
			return err
		}
		if _, err := e.manager.GetOrLoad(ctx, spec); err != nil {
			e.log.Error().Err(err).Str("model", id).Msg("preload failed")
			return err
		}
	}
	return nil
}

func (e *Engine) Prepare(req generation.Request) (generation.Request, error) {
	if req.ModelID == "" {
		req.ModelID = e.defaultModel
	}
	if err := req.Validate(); err != nil {
		return req, err
	}
	if len(req.WeightsURLs) == 0 {
		if _, err := e.catalog.Resolve(req.ModelID); err != nil {
			return req, err
		}
	}
	return req, nil
}

func (e *Engine) Generate(ctx context.Context, req generation.Request, emit func(generation.Event)) error {
	return e.runner.Run(ctx, req, emit, nil)
}

func (e *Engine) Unload(modelID string) error { return e.manager.Unload(modelID) }

func (e *Engine) NewSession() Session {
	return worker.New(e.runner, worker.Options{Logger: e.log})
}

func (e *Engine) Storage() KV {
	if e.store == nil {
		return nil
	}
	return e.store
}
