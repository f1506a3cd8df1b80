package manager

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"textgend/internal/assets"
	"textgend/internal/model"
)

// GetOrLoad returns the handle for spec.ModelID, loading it on first use.
//
// Concurrent callers for the same id share one load. The load itself is not
// bound to any caller's context, so one caller giving up does not fail the
// others; each caller still returns as soon as its own ctx is done. A failed
// load registers nothing and may be retried.
func (m *Manager) GetOrLoad(ctx context.Context, spec LoadSpec) (*Handle, error) {
	if spec.ModelID == "" {
		return nil, ErrModelNotFound("(unspecified)")
	}
	if h, ok := m.Lookup(spec.ModelID); ok {
		return m.ready(h)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := m.group.DoChan(spec.ModelID, func() (any, error) {
		return m.load(context.WithoutCancel(ctx), spec)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return m.ready(res.Val.(*Handle))
	}
}

func (m *Manager) ready(h *Handle) (*Handle, error) {
	if h.State() == StateDraining {
		return nil, tooBusyError{modelID: h.ID}
	}
	return h, nil
}

func (m *Manager) load(ctx context.Context, spec LoadSpec) (*Handle, error) {
	// A load that finished between Lookup and DoChan already registered.
	if h, ok := m.Lookup(spec.ModelID); ok {
		return h, nil
	}
	id := spec.ModelID
	start := m.now()
	m.mu.Lock()
	m.loading[id] = start
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.loading, id)
		m.mu.Unlock()
	}()

	m.log.Info().Str("event", EventEnsureStart).Str("model", id).Strs("weights", spec.Weights).Msg("loading model")
	m.publisher.Publish(Event{Name: EventEnsureStart, ModelID: id, Fields: map[string]any{"parts": len(spec.Weights)}})

	h, err := m.build(ctx, spec)
	if err != nil {
		m.mu.Lock()
		m.lastErr = err.Error()
		m.mu.Unlock()
		modelLoadsTotal.WithLabelValues(loadResult(err)).Inc()
		m.log.Error().Str("event", EventLoadError).Str("model", id).Err(err).Msg("model load failed")
		m.publisher.Publish(Event{Name: EventLoadError, ModelID: id, Fields: map[string]any{"error": err.Error()}})
		return nil, err
	}

	m.mu.Lock()
	m.handles[id] = h
	m.loads++
	m.lastErr = ""
	m.mu.Unlock()
	dur := m.now().Sub(start)
	modelLoadsTotal.WithLabelValues("ok").Inc()
	modelLoadDuration.Observe(dur.Seconds())
	handlesLoaded.Inc()
	m.log.Info().Str("event", EventEnsureReady).Str("model", id).Str("backend", h.Backend).
		Int64("bytes", h.AssetBytes).Dur("dur", dur).Msg("model ready")
	m.publisher.Publish(Event{Name: EventEnsureReady, ModelID: id, Fields: map[string]any{"backend": h.Backend, "bytes": h.AssetBytes}})
	return h, nil
}

// build fetches the three assets concurrently and hands them to the backend.
func (m *Manager) build(ctx context.Context, spec LoadSpec) (*Handle, error) {
	if len(spec.Weights) == 0 {
		return nil, &ModelLoadError{ModelID: spec.ModelID, Backend: spec.Backend, Err: errors.New("no weights url")}
	}
	b, err := m.backends(spec.Backend)
	if err != nil {
		return nil, &ModelLoadError{ModelID: spec.ModelID, Backend: spec.Backend, Err: err}
	}

	var a model.Assets
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		a.Weights, err = m.fetcher.Fetch(gctx, assets.Request{URLs: spec.Weights, Kind: assets.KindWeights})
		return err
	})
	if spec.TokenizerURL != "" {
		g.Go(func() (err error) {
			a.Tokenizer, err = m.fetcher.Fetch(gctx, assets.Request{URLs: []string{spec.TokenizerURL}, Kind: assets.KindTokenizer})
			return err
		})
	}
	if spec.ConfigURL != "" {
		g.Go(func() (err error) {
			a.Config, err = m.fetcher.Fetch(gctx, assets.Request{URLs: []string{spec.ConfigURL}, Kind: assets.KindConfig})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	mdl, err := loadModel(b, a)
	if err != nil {
		return nil, &ModelLoadError{ModelID: spec.ModelID, Backend: b.Name(), Err: err}
	}
	now := m.now()
	return &Handle{
		ID:         spec.ModelID,
		Backend:    b.Name(),
		LoadedAt:   now,
		AssetBytes: a.Size(),
		model:      mdl,
		state:      StateReady,
		lastUsed:   now,
		now:        m.now,
		genCh:      make(chan struct{}, 1),
		queueCh:    make(chan struct{}, m.maxQueueDepth),
		maxWait:    m.maxWait,
	}, nil
}

// loadModel runs a backend load, turning a panic into an error. Loads run on
// a singleflight goroutine where no HTTP recoverer can catch it.
func loadModel(b model.Backend, a model.Assets) (mdl model.Model, err error) {
	defer func() {
		if r := recover(); r != nil {
			mdl, err = nil, fmt.Errorf("backend %s panicked: %v", b.Name(), r)
		}
	}()
	return b.Load(a)
}

func loadResult(err error) string {
	switch {
	case assets.IsFetchError(err):
		return "fetch_error"
	case IsModelLoadError(err):
		return "load_error"
	default:
		return "error"
	}
}

