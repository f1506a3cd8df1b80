package manager

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"textgend/internal/assets"
	"textgend/internal/model"
	"textgend/internal/model/modeltest"
)

// assetHost serves one chain model under /m/ and counts requests.
type assetHost struct {
	mu    sync.Mutex
	hits  int
	delay time.Duration
	srv   *httptest.Server
	files map[string][]byte
}

func newAssetHost(t *testing.T, a model.Assets) *assetHost {
	t.Helper()
	h := &assetHost{files: map[string][]byte{
		"/m/weights.bin":    a.Weights,
		"/m/tokenizer.json": a.Tokenizer,
		"/m/config.json":    a.Config,
	}}
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		h.hits++
		d := h.delay
		b, ok := h.files[r.URL.Path]
		h.mu.Unlock()
		if d > 0 {
			time.Sleep(d)
		}
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(b)
	}))
	t.Cleanup(h.srv.Close)
	return h
}

func (h *assetHost) spec(id string) LoadSpec {
	return LoadSpec{
		ModelID:      id,
		Weights:      []string{h.srv.URL + "/m/weights.bin"},
		TokenizerURL: h.srv.URL + "/m/tokenizer.json",
		ConfigURL:    h.srv.URL + "/m/config.json",
	}
}

func (h *assetHost) requests() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hits
}

func newTestManager(cfg ManagerConfig) *Manager {
	if cfg.Fetcher == nil {
		cfg.Fetcher = assets.NewFetcher(assets.Options{})
	}
	return New(cfg)
}

// fakeBackend counts loads and returns a model that yields fixed tokens.
type fakeBackend struct {
	mu    sync.Mutex
	loads int
	err   error
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Load(model.Assets) (model.Model, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loads++
	if b.err != nil {
		return nil, b.err
	}
	return &fakeModel{}, nil
}

type fakeModel struct{ closed bool }

func (m *fakeModel) Prime(string, model.SamplingParams) (string, error) { return "x", nil }
func (m *fakeModel) NextToken() (string, error) { return "x", nil }
func (m *fakeModel) Close() error { m.closed = true; return nil }

func chainAssets() model.Assets { return modeltest.Chain("a", "b") }
