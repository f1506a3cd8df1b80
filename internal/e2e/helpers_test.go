package e2e

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"textgend/internal/assets"
	"textgend/internal/catalog"
	"textgend/internal/httpapi"
	"textgend/internal/manager"
	"textgend/internal/model/modeltest"
	"textgend/internal/storage"
	"textgend/pkg/types"
)

// assetHost serves model files and counts requests per path.
type assetHost struct {
	*httptest.Server
	mu    sync.Mutex
	files map[string][]byte
	hits  map[string]int
}

func newAssetHost(t *testing.T, files map[string][]byte) *assetHost {
	t.Helper()
	h := &assetHost{files: files, hits: map[string]int{}}
	h.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		h.hits[r.URL.Path]++
		b, ok := h.files[r.URL.Path]
		h.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(b)
	}))
	t.Cleanup(h.Close)
	return h
}

func (h *assetHost) Hits(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hits[path]
}

// chainFiles returns the files of a bigram model cycling "Hi" -> " there",
// with the weights split in two parts.
func chainFiles() map[string][]byte {
	a := modeltest.Chain("Hi", "Ġthere")
	half := len(a.Weights) / 2
	return map[string][]byte{
		"/chain/w-00001.bin":   a.Weights[:half],
		"/chain/w-00002.bin":   a.Weights[half:],
		"/chain/tokenizer.json": a.Tokenizer,
		"/chain/config.json":    a.Config,
	}
}

type testServer struct {
	*httptest.Server
	Manager *manager.Manager
	Assets  *assetHost
}

func newServer(t *testing.T, cfg manager.ManagerConfig) *testServer {
	t.Helper()
	host := newAssetHost(t, chainFiles())
	cat := catalog.New(map[string]types.ModelConfig{
		"chain": {
			BaseURL:   host.URL + "/chain",
			Model:     types.URLList{"w-00001.bin", "w-00002.bin"},
			Tokenizer: "tokenizer.json",
			Config:    "config.json",
			Backend:   "bigram",
		},
		"broken": {
			BaseURL:   host.URL + "/missing",
			Model:     types.URLList{"w.bin"},
			Tokenizer: "tokenizer.json",
			Config:    "config.json",
			Backend:   "bigram",
		},
	})
	if cfg.Fetcher == nil {
		cache, err := assets.NewCache(0)
		if err != nil {
			t.Fatalf("asset cache: %v", err)
		}
		cfg.Fetcher = assets.NewFetcher(assets.Options{Cache: cache})
	}
	mgr := manager.New(cfg)
	t.Cleanup(func() { _ = mgr.Close() })
	store, err := storage.Open(context.Background(), storage.Options{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "kv.db")})
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	engine := httpapi.NewEngine(httpapi.EngineConfig{Catalog: cat, Manager: mgr, Store: store, DefaultModel: "chain"})
	srv := httptest.NewServer(httpapi.NewMux(engine))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, Manager: mgr, Assets: host}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

func httpDo(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

// generate posts req to /generate and decodes the NDJSON stream.
func generate(t *testing.T, base string, req types.GenerateRequest) (int, []types.Message) {
	t.Helper()
	resp, body := httpDo(t, http.MethodPost, base+"/generate", req)
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}
	var msgs []types.Message
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		var m types.Message
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("bad NDJSON line %q: %v", sc.Text(), err)
		}
		msgs = append(msgs, m)
	}
	return resp.StatusCode, msgs
}
