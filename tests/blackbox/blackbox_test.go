package blackbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"textgend/internal/model/modeltest"
)

// findFreePort picks an available TCP port on localhost.
func findFreePort(t *testing.T) (int, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	return port, func() { _ = ln.Close() }
}

func projectRootFromThisFile(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	// this file: <root>/tests/blackbox/blackbox_test.go
	return filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
}

func buildBinary(t *testing.T) string {
	t.Helper()
	root := projectRootFromThisFile(t)
	binPath := filepath.Join(t.TempDir(), "textgend")
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/textgend")
	cmd.Dir = root
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(out))
	}
	return binPath
}

// writeCatalog serves a bigram model over HTTP and writes a catalog file
// naming it "chain".
func writeCatalog(t *testing.T) string {
	t.Helper()
	a := modeltest.Chain("Hi", "Ġthere")
	files := map[string][]byte{"/w.bin": a.Weights, "/tokenizer.json": a.Tokenizer, "/config.json": a.Config}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(b)
	}))
	t.Cleanup(srv.Close)
	cat := fmt.Sprintf("models:\n  chain:\n    base_url: %s\n    model: w.bin\n    tokenizer: tokenizer.json\n    config: config.json\n    backend: bigram\n", srv.URL)
	p := filepath.Join(t.TempDir(), "models.yaml")
	if err := os.WriteFile(p, []byte(cat), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

type serverProc struct {
	cmd  *exec.Cmd
	base string // http base URL, e.g. http://127.0.0.1:18080
}

func startServer(t *testing.T, bin string, args ...string) *serverProc {
	t.Helper()
	port, release := findFreePort(t)
	release()
	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	args = append([]string{"serve", "--addr", fmt.Sprintf("127.0.0.1:%d", port), "--storage-driver", "memory", "--log-format", "json"}, args...)
	cmd := exec.Command(bin, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})
	// Wait for healthz
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(base + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not become healthy in time")
		}
		time.Sleep(50 * time.Millisecond)
	}
	return &serverProc{cmd: cmd, base: base}
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func postJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func TestBlackbox_Flow(t *testing.T) {
	bin := buildBinary(t)
	sp := startServer(t, bin, "--catalog", writeCatalog(t), "--default-model", "chain", "--preload", "chain")

	resp, body := get(t, sp.base+"/models")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/models %d %s", resp.StatusCode, string(body))
	}
	var modelsResp struct {
		Models []struct {
			ID string `json:"id"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &modelsResp); err != nil {
		t.Fatalf("/models json: %v body=%s", err, string(body))
	}
	// builtin phi entries plus the catalog file
	if len(modelsResp.Models) != 6 {
		t.Fatalf("expected 6 models, got %d", len(modelsResp.Models))
	}

	// /readyz turns 200 once the preload finished
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, _ = get(t, sp.base+"/readyz")
		if resp.StatusCode == http.StatusOK {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("/readyz did not become ready in time; last=%d", resp.StatusCode)
		}
		time.Sleep(25 * time.Millisecond)
	}

	// /generate without model uses the default
	resp, body = postJSON(t, sp.base+"/generate", []byte(`{"prompt":"Hi","maxSeqLen":1,"repeatPenalty":1}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/generate %d %s", resp.StatusCode, string(body))
	}
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if !strings.Contains(lines[len(lines)-1], `"output":"Hi there"`) {
		t.Fatalf("unexpected stream:\n%s", body)
	}

	resp, body = get(t, sp.base+"/status")
	var statusResp struct {
		Handles []any `json:"handles"`
	}
	if err := json.Unmarshal(body, &statusResp); err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("/status %d %s", resp.StatusCode, string(body))
	}
	if len(statusResp.Handles) != 1 {
		t.Fatalf("expected 1 handle, got %d", len(statusResp.Handles))
	}
}

func TestBlackbox_Generate_ModelNotFound_404(t *testing.T) {
	bin := buildBinary(t)
	sp := startServer(t, bin, "--catalog", writeCatalog(t))
	resp, body := postJSON(t, sp.base+"/generate", []byte(`{"modelID":"missing","prompt":"hi"}`))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d, body=%s", resp.StatusCode, string(body))
	}
}

func TestBlackbox_Generate_NoDefault_NoModel_400(t *testing.T) {
	bin := buildBinary(t)
	sp := startServer(t, bin)
	resp, body := postJSON(t, sp.base+"/generate", []byte(`{"prompt":"hi"}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d, body=%s", resp.StatusCode, string(body))
	}
}
