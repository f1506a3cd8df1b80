package e2e

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"textgend/internal/manager"
	"textgend/pkg/types"
)

func TestE2E_GenerateStreamsAndCachesAssets(t *testing.T) {
	srv := newServer(t, manager.ManagerConfig{})

	resp, body := httpGet(t, srv.URL+"/models")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"id":"chain"`) {
		t.Fatalf("/models: %d %s", resp.StatusCode, body)
	}

	status, msgs := generate(t, srv.URL, types.GenerateRequest{Prompt: "Hi", MaxSeqLen: 3, RepeatPenalty: 1})
	if status != http.StatusOK {
		t.Fatalf("status=%d", status)
	}
	last := msgs[len(msgs)-1]
	if last.Status != types.StatusComplete || last.Output != "Hi thereHi there" {
		t.Fatalf("unexpected terminal message %+v", last)
	}
	var loading, tokens int
	for _, m := range msgs {
		switch m.Status {
		case types.StatusLoading:
			loading++
			if tokens > 0 {
				t.Fatalf("loading after first token")
			}
		case types.StatusGenerating:
			tokens++
			if m.Index != tokens || m.Prompt != "Hi" {
				t.Fatalf("unexpected progress %+v", m)
			}
		}
	}
	if loading != 3 || tokens != 3 {
		t.Fatalf("loading=%d tokens=%d", loading, tokens)
	}

	// a second run reuses the handle; after unload the assets come from cache
	if _, msgs := generate(t, srv.URL, types.GenerateRequest{ModelID: "chain", Prompt: "Hi", MaxSeqLen: 1}); msgs[len(msgs)-1].Status != types.StatusComplete {
		t.Fatalf("second run failed: %+v", msgs)
	}
	if resp, _ := httpDo(t, http.MethodDelete, srv.URL+"/models/chain", nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("unload status=%d", resp.StatusCode)
	}
	if _, msgs := generate(t, srv.URL, types.GenerateRequest{ModelID: "chain", Prompt: "Hi", MaxSeqLen: 1}); msgs[len(msgs)-1].Status != types.StatusComplete {
		t.Fatalf("run after unload failed: %+v", msgs)
	}
	for _, p := range []string{"/chain/w-00001.bin", "/chain/w-00002.bin", "/chain/tokenizer.json", "/chain/config.json"} {
		if n := srv.Assets.Hits(p); n != 1 {
			t.Fatalf("%s fetched %d times", p, n)
		}
	}

	resp, body = httpGet(t, srv.URL+"/status")
	var st types.StatusResponse
	if err := json.Unmarshal(body, &st); err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("/status: %d %s", resp.StatusCode, body)
	}
	if len(st.Handles) != 1 || st.LoadsTotal != 2 || st.Cache.Entries != 4 {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestE2E_RequestErrors(t *testing.T) {
	srv := newServer(t, manager.ManagerConfig{})
	if status, _ := generate(t, srv.URL, types.GenerateRequest{ModelID: "nope", Prompt: "Hi"}); status != http.StatusNotFound {
		t.Fatalf("unknown model: status=%d", status)
	}
	if status, _ := generate(t, srv.URL, types.GenerateRequest{Prompt: "Hi", TopP: 1.5}); status != http.StatusBadRequest {
		t.Fatalf("bad top_p: status=%d", status)
	}
	// fetch failures happen after the stream started
	status, msgs := generate(t, srv.URL, types.GenerateRequest{ModelID: "broken", Prompt: "Hi", MaxSeqLen: 1})
	if status != http.StatusOK {
		t.Fatalf("status=%d", status)
	}
	last := msgs[len(msgs)-1]
	if last.Status != types.StatusError || last.ErrorKind != "fetch" || !strings.Contains(last.Error, "404") {
		t.Fatalf("expected fetch error event, got %+v", last)
	}
}

func TestE2E_ClientDisconnectAbortsRun(t *testing.T) {
	srv := newServer(t, manager.ManagerConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	body := strings.NewReader(`{"modelID":"chain","prompt":"Hi","maxSeqLen":100000000,"repeatPenalty":1}`)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+"/generate", body)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if strings.Contains(sc.Text(), `"status":"generating"`) {
			break
		}
	}
	cancel()
	resp.Body.Close()

	deadline := time.Now().Add(3 * time.Second)
	for {
		h, ok := srv.Manager.Lookup("chain")
		if ok && h.Inflight() == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("run still in flight after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestE2E_WebSocketSession(t *testing.T) {
	srv := newServer(t, manager.ManagerConfig{})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	read := func() types.Message {
		_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		var m types.Message
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatalf("read: %v", err)
		}
		return m
	}

	if err := conn.WriteJSON(types.GenerateRequest{Command: types.CommandStart, ModelID: "chain", Prompt: "Hi", MaxSeqLen: 2, RepeatPenalty: 1}); err != nil {
		t.Fatal(err)
	}
	for {
		m := read()
		if m.Status == types.StatusComplete {
			if m.Output != "Hi thereHi" {
				t.Fatalf("output=%q", m.Output)
			}
			break
		}
		if m.Status == types.StatusError {
			t.Fatalf("run failed: %+v", m)
		}
	}

	if err := conn.WriteJSON(types.GenerateRequest{Command: types.CommandStart, ModelID: "chain", Prompt: "Hi", MaxSeqLen: 100000000, RepeatPenalty: 1}); err != nil {
		t.Fatal(err)
	}
	for read().Status != types.StatusGenerating {
	}
	if err := conn.WriteJSON(types.GenerateRequest{Command: types.CommandAbort}); err != nil {
		t.Fatal(err)
	}
	for {
		m := read()
		if m.Status == types.StatusAborted {
			if !strings.HasPrefix(m.Output, "Hi there") {
				t.Fatalf("partial output=%q", m.Output)
			}
			return
		}
	}
}

func TestE2E_StorageRoundTrip(t *testing.T) {
	srv := newServer(t, manager.ManagerConfig{})
	if resp, b := httpDo(t, http.MethodPut, srv.URL+"/storage/prompt", types.StorageValue{Value: "Write a haiku", TTLSeconds: 3600}); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("put: %d %s", resp.StatusCode, b)
	}
	resp, b := httpGet(t, srv.URL+"/storage/prompt")
	var v types.StorageValue
	if err := json.Unmarshal(b, &v); err != nil || resp.StatusCode != http.StatusOK || v.Value != "Write a haiku" {
		t.Fatalf("get: %d %s", resp.StatusCode, b)
	}
}
