package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"textgend/internal/assets"
	"textgend/internal/generation"
	"textgend/internal/manager"
	"textgend/internal/model/modeltest"
)

// gatedRunner emits one Progress per value received on gate.
type gatedRunner struct {
	gate chan struct{}
}

func (r *gatedRunner) RunWithID(ctx context.Context, id string, req generation.Request, emit func(generation.Event), isCancelled func() bool) error {
	emit(generation.Loading{RunID: id, Message: "Loading Model"})
	out := req.Prompt
	for i := 0; i < req.MaxTokens; i++ {
		select {
		case <-r.gate:
		case <-ctx.Done():
		}
		if isCancelled() || ctx.Err() != nil {
			emit(generation.Aborted{RunID: id, Output: out, Tokens: i})
			return nil
		}
		out += "x"
		emit(generation.Progress{RunID: id, Token: "x", Output: out[len(req.Prompt):], Index: i + 1})
	}
	emit(generation.Complete{RunID: id, Output: out, Tokens: req.MaxTokens})
	return nil
}

func next(t *testing.T, w *Worker) generation.Event {
	t.Helper()
	select {
	case ev, ok := <-w.Events():
		if !ok {
			t.Fatalf("events closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return nil
}

func expectNone(t *testing.T, w *Worker, d time.Duration) {
	t.Helper()
	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event %#v", ev)
	case <-time.After(d):
	}
}

func start(t *testing.T, w *Worker, id string, n int) {
	t.Helper()
	if err := w.Send(Start{RunID: id, Request: generation.Request{ModelID: "m", Prompt: "p", MaxTokens: n}}); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestWorker_RunToCompletion(t *testing.T) {
	r := &gatedRunner{gate: make(chan struct{}, 10)}
	w := New(r, Options{})
	defer w.Close()
	for i := 0; i < 3; i++ {
		r.gate <- struct{}{}
	}
	start(t, w, "r1", 3)
	if _, ok := next(t, w).(generation.Loading); !ok {
		t.Fatalf("expected Loading first")
	}
	for i := 1; i <= 3; i++ {
		p, ok := next(t, w).(generation.Progress)
		if !ok || p.Index != i {
			t.Fatalf("expected progress %d, got %#v", i, p)
		}
	}
	c, ok := next(t, w).(generation.Complete)
	if !ok || c.Output != "pxxx" || c.RunID != "r1" {
		t.Fatalf("unexpected completion %#v", c)
	}
}

func TestWorker_AbortInterleavesWithGeneration(t *testing.T) {
	r := &gatedRunner{gate: make(chan struct{})}
	w := New(r, Options{})
	defer w.Close()
	start(t, w, "r1", 100)
	next(t, w) // Loading
	r.gate <- struct{}{}
	if p, ok := next(t, w).(generation.Progress); !ok || p.Index != 1 {
		t.Fatalf("expected first progress, got %#v", p)
	}
	if err := w.Send(Abort{}); err != nil {
		t.Fatalf("Send abort: %v", err)
	}
	r.gate <- struct{}{}
	a, ok := next(t, w).(generation.Aborted)
	if !ok || a.Output != "px" || a.Tokens != 1 {
		t.Fatalf("expected Aborted after one token, got %#v", a)
	}
}

func TestWorker_AbortAppliedBeforeSendReturns(t *testing.T) {
	r := &gatedRunner{gate: make(chan struct{})}
	w := New(r, Options{})
	defer w.Close()
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("r%d", i)
		start(t, w, id, 10)
		next(t, w) // Loading
		for k := 1; k <= 2; k++ {
			r.gate <- struct{}{}
			if p, ok := next(t, w).(generation.Progress); !ok || p.Index != k {
				t.Fatalf("run %d: expected progress %d, got %#v", i, k, p)
			}
		}
		if err := w.Send(Abort{}); err != nil {
			t.Fatalf("Send abort: %v", err)
		}
		r.gate <- struct{}{}
		a, ok := next(t, w).(generation.Aborted)
		if !ok || a.RunID != id || a.Tokens != 2 {
			t.Fatalf("run %d: expected Aborted after two tokens, got %#v", i, a)
		}
	}
}

func TestWorker_StartWhileBusyIsRejected(t *testing.T) {
	r := &gatedRunner{gate: make(chan struct{})}
	w := New(r, Options{})
	defer w.Close()
	start(t, w, "r1", 1)
	next(t, w) // Loading of r1

	start(t, w, "r2", 1)
	e, ok := next(t, w).(generation.Errored)
	if !ok || !errors.Is(e.Err, ErrBusy) || e.RunID != "r2" {
		t.Fatalf("expected busy rejection for r2, got %#v", e)
	}
	if generation.ErrorKind(e.Err) != generation.KindBusy {
		t.Fatalf("busy error kind mismatch")
	}

	// r1 is unaffected
	r.gate <- struct{}{}
	next(t, w) // Progress
	if c, ok := next(t, w).(generation.Complete); !ok || c.RunID != "r1" {
		t.Fatalf("expected r1 to complete, got %#v", c)
	}

	// once r1 finished a new Start is accepted
	start(t, w, "r3", 0)
	if l, ok := next(t, w).(generation.Loading); !ok || l.RunID != "r3" {
		t.Fatalf("expected r3 to start, got %#v", l)
	}
}

func TestWorker_AbortWithoutRunIsNoop(t *testing.T) {
	w := New(&gatedRunner{gate: make(chan struct{}, 1)}, Options{})
	defer w.Close()
	if err := w.Send(Abort{}); err != nil {
		t.Fatal(err)
	}
	expectNone(t, w, 50*time.Millisecond)
}

func TestWorker_CloseAbortsActiveRun(t *testing.T) {
	r := &gatedRunner{gate: make(chan struct{})}
	w := New(r, Options{})
	start(t, w, "r1", 100)
	next(t, w) // Loading
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if _, ok := next(t, w).(generation.Aborted); !ok {
		t.Fatalf("expected Aborted on close")
	}
	if _, ok := <-w.Events(); ok {
		t.Fatalf("events should be closed")
	}
	if err := w.Send(Abort{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestWorker_WithGenerationRunner(t *testing.T) {
	a := modeltest.Chain("Hi", "Ġthere")
	files := map[string][]byte{"/w": a.Weights, "/t": a.Tokenizer, "/c": a.Config}
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		_, _ = rw.Write(files[r.URL.Path])
	}))
	defer srv.Close()
	mgr := manager.New(manager.ManagerConfig{Fetcher: assets.NewFetcher(assets.Options{})})
	runner := generation.NewRunner(generation.RunnerConfig{Loader: mgr})

	w := New(runner, Options{})
	defer w.Close()
	err := w.Send(Start{Request: generation.Request{
		ModelID:      "chain",
		Prompt:       "Hi",
		MaxTokens:    3,
		WeightsURLs:  []string{srv.URL + "/w"},
		TokenizerURL: srv.URL + "/t",
		ConfigURL:    srv.URL + "/c",
	}})
	if err != nil {
		t.Fatal(err)
	}
	var tokens int
	for {
		ev := next(t, w)
		switch e := ev.(type) {
		case generation.Progress:
			tokens++
			if e.Index != tokens {
				t.Fatalf("out of order progress %d", e.Index)
			}
		case generation.Complete:
			if e.Output != "Hi thereHi there" || tokens != 3 {
				t.Fatalf("unexpected completion %q after %d tokens", e.Output, tokens)
			}
			return
		case generation.Errored:
			t.Fatalf("run failed: %v", e.Err)
		}
	}
}
