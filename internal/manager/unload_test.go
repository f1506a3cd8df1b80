package manager

import (
	"context"
	"testing"
	"time"
)

func TestUnload_DrainsAndRemoves(t *testing.T) {
	pub := NewMemoryPublisher()
	m, h := loadFake(t, ManagerConfig{Publisher: pub, DrainTimeout: time.Second})
	rel, err := h.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- m.Unload("m") }()

	time.Sleep(20 * time.Millisecond)
	if h.State() != StateDraining {
		t.Fatalf("expected draining, got %s", h.State())
	}
	if _, err := h.Begin(context.Background()); !IsTooBusy(err) {
		t.Fatalf("draining handle must reject work, got %v", err)
	}
	if st := m.Status(); len(st.Handles) != 1 || st.Handles[0].State != string(StateDraining) {
		t.Fatalf("unexpected status %+v", st.Handles)
	}
	rel()
	if err := <-done; err != nil {
		t.Fatalf("Unload: %v", err)
	}
	if _, ok := m.Lookup("m"); ok {
		t.Fatalf("handle should be removed")
	}
	if !h.Model().(*fakeModel).closed {
		t.Fatalf("model should be closed")
	}
	names := pub.Names()
	if names[len(names)-1] != EventUnloadDone {
		t.Fatalf("unexpected events %v", names)
	}
}

func TestUnload_Timeout(t *testing.T) {
	pub := NewMemoryPublisher()
	m, h := loadFake(t, ManagerConfig{Publisher: pub, DrainTimeout: 20 * time.Millisecond})
	rel, err := h.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer rel()
	if err := m.Unload("m"); err != nil {
		t.Fatalf("Unload: %v", err)
	}
	found := false
	for _, n := range pub.Names() {
		if n == EventUnloadTimeout {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected unload_timeout event")
	}
}

func TestUnload_Unknown(t *testing.T) {
	m := newTestManager(ManagerConfig{})
	if err := m.Unload(""); !IsModelNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := m.Unload("ghost"); !IsModelNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStatusAndReady(t *testing.T) {
	m := newTestManager(ManagerConfig{MaxQueueDepth: 3})
	if m.Ready() {
		t.Fatalf("empty manager should not be ready")
	}
	host := newAssetHost(t, chainAssets())
	if _, err := m.GetOrLoad(context.Background(), host.spec("chain")); err != nil {
		t.Fatal(err)
	}
	if !m.Ready() {
		t.Fatalf("expected ready")
	}
	st := m.Status()
	if len(st.Handles) != 1 || st.Handles[0].MaxQueueDepth != 3 || st.Handles[0].AssetBytes == 0 {
		t.Fatalf("unexpected handles %+v", st.Handles)
	}
	if st.LoadsTotal != 1 || st.Cache.Entries != 3 || st.Cache.Bytes == 0 {
		t.Fatalf("unexpected status %+v", st)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(m.Loaded()) != 0 {
		t.Fatalf("Close should unload everything")
	}
}
