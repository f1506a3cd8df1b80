package storage

import (
	"context"
	"sync"
)

// Memory is a process-local Backend.
type Memory struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemory() *Memory { return &Memory{m: map[string]string{}} }

func (b *Memory) Get(_ context.Context, key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.m[key]
	return v, ok, nil
}

func (b *Memory) Set(_ context.Context, key, value string) error {
	b.mu.Lock()
	b.m[key] = value
	b.mu.Unlock()
	return nil
}

func (b *Memory) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	delete(b.m, key)
	b.mu.Unlock()
	return nil
}

func (b *Memory) Keys(context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.m))
	for k := range b.m {
		out = append(out, k)
	}
	return out, nil
}

func (b *Memory) Clear(context.Context) error {
	b.mu.Lock()
	b.m = map[string]string{}
	b.mu.Unlock()
	return nil
}

func (b *Memory) Close() error { return nil }
