// Package model defines the interface between the generation engine and an
// inference backend, plus the backends shipped with textgend.
//
// A Model is stateful: Prime resets it and consumes a prompt, NextToken then
// extends the sequence one token at a time. A Model is not safe for concurrent
// use; callers serialize access (see manager.Handle.Begin).
package model

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// SamplingParams controls token selection for one generation.
type SamplingParams struct {
	// Temperature <= 0 selects greedy decoding.
	Temperature float64
	// TopP outside (0,1) disables nucleus sampling.
	TopP float64
	// RepeatPenalty == 1 disables the penalty.
	RepeatPenalty float64
	Seed          uint64
}

// Assets are the raw bytes a backend builds a Model from.
type Assets struct {
	Weights   []byte
	Tokenizer []byte
	Config    []byte
}

// Size returns the combined size of all assets.
func (a Assets) Size() int64 {
	return int64(len(a.Weights) + len(a.Tokenizer) + len(a.Config))
}

// Model produces text tokens.
type Model interface {
	// Prime clears any previous state, consumes prompt and returns the
	// first generated token.
	Prime(prompt string, p SamplingParams) (string, error)
	// NextToken returns the token following the last one produced.
	NextToken() (string, error)
	Close() error
}

// Backend constructs Models from assets.
type Backend interface {
	Name() string
	Load(a Assets) (Model, error)
}

// ErrDependencyUnavailable is returned by backends compiled without their
// native dependency.
var ErrDependencyUnavailable = errors.New("dependency unavailable")

// ErrNotPrimed is returned by NextToken before a successful Prime.
var ErrNotPrimed = errors.New("model not primed")

// LlamaAvailable reports whether the llama backend was compiled in.
func LlamaAvailable() bool { return llamaBuilt }

// DefaultBackend is used when a catalog entry names no backend.
const DefaultBackend = "bigram"

var (
	backendsMu sync.RWMutex
	backends   = map[string]Backend{}
)

// Register makes a backend available by name. It panics on duplicates.
func Register(b Backend) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if _, dup := backends[b.Name()]; dup {
		panic("model: duplicate backend " + b.Name())
	}
	backends[b.Name()] = b
}

// Lookup returns the backend registered under name; "" selects DefaultBackend.
func Lookup(name string) (Backend, error) {
	if name == "" {
		name = DefaultBackend
	}
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	b, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("unknown backend %q", name)
	}
	return b, nil
}

// Backends lists registered backend names in sorted order.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	out := make([]string, 0, len(backends))
	for n := range backends {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
