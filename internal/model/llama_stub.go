//go:build !llama

package model

import "fmt"

const llamaBuilt = false

// Llama is unavailable without the llama build tag; Load always fails.
type Llama struct {
	ContextSize int
	Threads     int
}

func (Llama) Name() string { return "llama" }

func (Llama) Load(Assets) (Model, error) {
	return nil, fmt.Errorf("llama support not built (missing 'llama' build tag): %w", ErrDependencyUnavailable)
}

func init() { Register(Llama{}) }
