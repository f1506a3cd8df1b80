// Package modeltest builds small bigram model assets for tests.
package modeltest

import (
	"fmt"

	json "github.com/goccy/go-json"

	"textgend/internal/model"
)

// Chain returns assets for a bigram model over vocab whose greedy decoding
// cycles through vocab in order: after vocab[i] comes vocab[(i+1)%len].
// Use a "Ġ" prefix to mark a leading space.
func Chain(vocab ...string) model.Assets {
	n := len(vocab)
	logits := make([]float32, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			logits[i*n+j] = -4
		}
		logits[i*n+(i+1)%n] = 4
	}
	return Build(vocab, logits)
}

// Build returns assets for an arbitrary vocab x vocab logits table.
func Build(vocab []string, logits []float32) model.Assets {
	ids := make(map[string]int, len(vocab))
	for i, v := range vocab {
		ids[v] = i
	}
	tok, err := json.Marshal(map[string]any{
		"version": "1.0",
		"model":   map[string]any{"type": "BPE", "vocab": ids},
	})
	if err != nil {
		panic(err)
	}
	cfg := []byte(fmt.Sprintf(`{"model_type":"bigram","vocab_size":%d,"_name_or_path":"test/chain","seq_len":0}`, len(vocab)))
	w, err := model.MarshalBigramWeights(len(vocab), logits)
	if err != nil {
		panic(err)
	}
	return model.Assets{Weights: w, Tokenizer: tok, Config: cfg}
}
