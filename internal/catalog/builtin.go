package catalog

import "textgend/pkg/types"

const (
	candlePhi  = "https://huggingface.co/lmz/candle-quantized-phi/resolve/main"
	radamesPhi = "https://huggingface.co/radames/phi-2-quantized/resolve/main"
)

// builtin holds the quantized phi models. They are GGUF files and need the
// llama backend.
var builtin = map[string]types.ModelConfig{
	"phi_1_5_q4k": {
		BaseURL:   candlePhi,
		Model:     types.URLList{"model-q4k.gguf"},
		Tokenizer: "tokenizer.json",
		Config:    "phi-1_5.json",
		Quantized: true,
		SeqLen:    2048,
		Size:      "800 MB",
		Backend:   "llama",
	},
	"phi_1_5_q80": {
		BaseURL:   candlePhi,
		Model:     types.URLList{"model-q80.gguf"},
		Tokenizer: "tokenizer.json",
		Config:    "phi-1_5.json",
		Quantized: true,
		SeqLen:    2048,
		Size:      "1.51 GB",
		Backend:   "llama",
	},
	"phi_2_0_q4k": {
		BaseURL:   radamesPhi,
		Model:     types.URLList{"model-v2-q4k.gguf_aa.part", "model-v2-q4k.gguf_ab.part", "model-v2-q4k.gguf_ac.part"},
		Tokenizer: "tokenizer.json",
		Config:    "config.json",
		Quantized: true,
		SeqLen:    2048,
		Size:      "1.57GB",
		Backend:   "llama",
	},
	"puffin_phi_v2_q4k": {
		BaseURL:   candlePhi,
		Model:     types.URLList{"model-puffin-phi-v2-q4k.gguf"},
		Tokenizer: "tokenizer-puffin-phi-v2.json",
		Config:    "puffin-phi-v2.json",
		Quantized: true,
		SeqLen:    2048,
		Size:      "798 MB",
		Backend:   "llama",
	},
	"puffin_phi_v2_q80": {
		BaseURL:   candlePhi,
		Model:     types.URLList{"model-puffin-phi-v2-q80.gguf"},
		Tokenizer: "tokenizer-puffin-phi-v2.json",
		Config:    "puffin-phi-v2.json",
		Quantized: true,
		SeqLen:    2048,
		Size:      "1.50 GB",
		Backend:   "llama",
	},
}

// Builtin returns the catalog compiled into the binary.
func Builtin() *Catalog { return New(builtin) }
