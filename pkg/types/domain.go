package types

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// ModelConfig is one catalog entry describing where a model's assets live.
type ModelConfig struct {
	// Base URL the file names below are resolved against.
	// example: https://huggingface.co/lmz/candle-quantized-phi/resolve/main
	BaseURL string `json:"base_url" yaml:"base_url" toml:"base_url" example:"https://huggingface.co/lmz/candle-quantized-phi/resolve/main"`
	// Weights file name, or the ordered list of part file names for sharded weights.
	// example: model-q4k.gguf
	Model URLList `json:"model" yaml:"model" toml:"model" swaggertype:"array,string"`
	// Tokenizer file name.
	// example: tokenizer.json
	Tokenizer string `json:"tokenizer" yaml:"tokenizer" toml:"tokenizer" example:"tokenizer.json"`
	// Model config file name.
	// example: phi-1_5.json
	Config string `json:"config" yaml:"config" toml:"config" example:"phi-1_5.json"`
	// Whether the weights are quantized.
	Quantized bool `json:"quantized" yaml:"quantized" toml:"quantized"`
	// Maximum sequence length supported by the model.
	// example: 2048
	SeqLen int `json:"seq_len" yaml:"seq_len" toml:"seq_len" example:"2048"`
	// Human readable download size.
	// example: 800 MB
	Size string `json:"size" yaml:"size" toml:"size" example:"800 MB"`
	// Backend used to load the assets (bigram, llama). Empty means the server default.
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty" toml:"backend,omitempty"`
}

// Model is the public view of a catalog entry returned by GET /models.
type Model struct {
	// Stable identifier for the model.
	// example: phi_1_5_q4k
	ID string `json:"id" example:"phi_1_5_q4k"`
	ModelConfig
	// True when a handle for this model is already loaded.
	Loaded bool `json:"loaded"`
}

// URLList holds one or more URLs (or file names). It decodes from either a
// JSON string or a JSON array of strings.
type URLList []string

func (l *URLList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		if one == "" {
			*l = nil
			return nil
		}
		*l = URLList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("url list must be a string or an array of strings: %w", err)
	}
	*l = URLList(many)
	return nil
}

// MarshalJSON writes a single element as a plain string, matching the catalog format.
func (l URLList) MarshalJSON() ([]byte, error) {
	if len(l) == 1 {
		return json.Marshal(l[0])
	}
	return json.Marshal([]string(l))
}

// UnmarshalYAML accepts a scalar or a sequence.
func (l *URLList) UnmarshalYAML(unmarshal func(any) error) error {
	var one string
	if err := unmarshal(&one); err == nil {
		*l = URLList{one}
		return nil
	}
	var many []string
	if err := unmarshal(&many); err != nil {
		return err
	}
	*l = URLList(many)
	return nil
}
