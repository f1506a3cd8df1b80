package generation

import (
	"context"

	"github.com/go-playground/validator/v10"

	"textgend/internal/manager"
	"textgend/internal/model"
)

// Request describes one generation.
type Request struct {
	ModelID       string `validate:"required"`
	Prompt        string
	Temperature   float64 `validate:"gte=0"`
	TopP          float64 `validate:"gte=0,lte=1"`
	RepeatPenalty float64 `validate:"gte=0"`
	Seed          uint64
	MaxTokens     int `validate:"gte=0"`

	// Explicit asset locations. When WeightsURLs is set these replace the
	// catalog lookup for ModelID.
	WeightsURLs  []string `validate:"omitempty,dive,url"`
	TokenizerURL string   `validate:"omitempty,url"`
	ConfigURL    string   `validate:"omitempty,url"`
	Backend      string
}

// Sampling returns the model sampling parameters of r.
func (r Request) Sampling() model.SamplingParams {
	return model.SamplingParams{
		Temperature:   r.Temperature,
		TopP:          r.TopP,
		RepeatPenalty: r.RepeatPenalty,
		Seed:          r.Seed,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges.
func (r Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		return &InvalidRequestError{Err: err}
	}
	return nil
}

// Resolver maps a model id to asset locations.
type Resolver interface {
	Resolve(id string) (manager.LoadSpec, error)
}

// Loader returns a ready handle for a model.
type Loader interface {
	GetOrLoad(ctx context.Context, spec manager.LoadSpec) (*manager.Handle, error)
}

func (r Request) loadSpec(res Resolver) (manager.LoadSpec, error) {
	if len(r.WeightsURLs) > 0 {
		return manager.LoadSpec{
			ModelID:      r.ModelID,
			Weights:      r.WeightsURLs,
			TokenizerURL: r.TokenizerURL,
			ConfigURL:    r.ConfigURL,
			Backend:      r.Backend,
		}, nil
	}
	if res == nil {
		return manager.LoadSpec{}, manager.ErrModelNotFound(r.ModelID)
	}
	spec, err := res.Resolve(r.ModelID)
	if err != nil {
		return spec, err
	}
	if r.TokenizerURL != "" {
		spec.TokenizerURL = r.TokenizerURL
	}
	if r.ConfigURL != "" {
		spec.ConfigURL = r.ConfigURL
	}
	if r.Backend != "" {
		spec.Backend = r.Backend
	}
	return spec, nil
}
