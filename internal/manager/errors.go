package manager

import (
	"errors"

	"textgend/internal/model"
)

// tooBusyError signals queue timeout/overflow for 429 mapping.
type tooBusyError struct{ modelID string }

func (e tooBusyError) Error() string { return "too busy: " + e.modelID }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var e tooBusyError
	return errors.As(err, &e)
}

type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

// ErrModelNotFound returns an error for an unknown model id.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

// ModelLoadError reports assets that were fetched but could not be turned
// into a model: malformed weights, tokenizer or config, or an unavailable
// backend.
type ModelLoadError struct {
	ModelID string
	Backend string
	Err     error
}

func (e *ModelLoadError) Error() string {
	return "load model " + e.ModelID + " (" + e.Backend + "): " + e.Err.Error()
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// IsModelLoadError reports whether err is or wraps a *ModelLoadError.
func IsModelLoadError(err error) bool {
	var e *ModelLoadError
	return errors.As(err, &e)
}

// IsDependencyUnavailable reports whether err stems from a backend compiled
// without its native runtime (return 503).
func IsDependencyUnavailable(err error) bool {
	return errors.Is(err, model.ErrDependencyUnavailable)
}
