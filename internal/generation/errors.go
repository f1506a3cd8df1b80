package generation

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"textgend/internal/assets"
	"textgend/internal/manager"
)

// ErrBusy rejects a run started while another one owns the worker.
var ErrBusy = errors.New("generation already running")

// GenerationError reports a failure of the model while priming or decoding.
type GenerationError struct {
	// Op is "prime" or "decode".
	Op    string
	Index int // tokens emitted before the failure
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation %s at token %d: %v", e.Op, e.Index, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// IsGenerationError reports whether err is or wraps a *GenerationError.
func IsGenerationError(err error) bool {
	var e *GenerationError
	return errors.As(err, &e)
}

// InvalidRequestError carries request validation failures.
type InvalidRequestError struct{ Err error }

func (e *InvalidRequestError) Error() string { return "invalid request: " + describe(e.Err) }

func (e *InvalidRequestError) Unwrap() error { return e.Err }

// IsInvalidRequest reports whether err is or wraps an *InvalidRequestError.
func IsInvalidRequest(err error) bool {
	var e *InvalidRequestError
	return errors.As(err, &e)
}

func describe(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return err.Error()
	}
	fe := ve[0]
	if fe.Param() != "" {
		return fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}

// Error kinds reported on the wire.
const (
	KindFetch          = "fetch"
	KindModelLoad      = "model_load"
	KindGeneration     = "generation"
	KindBusy           = "busy"
	KindInvalidRequest = "invalid_request"
	KindNotFound       = "not_found"
	KindUnknown        = "unknown"
)

// ErrorKind classifies err for clients.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsInvalidRequest(err):
		return KindInvalidRequest
	case errors.Is(err, ErrBusy), manager.IsTooBusy(err):
		return KindBusy
	case manager.IsModelNotFound(err):
		return KindNotFound
	case assets.IsFetchError(err):
		return KindFetch
	case manager.IsModelLoadError(err):
		return KindModelLoad
	case IsGenerationError(err):
		return KindGeneration
	default:
		return KindUnknown
	}
}
