// Package convert implements the conversion executor: the contract every
// conversion strategy satisfies plus the two strategies this service
// ships — in-process transforms for local-capable tools and delegation to
// a remote conversion endpoint for the rest.
package convert

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/models"
)

// ProgressFunc receives monotone percent values in [0,100]. On success the
// final reported value is exactly 100; on failure the last value stands.
type ProgressFunc func(percent int)

// Input describes the file to convert. Path points at stored content;
// Endpoint is the remote conversion path for delegated tools.
type Input struct {
	ToolID   string
	Name     string
	Path     string
	Size     int64
	MIMEType string
	Endpoint string
}

// Options carries the string-encoded option fields a tool accepts.
type Options struct {
	Quality int               // 1-100 for lossy image output, 0 = default
	Extra   map[string]string // tool-specific fields, e.g. "case" for text tools
}

// DefaultQuality is used when Options.Quality is unset.
const DefaultQuality = 80

// Executor performs the actual transform and reports progress while doing
// so. Failures are always *ConversionError by the time they cross this
// boundary; raw transport or codec errors never escape.
type Executor interface {
	Execute(ctx context.Context, in Input, targetFormat string, opts Options, onProgress ProgressFunc) (*models.ConversionResult, error)
}

// ConversionError is the normalized failure shape for all strategies.
type ConversionError struct {
	Code    string
	Message string
	Detail  string
}

// Error implements the error interface.
func (e *ConversionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Normalize converts any failure into a *ConversionError. Context
// cancellation becomes CONVERSION_CANCELLED, a defined terminal state;
// everything else is CONVERSION_FAILED with the cause as detail.
func Normalize(err error) *ConversionError {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &ConversionError{
			Code:    models.CodeConversionCancelled,
			Message: "conversion cancelled",
			Detail:  err.Error(),
		}
	}
	return &ConversionError{
		Code:    models.CodeConversionFailed,
		Message: "conversion failed",
		Detail:  err.Error(),
	}
}

// Dispatcher selects the executor strategy for a tool at dispatch time.
type Dispatcher struct {
	Local  Executor
	Remote Executor
}

// ForTool returns the strategy matching the tool's capability.
func (d *Dispatcher) ForTool(tool *models.Tool) Executor {
	if tool.Local {
		return d.Local
	}
	return d.Remote
}

// notify guards against nil progress callbacks.
func notify(cb ProgressFunc, percent int) {
	if cb != nil {
		cb(percent)
	}
}
