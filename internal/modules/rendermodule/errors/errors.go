// Package errors provides structured error handling for the render module.
// It defines error types, sentinel errors, and helpers used to classify
// pipeline failures and map them onto HTTP responses.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies a render failure.
type ErrorType string

const (
	// ErrorTypeValidation indicates a rejected request; no build work was done
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeEnvironment indicates the sandbox image could not be provisioned
	ErrorTypeEnvironment ErrorType = "environment"
	// ErrorTypeBuild indicates the sandboxed renderer failed
	ErrorTypeBuild ErrorType = "build"
	// ErrorTypeOutput indicates the renderer succeeded but produced no video
	ErrorTypeOutput ErrorType = "output"
	// ErrorTypeConcat indicates the multiplexer failed
	ErrorTypeConcat ErrorType = "concat"
	// ErrorTypeStorage indicates a filesystem or persistence failure
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeInternal indicates an unexpected condition
	ErrorTypeInternal ErrorType = "internal"
)

// Sentinel errors
var (
	ErrNoScenes               = errors.New("no scenes to compile")
	ErrNoSceneClass           = errors.New("no valid scene class found")
	ErrInvalidRequest         = errors.New("invalid request")
	ErrEnvironmentUnavailable = errors.New("build environment unavailable")
	ErrBuildFailed            = errors.New("scene build failed")
	ErrNoVideoGenerated       = errors.New("no video file generated")
	ErrNoVideosToCombine      = errors.New("no videos to combine")
	ErrConcatFailed           = errors.New("video concatenation failed")
	ErrTimeout                = errors.New("operation timed out")
	ErrCancelled              = errors.New("operation cancelled")
	ErrQueueFull              = errors.New("render queue full")
	ErrNotFound               = errors.New("not found")
)

// Stage strings reported to API clients.
const (
	StageNoSceneClass      = "No valid Scene class found"
	StageNoScenesInFiles   = "No scenes found in any files"
	StageInvalidRequest    = "Invalid request"
	StageCompilation       = "Compilation failed"
	StageMultiScene        = "Multi-scene compilation failed"
	StageCombine           = "Video combination failed"
	StageBusy              = "Render queue full"
	StageInternal          = "Internal server error"
	StageNotFound          = "Not found"
	StageGenerationFailure = "Generation failed"
)

// RenderError carries a failure with the operation and compilation it belongs to.
type RenderError struct {
	Type          ErrorType
	Op            string
	CompilationID string
	Stage         string
	Err           error
	Details       map[string]interface{}
}

func (e *RenderError) Error() string {
	if e.CompilationID != "" {
		return fmt.Sprintf("%s error in %s for compilation %s: %v", e.Type, e.Op, e.CompilationID, e.Err)
	}
	return fmt.Sprintf("%s error in %s: %v", e.Type, e.Op, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// New creates a RenderError.
func New(errType ErrorType, op string, err error) *RenderError {
	return &RenderError{
		Type:    errType,
		Op:      op,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// WithCompilation attaches the compilation id.
func (e *RenderError) WithCompilation(compilationID string) *RenderError {
	e.CompilationID = compilationID
	return e
}

// WithStage sets the client-facing stage string.
func (e *RenderError) WithStage(stage string) *RenderError {
	e.Stage = stage
	return e
}

// WithDetail adds a key-value detail.
func (e *RenderError) WithDetail(key string, value interface{}) *RenderError {
	e.Details[key] = value
	return e
}

// IsRecoverable reports whether a resubmission might succeed.
func (e *RenderError) IsRecoverable() bool {
	switch {
	case errors.Is(e.Err, ErrTimeout), errors.Is(e.Err, ErrQueueFull), errors.Is(e.Err, ErrEnvironmentUnavailable):
		return true
	case e.Type == ErrorTypeInternal:
		return true
	}
	return false
}

// ValidationError creates a request validation error.
func ValidationError(op string, err error) *RenderError {
	return New(ErrorTypeValidation, op, err)
}

// EnvironmentError creates a sandbox provisioning error.
func EnvironmentError(op string, err error) *RenderError {
	return New(ErrorTypeEnvironment, op, err)
}

// BuildError creates a renderer invocation error.
func BuildError(op string, err error) *RenderError {
	return New(ErrorTypeBuild, op, err)
}

// OutputError creates an output-not-found error.
func OutputError(op string, err error) *RenderError {
	return New(ErrorTypeOutput, op, err)
}

// ConcatError creates a multiplexer error.
func ConcatError(op string, err error) *RenderError {
	return New(ErrorTypeConcat, op, err)
}

// StorageError creates a filesystem or persistence error.
func StorageError(op string, err error) *RenderError {
	return New(ErrorTypeStorage, op, err)
}

// InternalError creates an internal error.
func InternalError(op string, err error) *RenderError {
	return New(ErrorTypeInternal, op, err)
}

// Wrap wraps err unless it already is a RenderError.
func Wrap(err error, errType ErrorType, op string) error {
	if err == nil {
		return nil
	}
	var rErr *RenderError
	if errors.As(err, &rErr) {
		return err
	}
	return New(errType, op, err)
}

// FromContext converts a context error into the matching sentinel.
func FromContext(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, context.Canceled):
		return ErrCancelled
	}
	return err
}

// GetType extracts the error type, defaulting to internal.
func GetType(err error) ErrorType {
	var rErr *RenderError
	if errors.As(err, &rErr) {
		return rErr.Type
	}
	return ErrorTypeInternal
}

// GetStage extracts the client-facing stage string.
func GetStage(err error) string {
	var rErr *RenderError
	if errors.As(err, &rErr) && rErr.Stage != "" {
		return rErr.Stage
	}
	switch {
	case errors.Is(err, ErrQueueFull):
		return StageBusy
	case errors.Is(err, ErrNotFound):
		return StageNotFound
	case GetType(err) == ErrorTypeValidation:
		return StageInvalidRequest
	}
	return StageInternal
}

// GetDetails extracts the error details.
func GetDetails(err error) map[string]interface{} {
	var rErr *RenderError
	if errors.As(err, &rErr) {
		return rErr.Details
	}
	return nil
}

// Diagnostic returns the innermost human-readable message.
func Diagnostic(err error) string {
	var rErr *RenderError
	if errors.As(err, &rErr) && rErr.Err != nil {
		return rErr.Err.Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// HTTPStatus maps an error to a response status code.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrQueueFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case GetType(err) == ErrorTypeValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

type diagnosticError struct {
	msg   string
	cause error
}

func (e *diagnosticError) Error() string { return e.msg }
func (e *diagnosticError) Unwrap() error { return e.cause }

// WithDiagnostic returns an error whose message is diagnostic and which
// still matches cause under errors.Is.
func WithDiagnostic(diagnostic string, cause error) error {
	if cause == nil {
		return errors.New(diagnostic)
	}
	return &diagnosticError{msg: diagnostic, cause: cause}
}

// TypeOf returns the type of err, or fallback when err is not classified.
func TypeOf(err error, fallback ErrorType) ErrorType {
	var rErr *RenderError
	if errors.As(err, &rErr) {
		return rErr.Type
	}
	return fallback
}
