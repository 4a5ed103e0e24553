package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestRenderError(t *testing.T) {
	err := New(ErrorTypeBuild, "build_scene", errors.New("exit status 1"))
	if err.Type != ErrorTypeBuild {
		t.Errorf("expected type %s, got %s", ErrorTypeBuild, err.Type)
	}

	err = err.WithCompilation("p1_Intro").WithDetail("class_name", "Intro")
	if err.Details["class_name"] != "Intro" {
		t.Errorf("expected class_name detail, got %v", err.Details["class_name"])
	}

	expected := "build error in build_scene for compilation p1_Intro: exit status 1"
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
}

func TestErrorWrapping(t *testing.T) {
	err := OutputError("locate", ErrNoVideoGenerated)
	if !errors.Is(err, ErrNoVideoGenerated) {
		t.Error("expected error to match ErrNoVideoGenerated")
	}

	wrapped := fmt.Errorf("batch: %w", err)
	if GetType(wrapped) != ErrorTypeOutput {
		t.Errorf("expected type %s, got %s", ErrorTypeOutput, GetType(wrapped))
	}

	if Wrap(err, ErrorTypeInternal, "other") != error(err) {
		t.Error("Wrap must preserve an existing RenderError")
	}
	if Wrap(nil, ErrorTypeInternal, "noop") != nil {
		t.Error("Wrap(nil) must be nil")
	}
	if GetType(errors.New("plain")) != ErrorTypeInternal {
		t.Error("plain errors default to internal")
	}
}

func TestFromContext(t *testing.T) {
	if !errors.Is(FromContext(context.DeadlineExceeded), ErrTimeout) {
		t.Error("deadline should map to ErrTimeout")
	}
	if !errors.Is(FromContext(context.Canceled), ErrCancelled) {
		t.Error("cancel should map to ErrCancelled")
	}
	other := errors.New("boom")
	if FromContext(other) != other {
		t.Error("unrelated errors pass through")
	}
}

func TestHTTPStatusAndStage(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		stage  string
	}{
		{
			name:   "validation with stage",
			err:    ValidationError("extract", ErrNoSceneClass).WithStage(StageNoSceneClass),
			status: http.StatusBadRequest,
			stage:  StageNoSceneClass,
		},
		{
			name:   "validation without stage",
			err:    ValidationError("decode", ErrInvalidRequest),
			status: http.StatusBadRequest,
			stage:  StageInvalidRequest,
		},
		{
			name:   "queue full",
			err:    InternalError("submit", ErrQueueFull),
			status: http.StatusServiceUnavailable,
			stage:  StageBusy,
		},
		{
			name:   "build failure",
			err:    BuildError("build_scene", ErrBuildFailed).WithStage(StageCompilation),
			status: http.StatusInternalServerError,
			stage:  StageCompilation,
		},
		{
			name:   "not found",
			err:    StorageError("get", ErrNotFound),
			status: http.StatusNotFound,
			stage:  StageNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, got)
			}
			if got := GetStage(tt.err); got != tt.stage {
				t.Errorf("expected stage %q, got %q", tt.stage, got)
			}
		})
	}
}

func TestIsRecoverable(t *testing.T) {
	tests := []struct {
		name        string
		err         *RenderError
		recoverable bool
	}{
		{"timeout", BuildError("build_scene", ErrTimeout), true},
		{"queue full", InternalError("submit", ErrQueueFull), true},
		{"environment", EnvironmentError("ensure_image", ErrEnvironmentUnavailable), true},
		{"validation", ValidationError("extract", ErrNoSceneClass), false},
		{"no output", OutputError("locate", ErrNoVideoGenerated), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.IsRecoverable() != tt.recoverable {
				t.Errorf("expected recoverable=%v for %v", tt.recoverable, tt.err)
			}
		})
	}
}

func TestDiagnostic(t *testing.T) {
	err := BuildError("build_scene", errors.New("Traceback: NameError"))
	if Diagnostic(err) != "Traceback: NameError" {
		t.Errorf("unexpected diagnostic %q", Diagnostic(err))
	}
	if Diagnostic(nil) != "" {
		t.Error("nil diagnostic should be empty")
	}
}

func TestWithDiagnostic(t *testing.T) {
	cause := BuildError("build_scene", ErrTimeout)
	err := New(TypeOf(cause, ErrorTypeInternal), "execute", WithDiagnostic("scene build timed out after 5m0s", cause))

	if Diagnostic(err) != "scene build timed out after 5m0s" {
		t.Errorf("unexpected diagnostic %q", Diagnostic(err))
	}
	if !errors.Is(err, ErrTimeout) {
		t.Error("expected diagnostic error to keep its cause")
	}
	if err.Type != ErrorTypeBuild {
		t.Errorf("expected type %s, got %s", ErrorTypeBuild, err.Type)
	}
	if TypeOf(errors.New("plain"), ErrorTypeConcat) != ErrorTypeConcat {
		t.Error("expected fallback type for unclassified error")
	}
	if WithDiagnostic("only text", nil).Error() != "only text" {
		t.Error("expected bare diagnostic without cause")
	}
}
