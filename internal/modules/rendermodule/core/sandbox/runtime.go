package sandbox

import "context"

// Mount points inside the render container.
const (
	ContainerInputDir  = "/app/input"
	ContainerOutputDir = "/app/output"
)

// RunSpec describes one sandboxed renderer invocation.
type RunSpec struct {
	CompilationID string
	Command       []string
	// InputDir is mounted read-only at ContainerInputDir.
	InputDir string
	// OutputDir is mounted read-write at ContainerOutputDir.
	OutputDir string
}

// RunResult is what the sandbox reports once the renderer has exited.
type RunResult struct {
	ExitCode int64
	Logs     string
}

// Runtime provisions and runs the isolated render environment.
//
// Run returns an error only when the invocation itself could not complete
// (create, start, wait, or context expiry). A renderer that ran and exited
// non-zero is reported through RunResult.ExitCode.
type Runtime interface {
	EnsureImage(ctx context.Context) error
	Run(ctx context.Context, spec RunSpec) (RunResult, error)
}
