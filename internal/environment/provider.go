// Package environment defines the runtimes nested builds execute in.
package environment

import (
	"context"
	"io"
	"time"
)

// WorkspaceDir is where a sub-build's root directory is visible inside
// container runtimes.
const WorkspaceDir = "/workspace"

// Environment is a prepared runtime holding one sub-build's files.
type Environment interface {
	// ID returns the unique identifier for this environment.
	ID() string

	// Exec runs a shell command, streaming stdout and stderr to the provided
	// writers. It returns the exit code, or an error when the command could
	// not be run to completion.
	Exec(ctx context.Context, cmd string, stdout, stderr io.Writer, opts ExecOptions) (int, error)

	// Destroy releases the environment and every resource it holds.
	Destroy(ctx context.Context) error
}

// ExecOptions configures command execution.
type ExecOptions struct {
	Env     map[string]string
	Timeout time.Duration
	// WorkDir is relative to the sub-build root. Empty means the root itself.
	WorkDir string
}

// Provider is a factory for environments.
type Provider interface {
	// Name returns the runtime name (e.g. "local", "docker", "modal").
	Name() string

	// CreateEnvironment prepares an environment for one nested build.
	CreateEnvironment(ctx context.Context, opts CreateEnvironmentOptions) (Environment, error)
}

// CreateEnvironmentOptions configures environment creation.
type CreateEnvironmentOptions struct {
	// Name identifies the environment, e.g. a container name.
	Name string
	// BuildDir is the sub-build root on the host.
	BuildDir string
	// Dockerfile is the content of the sub-build's Dockerfile, if any. It takes
	// precedence over Image.
	Dockerfile string
	Image      string
	CPUs       int
	MemoryMB   int
	Env        map[string]string
	Config     map[string]any
}
