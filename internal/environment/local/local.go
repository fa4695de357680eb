// Package local runs nested builds directly on the host.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spachava753/composite/internal/environment"
)

// Provider implements the host runtime.
type Provider struct {
	// Shell runs each command with "-c". Defaults to bash.
	Shell string
}

// NewProvider creates a new host provider.
func NewProvider() *Provider {
	return &Provider{Shell: "bash"}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "local"
}

// CreateEnvironment checks that the build directory exists. Image and resource
// settings do not apply on the host and are ignored.
func (p *Provider) CreateEnvironment(ctx context.Context, opts environment.CreateEnvironmentOptions) (environment.Environment, error) {
	info, err := os.Stat(opts.BuildDir)
	if err != nil {
		return nil, fmt.Errorf("checking build directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("build directory %s is not a directory", opts.BuildDir)
	}
	if opts.Image != "" || opts.Dockerfile != "" {
		slog.Debug("local runtime ignores image settings", "build_dir", opts.BuildDir)
	}

	shell := p.Shell
	if shell == "" {
		shell = "bash"
	}
	name := opts.Name
	if name == "" {
		name = filepath.Base(opts.BuildDir)
	}

	return &Environment{
		name:  name,
		dir:   opts.BuildDir,
		shell: shell,
		env:   opts.Env,
	}, nil
}

// Environment runs commands in a host directory.
type Environment struct {
	name  string
	dir   string
	shell string
	env   map[string]string
}

// ID returns the environment name.
func (e *Environment) ID() string {
	return "local-" + e.name
}

// Exec runs cmd through the shell inside the build directory.
func (e *Environment) Exec(ctx context.Context, cmd string, stdout, stderr io.Writer, opts environment.ExecOptions) (int, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	execCmd := exec.CommandContext(ctx, e.shell, "-c", cmd)
	execCmd.Dir = filepath.Join(e.dir, opts.WorkDir)
	execCmd.Stdout = stdout
	execCmd.Stderr = stderr
	execCmd.Env = os.Environ()
	for k, v := range e.env {
		execCmd.Env = append(execCmd.Env, k+"="+v)
	}
	for k, v := range opts.Env {
		execCmd.Env = append(execCmd.Env, k+"="+v)
	}

	err := execCmd.Run()
	if err == nil {
		return 0, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return -1, fmt.Errorf("command timed out after %s", opts.Timeout)
	}
	if ctx.Err() != nil {
		return -1, ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("executing command: %w", err)
}

// Destroy is a no-op; the build directory belongs to the caller.
func (e *Environment) Destroy(ctx context.Context) error {
	return nil
}
