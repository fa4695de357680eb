// Package docker runs nested builds inside local Docker containers.
package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/spachava753/composite/internal/environment"
	"github.com/spachava753/composite/internal/util"
)

// DefaultImage is used when a sub-build declares neither an image nor a
// Dockerfile.
const DefaultImage = "ubuntu:24.04"

// Provider implements the Docker environment provider.
type Provider struct {
	// Output receives image build progress. Nil discards it.
	Output io.Writer
}

// NewProvider creates a new Docker provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "docker"
}

// BuildImage builds a Docker image from the sub-build's directory.
func (p *Provider) BuildImage(ctx context.Context, contextDir, tag string) (string, error) {
	cmd := exec.CommandContext(ctx, "docker", "build", "-t", tag, contextDir)
	var stderr bytes.Buffer
	cmd.Stdout = p.Output
	cmd.Stderr = &stderr
	if p.Output != nil {
		cmd.Stderr = io.MultiWriter(p.Output, &stderr)
	}

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("building docker image: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return tag, nil
}

// CreateEnvironment creates and starts a container with the build directory
// mounted at environment.WorkspaceDir.
func (p *Provider) CreateEnvironment(ctx context.Context, opts environment.CreateEnvironmentOptions) (environment.Environment, error) {
	containerID := opts.Name
	if containerID == "" {
		containerID = fmt.Sprintf("composite-%d", time.Now().UnixNano())
	}

	image := opts.Image
	switch {
	case opts.Dockerfile != "":
		tag, err := p.BuildImage(ctx, opts.BuildDir, containerID+":latest")
		if err != nil {
			return nil, err
		}
		image = tag
	case image == "":
		image = DefaultImage
	}

	args := runArgs(containerID, image, opts)
	slog.Debug("starting docker container", "container", containerID, "image", image)

	cmd := exec.CommandContext(ctx, "docker", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("creating docker container: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return &DockerEnvironment{containerID: containerID}, nil
}

func runArgs(containerID, image string, opts environment.CreateEnvironmentOptions) []string {
	args := []string{
		"run",
		"-d",
		"--name", containerID,
		"-v", opts.BuildDir + ":" + environment.WorkspaceDir,
		"-w", environment.WorkspaceDir,
	}
	if opts.CPUs > 0 {
		args = append(args, "--cpus", strconv.Itoa(opts.CPUs))
	}
	if mem := util.FormatMemory(opts.MemoryMB); mem != "" {
		args = append(args, "--memory", mem)
	}
	for k, v := range opts.Env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}
	// Keep the container alive between task executions.
	return append(args, image, "sleep", "infinity")
}

// DockerEnvironment represents a running Docker container.
type DockerEnvironment struct {
	containerID string
}

// ID returns the container name.
func (e *DockerEnvironment) ID() string {
	return e.containerID
}

// Exec executes a command in the container.
func (e *DockerEnvironment) Exec(ctx context.Context, cmd string, stdout, stderr io.Writer, opts environment.ExecOptions) (int, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	execCmd := exec.CommandContext(ctx, "docker", execArgs(e.containerID, cmd, opts)...)
	execCmd.Stdout = stdout
	execCmd.Stderr = stderr

	err := execCmd.Run()
	if err == nil {
		return 0, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return -1, fmt.Errorf("command timed out after %s", opts.Timeout)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("executing command: %w", err)
}

func execArgs(containerID, cmd string, opts environment.ExecOptions) []string {
	args := []string{"exec"}
	for k, v := range opts.Env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}
	args = append(args, "-w", path.Join(environment.WorkspaceDir, opts.WorkDir))
	return append(args, containerID, "bash", "-c", cmd)
}

// Destroy removes the container.
func (e *DockerEnvironment) Destroy(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "docker", "rm", "-f", e.containerID)
	out, err := cmd.CombinedOutput()
	if err != nil && !strings.Contains(string(out), "No such container") {
		return fmt.Errorf("removing container: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
