package launcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spachava753/composite/internal/environment"
	"github.com/spachava753/composite/internal/models"
)

// BuildLoader loads a sub-build definition from its directory.
type BuildLoader interface {
	LoadBuild(ctx context.Context, id models.BuildID, dir string, searchUpwards bool) (*models.Build, error)
	ValidateBuild(b *models.Build, tasks []models.TaskPath) error
}

// Nested runs the requested tasks of a sub-build inside a runtime environment.
// Requirements on other sub-builds are resolved through Resolver before the
// task that needs them runs.
type Nested struct {
	Provider          environment.Provider
	Loader            BuildLoader
	Resolver          Resolver
	TimeoutMultiplier float64
	ProviderConfig    map[string]any

	// LogDir, when set, receives stdout.txt and stderr.txt per task under
	// <LogDir>/<build>/<task>/.
	LogDir string
	// Stdout and Stderr receive task output as it is produced. Nil discards it.
	Stdout io.Writer
	Stderr io.Writer
}

// NewInstance loads the sub-build and checks the requested tasks exist. No
// environment is created until Run.
func (n *Nested) NewInstance(ctx context.Context, req Request) (Instance, error) {
	b, err := n.Loader.LoadBuild(ctx, req.Build, req.Dir, req.SearchUpwards)
	if err != nil {
		return nil, err
	}
	if err := n.Loader.ValidateBuild(b, req.Tasks); err != nil {
		return nil, fmt.Errorf("validating build: %w", err)
	}
	return &nestedInstance{n: n, build: b, tasks: req.Tasks}, nil
}

type nestedInstance struct {
	n     *Nested
	build *models.Build
	tasks []models.TaskPath
	env   environment.Environment
}

// GitCommitID returns the HEAD commit of the sub-build, nil outside git.
func (i *nestedInstance) GitCommitID() *string {
	return i.build.GitCommitID
}

func (i *nestedInstance) Run(ctx context.Context) error {
	// Register every requirement up front so each required sub-build runs its
	// tasks for this build in as few invocations as possible.
	if i.n.Resolver != nil {
		for _, path := range i.tasks {
			task, _ := i.build.Task(path)
			for _, req := range task.Requires {
				i.n.Resolver.NotifyWillBuild(ctx, req.Artifact())
			}
		}
	}

	for _, path := range i.tasks {
		task, _ := i.build.Task(path)
		for _, req := range task.Requires {
			if i.n.Resolver == nil {
				return fmt.Errorf("task %s requires %s but no resolver is configured", path, req.Project)
			}
			if err := i.n.Resolver.BuildArtifact(ctx, req.Artifact()); err != nil {
				return fmt.Errorf("task %s requires %s: %w", path, req.Project, err)
			}
		}

		if err := i.runTask(ctx, path, task); err != nil {
			return err
		}
	}
	return nil
}

func (i *nestedInstance) runTask(ctx context.Context, path models.TaskPath, task models.TaskConfig) error {
	env, err := i.environment(ctx)
	if err != nil {
		return err
	}

	mult := i.n.TimeoutMultiplier
	if mult <= 0 {
		mult = 1
	}
	timeout := time.Duration(task.TimeoutSec*mult) * time.Second

	execEnv := make(map[string]string, len(task.Env)+2)
	for k, v := range task.Env {
		execEnv[k] = v
	}
	execEnv["COMPOSITE_BUILD"] = i.build.ID.Name
	execEnv["COMPOSITE_TASK"] = string(path)

	slog.Debug("running task", "build", i.build.ID.String(), "task", path, "timeout", timeout)

	var stdout, stderr bytes.Buffer
	exitCode, err := env.Exec(ctx, task.Command, tee(&stdout, i.n.Stdout), tee(&stderr, i.n.Stderr), environment.ExecOptions{
		Env:     execEnv,
		Timeout: timeout,
	})
	i.saveLogs(path, stdout.Bytes(), stderr.Bytes())

	if err != nil {
		return fmt.Errorf("task %s: %w", path, err)
	}
	if exitCode != 0 {
		return fmt.Errorf("task %s exited with code %d", path, exitCode)
	}
	return nil
}

// environment creates the runtime environment on first use.
func (i *nestedInstance) environment(ctx context.Context) (environment.Environment, error) {
	if i.env != nil {
		return i.env, nil
	}

	var dockerfile string
	if data, err := fs.ReadFile(i.build.FS, "Dockerfile"); err == nil {
		dockerfile = string(data)
	}

	name := sanitizeEnvName(fmt.Sprintf("composite-%s-%d", i.build.ID.Name, time.Now().UnixNano()))
	env, err := i.n.Provider.CreateEnvironment(ctx, environment.CreateEnvironmentOptions{
		Name:       name,
		BuildDir:   i.build.Path,
		Dockerfile: dockerfile,
		Image:      i.build.Config.Env.Image,
		CPUs:       i.build.Config.Env.CPUs,
		MemoryMB:   i.build.Config.Env.MemoryMB,
		Config:     i.n.ProviderConfig,
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s environment: %w", i.n.Provider.Name(), err)
	}
	slog.Debug("environment created", "build", i.build.ID.String(), "id", env.ID())
	i.env = env
	return env, nil
}

func (i *nestedInstance) saveLogs(task models.TaskPath, stdout, stderr []byte) {
	if i.n.LogDir == "" {
		return
	}
	dir := filepath.Join(i.n.LogDir, i.build.ID.Name, sanitizeEnvName(string(task)))
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Warn("creating task log directory", "dir", dir, "error", err)
		return
	}
	for name, data := range map[string][]byte{"stdout.txt": stdout, "stderr.txt": stderr} {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			slog.Warn("writing task log", "file", filepath.Join(dir, name), "error", err)
		}
	}
}

func (i *nestedInstance) Stop(ctx context.Context) error {
	if i.env == nil {
		return nil
	}
	env := i.env
	i.env = nil
	if err := env.Destroy(ctx); err != nil {
		return fmt.Errorf("destroying environment %s: %w", env.ID(), err)
	}
	return nil
}

func tee(buf *bytes.Buffer, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(buf, w)
}

// maxAppNameLength is the longest name accepted by container runtimes.
const maxAppNameLength = 63

var invalidNameChars = regexp.MustCompile(`[^a-z0-9-]+`)

// sanitizeEnvName lowercases name and replaces runs of characters outside
// [a-z0-9-] with a single hyphen, trimming to maxAppNameLength.
func sanitizeEnvName(name string) string {
	s := invalidNameChars.ReplaceAllString(strings.ToLower(name), "-")
	s = strings.Trim(s, "-")
	if len(s) > maxAppNameLength {
		s = strings.TrimRight(s[:maxAppNameLength], "-")
	}
	return s
}
