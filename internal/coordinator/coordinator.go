// Package coordinator decides when, and with which tasks, a sub-build of a
// composite build is invoked.
//
// Artifact requests register the tasks they need per owning sub-build. Forcing
// an artifact executes its sub-build with every task registered so far that
// was never dispatched before. A sub-build that is asked to execute while it is
// already executing is a dependency cycle between sub-builds and is rejected
// with a models.BuildCycleError.
//
// A Coordinator is scoped to one composite build session and is safe for
// concurrent use.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spachava753/composite/internal/launcher"
	"github.com/spachava753/composite/internal/models"
)

// DirectoryLookup maps a sub-build to its root directory.
type DirectoryLookup interface {
	ResolveDirectory(build models.BuildID) (string, error)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger used for dispatch events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// Coordinator schedules nested builds for the sub-builds of one session.
type Coordinator struct {
	dirs     DirectoryLookup
	launcher launcher.Launcher
	logger   *slog.Logger

	mu        sync.Mutex
	pending   map[models.BuildID][]models.TaskPath
	inFlight  map[models.BuildID]struct{}
	completed map[models.BuildID]map[models.TaskPath]struct{}
}

// New creates a coordinator for a single session.
func New(dirs DirectoryLookup, l launcher.Launcher, opts ...Option) *Coordinator {
	c := &Coordinator{
		dirs:      dirs,
		launcher:  l,
		logger:    slog.Default(),
		pending:   make(map[models.BuildID][]models.TaskPath),
		inFlight:  make(map[models.BuildID]struct{}),
		completed: make(map[models.BuildID]map[models.TaskPath]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NotifyWillBuild registers the tasks of an artifact that will be built later.
// Artifacts not owned by a sub-build are ignored.
func (c *Coordinator) NotifyWillBuild(ctx context.Context, artifact models.Artifact) {
	if !artifact.Composite {
		return
	}
	c.register(artifact)
}

// BuildArtifact registers the tasks of an artifact and executes its sub-build.
// Artifacts not owned by a sub-build are ignored.
func (c *Coordinator) BuildArtifact(ctx context.Context, artifact models.Artifact) error {
	if !artifact.Composite {
		return nil
	}
	return c.Execute(ctx, c.register(artifact))
}

// Execute runs every task registered for build that was not dispatched yet.
// It blocks until the nested build completes. When nothing is left to run it
// returns without invoking the launcher.
func (c *Coordinator) Execute(ctx context.Context, build models.BuildID) error {
	if err := c.enter(build); err != nil {
		return err
	}
	defer c.leave(build)

	tasks := c.claim(build)
	if len(tasks) == 0 {
		c.logger.Debug("build tasks already executed", "build", build.String())
		return nil
	}

	return c.dispatch(ctx, build, tasks)
}

func (c *Coordinator) dispatch(ctx context.Context, build models.BuildID, tasks []models.TaskPath) (err error) {
	dir, err := c.dirs.ResolveDirectory(build)
	if err != nil {
		var dirErr *models.DirectoryResolutionError
		if errors.As(err, &dirErr) {
			return err
		}
		return &models.DirectoryResolutionError{Build: build, Err: err}
	}

	c.logger.Info("executing build tasks", "build", build.String(), "tasks", tasks)

	inst, err := c.launcher.NewInstance(ctx, launcher.Request{
		Build:         build,
		Dir:           dir,
		Tasks:         tasks,
		SearchUpwards: false,
	})
	if err != nil {
		return &models.NestedExecutionError{Build: build, Tasks: tasks, Err: err}
	}

	defer func() {
		// Cleanup must run even when ctx is already cancelled.
		stopErr := inst.Stop(context.WithoutCancel(ctx))
		if stopErr == nil {
			return
		}
		c.logger.Warn("stopping nested build", "build", build.String(), "error", stopErr)
		if err == nil {
			err = &models.NestedExecutionError{Build: build, Tasks: tasks, Err: fmt.Errorf("stopping nested build: %w", stopErr)}
		}
	}()

	if err := inst.Run(ctx); err != nil {
		return &models.NestedExecutionError{Build: build, Tasks: tasks, Err: err}
	}
	return nil
}
