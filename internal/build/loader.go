// Package build loads sub-builds from their root directories.
package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spachava753/composite/internal/config"
	"github.com/spachava753/composite/internal/models"
)

// ErrNoBuildFile is returned when no build.toml is found for a directory.
var ErrNoBuildFile = errors.New("no " + models.BuildFileName + " found")

// Loader loads sub-builds from the filesystem.
type Loader struct{}

// NewLoader creates a new build loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadBuild loads the sub-build rooted at dir. When searchUpwards is set and
// dir holds no build.toml, the nearest parent directory holding one is used
// instead. An empty id takes its name from the build file or the directory.
func (l *Loader) LoadBuild(ctx context.Context, id models.BuildID, dir string, searchUpwards bool) (*models.Build, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}

	root, err := findRoot(absPath, searchUpwards)
	if err != nil {
		return nil, err
	}
	if root != absPath {
		slog.Debug("using build file from parent directory", "dir", absPath, "root", root)
	}

	fsys := os.DirFS(root)
	cfg, err := config.LoadBuildConfig(fsys)
	if err != nil {
		return nil, &models.ConfigError{Path: filepath.Join(root, models.BuildFileName), Err: err}
	}

	if id.Name == "" {
		id.Name = cfg.Name
	}
	if id.Name == "" {
		id.Name = filepath.Base(root)
	}
	if err := config.CheckRequirements(cfg, id.Name); err != nil {
		return nil, &models.ConfigError{Path: filepath.Join(root, models.BuildFileName), Err: err}
	}

	var gitCommitID *string
	if sha := resolveGitSHA(ctx, root); sha != "" {
		gitCommitID = &sha
	}

	return &models.Build{
		ID:          id,
		Path:        root,
		FS:          fsys,
		Config:      cfg,
		GitCommitID: gitCommitID,
	}, nil
}

// ValidateBuild checks that every requested task is declared by the build.
func (l *Loader) ValidateBuild(b *models.Build, tasks []models.TaskPath) error {
	if len(b.Config.Tasks) == 0 {
		return fmt.Errorf("build %s declares no tasks", b.ID)
	}
	for _, task := range tasks {
		if _, ok := b.Task(task); !ok {
			return fmt.Errorf("task %q not defined in build %s", task, b.ID)
		}
	}
	if _, err := fs.Stat(b.FS, "Dockerfile"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking Dockerfile: %w", err)
	}
	return nil
}

// findRoot returns dir when it holds a build file. Otherwise, if allowed,
// it walks towards the filesystem root looking for one.
func findRoot(dir string, searchUpwards bool) (string, error) {
	for cur := dir; ; {
		_, err := os.Stat(filepath.Join(cur, models.BuildFileName))
		if err == nil {
			return cur, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("checking %s: %w", models.BuildFileName, err)
		}
		parent := filepath.Dir(cur)
		if !searchUpwards || parent == cur {
			return "", fmt.Errorf("%w in %s", ErrNoBuildFile, dir)
		}
		cur = parent
	}
}

// resolveGitSHA attempts to get the current HEAD commit SHA.
func resolveGitSHA(ctx context.Context, path string) string {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "HEAD")
	cmd.Dir = path
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
