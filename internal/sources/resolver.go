package sources

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spachava753/composite/internal/models"
)

// Resolver clones git-sourced builds into a base directory.
type Resolver struct {
	baseDir string

	// Output receives git's progress output. Nil discards it.
	Output io.Writer
}

// NewResolver creates a Resolver cloning into baseDir. An empty baseDir
// creates a fresh directory under os.TempDir().
func NewResolver(baseDir string) (*Resolver, error) {
	if baseDir == "" {
		baseDir = filepath.Join(os.TempDir(), fmt.Sprintf("composite-sources-%d", time.Now().UnixNano()))
	}
	slog.Debug("creating source resolver base directory", "path", baseDir)
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("creating base directory: %w", err)
	}
	return &Resolver{baseDir: baseDir}, nil
}

// BaseDir returns the base directory where repositories are cloned.
func (r *Resolver) BaseDir() string {
	return r.baseDir
}

// Cleanup removes every clone.
func (r *Resolver) Cleanup() error {
	return os.RemoveAll(r.baseDir)
}

// Resolve clones the repositories of srcs and returns the build directory of
// each source, in order. Repositories are deduplicated by (url, commit) and
// cloned in parallel.
func (r *Resolver) Resolve(ctx context.Context, srcs []models.GitSource) ([]string, error) {
	keys := make(map[cloneKey]struct{})
	for _, s := range srcs {
		keys[cloneKey{GitURL: s.URL, GitCommitID: s.Commit}] = struct{}{}
	}

	slog.Debug("resolving git sources", "unique_repos", len(keys), "total_sources", len(srcs))

	clones := make(map[cloneKey]string)
	var clonesMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for key := range keys {
		g.Go(func() error {
			clonePath, err := r.cloneRepo(gctx, key)
			if err != nil {
				return &models.SourceCloneError{URL: key.GitURL, Commit: key.GitCommitID, Err: err}
			}
			clonesMu.Lock()
			clones[key] = clonePath
			clonesMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dirs := make([]string, len(srcs))
	for i, s := range srcs {
		dir := clones[cloneKey{GitURL: s.URL, GitCommitID: s.Commit}]
		if s.Path != "" {
			dir = filepath.Join(dir, filepath.FromSlash(s.Path))
		}
		dirs[i] = dir
	}
	return dirs, nil
}

// cloneRepo clones a repository to baseDir. For specific commits, it does a full
// clone then checks out the commit. For HEAD, it does a shallow clone.
func (r *Resolver) cloneRepo(ctx context.Context, key cloneKey) (string, error) {
	clonePath := filepath.Join(r.baseDir, cloneDirName(key))

	if _, err := os.Stat(clonePath); err == nil {
		slog.Debug("repository already cloned", "url", key.GitURL, "path", clonePath)
		return clonePath, nil
	}

	if key.GitCommitID == "" {
		slog.Debug("cloning repository (shallow)", "url", key.GitURL, "dest", clonePath)
		if err := r.git(ctx, "", "clone", "--depth", "1", key.GitURL, clonePath); err != nil {
			return "", fmt.Errorf("git clone: %w", err)
		}
	} else {
		slog.Debug("cloning repository (full)", "url", key.GitURL, "commit", key.GitCommitID, "dest", clonePath)
		if err := r.git(ctx, "", "clone", key.GitURL, clonePath); err != nil {
			return "", fmt.Errorf("git clone: %w", err)
		}
		if err := r.git(ctx, clonePath, "checkout", key.GitCommitID); err != nil {
			return "", fmt.Errorf("git checkout %s: %w", key.GitCommitID, err)
		}
	}

	slog.Debug("repository cloned", "url", key.GitURL, "path", clonePath)
	return clonePath, nil
}

func (r *Resolver) git(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stderr strings.Builder
	cmd.Stdout = r.Output
	cmd.Stderr = &stderr
	if r.Output != nil {
		cmd.Stderr = io.MultiWriter(r.Output, &stderr)
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// cloneDirName generates a unique, readable directory name for a clone key.
func cloneDirName(key cloneKey) string {
	h := sha256.Sum256([]byte(key.GitURL))
	urlHash := fmt.Sprintf("%x", h[:8])

	commitPart := "HEAD"
	if key.GitCommitID != "" {
		commitPart = key.GitCommitID
		if len(commitPart) > 12 {
			commitPart = commitPart[:12]
		}
	}

	repoName := filepath.Base(strings.TrimSuffix(key.GitURL, ".git"))
	return fmt.Sprintf("%s-%s-%s", repoName, urlHash, commitPart)
}
