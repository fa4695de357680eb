package composite

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spachava753/composite/internal/build"
	"github.com/spachava753/composite/internal/models"
	"github.com/spachava753/composite/internal/sources"
)

// SourceResolver fetches git-sourced builds and returns their directories.
type SourceResolver interface {
	Resolve(ctx context.Context, srcs []models.GitSource) ([]string, error)
}

// Loader builds a Layout from the builds declared in composite.yaml.
type Loader struct {
	buildLoader *build.Loader
}

// NewLoader creates a new composite loader.
func NewLoader() *Loader {
	return &Loader{buildLoader: build.NewLoader()}
}

// Load resolves every declared build to a directory holding a loadable
// build.toml. Relative paths are resolved against baseDir, git builds and
// catalog builds through srcs. srcs may be nil when no build needs it.
func (l *Loader) Load(ctx context.Context, cfg *models.CompositeConfig, baseDir string, srcs SourceResolver) (*Layout, error) {
	catalog, err := loadCatalog(ctx, cfg.Catalog, baseDir)
	if err != nil {
		return nil, err
	}

	dirs := make(map[string]string, len(cfg.Builds))
	var gitNames []string
	var gitSources []models.GitSource

	for _, b := range cfg.Builds {
		if _, dup := dirs[b.Name]; dup {
			return nil, fmt.Errorf("build %q declared more than once", b.Name)
		}

		switch {
		case b.Path != nil:
			dir := *b.Path
			if !filepath.IsAbs(dir) {
				dir = filepath.Join(baseDir, dir)
			}
			abs, err := filepath.Abs(dir)
			if err != nil {
				return nil, fmt.Errorf("build %q: getting absolute path: %w", b.Name, err)
			}
			dirs[b.Name] = abs
		case b.Git != nil:
			dirs[b.Name] = ""
			gitNames = append(gitNames, b.Name)
			gitSources = append(gitSources, *b.Git)
		case b.CatalogName != nil:
			entry, err := sources.FindEntry(catalog, *b.CatalogName)
			if err != nil {
				return nil, fmt.Errorf("build %q: %w", b.Name, err)
			}
			dirs[b.Name] = ""
			gitNames = append(gitNames, b.Name)
			gitSources = append(gitSources, entry.GitSource())
		default:
			return nil, fmt.Errorf("build %q has no source", b.Name)
		}
	}

	if len(gitSources) > 0 {
		if srcs == nil {
			return nil, fmt.Errorf("builds %v are git-sourced but no source resolver is configured", gitNames)
		}
		resolved, err := srcs.Resolve(ctx, gitSources)
		if err != nil {
			return nil, fmt.Errorf("resolving git sources: %w", err)
		}
		for i, name := range gitNames {
			dirs[name] = resolved[i]
		}
	}

	for name, dir := range dirs {
		b, err := l.buildLoader.LoadBuild(ctx, models.BuildID{Name: name}, dir, false)
		if err != nil {
			return nil, fmt.Errorf("loading build %q: %w", name, err)
		}
		if b.Config.Name != "" && b.Config.Name != name {
			return nil, fmt.Errorf("build %q: %s declares name %q", name, models.BuildFileName, b.Config.Name)
		}
		slog.Debug("included build", "build", b.ID.String(), "dir", dir, "tasks", len(b.Config.Tasks))
	}

	return NewLayout(dirs), nil
}

func loadCatalog(ctx context.Context, ref *models.CatalogRef, baseDir string) ([]sources.CatalogEntry, error) {
	switch {
	case ref == nil:
		return nil, nil
	case ref.URL != nil:
		entries, err := sources.LoadFromURL(ctx, *ref.URL)
		if err != nil {
			return nil, fmt.Errorf("loading catalog: %w", err)
		}
		return entries, nil
	case ref.Path != nil:
		path := *ref.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		entries, err := sources.LoadFromPath(path)
		if err != nil {
			return nil, fmt.Errorf("loading catalog: %w", err)
		}
		return entries, nil
	}
	return nil, nil
}
