package session

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spachava753/composite/internal/build"
	"github.com/spachava753/composite/internal/composite"
	"github.com/spachava753/composite/internal/config"
	"github.com/spachava753/composite/internal/coordinator"
	"github.com/spachava753/composite/internal/environment/dryrun"
	"github.com/spachava753/composite/internal/launcher"
	"github.com/spachava753/composite/internal/models"
	"github.com/spachava753/composite/internal/sources"
)

// Plan is the outcome of a dry run: the nested build invocations a session
// would perform, in start order.
type Plan struct {
	Invocations []models.InvocationRecord
	Commands    []string
}

// Validate loads every included build and walks the root requests through a
// coordinator backed by a runtime that runs nothing. Undeclared tasks and
// dependency cycles between builds are reported exactly as a real session
// would report them.
func Validate(ctx context.Context, cfg models.CompositeConfig, baseDir string) (*Plan, error) {
	resolver, err := sources.NewResolver("")
	if err != nil {
		return nil, err
	}
	defer resolver.Cleanup()

	layout, err := composite.NewLoader().Load(ctx, &cfg, baseDir, resolver)
	if err != nil {
		return nil, err
	}

	provider := dryrun.NewProvider()
	nested := &launcher.Nested{
		Provider: provider,
		Loader:   build.NewLoader(),
	}
	rec := launcher.NewRecorder(nested)
	coord := coordinator.New(layout, rec)
	nested.Resolver = coord

	// Root requests are forced one at a time so that only real cycles fail.
	err = forceRequests(ctx, coord, cfg.Requests, 1)
	return &Plan{Invocations: rec.Records(), Commands: provider.Commands()}, err
}

// ValidateFromConfig loads composite.yaml and validates it.
func ValidateFromConfig(ctx context.Context, configPath string) (*Plan, error) {
	cfg, err := config.LoadCompositeConfig(configPath)
	if err != nil {
		return nil, &models.ConfigError{Path: configPath, Err: err}
	}
	baseDir, err := filepath.Abs(filepath.Dir(configPath))
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}
	return Validate(ctx, cfg, baseDir)
}
