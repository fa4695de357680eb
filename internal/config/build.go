package config

import (
	"fmt"
	"io/fs"
	"slices"

	"github.com/BurntSushi/toml"
	"github.com/spachava753/composite/internal/models"
	"github.com/spachava753/composite/internal/util"
)

// DefaultTaskTimeoutSec applies to tasks that do not set timeout_sec.
const DefaultTaskTimeoutSec = 600.0

// DefaultBuildConfig returns a BuildConfig with default values.
func DefaultBuildConfig() models.BuildConfig {
	return models.BuildConfig{
		Env: models.BuildEnvironmentConfig{
			CPUs:     1,
			MemoryMB: 2048, // 2G
		},
	}
}

// LoadBuildConfig loads and parses the build.toml at the root of fsys.
func LoadBuildConfig(fsys fs.FS) (models.BuildConfig, error) {
	cfg := DefaultBuildConfig()

	data, err := fs.ReadFile(fsys, models.BuildFileName)
	if err != nil {
		return cfg, fmt.Errorf("reading %s: %w", models.BuildFileName, err)
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", models.BuildFileName, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("parsing %s: unknown key %q", models.BuildFileName, undecoded[0].String())
	}

	// Human-readable 'memory' only applies when 'memory_mb' is not explicitly set
	if !md.IsDefined("environment", "memory_mb") && md.IsDefined("environment", "memory") {
		mb, err := util.ParseMemory(cfg.Env.Memory)
		if err != nil {
			return cfg, fmt.Errorf("parsing memory %q: %w", cfg.Env.Memory, err)
		}
		cfg.Env.MemoryMB = mb
	}

	for path, task := range cfg.Tasks {
		if task.Command == "" {
			return cfg, fmt.Errorf("task %q: missing 'command'", path)
		}
		if task.TimeoutSec == 0 {
			task.TimeoutSec = DefaultTaskTimeoutSec
		}
		for i, req := range task.Requires {
			if req.Project == "" || len(req.Tasks) == 0 {
				return cfg, fmt.Errorf("task %q: requires[%d] must name a project and at least one task", path, i)
			}
		}
		cfg.Tasks[path] = task
	}

	if cfg.Name != "" {
		if err := CheckRequirements(cfg, cfg.Name); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// CheckRequirements rejects tasks that require an artifact of build itself,
// which could only ever fail as a dependency cycle.
func CheckRequirements(cfg models.BuildConfig, build string) error {
	paths := make([]models.TaskPath, 0, len(cfg.Tasks))
	for path := range cfg.Tasks {
		paths = append(paths, path)
	}
	slices.Sort(paths)

	for _, path := range paths {
		for _, req := range cfg.Tasks[path].Requires {
			if models.BuildIDFor(req.Project).Name == build {
				return fmt.Errorf("task %q requires %s from its own build %q", path, req.Project, build)
			}
		}
	}
	return nil
}
