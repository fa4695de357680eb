package models

import (
	"io/fs"
)

// BuildFileName is the file marking the root of a sub-build.
const BuildFileName = "build.toml"

// BuildConfig represents the parsed build.toml of a sub-build.
type BuildConfig struct {
	Name  string                  `toml:"name"`
	Env   BuildEnvironmentConfig  `toml:"environment"`
	Tasks map[TaskPath]TaskConfig `toml:"tasks"`
}

type BuildEnvironmentConfig struct {
	Image    string `toml:"image,omitempty"`
	CPUs     int    `toml:"cpus"`             // default: 1
	Memory   string `toml:"memory,omitempty"` // e.g. "2G"; ignored when memory_mb is set
	MemoryMB int    `toml:"memory_mb,omitempty"`
}

// TaskConfig declares how one task of a sub-build runs.
type TaskConfig struct {
	Command    string            `toml:"command"`
	TimeoutSec float64           `toml:"timeout_sec"` // default: 600.0
	Env        map[string]string `toml:"env,omitempty"`
	Requires   []ArtifactRequest `toml:"requires,omitempty"`
}

// Build represents a fully loaded sub-build ready for execution.
type Build struct {
	ID          BuildID
	Path        string // filesystem path to the build root
	FS          fs.FS  // filesystem rooted at the build root
	Config      BuildConfig
	GitCommitID *string // resolved git SHA, nil if not in git repo
}

// Task returns the declared task, if any.
func (b *Build) Task(path TaskPath) (TaskConfig, bool) {
	t, ok := b.Config.Tasks[path]
	return t, ok
}
