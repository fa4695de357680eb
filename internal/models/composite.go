package models

// LogFormat selects the slog handler used by the CLI.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// CompositeConfig represents the parsed composite.yaml configuration.
type CompositeConfig struct {
	Name              *string           `yaml:"name,omitempty" json:"name,omitempty"`
	OutDir            string            `yaml:"out_dir" json:"out_dir"`
	LogLevel          string            `yaml:"log_level,omitempty" json:"log_level,omitempty"`
	LogFormat         LogFormat         `yaml:"log_format,omitempty" json:"log_format,omitempty"`
	TimeoutMultiplier float64           `yaml:"timeout_multiplier" json:"timeout_multiplier"`
	MaxParallelBuilds int               `yaml:"max_parallel_builds" json:"max_parallel_builds"`
	Runtime           RuntimeConfig     `yaml:"runtime" json:"runtime"`
	Catalog           *CatalogRef       `yaml:"catalog,omitempty" json:"catalog,omitempty"`
	Builds            []IncludedBuild   `yaml:"builds" json:"builds"`
	Requests          []ArtifactRequest `yaml:"requests" json:"requests"`
}

// RuntimeConfig selects where nested builds run their task commands.
type RuntimeConfig struct {
	Type           string         `yaml:"type" json:"type"`
	ProviderConfig map[string]any `yaml:"provider_config,omitempty" json:"provider_config,omitempty"`
}

// IncludedBuild declares one sub-build of the composite. Exactly one of Path,
// Git or CatalogName is set.
type IncludedBuild struct {
	Name        string     `yaml:"name" json:"name"`
	Path        *string    `yaml:"path,omitempty" json:"path,omitempty"`
	Git         *GitSource `yaml:"git,omitempty" json:"git,omitempty"`
	CatalogName *string    `yaml:"catalog_name,omitempty" json:"catalog_name,omitempty"`
}

// GitSource locates a sub-build inside a git repository.
type GitSource struct {
	URL    string `yaml:"url" json:"url"`
	Commit string `yaml:"commit,omitempty" json:"commit,omitempty"` // empty = HEAD
	Path   string `yaml:"path,omitempty" json:"path,omitempty"`     // empty = repo root
}

// CatalogRef points at a JSON catalog of git-sourced builds.
type CatalogRef struct {
	Path *string `yaml:"path,omitempty" json:"path,omitempty"`
	URL  *string `yaml:"url,omitempty" json:"url,omitempty"`
}
