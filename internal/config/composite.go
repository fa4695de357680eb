package config

import (
	"fmt"
	"os"

	"github.com/spachava753/composite/internal/models"
	"gopkg.in/yaml.v3"
)

// DefaultCompositeConfig returns a CompositeConfig with default values.
func DefaultCompositeConfig() models.CompositeConfig {
	return models.CompositeConfig{
		OutDir:            "out",
		LogLevel:          "info",
		LogFormat:         models.LogFormatText,
		TimeoutMultiplier: 1.0,
		MaxParallelBuilds: 1,
		Runtime: models.RuntimeConfig{
			Type: "local",
		},
	}
}

// LoadCompositeConfig loads and parses a composite.yaml file.
func LoadCompositeConfig(path string) (models.CompositeConfig, error) {
	cfg := DefaultCompositeConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading composite config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing composite config: %w", err)
	}

	if err := validateComposite(cfg); err != nil {
		return cfg, err
	}

	// Apply defaults for missing values
	if cfg.OutDir == "" {
		cfg.OutDir = "out"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = models.LogFormatText
	}
	if cfg.TimeoutMultiplier == 0 {
		cfg.TimeoutMultiplier = 1.0
	}
	if cfg.MaxParallelBuilds <= 0 {
		cfg.MaxParallelBuilds = 1
	}
	if cfg.Runtime.Type == "" {
		cfg.Runtime.Type = "local"
	}

	return cfg, nil
}

func validateComposite(cfg models.CompositeConfig) error {
	if len(cfg.Builds) == 0 {
		return fmt.Errorf("composite config: no builds declared")
	}

	seen := make(map[string]bool, len(cfg.Builds))
	for i, b := range cfg.Builds {
		if b.Name == "" {
			return fmt.Errorf("builds[%d]: missing 'name'", i)
		}
		if seen[b.Name] {
			return fmt.Errorf("builds[%d]: duplicate build name %q", i, b.Name)
		}
		seen[b.Name] = true

		sources := 0
		if b.Path != nil && *b.Path != "" {
			sources++
		}
		if b.Git != nil {
			sources++
			if b.Git.URL == "" {
				return fmt.Errorf("builds[%d]: git source requires 'url'", i)
			}
		}
		if b.CatalogName != nil && *b.CatalogName != "" {
			sources++
			if cfg.Catalog == nil {
				return fmt.Errorf("builds[%d]: 'catalog_name' requires a top-level 'catalog'", i)
			}
		}
		if sources != 1 {
			return fmt.Errorf("builds[%d]: must specify exactly one of 'path', 'git' or 'catalog_name'", i)
		}
	}

	if cfg.Catalog != nil {
		hasPath := cfg.Catalog.Path != nil && *cfg.Catalog.Path != ""
		hasURL := cfg.Catalog.URL != nil && *cfg.Catalog.URL != ""
		if hasPath == hasURL {
			return fmt.Errorf("catalog: must specify either 'path' or 'url'")
		}
	}

	for i, r := range cfg.Requests {
		if r.Project == "" {
			return fmt.Errorf("requests[%d]: missing 'project'", i)
		}
		if len(r.Tasks) == 0 {
			return fmt.Errorf("requests[%d]: no tasks requested", i)
		}
		if id := models.BuildIDFor(r.Project); !seen[id.Name] {
			return fmt.Errorf("requests[%d]: build %q is not declared", i, id.Name)
		}
	}

	switch cfg.LogFormat {
	case "", models.LogFormatText, models.LogFormatJSON:
	default:
		return fmt.Errorf("invalid log_format %q: must be 'text' or 'json'", cfg.LogFormat)
	}

	return nil
}
