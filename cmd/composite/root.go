package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/spachava753/composite/internal/config"
	"github.com/spachava753/composite/internal/logging"
	"github.com/spachava753/composite/internal/models"
)

var (
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "composite",
	Short: "Run composite builds",
	Long: `composite runs a build made of several independent sub-builds.

Each sub-build lives in its own directory with a build.toml declaring its
tasks. Tasks may require the output of tasks in other sub-builds; those are
built on demand, each sub-build at most once per requested task. A sub-build
that ends up requiring its own output is reported as a dependency cycle.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error (overrides composite.yaml)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json (overrides composite.yaml)")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(validateCmd)
}

// loadConfig reads composite.yaml and installs the logger it asks for,
// letting command-line flags take precedence.
func loadConfig(cmd *cobra.Command, path string) (models.CompositeConfig, string, error) {
	cfg, err := config.LoadCompositeConfig(path)
	if err != nil {
		return cfg, "", &models.ConfigError{Path: path, Err: err}
	}

	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.LogFormat = models.LogFormat(logFormat)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return cfg, "", err
	}
	slog.SetDefault(logger)

	baseDir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return cfg, "", err
	}
	return cfg, baseDir, nil
}
