// Package session runs one composite build: it resolves the included builds,
// wires a fresh coordinator to the nested build launcher, forces the root
// artifact requests and writes the session report.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/spachava753/composite/internal/build"
	"github.com/spachava753/composite/internal/composite"
	"github.com/spachava753/composite/internal/config"
	"github.com/spachava753/composite/internal/coordinator"
	"github.com/spachava753/composite/internal/environment"
	"github.com/spachava753/composite/internal/environment/docker"
	"github.com/spachava753/composite/internal/environment/local"
	"github.com/spachava753/composite/internal/environment/modal"
	"github.com/spachava753/composite/internal/launcher"
	"github.com/spachava753/composite/internal/models"
	"github.com/spachava753/composite/internal/sources"
)

// Option configures a Session.
type Option func(*Session)

// WithOutput streams nested build output to stdout and stderr.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(s *Session) {
		s.stdout = stdout
		s.stderr = stderr
	}
}

// WithProvider overrides the runtime selected by the configuration.
func WithProvider(p environment.Provider) Option {
	return func(s *Session) {
		s.provider = p
	}
}

// Session coordinates one composite build.
type Session struct {
	cfg      models.CompositeConfig
	baseDir  string
	provider environment.Provider
	stdout   io.Writer
	stderr   io.Writer
}

// New creates a session for cfg. Relative paths in cfg are resolved against
// baseDir, normally the directory holding composite.yaml.
func New(cfg models.CompositeConfig, baseDir string, opts ...Option) (*Session, error) {
	s := &Session{cfg: cfg, baseDir: baseDir}
	for _, opt := range opts {
		opt(s)
	}
	if s.provider == nil {
		p, err := NewProvider(cfg.Runtime)
		if err != nil {
			return nil, err
		}
		s.provider = p
	}
	return s, nil
}

// NewProvider constructs the runtime named by rt.
func NewProvider(rt models.RuntimeConfig) (environment.Provider, error) {
	switch rt.Type {
	case "", "local":
		return local.NewProvider(), nil
	case "docker":
		return docker.NewProvider(), nil
	case "modal":
		p, err := modal.NewProvider(modal.ParseProviderConfig(rt.ProviderConfig))
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported runtime type: %s", rt.Type)
	}
}

// Run executes every root request and writes result.json and config.json to
// the session directory. The returned result is non-nil whenever the session
// directory was created, including when the build failed.
func (s *Session) Run(ctx context.Context) (*models.SessionResult, error) {
	name := time.Now().Format("2006-01-02__15-04-05")
	if s.cfg.Name != nil {
		name = *s.cfg.Name
	}

	outDir := s.cfg.OutDir
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(s.baseDir, outDir)
	}
	sessionDir := filepath.Join(outDir, name)

	if _, err := os.Stat(sessionDir); err == nil {
		return nil, fmt.Errorf("session directory already exists: %s (will not overwrite existing results)", sessionDir)
	}
	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}
	if err := writeJSON(filepath.Join(sessionDir, "config.json"), s.cfg); err != nil {
		return nil, err
	}

	result := &models.SessionResult{
		SessionID:     uuid.NewString(),
		Name:          name,
		TotalRequests: len(s.cfg.Requests),
		StartedAt:     time.Now(),
	}
	slog.Info("starting composite build",
		"session", result.SessionID,
		"name", name,
		"builds", len(s.cfg.Builds),
		"requests", len(s.cfg.Requests),
		"runtime", s.provider.Name())

	rec, err := s.run(ctx, sessionDir)

	result.EndedAt = time.Now()
	result.TotalDurationSec = result.EndedAt.Sub(result.StartedAt).Seconds()
	result.Cancelled = ctx.Err() != nil
	if rec != nil {
		result.Invocations = rec.Records()
	}
	for _, inv := range result.Invocations {
		if inv.Error != nil {
			result.FailedBuilds++
			continue
		}
		result.TasksExecuted += len(inv.Tasks)
	}
	if err != nil {
		result.Error = &models.InvocationError{Type: models.ErrorTypeOf(err), Message: err.Error()}
	}

	if werr := writeJSON(filepath.Join(sessionDir, "result.json"), result); werr != nil {
		return result, errors.Join(err, werr)
	}
	return result, err
}

func (s *Session) run(ctx context.Context, sessionDir string) (*launcher.Recorder, error) {
	resolver, err := sources.NewResolver("")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resolver.Cleanup(); err != nil {
			slog.Warn("removing cloned sources", "dir", resolver.BaseDir(), "error", err)
		}
	}()
	resolver.Output = s.stderr

	layout, err := composite.NewLoader().Load(ctx, &s.cfg, s.baseDir, resolver)
	if err != nil {
		return nil, err
	}

	nested := &launcher.Nested{
		Provider:          s.provider,
		Loader:            build.NewLoader(),
		TimeoutMultiplier: s.cfg.TimeoutMultiplier,
		ProviderConfig:    s.cfg.Runtime.ProviderConfig,
		LogDir:            filepath.Join(sessionDir, "logs"),
		Stdout:            s.stdout,
		Stderr:            s.stderr,
	}
	rec := launcher.NewRecorder(nested)
	coord := coordinator.New(layout, rec)
	nested.Resolver = coord

	return rec, forceRequests(ctx, coord, s.cfg.Requests, s.cfg.MaxParallelBuilds)
}

// forceRequests registers every root request, then builds them. Requests for
// the same build are forced sequentially by one goroutine; distinct builds run
// in parallel up to limit.
func forceRequests(ctx context.Context, coord *coordinator.Coordinator, requests []models.ArtifactRequest, limit int) error {
	var order []models.BuildID
	groups := make(map[models.BuildID][]models.Artifact)
	for _, req := range requests {
		a := req.Artifact()
		coord.NotifyWillBuild(ctx, a)
		b := a.Build()
		if _, ok := groups[b]; !ok {
			order = append(order, b)
		}
		groups[b] = append(groups[b], a)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(limit, 1))
	for _, b := range order {
		g.Go(func() error {
			for _, a := range groups[b] {
				if err := coord.BuildArtifact(gctx, a); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// RunFromConfig loads composite.yaml and runs the session it describes.
func RunFromConfig(ctx context.Context, configPath string, opts ...Option) (*models.SessionResult, error) {
	cfg, err := config.LoadCompositeConfig(configPath)
	if err != nil {
		return nil, &models.ConfigError{Path: configPath, Err: err}
	}

	baseDir, err := filepath.Abs(filepath.Dir(configPath))
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}

	s, err := New(cfg, baseDir, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return s.Run(ctx)
}
