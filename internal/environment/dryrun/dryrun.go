// Package dryrun provides a runtime that accepts every command without
// running it. It is used to plan a composite build.
package dryrun

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/spachava753/composite/internal/environment"
)

// Provider creates environments that record commands instead of running them.
type Provider struct {
	mu       sync.Mutex
	commands []string
}

// NewProvider creates a new dry-run provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "dryrun"
}

// CreateEnvironment returns an environment bound to opts.Name.
func (p *Provider) CreateEnvironment(ctx context.Context, opts environment.CreateEnvironmentOptions) (environment.Environment, error) {
	return &Environment{p: p, name: opts.Name}, nil
}

// Commands returns every command accepted so far, in order.
func (p *Provider) Commands() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.commands...)
}

// Environment records commands for its provider.
type Environment struct {
	p    *Provider
	name string
}

// ID returns the environment name.
func (e *Environment) ID() string {
	return "dryrun-" + e.name
}

// Exec records cmd and reports success.
func (e *Environment) Exec(ctx context.Context, cmd string, stdout, stderr io.Writer, opts environment.ExecOptions) (int, error) {
	if err := ctx.Err(); err != nil {
		return -1, err
	}
	e.p.mu.Lock()
	e.p.commands = append(e.p.commands, cmd)
	e.p.mu.Unlock()
	if stdout != nil {
		fmt.Fprintf(stdout, "[dry run] %s\n", cmd)
	}
	return 0, nil
}

// Destroy is a no-op.
func (e *Environment) Destroy(ctx context.Context) error {
	return nil
}
