// Package modal runs nested builds inside Modal sandboxes.
package modal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path"
	"strings"
	"time"

	"github.com/modal-labs/libmodal/modal-go"

	"github.com/spachava753/composite/internal/environment"
)

// DefaultImage is used when a sub-build declares neither an image nor a
// Dockerfile.
const DefaultImage = "ubuntu:24.04"

// ProviderConfig holds Modal-specific configuration.
type ProviderConfig struct {
	// AppName is the name of the Modal app to use. If empty, the environment
	// name is used.
	AppName string
	// Regions specifies the Modal regions (e.g., "us-east", "us-west").
	Regions []string
	// Verbose enables detailed sandbox logging.
	Verbose bool
}

// ParseProviderConfig extracts Modal-specific config from the generic config map.
func ParseProviderConfig(config map[string]any) ProviderConfig {
	pc := ProviderConfig{}
	if config == nil {
		return pc
	}
	if v, ok := config["app_name"].(string); ok {
		pc.AppName = v
	}
	if v, ok := config["region"].(string); ok {
		pc.Regions = []string{v}
	}
	if v, ok := config["regions"].([]any); ok {
		for _, r := range v {
			if s, ok := r.(string); ok {
				pc.Regions = append(pc.Regions, s)
			}
		}
	}
	if v, ok := config["verbose"].(bool); ok {
		pc.Verbose = v
	}
	return pc
}

// Provider implements the Modal environment provider using Modal Sandboxes.
type Provider struct {
	client *modal.Client
	config ProviderConfig
}

// MinImageBuilderVersion is the minimum required Modal image builder version.
// WORKDIR and other Dockerfile instructions require version 2025.06 or later.
const MinImageBuilderVersion = "2025.06"

// NewProvider creates a new Modal provider.
func NewProvider(config ProviderConfig) (*Provider, error) {
	if err := checkImageBuilderVersionWith(defaultConfigReader); err != nil {
		return nil, err
	}

	slog.Debug("initializing modal client")
	client, err := modal.NewClient()
	if err != nil {
		return nil, fmt.Errorf("creating modal client: %w", err)
	}
	return &Provider{
		client: client,
		config: config,
	}, nil
}

// ConfigReader reads Modal configuration.
type ConfigReader interface {
	ReadConfig() ([]byte, error)
}

// cliConfigReader reads config by executing the modal CLI.
type cliConfigReader struct{}

func (c *cliConfigReader) ReadConfig() ([]byte, error) {
	modalPath, err := exec.LookPath("modal")
	if err != nil {
		return nil, fmt.Errorf("modal CLI not found: %w", err)
	}
	return exec.Command(modalPath, "config", "show").Output()
}

var defaultConfigReader ConfigReader = &cliConfigReader{}

// checkImageBuilderVersionWith verifies the version using the provided ConfigReader.
func checkImageBuilderVersionWith(reader ConfigReader) error {
	output, err := reader.ReadConfig()
	if err != nil {
		return fmt.Errorf("failed to get modal config: %w", err)
	}

	var config struct {
		ImageBuilderVersion *string `json:"image_builder_version"`
	}
	if err := json.Unmarshal(output, &config); err != nil {
		return fmt.Errorf("failed to parse modal config: %w", err)
	}

	if config.ImageBuilderVersion == nil || *config.ImageBuilderVersion == "" {
		return fmt.Errorf("modal image_builder_version is not set; "+
			"Dockerfile builds require version %s or later. "+
			"Run: modal config set image_builder_version %s",
			MinImageBuilderVersion, MinImageBuilderVersion)
	}

	if *config.ImageBuilderVersion < MinImageBuilderVersion {
		return fmt.Errorf("modal image_builder_version %q is too old; "+
			"Dockerfile builds require version %s or later. "+
			"Run: modal config set image_builder_version %s",
			*config.ImageBuilderVersion, MinImageBuilderVersion, MinImageBuilderVersion)
	}

	slog.Debug("modal image builder version check passed", "version", *config.ImageBuilderVersion)
	return nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "modal"
}

// CreateEnvironment creates a sandbox and uploads the build directory to
// environment.WorkspaceDir.
func (p *Provider) CreateEnvironment(ctx context.Context, opts environment.CreateEnvironmentOptions) (environment.Environment, error) {
	appName := p.config.AppName
	if appName == "" {
		appName = opts.Name
	}
	if appName == "" {
		appName = fmt.Sprintf("composite-%d", time.Now().UnixNano())
	}

	slog.Debug("creating modal app", "name", appName)
	app, err := p.client.Apps.FromName(ctx, appName, &modal.AppFromNameParams{
		CreateIfMissing: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating modal app: %w", err)
	}

	image, err := p.image(ctx, app, opts)
	if err != nil {
		return nil, err
	}

	cpuCount := opts.CPUs
	if cpuCount <= 0 {
		cpuCount = 1
	}
	memoryMiB := opts.MemoryMB
	if memoryMiB <= 0 {
		memoryMiB = 2048
	}

	slog.Debug("creating modal sandbox",
		"app", appName,
		"cpus", cpuCount,
		"memory_mib", memoryMiB,
		"regions", p.config.Regions)

	sandbox, err := p.client.Sandboxes.Create(ctx, app, image, &modal.SandboxCreateParams{
		CPU:       float64(cpuCount),
		MemoryMiB: memoryMiB,
		Env:       opts.Env,
		Timeout:   24 * time.Hour,
		Verbose:   p.config.Verbose,
		Regions:   p.config.Regions,
	})
	if err != nil {
		return nil, fmt.Errorf("creating modal sandbox: %w", err)
	}

	env := &ModalEnvironment{sandbox: sandbox, appName: appName, ownsApp: p.config.AppName == ""}
	if err := env.upload(ctx, os.DirFS(opts.BuildDir), environment.WorkspaceDir); err != nil {
		_ = env.Destroy(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("uploading build directory: %w", err)
	}

	slog.Debug("modal sandbox ready", "sandbox_id", sandbox.SandboxID)
	return env, nil
}

func (p *Provider) image(ctx context.Context, app *modal.App, opts environment.CreateEnvironmentOptions) (*modal.Image, error) {
	if opts.Dockerfile == "" {
		ref := opts.Image
		if ref == "" {
			ref = DefaultImage
		}
		slog.Debug("using registry image for modal", "image", ref)
		return p.client.Images.FromRegistry(ref, nil), nil
	}

	baseImage, commands, err := parseDockerfile(opts.Dockerfile)
	if err != nil {
		return nil, fmt.Errorf("parsing Dockerfile: %w", err)
	}
	slog.Debug("parsed dockerfile", "base_image", baseImage, "commands", len(commands))

	image := p.client.Images.FromRegistry(baseImage, nil)
	if len(commands) > 0 {
		image = image.DockerfileCommands(commands, nil)
	}

	// Build eagerly so image errors surface before any task runs.
	built, err := image.Build(ctx, app)
	if err != nil {
		return nil, fmt.Errorf("building image: %w", err)
	}
	return built, nil
}

// parseDockerfile extracts the base image of the final stage and the
// instructions applied on top of it. COPY and ADD need a build context, which
// sandbox images do not have; the build directory is uploaded instead.
func parseDockerfile(content string) (baseImage string, commands []string, err error) {
	var current strings.Builder
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if current.Len() == 0 && (trimmed == "" || strings.HasPrefix(trimmed, "#")) {
			continue
		}

		if strings.HasSuffix(trimmed, "\\") {
			current.WriteString(strings.TrimSuffix(trimmed, "\\"))
			current.WriteString(" ")
			continue
		}
		current.WriteString(trimmed)
		instruction := strings.TrimSpace(current.String())
		current.Reset()

		keyword, rest, _ := strings.Cut(instruction, " ")
		switch strings.ToUpper(keyword) {
		case "FROM":
			fields := strings.Fields(rest)
			if len(fields) == 0 {
				return "", nil, fmt.Errorf("FROM instruction without image")
			}
			baseImage = fields[0]
			commands = nil
		case "COPY", "ADD":
			return "", nil, fmt.Errorf("COPY and ADD instructions are not supported")
		case "RUN", "WORKDIR", "ENV", "USER", "EXPOSE", "LABEL", "ARG", "SHELL":
			commands = append(commands, instruction)
		default:
			slog.Debug("skipping dockerfile instruction", "instruction", keyword)
		}
	}

	if baseImage == "" {
		return "", nil, fmt.Errorf("no FROM instruction found in Dockerfile")
	}
	return baseImage, commands, nil
}

// ModalEnvironment represents a running Modal sandbox.
type ModalEnvironment struct {
	sandbox *modal.Sandbox
	appName string
	ownsApp bool
}

// ID returns the sandbox ID.
func (e *ModalEnvironment) ID() string {
	return e.sandbox.SandboxID
}

// upload copies every file of fsys below dst.
func (e *ModalEnvironment) upload(ctx context.Context, fsys fs.FS, dst string) error {
	return fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		target := path.Join(dst, name)
		if d.IsDir() {
			if d.Name() == ".git" {
				return fs.SkipDir
			}
			return e.execQuiet(ctx, fmt.Sprintf("mkdir -p %q", target))
		}
		if !d.Type().IsRegular() {
			return nil
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		return e.writeFile(ctx, target, content)
	})
}

func (e *ModalEnvironment) writeFile(ctx context.Context, dst string, content []byte) error {
	f, err := e.sandbox.Open(ctx, dst, "w")
	if err != nil {
		return fmt.Errorf("opening %s: %w", dst, err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	if err := f.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flushing %s: %w", dst, err)
	}
	return f.Close()
}

func (e *ModalEnvironment) execQuiet(ctx context.Context, cmd string) error {
	code, err := e.Exec(ctx, cmd, nil, nil, environment.ExecOptions{})
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("%s exited with code %d", cmd, code)
	}
	return nil
}

// Exec executes a command in the sandbox.
func (e *ModalEnvironment) Exec(ctx context.Context, cmd string, stdout, stderr io.Writer, opts environment.ExecOptions) (int, error) {
	params := &modal.SandboxExecParams{
		Env:     opts.Env,
		Workdir: path.Join(environment.WorkspaceDir, opts.WorkDir),
	}
	if opts.Timeout > 0 {
		params.Timeout = opts.Timeout
	}

	slog.Debug("executing command in modal sandbox",
		"sandbox_id", e.sandbox.SandboxID,
		"command", preview(cmd),
		"timeout", opts.Timeout)

	process, err := e.sandbox.Exec(ctx, []string{"bash", "-c", cmd}, params)
	if err != nil {
		return -1, fmt.Errorf("executing command: %w", err)
	}

	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	done := make(chan struct{}, 2)
	go func() {
		io.Copy(stdout, process.Stdout)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(stderr, process.Stderr)
		done <- struct{}{}
	}()
	<-done
	<-done

	exitCode, err := process.Wait(ctx)
	if err != nil {
		return -1, fmt.Errorf("waiting for process: %w", err)
	}
	return exitCode, nil
}

func preview(cmd string) string {
	if len(cmd) > 100 {
		return cmd[:100] + "..."
	}
	return cmd
}

// Destroy terminates the sandbox and stops the app when this environment
// created it.
func (e *ModalEnvironment) Destroy(ctx context.Context) error {
	slog.Debug("destroying modal sandbox", "sandbox_id", e.sandbox.SandboxID, "app", e.appName)

	if err := e.sandbox.Terminate(ctx); err != nil {
		if !strings.Contains(err.Error(), "already terminated") &&
			!strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("terminating sandbox: %w", err)
		}
	}
	if !e.ownsApp {
		return nil
	}
	return stopApp(ctx, e.appName)
}

// stopApp stops the Modal app using the modal CLI; the SDK does not expose
// an app stop call.
func stopApp(ctx context.Context, appName string) error {
	modalPath, err := exec.LookPath("modal")
	if err != nil {
		return fmt.Errorf("modal CLI not found, it is required to stop apps: %w", err)
	}

	output, err := exec.CommandContext(ctx, modalPath, "app", "stop", appName).CombinedOutput()
	if err != nil {
		out := string(output)
		if strings.Contains(out, "already stopped") ||
			strings.Contains(out, "not found") ||
			strings.Contains(out, "Could not find") {
			return nil
		}
		return fmt.Errorf("modal app stop failed: %s", out)
	}
	return nil
}
