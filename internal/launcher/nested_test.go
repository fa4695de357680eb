package launcher_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spachava753/composite/internal/build"
	"github.com/spachava753/composite/internal/coordinator"
	"github.com/spachava753/composite/internal/environment"
	"github.com/spachava753/composite/internal/environment/local"
	"github.com/spachava753/composite/internal/launcher"
	"github.com/spachava753/composite/internal/models"
)

type dirs map[string]string

func (d dirs) ResolveDirectory(b models.BuildID) (string, error) {
	if dir, ok := d[b.Name]; ok {
		return dir, nil
	}
	return "", models.ErrUnknownBuild
}

// workspace creates one directory per build holding the given build.toml and
// returns the lookup plus a file every task appends its name to.
func workspace(t *testing.T, builds map[string]string) (dirs, string) {
	t.Helper()
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
	root := t.TempDir()
	order := filepath.Join(root, "order.txt")
	d := make(dirs)
	for name, content := range builds {
		dir := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		content = strings.ReplaceAll(content, "ORDER", order)
		require.NoError(t, os.WriteFile(filepath.Join(dir, models.BuildFileName), []byte(content), 0o644))
		d[name] = dir
	}
	return d, order
}

func readOrder(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	return strings.Fields(string(data))
}

// wire connects a nested launcher, a recorder and a coordinator the way a
// session does.
func wire(d dirs) (*coordinator.Coordinator, *launcher.Recorder) {
	nested := &launcher.Nested{
		Provider:          local.NewProvider(),
		Loader:            build.NewLoader(),
		TimeoutMultiplier: 1,
	}
	rec := launcher.NewRecorder(nested)
	c := coordinator.New(d, rec, coordinator.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	nested.Resolver = c
	return c, rec
}

func task(project string, tasks ...string) models.Artifact {
	a := models.Artifact{Project: project, Composite: true}
	for _, t := range tasks {
		a.Tasks = append(a.Tasks, models.TaskPath(t))
	}
	return a
}

func TestRequirementBuiltFirst(t *testing.T) {
	d, order := workspace(t, map[string]string{
		"app": `
[tasks.":app:jar"]
command = "echo app >> ORDER"
requires = [{ project = "lib::", tasks = [":lib:jar"] }]

[tasks.":app:test"]
command = "echo app-test >> ORDER"
requires = [{ project = "lib::", tasks = [":lib:jar"] }]
`,
		"lib": `
[tasks.":lib:jar"]
command = "echo lib >> ORDER"
`,
	})
	c, rec := wire(d)

	require.NoError(t, c.BuildArtifact(context.Background(), task("app::", ":app:jar", ":app:test")))
	assert.Equal(t, []string{"lib", "app", "app-test"}, readOrder(t, order))

	records := rec.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "app::", records[0].Build)
	assert.Equal(t, "lib::", records[1].Build)
	assert.Equal(t, []models.TaskPath{":lib:jar"}, records[1].Tasks)
	for _, r := range records {
		assert.Nil(t, r.Error)
		assert.False(t, r.EndedAt.IsZero())
	}
}

func TestMutualRequirementIsCycle(t *testing.T) {
	d, order := workspace(t, map[string]string{
		"a": `
[tasks.":a:jar"]
command = "echo a >> ORDER"
requires = [{ project = "b::", tasks = [":b:jar"] }]
`,
		"b": `
[tasks.":b:jar"]
command = "echo b >> ORDER"
requires = [{ project = "a::", tasks = [":a:jar"] }]
`,
	})
	c, rec := wire(d)

	err := c.BuildArtifact(context.Background(), task("a::", ":a:jar"))
	require.Error(t, err)

	var cycle *models.BuildCycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, "a", cycle.Build.Name)
	assert.Contains(t, err.Error(), "dependency cycle including a::")

	assert.Empty(t, readOrder(t, order), "no task may run once a cycle is found")
	assert.False(t, c.InFlight(models.BuildID{Name: "a"}))
	assert.False(t, c.InFlight(models.BuildID{Name: "b"}))

	records := rec.Records()
	require.Len(t, records, 2)
	for _, r := range records {
		require.NotNil(t, r.Error)
		assert.Equal(t, models.ErrBuildCycle, r.Error.Type)
	}
}

func TestTaskFailure(t *testing.T) {
	d, _ := workspace(t, map[string]string{
		"lib": `
[tasks.":lib:test"]
command = "echo failing >&2; exit 3"
`,
	})
	c, rec := wire(d)

	err := c.BuildArtifact(context.Background(), task("lib::", ":lib:test"))
	require.Error(t, err)

	var nested *models.NestedExecutionError
	require.ErrorAs(t, err, &nested)
	assert.Contains(t, err.Error(), "task :lib:test exited with code 3")

	records := rec.Records()
	require.Len(t, records, 1)
	require.NotNil(t, records[0].Error)
	assert.Equal(t, models.ErrNestedExecutionFailed, records[0].Error.Type)
}

func TestUnknownTask(t *testing.T) {
	d, _ := workspace(t, map[string]string{
		"lib": `
[tasks.":lib:jar"]
command = "true"
`,
	})
	c, _ := wire(d)

	err := c.BuildArtifact(context.Background(), task("lib::", ":lib:publish"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `task ":lib:publish" not defined in build lib::`)
}

func TestNestedBuildLogs(t *testing.T) {
	d, _ := workspace(t, map[string]string{
		"lib": `
[tasks.":lib:jar"]
command = "echo \"building $COMPOSITE_BUILD $COMPOSITE_TASK\""
`,
	})
	logDir := t.TempDir()
	nested := &launcher.Nested{
		Provider: local.NewProvider(),
		Loader:   build.NewLoader(),
		LogDir:   logDir,
	}

	inst, err := nested.NewInstance(context.Background(), launcher.Request{
		Build: models.BuildID{Name: "lib"},
		Dir:   d["lib"],
		Tasks: []models.TaskPath{":lib:jar"},
	})
	require.NoError(t, err)
	require.NoError(t, inst.Run(context.Background()))
	require.NoError(t, inst.Stop(context.Background()))

	data, err := os.ReadFile(filepath.Join(logDir, "lib", "lib-jar", "stdout.txt"))
	require.NoError(t, err)
	assert.Equal(t, "building lib :lib:jar\n", string(data))
}

func TestNestedBuildLogWriteFailureIsLogged(t *testing.T) {
	d, _ := workspace(t, map[string]string{
		"lib": `
[tasks.":lib:jar"]
command = "echo jar"
`,
	})
	logDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(logDir, "lib", "lib-jar", "stdout.txt"), 0o755))

	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	nested := &launcher.Nested{
		Provider: local.NewProvider(),
		Loader:   build.NewLoader(),
		LogDir:   logDir,
	}
	inst, err := nested.NewInstance(context.Background(), launcher.Request{
		Build: models.BuildID{Name: "lib"},
		Dir:   d["lib"],
		Tasks: []models.TaskPath{":lib:jar"},
	})
	require.NoError(t, err)
	require.NoError(t, inst.Run(context.Background()))
	require.NoError(t, inst.Stop(context.Background()))

	assert.Contains(t, buf.String(), "level=WARN msg=\"writing task log\"")
	assert.Contains(t, buf.String(), "stdout.txt")
	assert.FileExists(t, filepath.Join(logDir, "lib", "lib-jar", "stderr.txt"))
}

type fakeProvider struct {
	created   []environment.CreateEnvironmentOptions
	destroyed int
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) CreateEnvironment(ctx context.Context, opts environment.CreateEnvironmentOptions) (environment.Environment, error) {
	p.created = append(p.created, opts)
	return &fakeEnv{p: p}, nil
}

type fakeEnv struct {
	p        *fakeProvider
	commands []string
}

func (e *fakeEnv) ID() string { return "fake-env" }

func (e *fakeEnv) Exec(ctx context.Context, cmd string, stdout, stderr io.Writer, opts environment.ExecOptions) (int, error) {
	e.commands = append(e.commands, cmd)
	fmt.Fprintln(stdout, cmd)
	return 0, nil
}

func (e *fakeEnv) Destroy(ctx context.Context) error {
	e.p.destroyed++
	return nil
}

func TestEnvironmentCreatedOncePerInstance(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, models.BuildFileName), []byte(`
[environment]
image = "golang:1.25"
cpus = 4
memory = "8G"

[tasks.":svc:build"]
command = "go build ./..."

[tasks.":svc:test"]
command = "go test ./..."
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM golang:1.25\n"), 0o644))

	p := &fakeProvider{}
	nested := &launcher.Nested{Provider: p, Loader: build.NewLoader()}

	inst, err := nested.NewInstance(context.Background(), launcher.Request{
		Build: models.BuildID{Name: "svc"},
		Dir:   dir,
		Tasks: []models.TaskPath{":svc:build", ":svc:test"},
	})
	require.NoError(t, err)
	assert.Empty(t, p.created, "environment must not be created before Run")

	require.NoError(t, inst.Run(context.Background()))
	require.NoError(t, inst.Stop(context.Background()))

	require.Len(t, p.created, 1)
	opts := p.created[0]
	assert.Equal(t, dir, opts.BuildDir)
	assert.Equal(t, "golang:1.25", opts.Image)
	assert.Equal(t, "FROM golang:1.25\n", opts.Dockerfile)
	assert.Equal(t, 4, opts.CPUs)
	assert.Equal(t, 8192, opts.MemoryMB)
	assert.True(t, strings.HasPrefix(opts.Name, "composite-svc-"))
	assert.Equal(t, 1, p.destroyed)
}

func TestStopWithoutRun(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, models.BuildFileName), []byte(`
[tasks.":x:y"]
command = "true"
`), 0o644))

	p := &fakeProvider{}
	nested := &launcher.Nested{Provider: p, Loader: build.NewLoader()}
	inst, err := nested.NewInstance(context.Background(), launcher.Request{
		Build: models.BuildID{Name: "x"},
		Dir:   dir,
		Tasks: []models.TaskPath{":x:y"},
	})
	require.NoError(t, err)
	require.NoError(t, inst.Stop(context.Background()))
	assert.Empty(t, p.created)
	assert.Zero(t, p.destroyed)
}
