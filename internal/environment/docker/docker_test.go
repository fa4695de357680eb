package docker

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/spachava753/composite/internal/environment"
)

func TestRunArgs(t *testing.T) {
	got := runArgs("composite-lib", "golang:1.25", environment.CreateEnvironmentOptions{
		BuildDir: "/src/lib",
		CPUs:     2,
		MemoryMB: 4096,
	})
	want := []string{
		"run", "-d",
		"--name", "composite-lib",
		"-v", "/src/lib:/workspace",
		"-w", "/workspace",
		"--cpus", "2",
		"--memory", "4096m",
		"golang:1.25", "sleep", "infinity",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("runArgs mismatch (-want +got):\n%s", diff)
	}
}

func TestRunArgsOmitsUnsetResources(t *testing.T) {
	got := runArgs("c", "alpine", environment.CreateEnvironmentOptions{BuildDir: "/b"})
	if slices.Contains(got, "--cpus") || slices.Contains(got, "--memory") {
		t.Errorf("unexpected resource flags in %v", got)
	}
}

func TestExecArgs(t *testing.T) {
	got := execArgs("c", "make test", environment.ExecOptions{
		Env:     map[string]string{"CI": "1"},
		WorkDir: "pkg",
	})
	want := []string{"exec", "-e", "CI=1", "-w", "/workspace/pkg", "c", "bash", "-c", "make test"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("execArgs mismatch (-want +got):\n%s", diff)
	}
}
