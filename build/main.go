// Command build holds the developer tasks of this repository.
// Run it with: go run ./build <task>
package main

import (
	"os"
	"os/exec"

	"github.com/goyek/goyek/v2"
)

func run(a *goyek.A, name string, args ...string) {
	a.Helper()
	a.Logf("%s %v", name, args)
	cmd := exec.CommandContext(a.Context(), name, args...)
	cmd.Stdout = a.Output()
	cmd.Stderr = a.Output()
	if err := cmd.Run(); err != nil {
		a.Error(err)
	}
}

var vet = goyek.Define(goyek.Task{
	Name:  "vet",
	Usage: "Run go vet on all packages",
	Action: func(a *goyek.A) {
		run(a, "go", "vet", "./...")
	},
})

var test = goyek.Define(goyek.Task{
	Name:  "test",
	Usage: "Run the unit tests with the race detector",
	Action: func(a *goyek.A) {
		run(a, "go", "test", "-race", "-count=1", "./...")
	},
})

var tidy = goyek.Define(goyek.Task{
	Name:  "tidy",
	Usage: "Check that go.mod is tidy",
	Action: func(a *goyek.A) {
		run(a, "go", "mod", "tidy", "-diff")
	},
})

var _ = goyek.Define(goyek.Task{
	Name:  "all",
	Usage: "Run vet, test and tidy",
	Deps:  goyek.Deps{vet, test, tidy},
})

func main() {
	goyek.SetDefault(goyek.Define(goyek.Task{
		Name: "ci",
		Deps: goyek.Deps{vet, test},
	}))
	goyek.Main(os.Args[1:])
}
