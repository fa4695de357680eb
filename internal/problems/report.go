package problems

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/spachava753/composite/internal/models"
)

// FromError describes err as a problem. Coordination failures get a dedicated
// label and solutions; anything else is reported as an undocumented error.
func FromError(err error) *Problem {
	b := NewBuilder().Severity(Error).WithError(err).Undocumented()

	var (
		cycle  *models.BuildCycleError
		dir    *models.DirectoryResolutionError
		nested *models.NestedExecutionError
		source *models.SourceCloneError
		cfg    *models.ConfigError
	)
	switch {
	case errors.As(err, &cycle):
		b.Label("Dependency cycle").
			Category("composite", "cycle").
			Details(fmt.Sprintf("Build %s requires its own output while it is executing.", cycle.Build)).
			Solution("Remove the 'requires' entries that lead back to " + cycle.Build.String()).
			Solution("Run 'composite validate' to check the dependency graph without running tasks").
			AdditionalData("build", cycle.Build.Name)
	case errors.As(err, &dir):
		b.Label("Unknown build").
			Category("composite", "directory").
			Details(dir.Error()).
			Solution(fmt.Sprintf("Declare build %q under 'builds' in composite.yaml", dir.Build.Name)).
			AdditionalData("build", dir.Build.Name)
	case errors.As(err, &nested):
		b.Label("Build failed").
			Category("composite", "nested").
			Details(nested.Err.Error()).
			Solution("Check the task logs in the session directory").
			AdditionalData("build", nested.Build.Name)
	case errors.As(err, &source):
		b.Label("Source unavailable").
			Category("composite", "source").
			Details(source.Error()).
			Solution("Check the git URL and commit, and that git can reach the repository")
	case errors.As(err, &cfg):
		b.Label("Invalid configuration").
			Category("composite", "config").
			Details(cfg.Err.Error()).
			Location(cfg.Path, 0, 0)
	default:
		b.Label("Composite build failed").
			Category("composite").
			Details(err.Error())
	}

	p, buildErr := b.Build()
	if buildErr != nil {
		// Unreachable: the builder is marked undocumented above.
		panic(buildErr)
	}
	return p
}

var (
	severityColors = map[Severity]*color.Color{
		Advice:  color.New(color.FgCyan),
		Warning: color.New(color.FgYellow),
		Error:   color.New(color.FgRed, color.Bold),
	}
	bold = color.New(color.Bold)
)

// Render writes p to w. Colors follow fatih/color's terminal detection.
func (p *Problem) Render(w io.Writer) {
	c, ok := severityColors[p.severity]
	if !ok {
		c = color.New(color.Reset)
	}

	fmt.Fprintf(w, "%s %s\n", c.Sprintf("%s:", strings.ToUpper(p.severity.String())), bold.Sprint(p.label))
	for _, loc := range p.locations {
		fmt.Fprintf(w, "  at %s\n", formatLocation(loc))
	}
	if p.details != "" {
		for _, line := range strings.Split(strings.TrimRight(p.details, "\n"), "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	if len(p.solutions) > 0 {
		fmt.Fprintln(w, "\n  Possible solutions:")
		for i, s := range p.solutions {
			fmt.Fprintf(w, "    %d. %s\n", i+1, s)
		}
	}
	if p.docURL != "" {
		fmt.Fprintf(w, "\n  See %s\n", p.docURL)
	}
}

func formatLocation(loc Location) string {
	switch {
	case loc.Line > 0 && loc.Column > 0:
		return fmt.Sprintf("%s:%d:%d", loc.Path, loc.Line, loc.Column)
	case loc.Line > 0:
		return fmt.Sprintf("%s:%d", loc.Path, loc.Line)
	default:
		return loc.Path
	}
}
