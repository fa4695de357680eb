package problems

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Builder assembles a Problem. The zero value is not usable; call NewBuilder.
type Builder struct {
	label        string
	category     string
	severity     *Severity
	locations    []Location
	details      string
	docURL       string
	undocumented bool
	solutions    []string
	err          error
	additional   map[string]string
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{additional: make(map[string]string)}
}

// BuilderFrom returns a builder initialized with the fields of p.
func BuilderFrom(p *Problem) *Builder {
	sev := p.severity
	return &Builder{
		label:        p.label,
		category:     p.category,
		severity:     &sev,
		locations:    slices.Clone(p.locations),
		details:      p.details,
		docURL:       p.docURL,
		undocumented: p.docURL == "",
		solutions:    slices.Clone(p.solutions),
		err:          p.err,
		additional:   maps.Clone(p.additional),
	}
}

func (b *Builder) Label(format string, args ...any) *Builder {
	b.label = fmt.Sprintf(format, args...)
	return b
}

func (b *Builder) Severity(s Severity) *Builder {
	b.severity = &s
	return b
}

// Category sets a hierarchical category, e.g. Category("build", "cycle")
// gives "build:cycle".
func (b *Builder) Category(category string, details ...string) *Builder {
	b.category = strings.Join(append([]string{category}, details...), ":")
	return b
}

func (b *Builder) Location(path string, line, column int) *Builder {
	b.locations = append(b.locations, Location{Path: path, Line: line, Column: column})
	return b
}

func (b *Builder) FileLocation(path string, line, column, length int) *Builder {
	b.locations = append(b.locations, Location{Path: path, Line: line, Column: column, Length: length})
	return b
}

func (b *Builder) Details(details string) *Builder {
	b.details = details
	return b
}

func (b *Builder) DocumentedAt(url string) *Builder {
	b.undocumented = false
	b.docURL = url
	return b
}

func (b *Builder) Undocumented() *Builder {
	b.undocumented = true
	b.docURL = ""
	return b
}

func (b *Builder) Solution(solution string) *Builder {
	b.solutions = append(b.solutions, solution)
	return b
}

func (b *Builder) AdditionalData(key, value string) *Builder {
	if b.additional == nil {
		b.additional = make(map[string]string)
	}
	b.additional[key] = value
	return b
}

func (b *Builder) WithError(err error) *Builder {
	b.err = err
	return b
}

// Build returns the problem. A problem must either link its documentation or
// be explicitly marked undocumented. Severity defaults to Warning.
func (b *Builder) Build() (*Problem, error) {
	if !b.undocumented && b.docURL == "" {
		return nil, fmt.Errorf("problem is not documented: %s", b.label)
	}
	sev := Warning
	if b.severity != nil {
		sev = *b.severity
	}
	return &Problem{
		label:      b.label,
		category:   b.category,
		severity:   sev,
		locations:  slices.Clone(b.locations),
		details:    b.details,
		docURL:     b.docURL,
		solutions:  slices.Clone(b.solutions),
		err:        b.err,
		additional: maps.Clone(b.additional),
	}, nil
}
