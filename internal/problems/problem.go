// Package problems describes build failures in a form suitable for people:
// a label, details, suggested solutions and a documentation link.
package problems

import (
	"maps"
	"slices"
)

// Severity ranks a problem.
type Severity int

const (
	Advice Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Advice:
		return "advice"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Location points at the source of a problem. Zero Line, Column and Length
// mean unknown.
type Location struct {
	Path   string
	Line   int
	Column int
	Length int
}

// Problem is an immutable problem report. Use a Builder to create one.
type Problem struct {
	label      string
	category   string
	severity   Severity
	locations  []Location
	details    string
	docURL     string
	solutions  []string
	err        error
	additional map[string]string
}

func (p *Problem) Label() string         { return p.label }
func (p *Problem) Category() string      { return p.category }
func (p *Problem) Severity() Severity    { return p.severity }
func (p *Problem) Details() string       { return p.details }
func (p *Problem) DocURL() string        { return p.docURL }
func (p *Problem) Err() error            { return p.err }
func (p *Problem) Locations() []Location { return slices.Clone(p.locations) }
func (p *Problem) Solutions() []string   { return slices.Clone(p.solutions) }

// AdditionalData returns a copy of the problem's metadata.
func (p *Problem) AdditionalData() map[string]string {
	return maps.Clone(p.additional)
}

// Error returns the label and details, so a Problem can travel as an error.
func (p *Problem) Error() string {
	if p.details == "" {
		return p.label
	}
	return p.label + ": " + p.details
}

func (p *Problem) Unwrap() error { return p.err }
