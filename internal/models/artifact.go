package models

import "strings"

// BuildSeparator separates the build name from the project path inside a
// project identifier, e.g. "lib::core".
const BuildSeparator = "::"

// TaskPath names one task within a sub-build's task graph.
type TaskPath string

// BuildID identifies one sub-build of the composite. It is a comparable value
// and is used directly as a map key.
type BuildID struct {
	Name string
}

// String renders the identifier as the root project of the build.
func (b BuildID) String() string {
	return b.Name + BuildSeparator
}

// BuildIDFor returns the build owning the given project identifier. The build
// name is everything before the first separator; an identifier without a
// separator names a build root.
func BuildIDFor(project string) BuildID {
	name, _, _ := strings.Cut(project, BuildSeparator)
	return BuildID{Name: name}
}

// Artifact describes a requested build artifact: the project that produces it
// and the tasks whose completion produces it.
type Artifact struct {
	Project string     `yaml:"project" toml:"project" json:"project"`
	Tasks   []TaskPath `yaml:"tasks" toml:"tasks" json:"tasks"`

	// Composite is false for artifacts not owned by any sub-build.
	Composite bool `yaml:"-" toml:"-" json:"composite"`
}

// Build returns the sub-build owning the artifact.
func (a Artifact) Build() BuildID {
	return BuildIDFor(a.Project)
}

// ArtifactRequest is an artifact requirement as written in configuration.
type ArtifactRequest struct {
	Project string     `yaml:"project" toml:"project" json:"project"`
	Tasks   []TaskPath `yaml:"tasks" toml:"tasks" json:"tasks"`
}

// Artifact converts the request into a composite-owned artifact.
func (r ArtifactRequest) Artifact() Artifact {
	return Artifact{Project: r.Project, Tasks: r.Tasks, Composite: true}
}
