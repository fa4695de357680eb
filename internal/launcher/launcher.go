// Package launcher runs a set of named tasks against one sub-build's directory.
package launcher

import (
	"context"

	"github.com/spachava753/composite/internal/models"
)

// Request describes one nested build invocation.
type Request struct {
	Build models.BuildID
	Dir   string
	Tasks []models.TaskPath

	// SearchUpwards allows the build file to be found in a parent of Dir.
	SearchUpwards bool
}

// Instance is a prepared nested build. Stop must be called once the instance
// is no longer needed, whether or not Run succeeded.
type Instance interface {
	Run(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Launcher creates nested build instances.
type Launcher interface {
	NewInstance(ctx context.Context, req Request) (Instance, error)
}

// Resolver is the artifact-facing side of the coordinator, used by nested
// builds whose tasks require artifacts of other sub-builds.
type Resolver interface {
	NotifyWillBuild(ctx context.Context, artifact models.Artifact)
	BuildArtifact(ctx context.Context, artifact models.Artifact) error
}
