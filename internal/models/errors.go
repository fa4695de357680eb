package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType identifies the category of error that occurred.
type ErrorType string

const (
	// Coordination
	ErrBuildCycle                ErrorType = "build_cycle"
	ErrDirectoryResolutionFailed ErrorType = "directory_resolution_failed"
	ErrNestedExecutionFailed     ErrorType = "nested_execution_failed"

	// Setup
	ErrBuildConfigInvalid ErrorType = "build_config_invalid"
	ErrSourceCloneFailed  ErrorType = "source_clone_failed"

	// Catch-all
	ErrInternalError ErrorType = "internal_error"
)

// ErrUnknownBuild reports a build identifier that is not part of the composite.
var ErrUnknownBuild = errors.New("build is not part of the composite")

// BuildCycleError reports a sub-build asked to execute while it is already
// executing, i.e. a circular dependency between sub-builds.
type BuildCycleError struct {
	Build BuildID
}

func (e *BuildCycleError) Error() string {
	return fmt.Sprintf("dependency cycle including %s", e.Build)
}

// DirectoryResolutionError reports a build that cannot be mapped to a directory.
type DirectoryResolutionError struct {
	Build BuildID
	Err   error
}

func (e *DirectoryResolutionError) Error() string {
	return fmt.Sprintf("resolving directory of build %s: %v", e.Build, e.Err)
}

func (e *DirectoryResolutionError) Unwrap() error { return e.Err }

// NestedExecutionError reports a failed nested build invocation. Err is the
// launcher's error, unmodified.
type NestedExecutionError struct {
	Build BuildID
	Tasks []TaskPath
	Err   error
}

func (e *NestedExecutionError) Error() string {
	names := make([]string, len(e.Tasks))
	for i, t := range e.Tasks {
		names[i] = string(t)
	}
	return fmt.Sprintf("build %s tasks [%s]: %v", e.Build, strings.Join(names, ", "), e.Err)
}

func (e *NestedExecutionError) Unwrap() error { return e.Err }

// SourceCloneError reports a git-sourced build whose repository could not be
// fetched.
type SourceCloneError struct {
	URL    string
	Commit string
	Err    error
}

func (e *SourceCloneError) Error() string {
	ref := e.Commit
	if ref == "" {
		ref = "HEAD"
	}
	return fmt.Sprintf("cloning %s at %s: %v", e.URL, ref, e.Err)
}

func (e *SourceCloneError) Unwrap() error { return e.Err }

// ConfigError reports an invalid composite.yaml or build.toml.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ErrorTypeOf classifies err for reporting. A cycle reported from inside a
// nested build is still a cycle.
func ErrorTypeOf(err error) ErrorType {
	var cycle *BuildCycleError
	var dir *DirectoryResolutionError
	var nested *NestedExecutionError
	var source *SourceCloneError
	var config *ConfigError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cycle):
		return ErrBuildCycle
	case errors.As(err, &dir):
		return ErrDirectoryResolutionFailed
	case errors.As(err, &nested):
		return ErrNestedExecutionFailed
	case errors.As(err, &source):
		return ErrSourceCloneFailed
	case errors.As(err, &config):
		return ErrBuildConfigInvalid
	default:
		return ErrInternalError
	}
}
