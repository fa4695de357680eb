// Package composite maps the sub-builds of a composite build to their
// directories on disk.
package composite

import (
	"maps"
	"slices"
	"strings"

	"github.com/spachava753/composite/internal/models"
)

// Layout maps each sub-build to its root directory.
type Layout struct {
	dirs map[models.BuildID]string
}

// NewLayout creates a layout from build name to absolute directory.
func NewLayout(dirs map[string]string) *Layout {
	l := &Layout{dirs: make(map[models.BuildID]string, len(dirs))}
	for name, dir := range dirs {
		l.dirs[models.BuildID{Name: name}] = dir
	}
	return l
}

// ResolveDirectory returns the root directory of build.
func (l *Layout) ResolveDirectory(build models.BuildID) (string, error) {
	dir, ok := l.dirs[build]
	if !ok {
		return "", &models.DirectoryResolutionError{Build: build, Err: models.ErrUnknownBuild}
	}
	return dir, nil
}

// Builds returns the sub-builds of the layout sorted by name.
func (l *Layout) Builds() []models.BuildID {
	return slices.SortedFunc(maps.Keys(l.dirs), func(a, b models.BuildID) int {
		return strings.Compare(a.Name, b.Name)
	})
}
