// Package sources fetches sub-builds that live in git repositories, either
// declared inline in composite.yaml or looked up in a source catalog.
package sources

import "github.com/spachava753/composite/internal/models"

// CatalogEntry is one git-sourced build published in a catalog.
type CatalogEntry struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	GitURL      string `json:"git_url"`
	GitCommitID string `json:"git_commit_id,omitempty"` // empty = HEAD
	Path        string `json:"path,omitempty"`          // empty = repo root
}

// GitSource returns the entry as an inline git source.
func (e CatalogEntry) GitSource() models.GitSource {
	return models.GitSource{URL: e.GitURL, Commit: e.GitCommitID, Path: e.Path}
}

// cloneKey uniquely identifies a git repository at a specific commit.
type cloneKey struct {
	GitURL      string
	GitCommitID string // empty means HEAD
}
