package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spachava753/composite/internal/models"
)

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	catalogPath := filepath.Join(tmpDir, "catalog.json")

	entries := []CatalogEntry{
		{
			Name:        "proto",
			GitURL:      "https://github.com/example/proto.git",
			GitCommitID: "abc123",
			Path:        "gen/go",
		},
	}
	data, err := json.Marshal(entries)
	if err != nil {
		t.Fatalf("marshaling test data: %v", err)
	}
	if err := os.WriteFile(catalogPath, data, 0644); err != nil {
		t.Fatalf("writing test catalog: %v", err)
	}

	loaded, err := LoadFromPath(catalogPath)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(loaded))
	}
	want := models.GitSource{URL: "https://github.com/example/proto.git", Commit: "abc123", Path: "gen/go"}
	if got := loaded[0].GitSource(); got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestLoadFromPathErrors(t *testing.T) {
	if _, err := LoadFromPath("/nonexistent/path/catalog.json"); err == nil {
		t.Error("expected error for nonexistent file")
	}

	tmpDir := t.TempDir()
	invalid := filepath.Join(tmpDir, "invalid.json")
	if err := os.WriteFile(invalid, []byte("invalid json"), 0644); err != nil {
		t.Fatalf("writing test file: %v", err)
	}
	if _, err := LoadFromPath(invalid); err == nil {
		t.Error("expected error for invalid JSON")
	}

	missingURL := filepath.Join(tmpDir, "missing.json")
	if err := os.WriteFile(missingURL, []byte(`[{"name": "proto"}]`), 0644); err != nil {
		t.Fatalf("writing test file: %v", err)
	}
	if _, err := LoadFromPath(missingURL); err == nil {
		t.Error("expected error for entry without git_url")
	}
}

func TestLoadFromURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"name": "proto", "git_url": "https://github.com/example/proto.git"}]`))
	}))
	defer server.Close()

	loaded, err := LoadFromURL(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("LoadFromURL: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Name != "proto" {
		t.Errorf("unexpected catalog: %+v", loaded)
	}
}

func TestLoadFromURLHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	if _, err := LoadFromURL(context.Background(), server.URL); err == nil {
		t.Error("expected error for HTTP 404")
	}
}

func TestFindEntry(t *testing.T) {
	entries := []CatalogEntry{
		{Name: "proto", GitURL: "https://example.com/proto.git"},
		{Name: "shared", GitURL: "https://example.com/shared.git"},
	}

	e, err := FindEntry(entries, "shared")
	if err != nil {
		t.Fatalf("FindEntry: %v", err)
	}
	if e.GitURL != "https://example.com/shared.git" {
		t.Errorf("unexpected entry %+v", e)
	}

	if _, err := FindEntry(entries, "missing"); err == nil {
		t.Error("expected error for unknown build")
	}
}
