package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

// LoadFromPath loads a catalog from a local JSON file.
func LoadFromPath(path string) ([]CatalogEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	return parseCatalog(data)
}

// LoadFromURL loads a catalog from a remote URL.
func LoadFromURL(ctx context.Context, url string) ([]CatalogEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching catalog: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return parseCatalog(data)
}

func parseCatalog(data []byte) ([]CatalogEntry, error) {
	var entries []CatalogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing catalog JSON: %w", err)
	}
	for i, e := range entries {
		if e.Name == "" || e.GitURL == "" {
			return nil, fmt.Errorf("catalog entry %d: 'name' and 'git_url' are required", i)
		}
	}
	return entries, nil
}

// FindEntry returns the catalog entry with the given name.
func FindEntry(entries []CatalogEntry, name string) (*CatalogEntry, error) {
	for i := range entries {
		if entries[i].Name == name {
			return &entries[i], nil
		}
	}
	return nil, fmt.Errorf("build %q not found in catalog", name)
}
