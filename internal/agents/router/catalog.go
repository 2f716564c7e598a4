package router

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"baws-workers/internal/common/cache"
	apperrors "baws-workers/internal/common/errors"
	"baws-workers/internal/models"
)

type catalogFile struct {
	Agents []models.AgentCatalogEntry `yaml:"agents"`
}

// Catalog is the list of router-visible agents from conversation-agents.yaml.
// A missing file is an empty catalog.
type Catalog struct {
	path    string
	entries *cache.ReadThrough[struct{}, []models.AgentCatalogEntry]
}

func NewCatalog(path string) (*Catalog, error) {
	c := &Catalog{path: path}
	entries, err := cache.NewReadThrough("agent-catalog", 1, func(struct{}) ([]models.AgentCatalogEntry, error) {
		return readCatalog(c.path)
	})
	if err != nil {
		return nil, err
	}
	c.entries = entries
	return c, nil
}

func readCatalog(path string) ([]models.AgentCatalogEntry, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read agent catalog: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, apperrors.NewParseError(path, err)
	}

	out := f.Agents[:0]
	for _, a := range f.Agents {
		if a.ID != "" {
			out = append(out, a)
		}
	}
	return out, nil
}

func (c *Catalog) Entries() ([]models.AgentCatalogEntry, error) {
	return c.entries.Get(struct{}{})
}

// Lookup returns the entry with the given id.
func (c *Catalog) Lookup(id string) (models.AgentCatalogEntry, bool) {
	entries, err := c.Entries()
	if err != nil {
		return models.AgentCatalogEntry{}, false
	}
	for _, e := range entries {
		if e.ID == id {
			return e, true
		}
	}
	return models.AgentCatalogEntry{}, false
}

func (c *Catalog) Invalidate() {
	c.entries.Invalidate()
}
