package model

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog/models.yaml
var defaultCatalogYAML []byte

// Catalog maps model identifiers to models.
type Catalog struct {
	models map[string]*Model
}

type catalogFile struct {
	Models []Model `yaml:"models"`
}

// ParseCatalog parses a YAML model table of the form
//
//	models:
//	  - id: C338
//	    port: 30001
//	    sources: [Stream, TV]
//	    volume: {min: -90, max: 10}
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing model catalog: %w", err)
	}
	if len(f.Models) == 0 {
		return nil, fmt.Errorf("%w: catalog contains no models", ErrInvalidModel)
	}

	c := &Catalog{models: make(map[string]*Model, len(f.Models))}
	for i := range f.Models {
		m := f.Models[i]
		if m.Zone == "" {
			m.Zone = DefaultZone
		}
		if err := m.Validate(); err != nil {
			return nil, err
		}
		key := strings.ToUpper(m.ID)
		if _, dup := c.models[key]; dup {
			return nil, fmt.Errorf("%w: duplicate model id %q", ErrInvalidModel, m.ID)
		}
		c.models[key] = &m
	}
	return c, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// DefaultCatalog returns the built-in model table.
func DefaultCatalog() *Catalog {
	defaultOnce.Do(func() {
		c, err := ParseCatalog(defaultCatalogYAML)
		if err != nil {
			panic(fmt.Sprintf("model: embedded catalog: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Lookup returns a copy of the model with the given id (case-insensitive).
func (c *Catalog) Lookup(id string) (*Model, error) {
	m, ok := c.models[strings.ToUpper(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, id)
	}
	cp := *m
	cp.Sources = m.SourceList()
	return &cp, nil
}

// IDs returns the model identifiers, sorted.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.models))
	for _, m := range c.models {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	return ids
}
