// Package catalog maps model ids to the locations of their assets.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"textgend/internal/common/fsutil"
	"textgend/internal/manager"
	"textgend/pkg/types"
)

// Catalog is a read-only id -> ModelConfig table.
type Catalog struct {
	entries map[string]types.ModelConfig
}

// New copies entries into a Catalog.
func New(entries map[string]types.ModelConfig) *Catalog {
	c := &Catalog{entries: make(map[string]types.ModelConfig, len(entries))}
	for id, e := range entries {
		c.entries[id] = e
	}
	return c
}

// file is the on-disk layout: a "models" table keyed by id.
type file struct {
	Models map[string]types.ModelConfig `json:"models" yaml:"models"`
}

// LoadFile reads a catalog based on its extension.
// Supports: .yaml/.yml, .json, .toml
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return nil, fmt.Errorf("empty catalog path")
	}
	p, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	var f file
	switch ext := strings.ToLower(filepath.Ext(p)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &f)
	case ".json":
		err = json.Unmarshal(b, &f)
	case ".toml":
		// "model" may be a string or an array; go through a generic document
		// so URLList's JSON decoding handles both.
		var doc map[string]any
		if err = toml.Unmarshal(b, &doc); err == nil {
			var jb []byte
			if jb, err = json.Marshal(doc); err == nil {
				err = json.Unmarshal(jb, &f)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported catalog extension: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	for id, e := range f.Models {
		if err := validate(id, e); err != nil {
			return nil, err
		}
	}
	return New(f.Models), nil
}

func validate(id string, e types.ModelConfig) error {
	switch {
	case id == "":
		return fmt.Errorf("catalog: empty model id")
	case len(e.Model) == 0:
		return fmt.Errorf("catalog: model %q has no weights", id)
	}
	for _, part := range e.Model {
		if part == "" {
			return fmt.Errorf("catalog: model %q has an empty weights entry", id)
		}
	}
	return nil
}

// Merge returns a catalog with the entries of c overlaid by other.
func (c *Catalog) Merge(other *Catalog) *Catalog {
	out := New(c.entries)
	if other != nil {
		for id, e := range other.entries {
			out.entries[id] = e
		}
	}
	return out
}

// Get returns the entry for id.
func (c *Catalog) Get(id string) (types.ModelConfig, bool) {
	e, ok := c.entries[id]
	return e, ok
}

// IDs returns every model id in sorted order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// List returns the public view of every entry, sorted by id.
func (c *Catalog) List() []types.Model {
	out := make([]types.Model, 0, len(c.entries))
	for _, id := range c.IDs() {
		out = append(out, types.Model{ID: id, ModelConfig: c.entries[id]})
	}
	return out
}

// Resolve builds the asset locations for id. Unknown ids yield a
// model-not-found error.
func (c *Catalog) Resolve(id string) (manager.LoadSpec, error) {
	e, ok := c.entries[id]
	if !ok {
		return manager.LoadSpec{}, manager.ErrModelNotFound(id)
	}
	spec := manager.LoadSpec{ModelID: id, Backend: e.Backend}
	for _, part := range e.Model {
		spec.Weights = append(spec.Weights, Join(e.BaseURL, part))
	}
	if e.Tokenizer != "" {
		spec.TokenizerURL = Join(e.BaseURL, e.Tokenizer)
	}
	if e.Config != "" {
		spec.ConfigURL = Join(e.BaseURL, e.Config)
	}
	return spec, nil
}

// Join resolves file against base as base + "/" + file. Absolute URLs and an
// empty base return file unchanged.
func Join(base, file string) string {
	if base == "" || strings.Contains(file, "://") {
		return file
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(file, "/")
}
