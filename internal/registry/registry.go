// Package registry lists the plugins installed in a vault by reading each
// plugin folder's manifest.json.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// ManifestFile is the per-plugin manifest the host application reads.
const ManifestFile = "manifest.json"

// ErrNotInstalled is returned when a plugin id has no manifest under the root.
var ErrNotInstalled = errors.New("plugin not installed")

// Plugin describes one installed plugin.
type Plugin struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Author      string `json:"author,omitempty"`
	Description string `json:"description,omitempty"`
	Dir         string `json:"dir"`
}

type manifest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Author      string `json:"author"`
	Description string `json:"description"`
}

// Registry reads plugin manifests below Root (<vault>/<configDir>/plugins).
type Registry struct {
	Root string
	Tag  language.Tag
}

// New creates a registry rooted at the plugin storage directory.
func New(root string) *Registry {
	return &Registry{Root: root, Tag: language.Und}
}

// List returns installed plugins sorted by display name. Folders without a
// readable manifest are skipped. The folder name is the plugin id, which is
// how the host keys its manifests; a missing name falls back to the id.
func (r *Registry) List() ([]Plugin, error) {
	entries, err := os.ReadDir(r.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read plugin root: %w", err)
	}

	var plugins []Plugin
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p, err := r.load(e.Name())
		if err != nil {
			continue
		}
		plugins = append(plugins, p)
	}

	r.sortByName(plugins)
	return plugins, nil
}

// Get returns the plugin installed under id.
func (r *Registry) Get(id string) (Plugin, error) {
	if id == "" || filepath.Base(id) != id || id == "." || id == ".." {
		return Plugin{}, fmt.Errorf("%w: %q", ErrNotInstalled, id)
	}
	p, err := r.load(id)
	if err != nil {
		if os.IsNotExist(err) {
			return Plugin{}, fmt.Errorf("%w: %s", ErrNotInstalled, id)
		}
		return Plugin{}, err
	}
	return p, nil
}

// IsInstalled reports whether id has a manifest under the root.
func (r *Registry) IsInstalled(id string) bool {
	_, err := r.Get(id)
	return err == nil
}

func (r *Registry) load(id string) (Plugin, error) {
	dir := filepath.Join(r.Root, id)
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return Plugin{}, err
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Plugin{}, fmt.Errorf("parse %s manifest: %w", id, err)
	}
	name := m.Name
	if name == "" {
		name = id
	}
	return Plugin{
		ID:          id,
		Name:        name,
		Version:     m.Version,
		Author:      m.Author,
		Description: m.Description,
		Dir:         dir,
	}, nil
}

// sortByName orders plugins with locale-aware collation, then by id.
func (r *Registry) sortByName(plugins []Plugin) {
	c := collate.New(r.Tag, collate.IgnoreCase)
	sort.SliceStable(plugins, func(i, j int) bool {
		if cmp := c.CompareString(plugins[i].Name, plugins[j].Name); cmp != 0 {
			return cmp < 0
		}
		return plugins[i].ID < plugins[j].ID
	})
}
