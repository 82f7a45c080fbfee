package plugin

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/texforge/internal/fs"
)

// Discover finds plugin manifests under the given roots.
//
// Each directory below a root that contains one of ManifestFiles is a
// plugin. A bare "<id>.lua" file directly below a root is a single-file
// plugin with a minimal manifest. When two roots provide the same id the
// first root wins. Manifests that fail to load are skipped and reported in
// the returned error; missing roots are ignored.
func Discover(fsys fs.FileSystem, roots ...string) ([]*Manifest, error) {
	found := make(map[string]*Manifest)
	var errs []error

	for _, root := range roots {
		if !fsys.Exists(root) {
			continue
		}
		names, err := fsys.ReadDir(root)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", root, err))
			continue
		}
		for _, name := range names {
			p := fsys.Join(root, name)
			info, err := fsys.Stat(p)
			if err != nil {
				errs = append(errs, err)
				continue
			}

			var m *Manifest
			switch {
			case info.IsDir:
				m, err = LoadManifestDir(fsys, p)
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}
			case fsys.Ext(name) == ".lua":
				m, err = singleFileManifest(strings.TrimSuffix(name, ".lua"), name, root)
			default:
				continue
			}
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if _, exists := found[m.ID]; !exists {
				found[m.ID] = m
			}
		}
	}

	manifests := make([]*Manifest, 0, len(found))
	for _, m := range found {
		manifests = append(manifests, m)
	}
	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].ID < manifests[j].ID
	})
	return manifests, errors.Join(errs...)
}

// singleFileManifest builds the manifest of a single-file Lua plugin.
func singleFileManifest(id, main, dir string) (*Manifest, error) {
	m := &Manifest{ID: id, Main: main, dir: dir}
	m.applyDefaults()
	if err := m.validateFile(); err != nil {
		return nil, fmt.Errorf("%s: %w", main, err)
	}
	return m, nil
}
