package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/dshills/texforge/internal/customeditor"
	"github.com/dshills/texforge/internal/fs"
	"github.com/dshills/texforge/internal/menu"
	"github.com/dshills/texforge/internal/ui"
)

// Manifest describes a plugin. The manager keeps its own copy; callers may
// reuse the value they passed in.
type Manifest struct {
	ID          string `json:"id" yaml:"id" toml:"id"`
	Name        string `json:"name" yaml:"name" toml:"name"`
	Version     string `json:"version" yaml:"version" toml:"version"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	Publisher   string `json:"publisher,omitempty" yaml:"publisher,omitempty" toml:"publisher,omitempty"`
	License     string `json:"license,omitempty" yaml:"license,omitempty" toml:"license,omitempty"`

	// Main names the entry point. A ".lua" suffix selects the Lua runtime.
	Main string `json:"main,omitempty" yaml:"main,omitempty" toml:"main,omitempty"`

	ActivationEvents []string `json:"activationEvents,omitempty" yaml:"activationEvents,omitempty" toml:"activationEvents,omitempty"`

	// Dependencies lists plugin ids that must be loaded first.
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty" toml:"dependencies,omitempty"`

	Contributes Contributions `json:"contributes" yaml:"contributes,omitempty" toml:"contributes,omitempty"`

	// dir is the directory the manifest was read from.
	dir string
}

// Contributions are the declarative parts of a manifest.
type Contributions struct {
	Commands       []CommandContribution         `json:"commands,omitempty" yaml:"commands,omitempty" toml:"commands,omitempty"`
	Menus          map[string][]menu.Item        `json:"menus,omitempty" yaml:"menus,omitempty" toml:"menus,omitempty"`
	ViewContainers map[string][]ui.ViewContainer `json:"viewContainers,omitempty" yaml:"viewContainers,omitempty" toml:"viewContainers,omitempty"`
	Views          map[string][]ui.View          `json:"views,omitempty" yaml:"views,omitempty" toml:"views,omitempty"`
	CustomEditors  []CustomEditorContribution    `json:"customEditors,omitempty" yaml:"customEditors,omitempty" toml:"customEditors,omitempty"`
	Languages      []LanguageContribution        `json:"languages,omitempty" yaml:"languages,omitempty" toml:"languages,omitempty"`
	Themes         []ThemeContribution           `json:"themes,omitempty" yaml:"themes,omitempty" toml:"themes,omitempty"`
}

// CommandContribution declares a command the plugin provides.
type CommandContribution struct {
	Command  string `json:"command" yaml:"command" toml:"command"`
	Title    string `json:"title" yaml:"title" toml:"title"`
	Category string `json:"category,omitempty" yaml:"category,omitempty" toml:"category,omitempty"`
	Icon     string `json:"icon,omitempty" yaml:"icon,omitempty" toml:"icon,omitempty"`
	When     string `json:"when,omitempty" yaml:"when,omitempty" toml:"when,omitempty"`
}

// CustomEditorContribution declares an editor and the resources it handles.
type CustomEditorContribution struct {
	ViewType    string                  `json:"viewType" yaml:"viewType" toml:"viewType"`
	DisplayName string                  `json:"displayName" yaml:"displayName" toml:"displayName"`
	Selector    []customeditor.Selector `json:"selector" yaml:"selector" toml:"selector"`
	Priority    string                  `json:"priority,omitempty" yaml:"priority,omitempty" toml:"priority,omitempty"`
}

// LanguageContribution declares a language.
type LanguageContribution struct {
	ID            string   `json:"id" yaml:"id" toml:"id"`
	Extensions    []string `json:"extensions" yaml:"extensions" toml:"extensions"`
	Aliases       []string `json:"aliases,omitempty" yaml:"aliases,omitempty" toml:"aliases,omitempty"`
	Configuration string   `json:"configuration,omitempty" yaml:"configuration,omitempty" toml:"configuration,omitempty"`
}

// ThemeContribution declares a color theme.
type ThemeContribution struct {
	ID      string `json:"id" yaml:"id" toml:"id"`
	Label   string `json:"label" yaml:"label" toml:"label"`
	UITheme string `json:"uiTheme" yaml:"uiTheme" toml:"uiTheme"`
	Path    string `json:"path" yaml:"path" toml:"path"`
}

// Validation errors.
var (
	ErrMissingID           = errors.New("manifest: id is required")
	ErrInvalidID           = errors.New("manifest: id must be lowercase alphanumeric with dots or hyphens")
	ErrMissingVersion      = errors.New("manifest: version is required")
	ErrInvalidVersion      = errors.New("manifest: version must be valid semver")
	ErrSelfDependency      = errors.New("manifest: plugin cannot depend on itself")
	ErrMissingCommandID    = errors.New("manifest: command id is required")
	ErrMissingCommandTitle = errors.New("manifest: command title is required")
	ErrMissingViewType     = errors.New("manifest: custom editor viewType is required")
	ErrUnknownFormat       = errors.New("manifest: unknown format")
	ErrDuplicateID         = errors.New("manifest: duplicate plugin id")
)

// idPattern and semverPattern apply to manifests read from disk only.
var idPattern = regexp.MustCompile(`^[a-z][a-z0-9.-]*[a-z0-9]$|^[a-z]$`)

var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.-]+)?(\+[a-zA-Z0-9.-]+)?$`)

// ManifestFiles are the file names LoadManifestDir looks for, in order.
var ManifestFiles = []string{"plugin.json", "plugin.yaml", "plugin.yml", "plugin.toml"}

// DecodeManifest parses data in the given format ("json", "yaml", "yml"
// or "toml"), applies defaults and validates the result. On top of
// Validate, decoded manifests need a lowercase id and a semver version.
func DecodeManifest(data []byte, format string) (*Manifest, error) {
	var m Manifest
	var err error
	switch strings.TrimPrefix(strings.ToLower(format), ".") {
	case "json":
		err = json.Unmarshal(data, &m)
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &m)
	case "toml":
		err = toml.Unmarshal(data, &m)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	m.applyDefaults()
	if err := m.validateFile(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadManifest reads and decodes the manifest at path. The format follows
// the file extension.
func LoadManifest(fsys fs.FileSystem, path string) (*Manifest, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := DecodeManifest(data, fsys.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.dir = fsys.Dir(path)
	return m, nil
}

// LoadManifestDir loads the first of ManifestFiles found in dir.
func LoadManifestDir(fsys fs.FileSystem, dir string) (*Manifest, error) {
	for _, name := range ManifestFiles {
		p := fsys.Join(dir, name)
		if fsys.Exists(p) {
			return LoadManifest(fsys, p)
		}
	}
	return nil, fmt.Errorf("%s: %w", dir, fs.ErrNotExist)
}

// applyDefaults sets default values for optional fields.
func (m *Manifest) applyDefaults() {
	if m.Name == "" {
		m.Name = m.ID
	}
	if m.Version == "" {
		m.Version = "0.0.0"
	}
}

// Validate checks what the manager needs from any manifest: an id, no
// dependency on itself and well-formed contributions. Ids are otherwise
// free-form.
func (m *Manifest) Validate() error {
	if m.ID == "" {
		return ErrMissingID
	}

	if slices.Contains(m.Dependencies, m.ID) {
		return fmt.Errorf("%w: %s", ErrSelfDependency, m.ID)
	}

	for i, cmd := range m.Contributes.Commands {
		if cmd.Command == "" {
			return fmt.Errorf("%w at index %d", ErrMissingCommandID, i)
		}
		if cmd.Title == "" {
			return fmt.Errorf("%w at index %d (id: %s)", ErrMissingCommandTitle, i, cmd.Command)
		}
	}

	for i, ed := range m.Contributes.CustomEditors {
		if ed.ViewType == "" {
			return fmt.Errorf("%w at index %d", ErrMissingViewType, i)
		}
	}

	return nil
}

// validateFile adds the naming rules for manifests read from disk.
func (m *Manifest) validateFile() error {
	if err := m.Validate(); err != nil {
		return err
	}
	if !idPattern.MatchString(m.ID) {
		return fmt.Errorf("%w: %s", ErrInvalidID, m.ID)
	}
	if m.Version == "" {
		return ErrMissingVersion
	}
	if !semverPattern.MatchString(m.Version) {
		return fmt.Errorf("%w: %s", ErrInvalidVersion, m.Version)
	}
	return nil
}

// Dir returns the directory the manifest was loaded from, or "".
func (m *Manifest) Dir() string {
	return m.dir
}

// WithDir returns a copy of m that resolves its entry point against dir.
func (m *Manifest) WithDir(dir string) *Manifest {
	c := m.Clone()
	c.dir = dir
	return c
}

// CustomEditor returns the custom editor contribution for viewType.
func (m *Manifest) CustomEditor(viewType string) (CustomEditorContribution, bool) {
	for _, ed := range m.Contributes.CustomEditors {
		if ed.ViewType == viewType {
			return ed, true
		}
	}
	return CustomEditorContribution{}, false
}

// String returns a string representation of the manifest.
func (m *Manifest) String() string {
	display := m.Name
	if display == "" {
		display = m.ID
	}
	return fmt.Sprintf("%s v%s", display, m.Version)
}

// Clone creates a deep copy of the manifest.
func (m *Manifest) Clone() *Manifest {
	clone := *m
	clone.ActivationEvents = slices.Clone(m.ActivationEvents)
	clone.Dependencies = slices.Clone(m.Dependencies)

	c := m.Contributes
	clone.Contributes = Contributions{
		Commands:       slices.Clone(c.Commands),
		Menus:          cloneSliceMap(c.Menus),
		ViewContainers: cloneSliceMap(c.ViewContainers),
		Views:          cloneSliceMap(c.Views),
		Languages:      slices.Clone(c.Languages),
		Themes:         slices.Clone(c.Themes),
	}
	if c.CustomEditors != nil {
		clone.Contributes.CustomEditors = make([]CustomEditorContribution, len(c.CustomEditors))
		for i, ed := range c.CustomEditors {
			ed.Selector = slices.Clone(ed.Selector)
			clone.Contributes.CustomEditors[i] = ed
		}
	}
	for i, lang := range clone.Contributes.Languages {
		lang.Extensions = slices.Clone(lang.Extensions)
		lang.Aliases = slices.Clone(lang.Aliases)
		clone.Contributes.Languages[i] = lang
	}
	return &clone
}

func cloneSliceMap[T any](in map[string][]T) map[string][]T {
	if in == nil {
		return nil
	}
	out := maps.Clone(in)
	for k, v := range out {
		out[k] = slices.Clone(v)
	}
	return out
}
