package customeditor

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Selector describes the resources a contributed editor handles.
type Selector struct {
	// FilenamePattern is a glob such as "*.pdf" or "**/figures/*.svg".
	// Patterns without a slash match the base name only.
	FilenamePattern string `json:"filenamePattern,omitempty" yaml:"filenamePattern,omitempty" toml:"filenamePattern,omitempty"`
	// Scheme restricts matches to URIs with this scheme ("file" when absent).
	Scheme string `json:"scheme,omitempty" yaml:"scheme,omitempty" toml:"scheme,omitempty"`
}

// RenderFunc renders content for a matched URI.
type RenderFunc func(uri string, content []byte) (any, error)

// GlobProvider is a Provider driven by selectors.
type GlobProvider struct {
	matchers []selectorMatcher
	render   RenderFunc
}

type selectorMatcher struct {
	glob     glob.Glob
	baseOnly bool
	scheme   string
}

// NewGlobProvider compiles selectors into a provider that renders with render.
func NewGlobProvider(selectors []Selector, render RenderFunc) (*GlobProvider, error) {
	p := &GlobProvider{render: render}
	for _, sel := range selectors {
		pattern := sel.FilenamePattern
		if pattern == "" {
			pattern = "**"
		}
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("selector %q: %w", sel.FilenamePattern, err)
		}
		p.matchers = append(p.matchers, selectorMatcher{
			glob:     g,
			baseOnly: !strings.Contains(pattern, "/"),
			scheme:   sel.Scheme,
		})
	}
	return p, nil
}

// CanEdit reports whether any selector matches uri.
func (p *GlobProvider) CanEdit(uri string) bool {
	scheme, path := splitURI(uri)
	base := path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		base = path[i+1:]
	}
	for _, m := range p.matchers {
		if m.scheme != "" && m.scheme != scheme {
			continue
		}
		target := strings.TrimPrefix(path, "/")
		if m.baseOnly {
			target = base
		}
		if m.glob.Match(target) {
			return true
		}
	}
	return false
}

// Render delegates to the configured RenderFunc.
func (p *GlobProvider) Render(uri string, content []byte) (any, error) {
	if p.render == nil {
		return content, nil
	}
	return p.render(uri, content)
}

// splitURI separates "scheme://path"; bare paths use the file scheme.
func splitURI(uri string) (scheme, path string) {
	if s, rest, ok := strings.Cut(uri, "://"); ok {
		return s, rest
	}
	return "file", uri
}
