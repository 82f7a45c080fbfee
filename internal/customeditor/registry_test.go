package customeditor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type suffixProvider struct {
	name   string
	suffix string
}

func (p suffixProvider) CanEdit(uri string) bool { return strings.HasSuffix(uri, p.suffix) }

func (p suffixProvider) Render(uri string, _ []byte) (any, error) { return p.name + ":" + uri, nil }

type panicProvider struct{}

func (panicProvider) CanEdit(string) bool { panic("broken") }
func (panicProvider) Render(string, []byte) (any, error) { return nil, nil }

func TestCustomEditorFirstMatchWins(t *testing.T) {
	r := NewRegistry()
	generic := suffixProvider{name: "generic", suffix: ""}
	pdf := suffixProvider{name: "pdf", suffix: ".pdf"}
	r.RegisterCustomEditor("pdf", pdf)
	r.RegisterCustomEditor("generic", generic)

	p, ok := r.CustomEditor("/projects/main.pdf")
	require.True(t, ok)
	assert.Equal(t, pdf, p)

	p, ok = r.CustomEditor("/projects/main.tex")
	require.True(t, ok)
	assert.Equal(t, generic, p)

	assert.Equal(t, []Provider{pdf, generic}, r.AvailableEditors("/projects/main.pdf"))
	assert.Equal(t, []Provider{generic}, r.AvailableEditors("/projects/main.tex"))
}

func TestCustomEditorNoMatch(t *testing.T) {
	r := NewRegistry()
	r.RegisterCustomEditor("pdf", suffixProvider{suffix: ".pdf"})

	p, ok := r.CustomEditor("main.tex")
	assert.False(t, ok)
	assert.Nil(t, p)
	assert.Empty(t, r.AvailableEditors("main.tex"))
	assert.False(t, r.HasCustomEditor("main.tex"))
	assert.True(t, r.HasCustomEditor("main.pdf"))
}

func TestCustomEditorPanickingPredicateIsSkipped(t *testing.T) {
	r := NewRegistry()
	r.RegisterCustomEditor("broken", panicProvider{})
	pdf := suffixProvider{suffix: ".pdf"}
	r.RegisterCustomEditor("pdf", pdf)

	p, ok := r.CustomEditor("a.pdf")
	require.True(t, ok)
	assert.Equal(t, pdf, p)
}

func TestCustomEditorReplaceKeepsPosition(t *testing.T) {
	r := NewRegistry()
	r.RegisterCustomEditor("a", suffixProvider{name: "a1", suffix: ".x"})
	r.RegisterCustomEditor("b", suffixProvider{name: "b", suffix: ".x"})
	r.RegisterCustomEditor("a", suffixProvider{name: "a2", suffix: ".x"})

	p, _ := r.CustomEditor("f.x")
	assert.Equal(t, "a2", p.(suffixProvider).name)
	assert.Equal(t, 2, r.Size())

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ViewType)
	assert.Equal(t, "b", all[1].ViewType)
}

func TestCustomEditorDispose(t *testing.T) {
	r := NewRegistry()
	d := r.RegisterCustomEditor("pdf", suffixProvider{suffix: ".pdf"})

	require.NoError(t, d.Dispose())
	require.NoError(t, d.Dispose())
	assert.Equal(t, 0, r.Size())
	_, ok := r.CustomEditorByViewType("pdf")
	assert.False(t, ok)
}

func TestCustomEditorStaleDisposeKeepsReplacement(t *testing.T) {
	r := NewRegistry()
	old := r.RegisterCustomEditor("pdf", suffixProvider{name: "old", suffix: ".pdf"})
	r.RegisterCustomEditor("pdf", suffixProvider{name: "new", suffix: ".pdf"})

	require.NoError(t, old.Dispose())
	p, ok := r.CustomEditorByViewType("pdf")
	require.True(t, ok)
	assert.Equal(t, "new", p.(suffixProvider).name)
}

func TestCustomEditorUnregisterClear(t *testing.T) {
	r := NewRegistry()
	r.RegisterCustomEditor("a", suffixProvider{})
	r.RegisterCustomEditor("b", suffixProvider{})

	assert.True(t, r.UnregisterCustomEditor("a"))
	assert.False(t, r.UnregisterCustomEditor("a"))
	assert.Equal(t, 1, r.Size())

	r.Clear()
	assert.Equal(t, 0, r.Size())
	assert.Empty(t, r.All())
}
