package menu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRegisterMenuSorts(t *testing.T) {
	r := NewRegistry()
	r.RegisterMenu("editor/title", []Item{
		{Command: "c", Title: "C", Group: "nav", Order: 2},
		{Command: "a", Title: "A", Group: "build", Order: 5},
		{Command: "b", Title: "B", Group: "nav", Order: 1},
	})

	items := r.Menu("editor/title")
	require.Len(t, items, 3)
	assert.Equal(t, "a", items[0].Command)
	assert.Equal(t, "b", items[1].Command)
	assert.Equal(t, "c", items[2].Command)
	assert.Equal(t, []string{"editor/title"}, r.IDs())
}

func TestMenuDispose(t *testing.T) {
	r := NewRegistry()
	old := r.RegisterMenu("m", []Item{{Command: "old"}})
	d := r.RegisterMenu("m", []Item{{Command: "new"}})

	require.NoError(t, old.Dispose())
	assert.Equal(t, "new", r.Menu("m")[0].Command)

	require.NoError(t, d.Dispose())
	assert.Empty(t, r.Menu("m"))
	assert.Empty(t, r.IDs())
}

func TestMenuReturnsCopy(t *testing.T) {
	r := NewRegistry()
	r.RegisterMenu("m", []Item{{Command: "x"}})
	items := r.Menu("m")
	items[0].Command = "mutated"
	assert.Equal(t, "x", r.Menu("m")[0].Command)
}

func TestMenuReplaceWarns(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := NewRegistry(WithLogger(zap.New(core)))
	r.RegisterMenu("m", nil)
	r.RegisterMenu("m", nil)
	assert.Equal(t, 1, logs.FilterMessage("menu already registered, replacing").Len())
}
