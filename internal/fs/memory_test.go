package fs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemFSReadWrite(t *testing.T) {
	m := NewMemFS()

	require.NoError(t, m.WriteFile("/docs/main.tex", []byte(`\documentclass{article}`)))
	assert.True(t, m.Exists("/docs"))
	assert.True(t, m.Exists("docs/main.tex"))

	data, err := m.ReadFile("/docs/main.tex")
	require.NoError(t, err)
	assert.Equal(t, `\documentclass{article}`, string(data))

	data[0] = 'X'
	again, err := m.ReadFile("/docs/main.tex")
	require.NoError(t, err)
	assert.Equal(t, byte('\\'), again[0])

	info, err := m.Stat("/docs/main.tex")
	require.NoError(t, err)
	assert.Equal(t, "main.tex", info.Name)
	assert.False(t, info.IsDir)
	assert.EqualValues(t, len(`\documentclass{article}`), info.Size)
}

func TestMemFSErrors(t *testing.T) {
	m := NewMemFS()
	require.NoError(t, m.WriteFile("/a/b.txt", nil))

	_, err := m.ReadFile("/missing")
	assert.ErrorIs(t, err, ErrNotExist)

	_, err = m.ReadFile("/a")
	assert.ErrorIs(t, err, ErrIsDir)

	assert.ErrorIs(t, m.DeleteFile("/a"), ErrIsDir)
	assert.ErrorIs(t, m.DeleteFile("/nope"), ErrNotExist)

	_, err = m.ReadDir("/a/b.txt")
	assert.ErrorIs(t, err, ErrNotDir)

	assert.ErrorIs(t, m.Rmdir("/a"), ErrNotEmpty)
	assert.ErrorIs(t, m.Mkdir("/a/b.txt/c"), ErrNotDir)

	_, err = m.Stat("/x")
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestMemFSDirectories(t *testing.T) {
	m := NewMemFS()
	require.NoError(t, m.Mkdir("/project/figures"))
	require.NoError(t, m.Mkdir("/project/figures"))
	require.NoError(t, m.WriteFile("/project/main.tex", nil))
	require.NoError(t, m.WriteFile("/project/refs.bib", nil))

	names, err := m.ReadDir("/project")
	require.NoError(t, err)
	assert.Equal(t, []string{"figures", "main.tex", "refs.bib"}, names)

	require.NoError(t, m.Rmdir("/project/figures"))
	require.NoError(t, m.DeleteFile("/project/main.tex"))
	require.NoError(t, m.DeleteFile("/project/refs.bib"))
	require.NoError(t, m.Rmdir("/project"))
	assert.False(t, m.Exists("/project"))

	root, err := m.ReadDir("/")
	require.NoError(t, err)
	assert.Empty(t, root)
}

func TestMemFSWatch(t *testing.T) {
	m := NewMemFS()
	var events []Event
	d, err := m.Watch("/docs", func(ev Event) { events = append(events, ev) })
	require.NoError(t, err)

	require.NoError(t, m.WriteFile("/docs/a.tex", []byte("1")))
	require.NoError(t, m.WriteFile("/docs/a.tex", []byte("2")))
	require.NoError(t, m.WriteFile("/other/b.tex", []byte("x")))
	require.NoError(t, m.DeleteFile("/docs/a.tex"))

	require.Equal(t, []Event{
		{Path: "/docs/a.tex", Op: OpCreate},
		{Path: "/docs/a.tex", Op: OpWrite},
		{Path: "/docs/a.tex", Op: OpRemove},
	}, events)

	require.NoError(t, d.Dispose())
	require.NoError(t, m.WriteFile("/docs/c.tex", nil))
	assert.Len(t, events, 3)
}

func TestMemFSPathHelpers(t *testing.T) {
	m := NewMemFS()
	assert.Equal(t, "/a/b/c.tex", m.Join("/a", "b", "c.tex"))
	assert.Equal(t, "/a/b", m.Dir("/a/b/c.tex"))
	assert.Equal(t, "c.tex", m.Base("/a/b/c.tex"))
	assert.Equal(t, ".tex", m.Ext("/a/b/c.tex"))
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "created", OpCreate.String())
	assert.Equal(t, "changed", OpWrite.String())
	assert.Equal(t, "deleted", OpRemove.String())
	assert.True(t, (OpCreate | OpWrite).Has(OpWrite))
	assert.False(t, OpCreate.Has(OpRemove))
}
