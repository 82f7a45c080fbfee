package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()
	r.Register("a", func(m *Manifest) (Plugin, error) {
		return &Funcs{Base: NewBase(m)}, nil
	})

	assert.True(t, r.Has("a"))
	assert.Equal(t, []string{"a"}, r.IDs())

	p, err := r.Resolve(context.Background(), testManifest("a"))
	require.NoError(t, err)
	assert.Equal(t, "a", p.ID())

	_, err = r.Resolve(context.Background(), testManifest("b"))
	assert.ErrorIs(t, err, ErrUnknownPlugin)
}

func TestChain(t *testing.T) {
	first := NewRegistry()
	first.Register("a", func(m *Manifest) (Plugin, error) {
		return &Funcs{Base: NewBase(m)}, nil
	})

	var fallbackCalls int
	fallback := ResolverFunc(func(_ context.Context, m *Manifest) (Plugin, error) {
		fallbackCalls++
		if m.Main == "broken.lua" {
			return nil, errors.New("syntax error")
		}
		if m.Main != "main.lua" {
			return nil, ErrUnknownPlugin
		}
		return &Funcs{Base: NewBase(m)}, nil
	})

	chain := Chain{first, fallback}
	ctx := context.Background()

	p, err := chain.Resolve(ctx, testManifest("a"))
	require.NoError(t, err)
	assert.Equal(t, "a", p.ID())
	assert.Zero(t, fallbackCalls)

	script := testManifest("script")
	script.Main = "main.lua"
	p, err = chain.Resolve(ctx, script)
	require.NoError(t, err)
	assert.Equal(t, "script", p.ID())

	broken := testManifest("broken")
	broken.Main = "broken.lua"
	_, err = chain.Resolve(ctx, broken)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownPlugin)

	_, err = chain.Resolve(ctx, testManifest("nobody"))
	assert.ErrorIs(t, err, ErrUnknownPlugin)
}

func TestFuncsDefaults(t *testing.T) {
	f := &Funcs{Base: NewBase(&Manifest{ID: "a", Name: "A", Version: "1.2.3", Description: "d"})}
	assert.Equal(t, "a", f.ID())
	assert.Equal(t, "A", f.Name())
	assert.Equal(t, "1.2.3", f.Version())
	assert.Equal(t, "d", f.Description())
	assert.NoError(t, f.Activate(context.Background(), nil))
	assert.NoError(t, f.Deactivate(context.Background()))
}
