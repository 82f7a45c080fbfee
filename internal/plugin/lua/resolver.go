package lua

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
	"go.uber.org/zap"

	"github.com/dshills/texforge/internal/fs"
	"github.com/dshills/texforge/internal/plugin"
)

// DefaultExtensionRoot is where scripts of manifests without a directory
// are looked up.
const DefaultExtensionRoot = "/extensions"

// Resolver builds Script plugins for manifests whose main entry is a .lua
// file. Other manifests resolve to plugin.ErrUnknownPlugin so a Chain can
// try the next resolver.
type Resolver struct {
	fsys          fs.FileSystem
	extensionRoot string
	stateOpts     []StateOption
	logger        *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the resolver logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger.With(zap.String("component", "lua"))
		}
	}
}

// WithExtensionRoot sets the directory searched for manifests that were
// not loaded from disk.
func WithExtensionRoot(root string) Option {
	return func(r *Resolver) {
		r.extensionRoot = root
	}
}

// WithStateOptions applies opts to every state the resolver's plugins
// create.
func WithStateOptions(opts ...StateOption) Option {
	return func(r *Resolver) {
		r.stateOpts = append(r.stateOpts, opts...)
	}
}

// NewResolver creates a resolver reading scripts from fsys.
func NewResolver(fsys fs.FileSystem, opts ...Option) *Resolver {
	r := &Resolver{
		fsys:          fsys,
		extensionRoot: DefaultExtensionRoot,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve reads and compiles the script named by m.Main.
func (r *Resolver) Resolve(_ context.Context, m *plugin.Manifest) (plugin.Plugin, error) {
	if !strings.HasSuffix(m.Main, ".lua") {
		return nil, fmt.Errorf("%w: %s", plugin.ErrUnknownPlugin, m.ID)
	}

	path := r.ScriptPath(m)
	src, err := r.fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	proto, err := Compile(src, path)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("lua plugin compiled", zap.String("plugin", m.ID), zap.String("path", path))
	return NewScript(m, path, proto, r.stateOpts...), nil
}

// ScriptPath returns the file m.Main refers to.
func (r *Resolver) ScriptPath(m *plugin.Manifest) string {
	if strings.HasPrefix(m.Main, "/") {
		return m.Main
	}
	dir := m.Dir()
	if dir == "" {
		dir = r.fsys.Join(r.extensionRoot, m.ID)
	}
	return r.fsys.Join(dir, m.Main)
}

// Compile parses and compiles a Lua chunk.
func Compile(src []byte, name string) (*lua.FunctionProto, error) {
	chunk, err := parse.Parse(bytes.NewReader(src), name)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", name, err)
	}
	return proto, nil
}
