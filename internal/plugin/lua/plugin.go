package lua

import (
	"context"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/texforge/internal/plugin"
)

// Script is a plugin implemented by a Lua chunk. The chunk may return a
// table holding activate and deactivate functions, or define them as
// globals. Each activation runs the chunk in a fresh State.
type Script struct {
	plugin.Base

	path  string
	proto *lua.FunctionProto
	opts  []StateOption

	mu     sync.Mutex
	state  *State
	module *lua.LTable
}

// NewScript creates a plugin from a compiled chunk.
func NewScript(m *plugin.Manifest, path string, proto *lua.FunctionProto, opts ...StateOption) *Script {
	return &Script{
		Base:  plugin.NewBase(m),
		path:  path,
		proto: proto,
		opts:  opts,
	}
}

// Path returns the script file.
func (s *Script) Path() string {
	return s.path
}

// Activate runs the chunk and then its activate function with the ctx table.
func (s *Script) Activate(ctx context.Context, pc *plugin.Context) error {
	opts := append([]StateOption{WithOutput(pc.Logger)}, s.opts...)
	st := NewState(opts...)
	a := &api{pc: pc, st: st}

	var mod *lua.LTable
	err := st.Do(ctx, func(L *lua.LState) error {
		L.Push(L.NewFunctionFromProto(s.proto))
		if err := L.PCall(0, 1, nil); err != nil {
			return fmt.Errorf("%s: %w", s.path, err)
		}
		mod, _ = L.Get(-1).(*lua.LTable)
		L.Pop(1)

		fn := lookup(L, mod, "activate")
		if fn == nil {
			return nil
		}
		L.Push(fn)
		L.Push(a.table(L))
		return L.PCall(1, 0, nil)
	})
	if err != nil {
		st.Close()
		return err
	}

	s.mu.Lock()
	s.state, s.module = st, mod
	s.mu.Unlock()
	return nil
}

// Deactivate calls the script's deactivate function, if any, and closes
// the state.
func (s *Script) Deactivate(ctx context.Context) error {
	s.mu.Lock()
	st, mod := s.state, s.module
	s.state, s.module = nil, nil
	s.mu.Unlock()

	if st == nil {
		return nil
	}
	defer st.Close()

	return st.Do(ctx, func(L *lua.LState) error {
		fn := lookup(L, mod, "deactivate")
		if fn == nil {
			return nil
		}
		L.Push(fn)
		return L.PCall(0, 0, nil)
	})
}

// lookup finds name in mod, falling back to a global function.
func lookup(L *lua.LState, mod *lua.LTable, name string) *lua.LFunction {
	if mod != nil {
		if fn, ok := mod.RawGetString(name).(*lua.LFunction); ok {
			return fn
		}
	}
	fn, _ := L.GetGlobal(name).(*lua.LFunction)
	return fn
}
