package lua

import (
	"context"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dshills/texforge/internal/plugin"
	"github.com/dshills/texforge/internal/state"
	"github.com/dshills/texforge/internal/ui"
)

// api builds the ctx table passed to a script's activate function. Every
// registration it makes is tracked by the activation context.
type api struct {
	pc *plugin.Context
	st *State
}

func (a *api) table(L *lua.LState) *lua.LTable {
	ctx := L.NewTable()
	ctx.RawSetString("plugin_id", lua.LString(a.pc.PluginID))
	ctx.RawSetString("activation_id", lua.LString(a.pc.ActivationID))
	ctx.RawSetString("workspace_uri", lua.LString(a.pc.WorkspaceURI))
	ctx.RawSetString("extension_uri", lua.LString(a.pc.ExtensionURI))

	ctx.RawSetString("commands", module(L, map[string]lua.LGFunction{
		"register": a.registerCommand,
		"execute":  a.executeCommand,
	}))
	ctx.RawSetString("events", module(L, map[string]lua.LGFunction{
		"on":   a.on,
		"emit": a.emit,
	}))
	ctx.RawSetString("ui", module(L, map[string]lua.LGFunction{
		"show_message":    a.showMessage,
		"show_input_box":  a.showInputBox,
		"show_quick_pick": a.showQuickPick,
	}))
	ctx.RawSetString("global_state", mementoModule(L, a.pc.GlobalState))
	ctx.RawSetString("workspace_state", mementoModule(L, a.pc.WorkspaceState))
	ctx.RawSetString("fs", module(L, map[string]lua.LGFunction{
		"read":   a.readFile,
		"write":  a.writeFile,
		"exists": a.exists,
	}))
	ctx.RawSetString("log", module(L, map[string]lua.LGFunction{
		"debug": a.log(zap.DebugLevel),
		"info":  a.log(zap.InfoLevel),
		"warn":  a.log(zap.WarnLevel),
		"error": a.log(zap.ErrorLevel),
	}))
	return ctx
}

func module(L *lua.LState, funcs map[string]lua.LGFunction) *lua.LTable {
	return L.SetFuncs(L.NewTable(), funcs)
}

// callContext returns the context of the running call. Passing it on lets
// Go code call back into the same state without queueing.
func callContext(L *lua.LState) context.Context {
	if ctx := L.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func (a *api) registerCommand(L *lua.LState) int {
	id := L.CheckString(1)
	fn := L.CheckFunction(2)

	err := a.pc.RegisterCommand(id, func(ctx context.Context, args ...any) (any, error) {
		var result any
		err := a.st.Do(ctx, func(L *lua.LState) error {
			L.Push(fn)
			for _, arg := range args {
				L.Push(ToLua(L, arg))
			}
			if err := L.PCall(len(args), 1, nil); err != nil {
				return err
			}
			result = ToGo(L.Get(-1))
			L.Pop(1)
			return nil
		})
		return result, err
	})
	if err != nil {
		return raise(L, "commands.register: %v", err)
	}
	return 0
}

func (a *api) executeCommand(L *lua.LState) int {
	id := L.CheckString(1)
	res, err := a.pc.Commands.ExecuteCommand(callContext(L), id, Args(L, 2)...)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(ToLua(L, res))
	return 1
}

func (a *api) on(L *lua.LState) int {
	name := L.CheckString(1)
	fn := L.CheckFunction(2)

	err := a.pc.On(name, func(data any) {
		err := a.st.Go(func(L *lua.LState) error {
			L.Push(fn)
			L.Push(ToLua(L, data))
			return L.PCall(1, 0, nil)
		})
		if err != nil {
			a.pc.Logger.Warn("failed to deliver event to lua listener",
				zap.String("event", name), zap.Error(err))
		}
	})
	if err != nil {
		return raise(L, "events.on: %v", err)
	}
	return 0
}

func (a *api) emit(L *lua.LState) int {
	a.pc.Events.Emit(L.CheckString(1), ToGo(L.Get(2)))
	return 0
}

func (a *api) showMessage(L *lua.LState) int {
	a.pc.UI.ShowMessage(L.CheckString(1), ui.ParseSeverity(L.OptString(2, "info")))
	return 0
}

func (a *api) showInputBox(L *lua.LState) int {
	opts := ui.InputOptions{}
	if t, ok := L.Get(1).(*lua.LTable); ok {
		opts.Prompt = lua.LVAsString(t.RawGetString("prompt"))
		opts.Placeholder = lua.LVAsString(t.RawGetString("placeholder"))
		opts.Value = lua.LVAsString(t.RawGetString("value"))
	}
	value, ok, err := a.pc.UI.ShowInputBox(callContext(L), opts)
	return pushAnswer(L, value, ok, err)
}

func (a *api) showQuickPick(L *lua.LState) int {
	items := L.CheckTable(1)
	picks := make([]string, 0, items.Len())
	for i := 1; i <= items.Len(); i++ {
		picks = append(picks, lua.LVAsString(items.RawGetInt(i)))
	}
	opts := ui.QuickPickOptions{Placeholder: L.OptString(2, "")}
	value, ok, err := a.pc.UI.ShowQuickPick(callContext(L), picks, opts)
	return pushAnswer(L, value, ok, err)
}

// pushAnswer returns the answer, or nil when dismissed, or nil and the
// error message.
func pushAnswer(L *lua.LState, value string, ok bool, err error) int {
	switch {
	case err != nil:
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	case !ok:
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(value))
	return 1
}

func mementoModule(L *lua.LState, m *state.Memento) *lua.LTable {
	return module(L, map[string]lua.LGFunction{
		"get": func(L *lua.LState) int {
			v, ok := m.Get(L.CheckString(1))
			if !ok {
				L.Push(L.Get(2))
				return 1
			}
			L.Push(ToLua(L, v))
			return 1
		},
		"set": func(L *lua.LState) int {
			key := L.CheckString(1)
			if L.Get(2) == lua.LNil {
				m.Delete(key)
				return 0
			}
			m.Set(key, ToGo(L.Get(2)))
			return 0
		},
		"keys": func(L *lua.LState) int {
			L.Push(ToLua(L, m.Keys()))
			return 1
		},
	})
}

func (a *api) readFile(L *lua.LState) int {
	data, err := a.pc.FileSystem.ReadFile(L.CheckString(1))
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LString(data))
	return 1
}

func (a *api) writeFile(L *lua.LState) int {
	if err := a.pc.FileSystem.WriteFile(L.CheckString(1), []byte(L.CheckString(2))); err != nil {
		L.Push(lua.LFalse)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}

func (a *api) exists(L *lua.LState) int {
	L.Push(lua.LBool(a.pc.FileSystem.Exists(L.CheckString(1))))
	return 1
}

func (a *api) log(level zapcore.Level) lua.LGFunction {
	return func(L *lua.LState) int {
		parts := make([]string, L.GetTop())
		for i := range parts {
			parts[i] = L.ToStringMeta(L.Get(i + 1)).String()
		}
		a.pc.Logger.Log(level, strings.Join(parts, " "), zap.String("source", "lua"))
		return 0
	}
}
