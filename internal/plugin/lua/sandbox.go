package lua

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// removedGlobals load code from outside the plugin script.
var removedGlobals = []string{"dofile", "loadfile", "load", "loadstring", "module"}

// safeModules may be required by name; they are already open as globals.
var safeModules = map[string]bool{
	"string": true,
	"table":  true,
	"math":   true,
}

// openSafeLibraries opens the base, table, string and math libraries.
// io, os, debug and package are never opened.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// installSandbox strips file loading from the base library, sends print to
// logger and replaces require with a lookup of the safe modules.
func installSandbox(L *lua.LState, logger *zap.Logger) {
	for _, name := range removedGlobals {
		L.SetGlobal(name, lua.LNil)
	}

	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		parts := make([]string, L.GetTop())
		for i := range parts {
			parts[i] = L.ToStringMeta(L.Get(i + 1)).String()
		}
		logger.Info(strings.Join(parts, "\t"), zap.String("source", "lua"))
		return 0
	}))

	L.SetGlobal("require", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		if !safeModules[name] {
			L.RaiseError("module %q is not available", name)
			return 0
		}
		L.Push(L.GetGlobal(name))
		return 1
	}))
}
