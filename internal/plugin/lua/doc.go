// Package lua runs plugins written in Lua.
//
// A Resolver turns manifests whose main entry ends in ".lua" into Script
// plugins. Chained after a builtin registry it lets the plugin manager
// load scripts discovered on disk:
//
//	resolver := plugin.Chain{builtin, lua.NewResolver(fsys)}
//
// A script returns a table with activate and deactivate functions, or
// defines them as globals:
//
//	local M = {}
//
//	function M.activate(ctx)
//	    ctx.commands.register("wordCount.count", function(text)
//	        local n = 0
//	        for _ in string.gmatch(text or "", "%S+") do n = n + 1 end
//	        return n
//	    end)
//	    ctx.events.on("file.saved", function(path)
//	        ctx.log.info("saved " .. path)
//	    end)
//	end
//
//	return M
//
// The ctx table exposes commands (register, execute), events (on, emit),
// ui (show_message, show_input_box, show_quick_pick), global_state and
// workspace_state (get, set, keys), fs (read, write, exists) and log.
// Everything registered through ctx is released when the plugin
// deactivates.
//
// # Sandbox
//
// Only the base, string, table and math libraries are opened. dofile,
// loadfile, load and loadstring are removed, print writes to the plugin
// logger and require resolves the opened libraries only.
//
// # Concurrency
//
// Each activation owns a State whose LState lives on one goroutine.
// Command handlers run synchronously through it; event listeners are
// queued and run asynchronously. Calls made from Lua back into the same
// state run inline.
package lua
