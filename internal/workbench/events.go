package workbench

import "github.com/dshills/texforge/internal/fs"

// Events emitted by the workbench on the shared bus. File event payloads
// are maps so Lua listeners receive them as tables.
const (
	// EventFileOpened carries {"uri": path} when the host opens a resource.
	EventFileOpened = "file.opened"

	// EventFileSaved carries the saved path as a string.
	EventFileSaved = "file.saved"

	// EventFileChanged carries {"uri": path, "op": change} for workspace
	// changes reported by the file system watcher.
	EventFileChanged = "file.changed"

	// EventStarted carries a Report once startup has finished.
	EventStarted = "workbench.started"

	// EventStopped is emitted after every plugin has been shut down.
	EventStopped = "workbench.stopped"
)

func fileOpened(uri string) map[string]any {
	return map[string]any{"uri": uri}
}

func fileChanged(ev fs.Event) map[string]any {
	return map[string]any{"uri": ev.Path, "op": ev.Op.String()}
}
