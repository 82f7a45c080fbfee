// Package plugin provides the plugin manager of the texforge workbench.
//
// A plugin is described by a Manifest and implemented by a Plugin. The
// Manager resolves manifests into plugins through an injected Resolver and
// drives each plugin through its lifecycle:
//
//	Unloaded ──load──▶ Loaded ──activate──▶ Active
//	    ▲                │  ▲                  │
//	    └─────unload─────┘  └────deactivate────┘
//
// Every activation receives a fresh Context. The context references the
// shared services (event bus, service registry, command service, custom
// editor registry) and host collaborators (UI, menus, file system) and owns
// a dispose.Store of subscriptions. Whatever a plugin pushes into that store
// is released exactly once, when the plugin deactivates, so one plugin's
// cleanup never touches another plugin's registrations.
//
// # Resolution
//
// Manifests are turned into plugins by a Resolver. Registry maps ids to
// factories for plugins compiled into the host; the lua subpackage resolves
// manifests whose main entry is a Lua script. Chain combines both:
//
//	builtin := plugin.NewRegistry()
//	builtin.Register("pdf-viewer", pdfviewer.New)
//
//	mgr := plugin.NewManager(deps, plugin.WithResolver(plugin.Chain{
//	    builtin,
//	    lua.NewResolver(fsys),
//	}))
//
// An id no resolver recognises fails to load with ErrUnknownPlugin.
//
// # Manifest
//
// Manifests may be JSON, YAML or TOML:
//
//	{
//	  "id": "pdf-viewer",
//	  "name": "PDF Viewer",
//	  "version": "1.0.0",
//	  "dependencies": [],
//	  "contributes": {
//	    "commands": [{"command": "pdfViewer.open", "title": "Open PDF"}],
//	    "customEditors": [{
//	      "viewType": "pdfViewer.preview",
//	      "displayName": "PDF Preview",
//	      "selector": [{"filenamePattern": "*.pdf"}]
//	    }]
//	  }
//	}
//
// Command, menu, view container and view contributions are registered
// into the activation context before Activate runs.
//
// # Events
//
// Lifecycle transitions are published on the event bus as EventLoaded,
// EventActivated, EventDeactivated, EventUnloaded and EventReloaded with a
// LifecycleEvent payload. Failures are both returned to the caller and
// published as EventError with an ErrorEvent payload.
package plugin
