// Package pdfviewer is the builtin plugin that previews compiled PDF
// documents.
package pdfviewer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/dshills/texforge/internal/customeditor"
	"github.com/dshills/texforge/internal/menu"
	"github.com/dshills/texforge/internal/plugin"
)

// Plugin and contribution ids.
const (
	ID       = "pdf-viewer"
	ViewType = "pdfViewer.preview"

	CommandOpen      = "pdfViewer.open"
	CommandZoomIn    = "pdfViewer.zoomIn"
	CommandZoomOut   = "pdfViewer.zoomOut"
	CommandResetZoom = "pdfViewer.resetZoom"
)

// Events emitted by the viewer.
const (
	EventOpened      = "pdfViewer.opened"
	EventZoomChanged = "pdfViewer.zoomChanged"
)

// Zoom levels, in percent.
const (
	DefaultZoom = 100
	ZoomStep    = 25
	MinZoom     = 25
	MaxZoom     = 400
)

var (
	// ErrNotPDF is returned when content lacks a PDF header.
	ErrNotPDF = errors.New("not a PDF document")

	// ErrNoDocument is returned by pdfViewer.open without a path.
	ErrNoDocument = errors.New("no document given")
)

var pdfHeader = []byte("%PDF-")

// pagePattern matches page objects but not the /Pages tree nodes.
var pagePattern = regexp.MustCompile(`/Type\s*/Page\b`)

// Document is what the preview editor renders for a PDF resource.
type Document struct {
	URI   string `json:"uri"`
	Size  int    `json:"size"`
	Pages int    `json:"pages"`
	Zoom  int    `json:"zoom"`
}

// Manifest returns the viewer's manifest.
func Manifest() *plugin.Manifest {
	return &plugin.Manifest{
		ID:               ID,
		Name:             "PDF Viewer",
		Version:          "1.0.0",
		Description:      "View PDF documents in the IDE",
		Publisher:        "texforge",
		ActivationEvents: []string{"onCustomEditor:" + ViewType},
		Contributes: plugin.Contributions{
			Commands: []plugin.CommandContribution{
				{Command: CommandOpen, Title: "Open PDF", Category: "PDF"},
				{Command: CommandZoomIn, Title: "Zoom In", Category: "PDF"},
				{Command: CommandZoomOut, Title: "Zoom Out", Category: "PDF"},
				{Command: CommandResetZoom, Title: "Reset Zoom", Category: "PDF"},
			},
			Menus: map[string][]menu.Item{
				"editor/title": {
					{Command: CommandZoomOut, Title: "Zoom Out", When: "activeCustomEditor == " + ViewType, Group: "navigation", Order: 1},
					{Command: CommandZoomIn, Title: "Zoom In", When: "activeCustomEditor == " + ViewType, Group: "navigation", Order: 2},
				},
				"explorer/context": {
					{Command: CommandOpen, Title: "Open PDF", When: "resourceExtname == .pdf", Group: "navigation"},
				},
			},
			CustomEditors: []plugin.CustomEditorContribution{{
				ViewType:    ViewType,
				DisplayName: "PDF Preview",
				Selector:    []customeditor.Selector{{FilenamePattern: "*.pdf"}},
				Priority:    "default",
			}},
		},
	}
}

// Viewer is the PDF viewer plugin. It keeps the zoom level and the last
// opened document.
type Viewer struct {
	plugin.Base

	mu      sync.Mutex
	pc      *plugin.Context
	zoom    int
	current string
}

// New is the plugin.Factory for the viewer.
func New(m *plugin.Manifest) (plugin.Plugin, error) {
	return &Viewer{Base: plugin.NewBase(m), zoom: DefaultZoom}, nil
}

// Activate registers the commands, the preview editor and the file.opened
// listener.
func (v *Viewer) Activate(_ context.Context, pc *plugin.Context) error {
	v.mu.Lock()
	v.pc = pc
	v.zoom = DefaultZoom
	v.mu.Unlock()

	commands := map[string]func(context.Context, ...any) (any, error){
		CommandOpen:      v.open,
		CommandZoomIn:    v.step(ZoomStep),
		CommandZoomOut:   v.step(-ZoomStep),
		CommandResetZoom: v.resetZoom,
	}
	for id, handler := range commands {
		if err := pc.RegisterCommand(id, handler); err != nil {
			return err
		}
	}

	if err := pc.RegisterContributedEditor(ViewType, v.render); err != nil {
		return err
	}
	return pc.On("file.opened", v.onFileOpened)
}

// Deactivate forgets the open document.
func (v *Viewer) Deactivate(context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pc = nil
	v.current = ""
	return nil
}

// Zoom returns the current zoom level.
func (v *Viewer) Zoom() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.zoom
}

// Current returns the uri of the last opened document.
func (v *Viewer) Current() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

func (v *Viewer) active() (*plugin.Context, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.pc == nil {
		return nil, fmt.Errorf("%s: %w", ID, plugin.ErrNotActive)
	}
	return v.pc, nil
}

// render builds the Document for a PDF resource.
func (v *Viewer) render(uri string, content []byte) (any, error) {
	if !bytes.HasPrefix(content, pdfHeader) {
		return nil, fmt.Errorf("%s: %w", uri, ErrNotPDF)
	}
	return Document{
		URI:   uri,
		Size:  len(content),
		Pages: len(pagePattern.FindAllIndex(content, -1)),
		Zoom:  v.Zoom(),
	}, nil
}

// open reads the document at args[0] through the file system and renders
// it with the registered preview editor.
func (v *Viewer) open(_ context.Context, args ...any) (any, error) {
	pc, err := v.active()
	if err != nil {
		return nil, err
	}
	uri, _ := firstString(args)
	if uri == "" {
		pc.Logger.Warn("no uri provided for pdf open")
		return nil, ErrNoDocument
	}

	content, err := pc.FileSystem.ReadFile(uri)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", uri, err)
	}
	provider, ok := pc.CustomEditors.CustomEditor(uri)
	if !ok {
		provider, ok = pc.CustomEditors.CustomEditorByViewType(ViewType)
	}
	if !ok {
		return nil, fmt.Errorf("open %s: no editor for %s", uri, ViewType)
	}
	doc, err := provider.Render(uri, content)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	v.current = uri
	v.mu.Unlock()

	pc.Logger.Info("pdf opened", zap.String("uri", uri))
	pc.Events.Emit(EventOpened, doc)
	return doc, nil
}

func (v *Viewer) step(delta int) func(context.Context, ...any) (any, error) {
	return func(context.Context, ...any) (any, error) {
		return v.setZoom(func(z int) int { return min(max(z+delta, MinZoom), MaxZoom) })
	}
}

func (v *Viewer) resetZoom(context.Context, ...any) (any, error) {
	return v.setZoom(func(int) int { return DefaultZoom })
}

func (v *Viewer) setZoom(next func(int) int) (any, error) {
	pc, err := v.active()
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	v.zoom = next(v.zoom)
	zoom := v.zoom
	v.mu.Unlock()

	pc.Events.Emit(EventZoomChanged, zoom)
	return zoom, nil
}

// onFileOpened notes PDF documents opened elsewhere in the workbench. The
// payload is either a path or a map with a "uri" key.
func (v *Viewer) onFileOpened(data any) {
	var uri string
	switch d := data.(type) {
	case string:
		uri = d
	case map[string]any:
		uri, _ = d["uri"].(string)
	}
	if !CanHandle(uri) {
		return
	}

	v.mu.Lock()
	v.current = uri
	pc := v.pc
	v.mu.Unlock()
	if pc != nil {
		pc.Logger.Debug("pdf file opened", zap.String("uri", uri))
	}
}

// CanHandle reports whether uri names a PDF file.
func CanHandle(uri string) bool {
	return strings.HasSuffix(strings.ToLower(uri), ".pdf")
}

func firstString(args []any) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	s, ok := args[0].(string)
	return s, ok
}
