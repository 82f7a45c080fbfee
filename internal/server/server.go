// Package server exposes the workbench over HTTP for host-side
// introspection and control: health, metrics, plugin lifecycle and command
// execution.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/dshills/texforge/internal/command"
	"github.com/dshills/texforge/internal/plugin"
)

// Plugins is the part of the plugin manager the server drives.
type Plugins interface {
	Infos() []plugin.Info
	Stats() plugin.Stats
	ActivatePlugin(ctx context.Context, id string) error
	DeactivatePlugin(ctx context.Context, id string) error
	ReloadPlugin(ctx context.Context, id string, manifest *plugin.Manifest) error
}

// Commands is the part of the command service the server drives.
type Commands interface {
	Commands() []command.Command
	SearchCommands(query string) []command.Command
	ExecuteCommand(ctx context.Context, id string, args ...any) (any, error)
}

// RequestRecorder records served requests. *metrics.Collector satisfies it.
type RequestRecorder interface {
	RecordHTTPRequest(method, route string, code int, d time.Duration)
}

var (
	_ Plugins  = (*plugin.Manager)(nil)
	_ Commands = (*command.Service)(nil)
)

// maxBodyBytes bounds command argument payloads.
const maxBodyBytes = 1 << 20

// Server routes HTTP requests to the plugin manager and command service.
type Server struct {
	plugins  Plugins
	commands Commands
	metrics  http.Handler
	recorder RequestRecorder
	logger   *zap.Logger
	router   chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger.With(zap.String("component", "http"))
		}
	}
}

// WithMetrics serves h on /metrics and reports every request to rec.
// Either may be nil.
func WithMetrics(h http.Handler, rec RequestRecorder) Option {
	return func(s *Server) {
		s.metrics = h
		s.recorder = rec
	}
}

// New creates a server over plugins and commands.
func New(plugins Plugins, commands Commands, opts ...Option) *Server {
	s := &Server{
		plugins:  plugins,
		commands: commands,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/plugins", func(r chi.Router) {
		r.Get("/", s.listPlugins)
		r.Post("/{id}/activate", s.lifecycle(s.plugins.ActivatePlugin))
		r.Post("/{id}/deactivate", s.lifecycle(s.plugins.DeactivatePlugin))
		r.Post("/{id}/reload", s.lifecycle(func(ctx context.Context, id string) error {
			return s.plugins.ReloadPlugin(ctx, id, nil)
		}))
	})

	r.Route("/commands", func(r chi.Router) {
		r.Get("/", s.listCommands)
		r.Post("/{id}", s.executeCommand)
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          zap.NewStdLog(s.logger),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// observe logs each request and reports it to the recorder under its
// route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		d := time.Since(start)
		if s.recorder != nil {
			s.recorder.RecordHTTPRequest(r.Method, route, ww.Status(), d)
		}
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", d),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "plugins": s.plugins.Stats()})
}

func (s *Server) listPlugins(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"plugins": s.plugins.Infos(),
		"stats":   s.plugins.Stats(),
	})
}

func (s *Server) lifecycle(op func(ctx context.Context, id string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := op(r.Context(), id); err != nil {
			s.writeError(w, err)
			return
		}
		for _, info := range s.plugins.Infos() {
			if info.ID == id {
				writeJSON(w, http.StatusOK, info)
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) listCommands(w http.ResponseWriter, r *http.Request) {
	var cmds []command.Command
	if q := r.URL.Query().Get("q"); q != "" {
		cmds = s.commands.SearchCommands(q)
	} else {
		cmds = s.commands.Commands()
	}
	if cmds == nil {
		cmds = []command.Command{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"commands": cmds})
}

// executeRequest is the body of POST /commands/{id}. An empty body runs
// the command without arguments.
type executeRequest struct {
	Args []any `json:"args"`
}

func (s *Server) executeCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req executeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return
	}

	result, err := s.commands.ExecuteCommand(r.Context(), id, req.Args...)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, code, errorBody{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, plugin.ErrPluginNotFound), errors.Is(err, command.ErrCommandNotFound):
		return http.StatusNotFound
	case errors.Is(err, plugin.ErrTransitionInProgress):
		return http.StatusConflict
	case errors.Is(err, plugin.ErrMissingDependency), errors.Is(err, plugin.ErrResolution):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
