package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/texforge/internal/command"
	"github.com/dshills/texforge/internal/metrics"
	"github.com/dshills/texforge/internal/plugin"
)

type fixture struct {
	mgr     *plugin.Manager
	srv     *Server
	metrics *metrics.Collector
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	reg := plugin.NewRegistry()
	reg.Register("word-count", func(m *plugin.Manifest) (plugin.Plugin, error) {
		return &plugin.Funcs{
			Base: plugin.NewBase(m),
			OnActivate: func(_ context.Context, pc *plugin.Context) error {
				return pc.RegisterCommand("wordCount.count", func(_ context.Context, args ...any) (any, error) {
					if len(args) == 0 {
						return 0, nil
					}
					s, _ := args[0].(string)
					return len(strings.Fields(s)), nil
				})
			},
		}, nil
	})
	reg.Register("broken", func(m *plugin.Manifest) (plugin.Plugin, error) {
		return &plugin.Funcs{
			Base:       plugin.NewBase(m),
			OnActivate: func(context.Context, *plugin.Context) error { return errors.New("boom") },
		}, nil
	})

	collector := metrics.NewCollector("test", nil)
	mgr := plugin.NewManager(plugin.Dependencies{}, plugin.WithResolver(reg), plugin.WithMetrics(collector))
	for _, id := range []string{"word-count", "broken"} {
		_, err := mgr.LoadPlugin(ctx, &plugin.Manifest{ID: id, Name: id, Version: "1.0.0"})
		require.NoError(t, err)
	}
	require.NoError(t, mgr.ActivatePlugin(ctx, "word-count"))

	deps := mgr.Dependencies()
	srv := New(mgr, deps.Commands, WithMetrics(collector.Handler(), collector))
	return &fixture{mgr: mgr, srv: srv, metrics: collector}
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decode[struct {
		OK      bool         `json:"ok"`
		Plugins plugin.Stats `json:"plugins"`
	}](t, rec)
	assert.True(t, body.OK)
	assert.Equal(t, plugin.Stats{Total: 2, Active: 1, Loaded: 1}, body.Plugins)
}

func TestListPlugins(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/plugins", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[struct {
		Plugins []struct {
			ID    string `json:"id"`
			State string `json:"state"`
		} `json:"plugins"`
	}](t, rec)
	states := make(map[string]string)
	for _, p := range body.Plugins {
		states[p.ID] = p.State
	}
	assert.Equal(t, map[string]string{"word-count": "active", "broken": "loaded"}, states)
}

func TestPluginLifecycle(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/plugins/word-count/deactivate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "loaded", decode[map[string]any](t, rec)["state"])
	assert.False(t, f.mgr.IsActive("word-count"))

	rec = f.do(t, http.MethodPost, "/plugins/word-count/activate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.mgr.IsActive("word-count"))

	rec = f.do(t, http.MethodPost, "/plugins/word-count/reload", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.mgr.IsActive("word-count"))

	rec = f.do(t, http.MethodPost, "/plugins/missing/activate", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode[errorBody](t, rec).Error, "plugin not found")

	rec = f.do(t, http.MethodPost, "/plugins/broken/activate", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decode[errorBody](t, rec).Error, "boom")
}

func TestCommands(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/commands?q=word", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Commands []command.Command `json:"commands"`
	}](t, rec)
	require.Len(t, body.Commands, 1)
	assert.Equal(t, "wordCount.count", body.Commands[0].ID)

	rec = f.do(t, http.MethodGet, "/commands?q=nothing-matches", "")
	assert.JSONEq(t, `{"commands": []}`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/commands/wordCount.count", `{"args": ["one two three"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"result": 3}`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/commands/wordCount.count", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"result": 0}`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/commands/wordCount.count", `{"args":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/commands/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/plugins", "")
	f.do(t, http.MethodPost, "/commands/wordCount.count", `{"args": ["a b"]}`)

	rec := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `test_http_requests_total{method="GET",route="/plugins/",status="200"} 1`)
	assert.Contains(t, body, `test_command_executions_total{command="wordCount.count",status="ok"} 1`)
	assert.Contains(t, body, `test_plugin_lifecycle_total{operation="activate",plugin="word-count",status="ok"} 1`)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{plugin.ErrPluginNotFound, http.StatusNotFound},
		{command.ErrCommandNotFound, http.StatusNotFound},
		{plugin.ErrTransitionInProgress, http.StatusConflict},
		{plugin.ErrMissingDependency, http.StatusUnprocessableEntity},
		{plugin.ErrActivation, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(errors.Join(errors.New("wrapped"), tt.err)), tt.err.Error())
	}
}

func TestListenAndServe(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.srv.ListenAndServe(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
