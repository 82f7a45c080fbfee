package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func pong(context.Context, ...any) (any, error) { return "pong", nil }

func TestExecuteCommand(t *testing.T) {
	s := NewService()
	s.RegisterCommand("a.ping", pong)

	got, err := s.ExecuteCommand(context.Background(), "a.ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", got)
}

func TestExecuteCommandPassesArgs(t *testing.T) {
	s := NewService()
	s.RegisterCommand("sum", func(_ context.Context, args ...any) (any, error) {
		total := 0
		for _, a := range args {
			total += a.(int)
		}
		return total, nil
	})

	got, err := s.ExecuteCommand(context.Background(), "sum", 1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 6, got)
}

func TestExecuteCommandNotFound(t *testing.T) {
	s := NewService()
	_, err := s.ExecuteCommand(context.Background(), "y")
	assert.ErrorIs(t, err, ErrCommandNotFound)
	assert.Contains(t, err.Error(), `"y"`)
}

func TestExecuteCommandPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	s := NewService()
	s.RegisterCommand("fail", func(context.Context, ...any) (any, error) { return nil, boom })
	s.RegisterCommand("panic", func(context.Context, ...any) (any, error) { panic("bad") })

	_, err := s.ExecuteCommand(context.Background(), "fail")
	assert.ErrorIs(t, err, boom)

	res, err := s.ExecuteCommand(context.Background(), "panic")
	assert.ErrorIs(t, err, ErrCommandPanic)
	assert.Nil(t, res)
}

func TestRegisterCommandSynthesizesMetadata(t *testing.T) {
	s := NewService()
	s.RegisterCommand("x", pong)

	cmd, ok := s.Command("x")
	require.True(t, ok)
	assert.Equal(t, Command{ID: "x", Title: "x", Category: DefaultCategory}, cmd)
}

func TestReRegisterKeepsMetadataAndWarns(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := NewService(WithLogger(zap.New(core)))

	s.RegisterCommandWithMetadata(Command{ID: "x", Title: "Do X", Category: "Edit"}, pong)
	s.RegisterCommand("x", Fn(func() (any, error) { return "second", nil }))

	cmd, _ := s.Command("x")
	assert.Equal(t, "Do X", cmd.Title)
	assert.Equal(t, "Edit", cmd.Category)

	got, err := s.ExecuteCommand(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "second", got)
	assert.Equal(t, 1, logs.FilterMessage("command already registered, replacing").Len())
}

func TestDisposeRemovesHandlerAndMetadata(t *testing.T) {
	s := NewService()
	d := s.RegisterCommandWithMetadata(Command{ID: "x", Title: "X"}, pong)

	require.NoError(t, d.Dispose())
	require.NoError(t, d.Dispose())
	assert.False(t, s.HasCommand("x"))
	_, ok := s.Command("x")
	assert.False(t, ok)

	_, err := s.ExecuteCommand(context.Background(), "x")
	assert.ErrorIs(t, err, ErrCommandNotFound)
}

func TestStaleDisposeKeepsReplacement(t *testing.T) {
	s := NewService()
	first := s.RegisterCommand("x", pong)
	s.RegisterCommand("x", Fn(func() (any, error) { return "new", nil }))

	require.NoError(t, first.Dispose())
	got, err := s.ExecuteCommand(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "new", got)
}

func TestDeclareCommand(t *testing.T) {
	s := NewService()
	decl := s.DeclareCommand(Command{ID: "pdf.open", Title: "Open PDF", Category: "Viewer"})

	assert.False(t, s.HasCommand("pdf.open"))
	cmd, ok := s.Command("pdf.open")
	require.True(t, ok)
	assert.Equal(t, "Open PDF", cmd.Title)

	s.RegisterCommand("pdf.open", pong)
	cmd, _ = s.Command("pdf.open")
	assert.Equal(t, "Viewer", cmd.Category)

	require.NoError(t, decl.Dispose())
	_, ok = s.Command("pdf.open")
	assert.False(t, ok)
	assert.True(t, s.HasCommand("pdf.open"))

	cmds := s.Commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, DefaultCategory, cmds[0].Category)
}

func TestDiscovery(t *testing.T) {
	s := NewService()
	s.RegisterCommandWithMetadata(Command{ID: "latex.compile", Title: "Compile Document", Category: "Build"}, pong)
	s.RegisterCommandWithMetadata(Command{ID: "pdf.open", Title: "Open PDF", Category: "Viewer"}, pong)
	s.RegisterCommand("misc", pong)

	assert.Equal(t, []string{"latex.compile", "misc", "pdf.open"}, s.CommandIDs())
	assert.Equal(t, 3, s.Size())
	assert.Len(t, s.Commands(), 3)

	build := s.CommandsByCategory("Build")
	require.Len(t, build, 1)
	assert.Equal(t, "latex.compile", build[0].ID)

	assert.Len(t, s.SearchCommands("PDF"), 1)
	assert.Len(t, s.SearchCommands("compile"), 1)
	assert.Len(t, s.SearchCommands("general"), 1)
	assert.Len(t, s.SearchCommands("e"), 3)
	assert.Empty(t, s.SearchCommands("zzz"))
}

func TestUnregisterAndClear(t *testing.T) {
	s := NewService()
	s.RegisterCommand("a", pong)
	s.RegisterCommand("b", pong)

	assert.True(t, s.UnregisterCommand("a"))
	assert.False(t, s.UnregisterCommand("a"))
	_, ok := s.Command("a")
	assert.False(t, ok)

	s.Clear()
	assert.Equal(t, 0, s.Size())
	assert.Empty(t, s.Commands())
}

type recordingEmitter struct{ events []ExecutedEvent }

func (r *recordingEmitter) Emit(name string, data any) {
	if name == EventExecuted {
		r.events = append(r.events, data.(ExecutedEvent))
	}
}

type recordingObserver struct{ ids []string }

func (r *recordingObserver) ObserveCommand(id string, _ time.Duration, _ error) {
	r.ids = append(r.ids, id)
}

func TestExecutionIsReported(t *testing.T) {
	em := &recordingEmitter{}
	ob := &recordingObserver{}
	s := NewService(WithEmitter(em), WithObserver(ob))
	s.RegisterCommand("ok", pong)
	s.RegisterCommand("fail", func(context.Context, ...any) (any, error) { return nil, errors.New("x") })

	_, _ = s.ExecuteCommand(context.Background(), "ok")
	_, _ = s.ExecuteCommand(context.Background(), "fail")
	_, _ = s.ExecuteCommand(context.Background(), "missing")

	assert.Equal(t, []string{"ok", "fail"}, ob.ids)
	require.Len(t, em.events, 2)
	assert.NoError(t, em.events[0].Err)
	assert.Error(t, em.events[1].Err)
}
