package ui

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestShowMessageLevels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	c := NewConsole(WithLogger(zap.New(core)))

	c.ShowMessage("built", SeveritySuccess)
	c.ShowMessage("careful", SeverityWarning)
	c.ShowMessage("broken", SeverityError)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "success", entries[0].ContextMap()["severity"])

	msgs := c.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, Message{Text: "careful", Severity: SeverityWarning}, msgs[1])
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in   string
		want Severity
	}{
		{"info", SeverityInfo},
		{"success", SeveritySuccess},
		{"warn", SeverityWarning},
		{"warning", SeverityWarning},
		{"error", SeverityError},
		{"bogus", SeverityInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSeverity(tt.in))
		})
	}
}

func TestShowInputBox(t *testing.T) {
	c := NewConsole()
	ctx := context.Background()

	_, ok, err := c.ShowInputBox(ctx, InputOptions{Prompt: "name"})
	require.NoError(t, err)
	assert.False(t, ok)

	c.QueueInput("main.tex", "")
	v, ok, err := c.ShowInputBox(ctx, InputOptions{Prompt: "name"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "main.tex", v)

	v, ok, err = c.ShowInputBox(ctx, InputOptions{Value: "default.tex"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "default.tex", v)
}

func TestShowInputBoxCanceled(t *testing.T) {
	c := NewConsole()
	c.QueueInput("x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok, err := c.ShowInputBox(ctx, InputOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
}

func TestShowQuickPick(t *testing.T) {
	c := NewConsole()
	ctx := context.Background()
	c.QueuePick("b", "z")

	v, ok, err := c.ShowQuickPick(ctx, []string{"a", "b"}, QuickPickOptions{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "b", v)

	_, ok, err = c.ShowQuickPick(ctx, []string{"a", "b"}, QuickPickOptions{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestViewRegistration(t *testing.T) {
	c := NewConsole()
	dc := c.RegisterViewContainer(ViewContainer{ID: "outline", Title: "Outline"})
	dv := c.RegisterView("outline.tree", View{ID: "outline.tree", Name: "Tree", Container: "outline"})

	assert.Len(t, c.ViewContainers(), 1)
	assert.Len(t, c.Views(), 1)

	stale := c.RegisterView("outline.tree", View{ID: "outline.tree", Name: "Old"})
	replacement := c.RegisterView("outline.tree", View{ID: "outline.tree", Name: "New"})
	require.NoError(t, stale.Dispose())
	require.Len(t, c.Views(), 1)
	assert.Equal(t, "New", c.Views()[0].Name)

	require.NoError(t, dc.Dispose())
	require.NoError(t, dv.Dispose())
	require.NoError(t, replacement.Dispose())
	assert.Empty(t, c.ViewContainers())
	assert.Empty(t, c.Views())
}
