package ui

import (
	"context"
	"slices"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/dshills/texforge/internal/dispose"
)

// Message is a message recorded by Console.
type Message struct {
	Text     string
	Severity Severity
}

// Console is a Provider that writes messages to a zap logger and answers
// prompts from scripted queues. An empty queue behaves like a dismissed
// prompt.
type Console struct {
	mu         sync.Mutex
	messages   []Message
	inputs     []string
	picks      []string
	containers map[string]registered[ViewContainer]
	views      map[string]registered[View]
	seq        uint64
	logger     *zap.Logger
}

type registered[T any] struct {
	value T
	seq   uint64
}

// Option configures a Console.
type Option func(*Console)

// WithLogger sets the console logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Console) {
		if logger != nil {
			c.logger = logger.With(zap.String("component", "ui"))
		}
	}
}

// NewConsole creates a Console with empty answer queues.
func NewConsole(opts ...Option) *Console {
	c := &Console{
		containers: make(map[string]registered[ViewContainer]),
		views:      make(map[string]registered[View]),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// QueueInput appends answers consumed by ShowInputBox.
func (c *Console) QueueInput(values ...string) {
	c.mu.Lock()
	c.inputs = append(c.inputs, values...)
	c.mu.Unlock()
}

// QueuePick appends answers consumed by ShowQuickPick.
func (c *Console) QueuePick(values ...string) {
	c.mu.Lock()
	c.picks = append(c.picks, values...)
	c.mu.Unlock()
}

// ShowMessage records and logs msg at a level matching severity.
func (c *Console) ShowMessage(msg string, severity Severity) {
	c.mu.Lock()
	c.messages = append(c.messages, Message{Text: msg, Severity: severity})
	c.mu.Unlock()

	fields := []zap.Field{zap.String("severity", severity.String())}
	switch severity {
	case SeverityWarning:
		c.logger.Warn(msg, fields...)
	case SeverityError:
		c.logger.Error(msg, fields...)
	default:
		c.logger.Info(msg, fields...)
	}
}

// Messages returns every message shown so far.
func (c *Console) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.messages)
}

// ShowInputBox pops the next queued input. The default value in opts is
// returned when the queued answer is empty.
func (c *Console) ShowInputBox(ctx context.Context, opts InputOptions) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.inputs) == 0 {
		c.logger.Debug("input box dismissed", zap.String("prompt", opts.Prompt))
		return "", false, nil
	}
	v := c.inputs[0]
	c.inputs = c.inputs[1:]
	if v == "" {
		v = opts.Value
	}
	return v, true, nil
}

// ShowQuickPick pops the next queued pick. A queued answer that is not among
// items dismisses the prompt.
func (c *Console) ShowQuickPick(ctx context.Context, items []string, opts QuickPickOptions) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.picks) == 0 {
		c.logger.Debug("quick pick dismissed", zap.String("placeholder", opts.Placeholder))
		return "", false, nil
	}
	v := c.picks[0]
	c.picks = c.picks[1:]
	if !slices.Contains(items, v) {
		c.logger.Warn("quick pick answer not offered", zap.String("answer", v))
		return "", false, nil
	}
	return v, true, nil
}

// RegisterViewContainer records container, replacing any with the same id.
func (c *Console) RegisterViewContainer(container ViewContainer) dispose.Disposable {
	c.mu.Lock()
	_, replaced := c.containers[container.ID]
	c.seq++
	seq := c.seq
	c.containers[container.ID] = registered[ViewContainer]{value: container, seq: seq}
	c.mu.Unlock()

	if replaced {
		c.logger.Warn("view container already registered, replacing", zap.String("container", container.ID))
	}
	return dispose.Func(func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		if r, ok := c.containers[container.ID]; ok && r.seq == seq {
			delete(c.containers, container.ID)
		}
		return nil
	})
}

// RegisterView records view under id, replacing any with the same id.
func (c *Console) RegisterView(id string, view View) dispose.Disposable {
	c.mu.Lock()
	_, replaced := c.views[id]
	c.seq++
	seq := c.seq
	c.views[id] = registered[View]{value: view, seq: seq}
	c.mu.Unlock()

	if replaced {
		c.logger.Warn("view already registered, replacing", zap.String("view", id))
	}
	return dispose.Func(func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		if r, ok := c.views[id]; ok && r.seq == seq {
			delete(c.views, id)
		}
		return nil
	})
}

// ViewContainers returns the registered containers sorted by id.
func (c *Console) ViewContainers() []ViewContainer {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ViewContainer, 0, len(c.containers))
	for _, r := range c.containers {
		out = append(out, r.value)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Views returns the registered views sorted by id.
func (c *Console) Views() []View {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]View, 0, len(c.views))
	for _, r := range c.views {
		out = append(out, r.value)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
