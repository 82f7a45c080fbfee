package command

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/texforge/internal/dispose"
)

// Service stores command handlers and their metadata. Every registration is
// keyed by id; the last registration wins. It is safe for concurrent use.
type Service struct {
	mu       sync.RWMutex
	handlers map[string]handlerEntry
	metadata map[string]metaEntry
	seq      uint64

	emitter  Emitter
	observer Observer
	logger   *zap.Logger
}

// handlerEntry and metaEntry carry the sequence number of the registration
// that created them so a stale Disposable never removes a replacement.
type handlerEntry struct {
	handler Handler
	seq     uint64
}

type metaEntry struct {
	cmd Command
	seq uint64
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger.With(zap.String("component", "commands"))
		}
	}
}

// WithEmitter publishes EventExecuted after each execution.
func WithEmitter(e Emitter) Option {
	return func(s *Service) {
		s.emitter = e
	}
}

// WithObserver reports executions to o.
func WithObserver(o Observer) Option {
	return func(s *Service) {
		s.observer = o
	}
}

// NewService creates an empty command service.
func NewService(opts ...Option) *Service {
	s := &Service{
		handlers: make(map[string]handlerEntry),
		metadata: make(map[string]metaEntry),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterCommand stores handler under id. If no metadata exists for id,
// minimal metadata (title = id, category = General) is synthesized; existing
// metadata is kept. Replacing a handler logs a warning.
//
// Disposing the returned handle removes the handler and its metadata, unless
// the id has since been registered again.
func (s *Service) RegisterCommand(id string, handler Handler) dispose.Disposable {
	s.mu.Lock()
	_, replaced := s.handlers[id]
	s.seq++
	seq := s.seq
	s.handlers[id] = handlerEntry{handler: handler, seq: seq}
	if _, ok := s.metadata[id]; !ok {
		s.metadata[id] = metaEntry{
			cmd: Command{ID: id, Title: id, Category: DefaultCategory},
			seq: seq,
		}
	}
	s.mu.Unlock()

	if replaced {
		s.logger.Warn("command already registered, replacing", zap.String("command", id))
	} else {
		s.logger.Debug("command registered", zap.String("command", id))
	}

	return dispose.Func(func() error {
		s.unregister(id, seq)
		return nil
	})
}

// RegisterCommandWithMetadata stores cmd as the metadata for cmd.ID and then
// registers handler. An empty title defaults to the id.
func (s *Service) RegisterCommandWithMetadata(cmd Command, handler Handler) dispose.Disposable {
	s.setMetadata(cmd)
	return s.RegisterCommand(cmd.ID, handler)
}

// DeclareCommand stores metadata for a command whose handler will be
// registered later, typically from a plugin manifest contribution. Disposing
// the handle removes the metadata unless it was replaced in between.
func (s *Service) DeclareCommand(cmd Command) dispose.Disposable {
	seq := s.setMetadata(cmd)
	return dispose.Func(func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if e, ok := s.metadata[cmd.ID]; ok && e.seq == seq {
			delete(s.metadata, cmd.ID)
		}
		return nil
	})
}

func (s *Service) setMetadata(cmd Command) uint64 {
	if cmd.Title == "" {
		cmd.Title = cmd.ID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.metadata[cmd.ID] = metaEntry{cmd: cmd, seq: s.seq}
	return s.seq
}

func (s *Service) unregister(id string, seq uint64) {
	s.mu.Lock()
	e, ok := s.handlers[id]
	if !ok || e.seq != seq {
		s.mu.Unlock()
		return
	}
	delete(s.handlers, id)
	delete(s.metadata, id)
	s.mu.Unlock()

	s.logger.Debug("command unregistered", zap.String("command", id))
}

// ExecuteCommand runs the handler registered for id and returns its result.
// It fails with ErrCommandNotFound for unknown ids. Handler errors, and
// panics converted to ErrCommandPanic, are returned to the caller.
func (s *Service) ExecuteCommand(ctx context.Context, id string, args ...any) (result any, err error) {
	s.mu.RLock()
	e, ok := s.handlers[id]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("command %q: %w", id, ErrCommandNotFound)
	}

	s.logger.Debug("executing command", zap.String("command", id), zap.Int("args", len(args)))
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("command %q: %w: %v", id, ErrCommandPanic, r)
		}
		s.finish(id, time.Since(start), err)
	}()

	return e.handler(ctx, args...)
}

func (s *Service) finish(id string, d time.Duration, err error) {
	if err != nil {
		s.logger.Error("command failed", zap.String("command", id), zap.Error(err))
	}
	if s.observer != nil {
		s.observer.ObserveCommand(id, d, err)
	}
	if s.emitter != nil {
		s.emitter.Emit(EventExecuted, ExecutedEvent{ID: id, Duration: d, Err: err})
	}
}

// Commands returns the metadata of every known command, sorted by id.
// Commands with a handler but no metadata are reported with synthesized
// metadata.
func (s *Service) Commands() []Command {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Command, 0, len(s.metadata))
	for _, m := range s.metadata {
		out = append(out, m.cmd)
	}
	for id := range s.handlers {
		if _, ok := s.metadata[id]; !ok {
			out = append(out, Command{ID: id, Title: id, Category: DefaultCategory})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Command returns the metadata for id.
func (s *Service) Command(id string) (Command, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.metadata[id]
	return m.cmd, ok
}

// HasCommand reports whether a handler is registered for id.
func (s *Service) HasCommand(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.handlers[id]
	return ok
}

// CommandIDs returns the ids of every registered handler, sorted.
func (s *Service) CommandIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.handlers))
	for id := range s.handlers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CommandsByCategory returns the commands whose category equals category.
func (s *Service) CommandsByCategory(category string) []Command {
	var out []Command
	for _, cmd := range s.Commands() {
		if cmd.Category == category {
			out = append(out, cmd)
		}
	}
	return out
}

// SearchCommands returns the commands whose id, title or category contains
// query, ignoring case.
func (s *Service) SearchCommands(query string) []Command {
	q := strings.ToLower(query)
	var out []Command
	for _, cmd := range s.Commands() {
		if strings.Contains(strings.ToLower(cmd.ID), q) ||
			strings.Contains(strings.ToLower(cmd.Title), q) ||
			strings.Contains(strings.ToLower(cmd.Category), q) {
			out = append(out, cmd)
		}
	}
	return out
}

// UnregisterCommand removes the handler and metadata for id and reports
// whether a handler existed.
func (s *Service) UnregisterCommand(id string) bool {
	s.mu.Lock()
	_, ok := s.handlers[id]
	delete(s.handlers, id)
	delete(s.metadata, id)
	s.mu.Unlock()

	if ok {
		s.logger.Debug("command unregistered", zap.String("command", id))
	}
	return ok
}

// Clear removes every command.
func (s *Service) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = make(map[string]handlerEntry)
	s.metadata = make(map[string]metaEntry)
}

// Size returns the number of registered handlers.
func (s *Service) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handlers)
}
