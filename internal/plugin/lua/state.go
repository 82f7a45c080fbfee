package lua

import (
	"context"
	"errors"
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Defaults for NewState.
const (
	DefaultExecutionTimeout = 5 * time.Second
	DefaultQueueSize        = 64
)

// ownerKey marks a context as belonging to a call already running on a
// State, so nested calls run inline instead of queueing behind themselves.
type ownerKey struct{}

// State is a sandboxed Lua runtime whose LState is owned by a dedicated
// goroutine. It is safe for concurrent use.
type State struct {
	L *lua.LState

	exec      *Executor
	timeout   time.Duration
	queueSize int
	logger    *zap.Logger
}

// StateOption configures a State.
type StateOption func(*State)

// WithExecutionTimeout bounds every synchronous call. Zero disables the
// limit.
func WithExecutionTimeout(d time.Duration) StateOption {
	return func(s *State) {
		s.timeout = d
	}
}

// WithQueueSize sets the number of calls that may wait for the state.
func WithQueueSize(n int) StateOption {
	return func(s *State) {
		s.queueSize = n
	}
}

// WithOutput routes print and asynchronous call failures to logger.
func WithOutput(logger *zap.Logger) StateOption {
	return func(s *State) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewState creates a sandboxed state and starts its goroutine.
func NewState(opts ...StateOption) *State {
	s := &State{
		timeout:   DefaultExecutionTimeout,
		queueSize: DefaultQueueSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(s.L)
	installSandbox(s.L, s.logger)

	s.exec = NewExecutor(s.L, s.queueSize)
	go func() {
		s.exec.Run(context.Background())
		s.L.Close()
	}()
	return s
}

// Do runs fn on the state goroutine and waits for the result. When ctx was
// handed out by a call already running on s, fn runs inline.
func (s *State) Do(ctx context.Context, fn func(L *lua.LState) error) error {
	if owner, _ := ctx.Value(ownerKey{}).(*State); owner == s {
		return fn(s.L)
	}
	return s.exec.Execute(ctx, func(L *lua.LState) error {
		return s.run(ctx, L, fn)
	})
}

// Go queues fn without waiting. Failures are logged.
func (s *State) Go(fn func(L *lua.LState) error) error {
	return s.exec.ExecuteAsync(func(L *lua.LState) error {
		err := s.run(context.Background(), L, fn)
		if err != nil {
			s.logger.Warn("lua callback failed", zap.Error(err))
		}
		return err
	})
}

func (s *State) run(ctx context.Context, L *lua.LState, fn func(L *lua.LState) error) error {
	runCtx := context.WithValue(ctx, ownerKey{}, s)
	var cancel context.CancelFunc = func() {}
	if s.timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, s.timeout)
	}
	defer cancel()

	L.SetContext(runCtx)
	defer L.RemoveContext()

	err := fn(L)
	if err != nil && ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %v: %w", ErrExecutionTimeout, s.timeout, err)
	}
	return err
}

// DoString runs code on the state.
func (s *State) DoString(ctx context.Context, code string) error {
	return s.Do(ctx, func(L *lua.LState) error {
		return L.DoString(code)
	})
}

// Close stops the state goroutine; the LState is closed once the current
// call returns. Close does not wait, so Lua code may close its own state.
func (s *State) Close() error {
	s.exec.Close()
	return nil
}

// Done is closed once the state goroutine has exited.
func (s *State) Done() <-chan struct{} {
	return s.exec.Done()
}

// IsClosed reports whether Close has been called.
func (s *State) IsClosed() bool {
	return s.exec.IsClosed()
}
