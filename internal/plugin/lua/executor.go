package lua

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// call is a Lua operation queued on an Executor. result is nil for
// asynchronous calls.
type call struct {
	fn     func(L *lua.LState) error
	result chan error
}

// Executor serializes all operations on an LState through one goroutine.
//
// gopher-lua's LState is not goroutine-safe. Command handlers and event
// listeners backed by Lua functions can be invoked from any goroutine, so
// every call is marshalled to the goroutine running Run.
type Executor struct {
	L      *lua.LState
	queue  chan *call
	closed atomic.Bool
	done   chan struct{}
	exited chan struct{}

	closeOnce sync.Once
}

// NewExecutor creates an Executor for L. queueSize bounds the number of
// pending calls.
func NewExecutor(L *lua.LState, queueSize int) *Executor {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Executor{
		L:      L,
		queue:  make(chan *call, queueSize),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

// Run processes queued calls until ctx is cancelled or Close is called.
// It must run on the goroutine that owns L.
func (e *Executor) Run(ctx context.Context) {
	defer close(e.exited)
	for {
		select {
		case <-ctx.Done():
			e.drain(ctx.Err())
			return
		case <-e.done:
			e.drain(ErrStateClosed)
			return
		case c := <-e.queue:
			err := e.run(c)
			if c.result != nil {
				c.result <- err
			}
		}
	}
}

func (e *Executor) run(c *call) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return c.fn(e.L)
}

func (e *Executor) drain(err error) {
	for {
		select {
		case c := <-e.queue:
			if c.result != nil {
				c.result <- err
			}
		default:
			return
		}
	}
}

// Execute queues fn and waits for it to finish or for ctx to be done.
func (e *Executor) Execute(ctx context.Context, fn func(L *lua.LState) error) error {
	if e.closed.Load() {
		return ErrStateClosed
	}

	c := &call{fn: fn, result: make(chan error, 1)}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrStateClosed
	case e.queue <- c:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-c.result:
		return err
	case <-e.exited:
		select {
		case err := <-c.result:
			return err
		default:
			return ErrStateClosed
		}
	}
}

// ExecuteAsync queues fn without waiting. It fails with ErrQueueFull
// rather than block.
func (e *Executor) ExecuteAsync(fn func(L *lua.LState) error) error {
	if e.closed.Load() {
		return ErrStateClosed
	}
	select {
	case <-e.done:
		return ErrStateClosed
	case e.queue <- &call{fn: fn}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the executor. Pending calls fail with ErrStateClosed.
func (e *Executor) Close() {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		close(e.done)
	})
}

// Done is closed once Run has returned.
func (e *Executor) Done() <-chan struct{} {
	return e.exited
}

// IsClosed reports whether Close has been called.
func (e *Executor) IsClosed() bool {
	return e.closed.Load()
}
