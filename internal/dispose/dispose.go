// Package dispose provides handles for releasing registered resources.
//
// Every registration in the workbench (event listeners, commands, custom
// editors, menus, views, file watches) hands back a Disposable. Disposing it
// removes exactly that registration. Disposal is idempotent.
package dispose

import (
	"errors"
	"fmt"
	"sync"
)

// Disposable releases a registered resource.
// Dispose must be safe to call more than once; only the first call has effect.
type Disposable interface {
	Dispose() error
}

// ErrDisposed is returned when adding to a Store that was already disposed.
var ErrDisposed = errors.New("store already disposed")

// Func returns a Disposable that runs fn on the first call to Dispose.
// Later calls return nil without running fn again.
func Func(fn func() error) Disposable {
	return &funcDisposable{fn: fn}
}

// Nop returns a Disposable that does nothing.
func Nop() Disposable {
	return Func(nil)
}

type funcDisposable struct {
	once sync.Once
	fn   func() error
}

func (d *funcDisposable) Dispose() (err error) {
	d.once.Do(func() {
		if d.fn != nil {
			err = d.fn()
		}
	})
	return err
}

// Store collects disposables and releases them together, in the order they
// were added. A Store is itself a Disposable.
type Store struct {
	mu       sync.Mutex
	items    []Disposable
	disposed bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Add appends disposables to the store. If the store has already been
// disposed, the disposables are released immediately and ErrDisposed is
// returned joined with any disposal errors.
func (s *Store) Add(ds ...Disposable) error {
	s.mu.Lock()
	if !s.disposed {
		for _, d := range ds {
			if d != nil {
				s.items = append(s.items, d)
			}
		}
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	errs := []error{ErrDisposed}
	for i, d := range ds {
		if d == nil {
			continue
		}
		if err := safeDispose(d); err != nil {
			errs = append(errs, fmt.Errorf("disposable %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of disposables currently held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// IsDisposed reports whether Dispose has been called.
func (s *Store) IsDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// Dispose releases every held disposable in insertion order. A failing or
// panicking disposable does not stop the sweep; all failures are joined into
// the returned error. Calling Dispose again is a no-op.
func (s *Store) Dispose() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.disposed = true
	items := s.items
	s.items = nil
	s.mu.Unlock()

	var errs []error
	for i, d := range items {
		if err := safeDispose(d); err != nil {
			errs = append(errs, fmt.Errorf("disposable %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Errors splits an error produced by Store.Dispose into its parts.
// A nil error yields nil; a non-joined error yields a single element.
func Errors(err error) []error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

// safeDispose converts a panic inside Dispose into an error.
func safeDispose(d Disposable) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispose panic: %v", r)
		}
	}()
	return d.Dispose()
}
