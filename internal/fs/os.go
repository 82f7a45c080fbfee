package fs

import (
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/dshills/texforge/internal/dispose"
)

// OSFS is a FileSystem backed by the host disk. Relative paths resolve
// against Root.
type OSFS struct {
	root   string
	logger *zap.Logger

	mu      sync.Mutex
	watches map[*osWatch]struct{}
	closed  bool
}

// OSOption configures an OSFS.
type OSOption func(*OSFS)

// WithLogger sets the logger used for watch errors.
func WithLogger(logger *zap.Logger) OSOption {
	return func(f *OSFS) {
		if logger != nil {
			f.logger = logger.With(zap.String("component", "fs"))
		}
	}
}

// NewOSFS creates an OSFS rooted at root. An empty root means the current
// working directory.
func NewOSFS(root string, opts ...OSOption) (*OSFS, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	f := &OSFS{
		root:    abs,
		logger:  zap.NewNop(),
		watches: make(map[*osWatch]struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

var _ FileSystem = (*OSFS)(nil)

// Root returns the absolute root directory.
func (f *OSFS) Root() string { return f.root }

func (f *OSFS) resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(f.root, p)
}

// ReadFile reads the whole file.
func (f *OSFS) ReadFile(p string) ([]byte, error) {
	return os.ReadFile(f.resolve(p))
}

// WriteFile writes data to p, creating parent directories.
func (f *OSFS) WriteFile(p string, data []byte) error {
	full := f.resolve(p)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, data, 0o644)
}

// DeleteFile removes a regular file.
func (f *OSFS) DeleteFile(p string) error {
	full := f.resolve(p)
	info, err := os.Stat(full)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return &iofs.PathError{Op: "delete", Path: full, Err: ErrIsDir}
	}
	return os.Remove(full)
}

// ReadDir lists the names in p, sorted.
func (f *OSFS) ReadDir(p string) ([]string, error) {
	entries, err := os.ReadDir(f.resolve(p))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Mkdir creates p and any missing parents.
func (f *OSFS) Mkdir(p string) error {
	return os.MkdirAll(f.resolve(p), 0o755)
}

// Rmdir removes an empty directory.
func (f *OSFS) Rmdir(p string) error {
	full := f.resolve(p)
	info, err := os.Stat(full)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &iofs.PathError{Op: "rmdir", Path: full, Err: ErrNotDir}
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return &iofs.PathError{Op: "rmdir", Path: full, Err: ErrNotEmpty}
	}
	return os.Remove(full)
}

// Stat describes p.
func (f *OSFS) Stat(p string) (FileInfo, error) {
	full := f.resolve(p)
	info, err := os.Stat(full)
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{
		Path:    full,
		Name:    info.Name(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}, nil
}

// Exists reports whether p exists.
func (f *OSFS) Exists(p string) bool {
	_, err := os.Stat(f.resolve(p))
	return err == nil
}

// Watch starts an fsnotify watcher on p. Callbacks run on the watcher's
// goroutine.
func (f *OSFS) Watch(p string, fn WatchFunc) (dispose.Disposable, error) {
	full := f.resolve(p)
	if _, err := os.Stat(full); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(full); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &osWatch{
		watcher: fsw,
		fn:      fn,
		done:    make(chan struct{}),
		logger:  f.logger.With(zap.String("path", full)),
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		_ = fsw.Close()
		return nil, ErrClosed
	}
	f.watches[w] = struct{}{}
	f.mu.Unlock()

	w.wg.Add(1)
	go w.loop()

	return dispose.Func(func() error {
		f.mu.Lock()
		delete(f.watches, w)
		f.mu.Unlock()
		return w.close()
	}), nil
}

// Close stops every active watch.
func (f *OSFS) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	watches := make([]*osWatch, 0, len(f.watches))
	for w := range f.watches {
		watches = append(watches, w)
	}
	f.watches = nil
	f.mu.Unlock()

	var errs []error
	for _, w := range watches {
		errs = append(errs, w.close())
	}
	return errors.Join(errs...)
}

// Join joins path elements with the host separator.
func (f *OSFS) Join(elem ...string) string { return filepath.Join(elem...) }

// Dir returns all but the last element of p.
func (f *OSFS) Dir(p string) string { return filepath.Dir(p) }

// Base returns the last element of p.
func (f *OSFS) Base(p string) string { return filepath.Base(p) }

// Ext returns the file name extension of p, including the dot.
func (f *OSFS) Ext(p string) string { return filepath.Ext(p) }

type osWatch struct {
	watcher *fsnotify.Watcher
	fn      WatchFunc
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	logger  *zap.Logger
}

func (w *osWatch) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			op := convertOp(ev.Op)
			if op == 0 {
				continue
			}
			w.deliver(Event{Path: ev.Name, Op: op})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *osWatch) deliver(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("watch callback panicked", zap.Any("panic", r), zap.String("event", ev.Path))
		}
	}()
	w.fn(ev)
}

func (w *osWatch) close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		w.wg.Wait()
		err = w.watcher.Close()
	})
	return err
}

// convertOp maps fsnotify operations onto Op. Chmod is dropped.
func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsOp.Has(fsnotify.Rename) {
		op |= OpRename
	}
	return op
}
