package fs

import (
	iofs "io/fs"
	"path"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dshills/texforge/internal/dispose"
)

// MemFS is an in-memory FileSystem using slash-separated absolute paths.
// Watch callbacks run synchronously on the goroutine that made the change.
//
// MemFS is safe for concurrent use.
type MemFS struct {
	mu       sync.RWMutex
	files    map[string]*memFile
	dirs     map[string]bool
	watchers map[uint64]memWatch
	nextID   uint64
}

type memFile struct {
	content []byte
	modTime time.Time
}

type memWatch struct {
	path string
	fn   WatchFunc
}

// NewMemFS creates an empty in-memory file system containing only "/".
func NewMemFS() *MemFS {
	return &MemFS{
		files:    make(map[string]*memFile),
		dirs:     map[string]bool{"/": true},
		watchers: make(map[uint64]memWatch),
	}
}

var _ FileSystem = (*MemFS)(nil)

// ReadFile returns a copy of the file content.
func (m *MemFS) ReadFile(p string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p = cleanPath(p)
	f, ok := m.files[p]
	if !ok {
		if m.dirs[p] {
			return nil, &iofs.PathError{Op: "read", Path: p, Err: ErrIsDir}
		}
		return nil, &iofs.PathError{Op: "read", Path: p, Err: ErrNotExist}
	}
	return slices.Clone(f.content), nil
}

// WriteFile stores a copy of data at p, creating parent directories.
func (m *MemFS) WriteFile(p string, data []byte) error {
	p = cleanPath(p)

	m.mu.Lock()
	if m.dirs[p] {
		m.mu.Unlock()
		return &iofs.PathError{Op: "write", Path: p, Err: ErrIsDir}
	}
	if err := m.mkdirAllLocked(path.Dir(p)); err != nil {
		m.mu.Unlock()
		return err
	}
	_, existed := m.files[p]
	m.files[p] = &memFile{content: slices.Clone(data), modTime: time.Now()}
	m.mu.Unlock()

	op := OpCreate
	if existed {
		op = OpWrite
	}
	m.notify(Event{Path: p, Op: op})
	return nil
}

// DeleteFile removes a regular file.
func (m *MemFS) DeleteFile(p string) error {
	p = cleanPath(p)

	m.mu.Lock()
	if _, ok := m.files[p]; !ok {
		m.mu.Unlock()
		if m.isDir(p) {
			return &iofs.PathError{Op: "delete", Path: p, Err: ErrIsDir}
		}
		return &iofs.PathError{Op: "delete", Path: p, Err: ErrNotExist}
	}
	delete(m.files, p)
	m.mu.Unlock()

	m.notify(Event{Path: p, Op: OpRemove})
	return nil
}

// ReadDir lists the direct children of p.
func (m *MemFS) ReadDir(p string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p = cleanPath(p)
	if !m.dirs[p] {
		if _, ok := m.files[p]; ok {
			return nil, &iofs.PathError{Op: "readdir", Path: p, Err: ErrNotDir}
		}
		return nil, &iofs.PathError{Op: "readdir", Path: p, Err: ErrNotExist}
	}

	var names []string
	for f := range m.files {
		if name, ok := childName(p, f); ok {
			names = append(names, name)
		}
	}
	for d := range m.dirs {
		if name, ok := childName(p, d); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Mkdir creates p and any missing parents. Creating an existing directory
// is not an error.
func (m *MemFS) Mkdir(p string) error {
	p = cleanPath(p)

	m.mu.Lock()
	existed := m.dirs[p]
	err := m.mkdirAllLocked(p)
	m.mu.Unlock()

	if err == nil && !existed {
		m.notify(Event{Path: p, Op: OpCreate})
	}
	return err
}

// Rmdir removes an empty directory.
func (m *MemFS) Rmdir(p string) error {
	p = cleanPath(p)

	m.mu.Lock()
	if !m.dirs[p] {
		m.mu.Unlock()
		return &iofs.PathError{Op: "rmdir", Path: p, Err: ErrNotExist}
	}
	for f := range m.files {
		if _, ok := childName(p, f); ok {
			m.mu.Unlock()
			return &iofs.PathError{Op: "rmdir", Path: p, Err: ErrNotEmpty}
		}
	}
	for d := range m.dirs {
		if _, ok := childName(p, d); ok {
			m.mu.Unlock()
			return &iofs.PathError{Op: "rmdir", Path: p, Err: ErrNotEmpty}
		}
	}
	delete(m.dirs, p)
	m.mu.Unlock()

	m.notify(Event{Path: p, Op: OpRemove})
	return nil
}

// Stat describes p.
func (m *MemFS) Stat(p string) (FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p = cleanPath(p)
	if f, ok := m.files[p]; ok {
		return FileInfo{Path: p, Name: path.Base(p), Size: int64(len(f.content)), ModTime: f.modTime}, nil
	}
	if m.dirs[p] {
		return FileInfo{Path: p, Name: path.Base(p), IsDir: true}, nil
	}
	return FileInfo{}, &iofs.PathError{Op: "stat", Path: p, Err: ErrNotExist}
}

// Exists reports whether p is a file or directory.
func (m *MemFS) Exists(p string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p = cleanPath(p)
	_, ok := m.files[p]
	return ok || m.dirs[p]
}

// Watch registers fn for changes to p and its direct children. The path
// does not need to exist yet.
func (m *MemFS) Watch(p string, fn WatchFunc) (dispose.Disposable, error) {
	p = cleanPath(p)

	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.watchers[id] = memWatch{path: p, fn: fn}
	m.mu.Unlock()

	return dispose.Func(func() error {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
		return nil
	}), nil
}

// Join joins path elements with '/'.
func (m *MemFS) Join(elem ...string) string { return path.Join(elem...) }

// Dir returns all but the last element of p.
func (m *MemFS) Dir(p string) string { return path.Dir(p) }

// Base returns the last element of p.
func (m *MemFS) Base(p string) string { return path.Base(p) }

// Ext returns the file name extension of p, including the dot.
func (m *MemFS) Ext(p string) string { return path.Ext(p) }

func (m *MemFS) isDir(p string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dirs[p]
}

func (m *MemFS) mkdirAllLocked(p string) error {
	current := ""
	for _, part := range strings.Split(strings.Trim(p, "/"), "/") {
		if part == "" {
			continue
		}
		current += "/" + part
		if _, ok := m.files[current]; ok {
			return &iofs.PathError{Op: "mkdir", Path: current, Err: ErrNotDir}
		}
		m.dirs[current] = true
	}
	return nil
}

// notify delivers ev to matching watchers outside the lock.
func (m *MemFS) notify(ev Event) {
	m.mu.RLock()
	ids := make([]uint64, 0, len(m.watchers))
	for id, w := range m.watchers {
		if w.path == ev.Path || path.Dir(ev.Path) == w.path {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	fns := make([]WatchFunc, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, m.watchers[id].fn)
	}
	m.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func cleanPath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// childName returns the base name of p when it is a direct child of dir.
func childName(dir, p string) (string, bool) {
	if p == dir {
		return "", false
	}
	prefix := dir
	if prefix != "/" {
		prefix += "/"
	}
	if !strings.HasPrefix(p, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(p, prefix)
	if rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
