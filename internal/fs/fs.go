// Package fs provides the file system capability handed to plugins.
//
// Two implementations are available: MemFS keeps everything in memory and
// delivers watch callbacks synchronously, OSFS reads and writes the host disk
// and watches through fsnotify.
package fs

import (
	"errors"
	iofs "io/fs"
	"time"

	"github.com/dshills/texforge/internal/dispose"
)

// Errors returned by file system operations. Operations wrap them in an
// *io/fs.PathError, so errors.Is works against both these values and the
// io/fs sentinels.
var (
	ErrNotExist = iofs.ErrNotExist
	ErrExist    = iofs.ErrExist
	ErrIsDir    = errors.New("is a directory")
	ErrNotDir   = errors.New("not a directory")
	ErrNotEmpty = errors.New("directory not empty")
	ErrClosed   = errors.New("file system is closed")
)

// Op is a bitmask describing a change reported to a watcher.
type Op uint32

const (
	// OpCreate indicates a file or directory was created.
	OpCreate Op = 1 << iota
	// OpWrite indicates a file was written.
	OpWrite
	// OpRemove indicates a file or directory was removed.
	OpRemove
	// OpRename indicates a file or directory was renamed.
	OpRename
)

// String returns the name of a single operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "created"
	case OpWrite:
		return "changed"
	case OpRemove:
		return "deleted"
	case OpRename:
		return "renamed"
	default:
		return "unknown"
	}
}

// Has reports whether op includes o.
func (op Op) Has(o Op) bool {
	return op&o == o
}

// Event is a change delivered to a WatchFunc.
type Event struct {
	Path string
	Op   Op
}

// WatchFunc receives change events.
type WatchFunc func(Event)

// FileInfo describes a file or directory.
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// FileSystem is the file capability shared between host and plugins.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	// WriteFile creates or truncates path. Missing parent directories are
	// created.
	WriteFile(path string, data []byte) error
	DeleteFile(path string) error

	// ReadDir returns the names of the direct children of path, sorted.
	ReadDir(path string) ([]string, error)
	// Mkdir creates path and any missing parents.
	Mkdir(path string) error
	// Rmdir removes an empty directory.
	Rmdir(path string) error

	Stat(path string) (FileInfo, error)
	Exists(path string) bool

	// Watch calls fn for changes to path or, when path is a directory, its
	// direct children. Disposing the handle stops delivery.
	Watch(path string, fn WatchFunc) (dispose.Disposable, error)

	Join(elem ...string) string
	Dir(path string) string
	Base(path string) string
	Ext(path string) string
}
