// Package storage defines the Backend interface the connector dispatches to
// and the entry values backends report.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrNotExist     = errors.New("the resource does not exist")
	ErrExist        = errors.New("the resource already exists")
	ErrIsDirectory  = errors.New("the resource is a directory")
	ErrNotDirectory = errors.New("the resource is not a directory")
	ErrNotText      = errors.New("the resource is not a text file")
	ErrPathEscape   = errors.New("path escapes the storage root")
)

// Kind classifies an entry.
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindImage:
		return "image"
	default:
		return "file"
	}
}

// Entry is a value describing one directory, file or image as reported by
// a backend. Width and Height are only set for images, Size only for
// files and images.
type Entry struct {
	Kind      Kind
	Name      string
	Size      int64
	Width     int
	Height    int
	Modified  time.Time
	Protected bool
}

// NewDirectoryEntry returns a directory entry
func NewDirectoryEntry(name string, modified time.Time, protected bool) Entry {
	return Entry{Kind: KindDirectory, Name: name, Modified: modified, Protected: protected}
}

// NewFileEntry returns a plain file entry
func NewFileEntry(name string, size int64, modified time.Time, protected bool) Entry {
	return Entry{Kind: KindFile, Name: name, Size: size, Modified: modified, Protected: protected}
}

// NewImageEntry returns an image entry
func NewImageEntry(name string, width, height int, size int64, modified time.Time, protected bool) Entry {
	return Entry{Kind: KindImage, Name: name, Width: width, Height: height, Size: size, Modified: modified, Protected: protected}
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool {
	return e.Kind == KindDirectory
}

// Backend is the storage the connector operates on. All paths are backend
// paths as produced by the connector's path translator; directory paths may
// carry a trailing slash.
//
// Implementations wrap the sentinel errors of this package so callers can
// classify failures with errors.Is.
type Backend interface {
	// List returns the entries of a directory. withSize asks the backend to
	// fill sizes and image dimensions.
	List(ctx context.Context, dir string, withSize bool) ([]Entry, error)

	// Stat returns the entry at path.
	Stat(ctx context.Context, path string, withSize bool) (Entry, error)

	// Exists reports whether anything exists at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Rename moves src to dst. dst must not exist.
	Rename(ctx context.Context, src, dst string) error

	// Delete removes a file or a directory tree.
	Delete(ctx context.Context, path string) error

	// CreateFolder creates a single directory. Its parent must exist.
	CreateFolder(ctx context.Context, path string) error

	// Upload stores the content of r at path, replacing an existing file.
	// The caller owns r and closes it.
	Upload(ctx context.Context, path string, r io.Reader) error

	// Open returns a stream over the file content and its length.
	Open(ctx context.Context, path string) (io.ReadCloser, int64, error)

	// ReadText returns the content of a text file.
	ReadText(ctx context.Context, path string) (string, error)

	// WriteText replaces the content of a text file.
	WriteText(ctx context.Context, path string, content string) error

	// Type returns the backend type identifier.
	Type() string
}
