// Package local provides a local filesystem storage backend.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/denysvitali/fm-connector/pkg/imageproc"
	"github.com/denysvitali/fm-connector/pkg/storage"
)

// Config holds local filesystem backend settings.
type Config struct {
	RootPath        string
	CreateRoot      bool
	ImageExtensions []string
}

// Backend implements storage.Backend on a directory of the local filesystem.
type Backend struct {
	root      string
	imageExts map[string]bool
	logger    *logrus.Logger
	tracer    trace.Tracer
}

var _ storage.Backend = (*Backend)(nil)

// New creates a new local filesystem backend.
func New(cfg Config, logger *logrus.Logger) (*Backend, error) {
	if cfg.RootPath == "" {
		return nil, fmt.Errorf("root path is required")
	}
	root, err := filepath.Abs(cfg.RootPath)
	if err != nil {
		return nil, fmt.Errorf("resolve root path %s: %w", cfg.RootPath, err)
	}

	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) && cfg.CreateRoot {
			if mkErr := os.MkdirAll(root, 0755); mkErr != nil {
				return nil, fmt.Errorf("create root path %s: %w", root, mkErr)
			}
		} else {
			return nil, fmt.Errorf("stat root path %s: %w", root, err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("root path %s is not a directory", root)
	}

	exts := make(map[string]bool, len(cfg.ImageExtensions))
	for _, ext := range cfg.ImageExtensions {
		exts[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}

	return &Backend{
		root:      root,
		imageExts: exts,
		logger:    logger,
		tracer:    otel.Tracer("fm-connector"),
	}, nil
}

// Root returns the absolute directory served by the backend.
func (b *Backend) Root() string {
	return b.root
}

// Type returns "local".
func (b *Backend) Type() string {
	return "local"
}

// resolve maps a slash separated backend path to an absolute path below the
// root. Paths escaping the root are rejected.
func (b *Backend) resolve(p string) (string, error) {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	if strings.Contains(p, "\x00") {
		return "", fmt.Errorf("invalid path %q: %w", p, storage.ErrPathEscape)
	}
	rel := strings.TrimPrefix(path.Clean("/"+p), "/")
	if rel == "" || rel == "." {
		return b.root, nil
	}
	abs := filepath.Clean(filepath.Join(b.root, filepath.FromSlash(rel)))
	if abs != b.root && !strings.HasPrefix(abs, b.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", p, storage.ErrPathEscape)
	}
	return abs, nil
}

// wrap converts os errors into the storage sentinels, keeping the original
// error in the chain.
func wrap(op, p string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%s %s: %w: %w", op, p, storage.ErrNotExist, err)
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("%s %s: %w: %w", op, p, storage.ErrExist, err)
	default:
		return fmt.Errorf("%s %s: %w", op, p, err)
	}
}

func (b *Backend) entry(abs string, info os.FileInfo, withSize bool) storage.Entry {
	protected := info.Mode().Perm()&0200 == 0
	if info.IsDir() {
		return storage.NewDirectoryEntry(info.Name(), info.ModTime(), protected)
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(info.Name()), "."))
	if !b.imageExts[ext] {
		return storage.NewFileEntry(info.Name(), info.Size(), info.ModTime(), protected)
	}
	var w, h int
	if withSize {
		var err error
		if w, h, err = b.dimensions(abs); err != nil {
			b.logger.Debugf("Failed to read image dimensions of %s: %v", abs, err)
		}
	}
	return storage.NewImageEntry(info.Name(), w, h, info.Size(), info.ModTime(), protected)
}

func (b *Backend) dimensions(abs string) (int, int, error) {
	f, err := os.Open(abs)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	return imageproc.Dimensions(f)
}

// List returns the entries of a directory
func (b *Backend) List(ctx context.Context, dir string, withSize bool) ([]storage.Entry, error) {
	_, span := b.tracer.Start(ctx, "local.list")
	defer span.End()
	span.SetAttributes(attribute.String("path", dir), attribute.Bool("with_size", withSize))

	abs, err := b.resolve(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		span.RecordError(err)
		return nil, wrap("list", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("list %s: %w", dir, storage.ErrNotDirectory)
	}

	dirEntries, err := os.ReadDir(abs)
	if err != nil {
		span.RecordError(err)
		return nil, wrap("list", dir, err)
	}

	entries := make([]storage.Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		child := filepath.Join(abs, de.Name())
		// follow symlinks so linked directories list as directories
		fi, err := os.Stat(child)
		if err != nil {
			b.logger.Warnf("Skipping unreadable entry %s: %v", child, err)
			continue
		}
		entries = append(entries, b.entry(child, fi, withSize))
	}
	return entries, nil
}

// Stat returns the entry at path
func (b *Backend) Stat(ctx context.Context, p string, withSize bool) (storage.Entry, error) {
	_, span := b.tracer.Start(ctx, "local.stat")
	defer span.End()
	span.SetAttributes(attribute.String("path", p))

	abs, err := b.resolve(p)
	if err != nil {
		return storage.Entry{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return storage.Entry{}, wrap("stat", p, err)
	}
	return b.entry(abs, info, withSize), nil
}

// Exists reports whether path exists
func (b *Backend) Exists(ctx context.Context, p string) (bool, error) {
	_, span := b.tracer.Start(ctx, "local.exists")
	defer span.End()
	span.SetAttributes(attribute.String("path", p))

	abs, err := b.resolve(p)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, wrap("stat", p, err)
	}
	return true, nil
}

// Rename moves src to dst
func (b *Backend) Rename(ctx context.Context, src, dst string) error {
	_, span := b.tracer.Start(ctx, "local.rename")
	defer span.End()
	span.SetAttributes(attribute.String("src", src), attribute.String("dst", dst))

	srcAbs, err := b.resolve(src)
	if err != nil {
		return err
	}
	dstAbs, err := b.resolve(dst)
	if err != nil {
		return err
	}
	if srcAbs == b.root {
		return fmt.Errorf("rename %s: %w", src, fs.ErrPermission)
	}
	if _, err := os.Stat(srcAbs); err != nil {
		return wrap("rename", src, err)
	}
	if _, err := os.Stat(dstAbs); err == nil {
		return fmt.Errorf("rename %s: %s: %w", src, dst, storage.ErrExist)
	}
	if err := os.Rename(srcAbs, dstAbs); err != nil {
		span.RecordError(err)
		return wrap("rename", src, err)
	}
	return nil
}

// Delete removes a file or directory tree
func (b *Backend) Delete(ctx context.Context, p string) error {
	_, span := b.tracer.Start(ctx, "local.delete")
	defer span.End()
	span.SetAttributes(attribute.String("path", p))

	abs, err := b.resolve(p)
	if err != nil {
		return err
	}
	if abs == b.root {
		return fmt.Errorf("delete %s: %w", p, fs.ErrPermission)
	}
	if _, err := os.Stat(abs); err != nil {
		return wrap("delete", p, err)
	}
	if err := os.RemoveAll(abs); err != nil {
		span.RecordError(err)
		return wrap("delete", p, err)
	}
	return nil
}

// CreateFolder creates a single directory
func (b *Backend) CreateFolder(ctx context.Context, p string) error {
	_, span := b.tracer.Start(ctx, "local.create_folder")
	defer span.End()
	span.SetAttributes(attribute.String("path", p))

	abs, err := b.resolve(p)
	if err != nil {
		return err
	}
	if err := os.Mkdir(abs, 0755); err != nil {
		span.RecordError(err)
		return wrap("mkdir", p, err)
	}
	return nil
}

// Upload writes r to path through a temporary file in the same directory,
// so readers never observe a partially written file.
func (b *Backend) Upload(ctx context.Context, p string, r io.Reader) error {
	_, span := b.tracer.Start(ctx, "local.upload")
	defer span.End()
	span.SetAttributes(attribute.String("path", p))

	abs, err := b.resolve(p)
	if err != nil {
		return err
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return fmt.Errorf("upload %s: %w", p, storage.ErrIsDirectory)
	}

	tmp, err := os.CreateTemp(filepath.Dir(abs), ".upload-*")
	if err != nil {
		span.RecordError(err)
		return wrap("upload", p, err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op once the rename succeeded
		_ = os.Remove(tmpName)
	}()

	written, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("upload %s: %w", p, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		b.logger.Warnf("Failed to set permissions for %s: %v", tmpName, err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		span.RecordError(err)
		return wrap("upload", p, err)
	}
	span.SetAttributes(attribute.Int64("bytes", written))
	return nil
}

// Open returns a stream over a file
func (b *Backend) Open(ctx context.Context, p string) (io.ReadCloser, int64, error) {
	_, span := b.tracer.Start(ctx, "local.open")
	defer span.End()
	span.SetAttributes(attribute.String("path", p))

	abs, err := b.resolve(p)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, 0, wrap("open", p, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, wrap("stat", p, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, 0, fmt.Errorf("open %s: %w", p, storage.ErrIsDirectory)
	}
	return f, info.Size(), nil
}

// ReadText returns the content of a text file. Content sniffed as anything
// other than text is rejected with storage.ErrNotText.
func (b *Backend) ReadText(ctx context.Context, p string) (string, error) {
	_, span := b.tracer.Start(ctx, "local.read_text")
	defer span.End()
	span.SetAttributes(attribute.String("path", p))

	abs, err := b.resolve(p)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", wrap("read", p, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("read %s: %w", p, storage.ErrIsDirectory)
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		span.RecordError(err)
		return "", wrap("read", p, err)
	}
	if !isText(content) {
		span.SetAttributes(attribute.Bool("is_binary_file", true))
		return "", fmt.Errorf("read %s: %w", p, storage.ErrNotText)
	}
	return string(content), nil
}

// WriteText replaces the content of an existing file, keeping its
// permissions.
func (b *Backend) WriteText(ctx context.Context, p string, content string) error {
	_, span := b.tracer.Start(ctx, "local.write_text")
	defer span.End()
	span.SetAttributes(attribute.String("path", p))

	abs, err := b.resolve(p)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return wrap("write", p, err)
	}
	if info.IsDir() {
		return fmt.Errorf("write %s: %w", p, storage.ErrIsDirectory)
	}
	if err := os.WriteFile(abs, []byte(content), info.Mode().Perm()); err != nil {
		span.RecordError(err)
		return wrap("write", p, err)
	}
	return nil
}

func isText(content []byte) bool {
	if len(content) == 0 {
		return true
	}
	for mt := mimetype.Detect(content); mt != nil; mt = mt.Parent() {
		if mt.Is("text/plain") {
			return true
		}
	}
	return false
}
