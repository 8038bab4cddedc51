package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/firefly-engineering/onyx/internal/audit"
	"github.com/firefly-engineering/onyx/internal/config"
	onyxerrors "github.com/firefly-engineering/onyx/internal/errors"
	"github.com/firefly-engineering/onyx/internal/logging"
)

// Image is a stored root filesystem.
type Image struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// CreateOptions configures Create.
type CreateOptions struct {
	// Move renames the source into the store instead of copying it.
	// Source and store must be on the same filesystem.
	Move bool
}

// CreateResult reports what Create did.
type CreateResult struct {
	Image  Image
	Method string // "move", "copy" or "extract"
	Stats  CopyStats
}

// Store manages images under <store>/sys.
type Store struct {
	paths *config.Paths
	audit *audit.Logger
}

// New creates a Store. The audit logger may be nil.
func New(paths *config.Paths, auditLog *audit.Logger) *Store {
	return &Store{paths: paths, audit: auditLog}
}

// Root returns the directory of an existing image.
func (s *Store) Root(name string) (string, error) {
	path, err := s.paths.ImagePath(name)
	if err != nil {
		return "", onyxerrors.ValidationError(err.Error())
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return "", onyxerrors.ImageNotFound(name)
	}
	return path, nil
}

// Exists reports whether an image is stored under name.
func (s *Store) Exists(name string) bool {
	_, err := s.Root(name)
	return err == nil
}

// Create stores a new image from source, which may be a directory or a
// .tar, .tar.zst or .tar.zstd archive. It fails if name is taken.
func (s *Store) Create(ctx context.Context, name, source string, opts CreateOptions) (*CreateResult, error) {
	dest, err := s.paths.ImagePath(name)
	if err != nil {
		return nil, onyxerrors.ValidationError(err.Error())
	}
	if _, err := os.Lstat(dest); err == nil {
		return nil, onyxerrors.ImageExists(name)
	}

	srcInfo, err := os.Stat(source)
	if err != nil {
		return nil, onyxerrors.StorageError("stat source", err)
	}
	archive := srcInfo.Mode().IsRegular() && IsArchive(source)
	if !srcInfo.IsDir() && !archive {
		return nil, onyxerrors.ValidationError(fmt.Sprintf("source %s is neither a directory nor a .tar/.tar.zst archive", source))
	}
	if archive && opts.Move {
		return nil, onyxerrors.ValidationError("--move cannot be used with an archive source")
	}

	if err := os.MkdirAll(s.paths.SysDir, 0755); err != nil {
		return nil, storeError("create store directory", err)
	}

	result := &CreateResult{}
	switch {
	case opts.Move:
		result.Method = "move"
		if err := os.Rename(source, dest); err != nil {
			if errors.Is(err, syscall.EXDEV) {
				return nil, onyxerrors.StorageError("move", fmt.Errorf("%s is on a different filesystem than the store, create without --move to copy it: %w", source, err))
			}
			return nil, storeError("move", err)
		}
	case archive:
		result.Method = "extract"
		result.Stats, err = ExtractArchive(ctx, source, dest)
		if err != nil {
			s.discard(dest)
			return nil, storeError("extract", err)
		}
	default:
		result.Method = "copy"
		result.Stats, err = CopyTree(ctx, source, dest)
		if err != nil {
			s.discard(dest)
			return nil, storeError("copy", err)
		}
	}

	if result.Stats.Skipped > 0 {
		logging.Warn("special files skipped", "image", name, "count", result.Stats.Skipped)
	}

	img, err := s.stat(name, dest)
	if err != nil {
		return nil, onyxerrors.StorageError("stat image", err)
	}
	result.Image = *img

	s.record(audit.EventCreate, name, fmt.Sprintf("method=%s source=%s", result.Method, source))
	return result, nil
}

// Delete removes an image and its tree. Per-user deltas are left alone.
func (s *Store) Delete(name string) error {
	path, err := s.Root(name)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(path); err != nil {
		return storeError("delete", err)
	}
	s.record(audit.EventDelete, name, "")
	return nil
}

// storeError classifies a failed store mutation. Permission failures are
// authorization errors, everything else is a storage error.
func storeError(op string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return onyxerrors.AuthorizationError(fmt.Sprintf("insufficient rights to %s in the image store", op), err)
	}
	return onyxerrors.StorageError(op, err)
}

// List returns stored images sorted by name. Images that cannot be read
// because of permissions are skipped.
func (s *Store) List() ([]Image, error) {
	entries, err := os.ReadDir(s.paths.SysDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, onyxerrors.StorageError("list", err)
	}

	var images []Image
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		img, err := s.stat(entry.Name(), filepath.Join(s.paths.SysDir, entry.Name()))
		if err != nil {
			if errors.Is(err, fs.ErrPermission) {
				logging.Debug("skipping unreadable image", "name", entry.Name(), "error", err)
				continue
			}
			return nil, onyxerrors.StorageError("list", err)
		}
		images = append(images, *img)
	}

	sort.Slice(images, func(i, j int) bool {
		return images[i].Name < images[j].Name
	})
	return images, nil
}

func (s *Store) stat(name, path string) (*Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	size, err := treeSize(path)
	if err != nil {
		return nil, err
	}
	return &Image{Name: name, Path: path, Size: size, ModTime: info.ModTime()}, nil
}

// treeSize sums regular file sizes below root.
func treeSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			if errors.Is(err, fs.ErrPermission) {
				return nil
			}
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return nil
			}
			total += info.Size()
		}
		return nil
	})
	return total, err
}

func (s *Store) discard(dest string) {
	if err := os.RemoveAll(dest); err != nil {
		logging.Warn("failed to remove partial image", "path", dest, "error", err)
	}
}

func (s *Store) record(t audit.EventType, name, details string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogEvent(t, name, details); err != nil {
		logging.Debug("audit log write failed", "image", name, "error", err)
	}
}

// IsArchive reports whether path names a supported rootfs archive.
func IsArchive(path string) bool {
	for _, ext := range []string{".tar.zst", ".tar.zstd", ".tar"} {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}
