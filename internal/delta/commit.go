package delta

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/zeebo/blake3"

	"github.com/firefly-engineering/onyx/internal/config"
	"github.com/firefly-engineering/onyx/internal/errors"
	"github.com/firefly-engineering/onyx/internal/logging"
)

var (
	// ErrNothingToApply means the delta's upper directory or the image is missing.
	ErrNothingToApply = stderrors.New("nothing to apply")
	// ErrAborted means the user declined the confirmation prompt.
	ErrAborted = stderrors.New("aborted by user")
)

// PromptFunc asks a question and returns the raw answer.
type PromptFunc func(question string) (string, error)

// Result summarises a commit.
type Result struct {
	Removed int // whiteouts and opaque clears applied to the base
	Copied  int // files, links and directories written
	Skipped int // special files not copied
}

// Committer merges a user's delta upper directory into its base image.
type Committer struct {
	Paths  *config.Paths
	Prompt PromptFunc
	Logger *slog.Logger

	classify func(path string, info fs.FileInfo) EntryKind
}

// NewCommitter returns a Committer that confirms through prompt.
func NewCommitter(paths *config.Paths, prompt PromptFunc) *Committer {
	return &Committer{Paths: paths, Prompt: prompt, classify: Classify}
}

// Commit applies delta/<uid>/<image>/upper onto sys/<image>. Whiteouts are
// resolved completely before any content is copied. On success the whole
// delta is removed; on failure the delta is kept so the commit can be retried.
func (c *Committer) Commit(ctx context.Context, uid int, image string) (*Result, error) {
	log := c.Logger
	if log == nil {
		log = logging.Logger
	}
	log = log.With("uid", uid, "image", image)
	classify := c.classify
	if classify == nil {
		classify = Classify
	}

	base, err := c.Paths.ImagePath(image)
	if err != nil {
		return nil, errors.ValidationError(err.Error())
	}
	delta, err := c.Paths.Delta(uid, image)
	if err != nil {
		return nil, errors.ValidationError(err.Error())
	}
	if !isDir(delta.Upper) || !isDir(base) {
		log.Debug("delta or image missing", "upper", delta.Upper, "base", base)
		return nil, ErrNothingToApply
	}

	question := fmt.Sprintf("Apply changes from %s into image %s? This permanently modifies the image.", delta.Upper, image)
	answer, err := c.Prompt(question)
	if err != nil {
		return nil, fmt.Errorf("confirmation failed: %w", err)
	}
	if a := strings.TrimSpace(answer); a != "y" && a != "Y" {
		return nil, ErrAborted
	}

	m := &merge{ctx: ctx, upper: delta.Upper, base: base, classify: classify, log: log}
	if err := m.resolveWhiteouts(); err != nil {
		return &m.result, errors.MergeError(err)
	}
	if err := m.sync(); err != nil {
		return &m.result, errors.MergeError(err)
	}

	if err := os.RemoveAll(delta.Root); err != nil {
		return &m.result, errors.MergeError(fmt.Errorf("image updated but delta not removed: %w", err))
	}
	log.Info("delta applied", "removed", m.result.Removed, "copied", m.result.Copied, "skipped", m.result.Skipped)
	return &m.result, nil
}

type merge struct {
	ctx      context.Context
	upper    string
	base     string
	classify func(string, fs.FileInfo) EntryKind
	log      *slog.Logger
	result   Result
}

// walk visits every entry below upper with its lstat info and kind.
func (m *merge) walk(fn func(rel string, info fs.FileInfo, kind EntryKind) error) error {
	return filepath.WalkDir(m.upper, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := m.ctx.Err(); err != nil {
			return err
		}
		if path == m.upper {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(m.upper, path)
		if err != nil {
			return err
		}
		return fn(rel, info, m.classify(path, info))
	})
}

// target resolves rel inside the base image without following symlinks out of it.
func (m *merge) target(rel string) (string, error) {
	parent, err := securejoin.SecureJoin(m.base, filepath.Dir(rel))
	if err != nil {
		return "", err
	}
	return filepath.Join(parent, filepath.Base(rel)), nil
}

func (m *merge) resolveWhiteouts() error {
	return m.walk(func(rel string, info fs.FileInfo, kind EntryKind) error {
		switch kind {
		case KindWhiteout:
			dst, err := m.target(WhiteoutTarget(rel))
			if err != nil {
				return err
			}
			if err := os.RemoveAll(dst); err != nil {
				return fmt.Errorf("remove %s: %w", dst, err)
			}
			m.log.Debug("whiteout applied", "path", WhiteoutTarget(rel))
			m.result.Removed++
		case KindOpaque:
			dir := OpaqueDir(rel, info)
			dst, err := securejoin.SecureJoin(m.base, dir)
			if err != nil {
				return err
			}
			if err := clearDir(dst); err != nil {
				return fmt.Errorf("clear opaque %s: %w", dst, err)
			}
			m.log.Debug("opaque directory cleared", "path", dir)
			m.result.Removed++
		}
		return nil
	})
}

func (m *merge) sync() error {
	return m.walk(func(rel string, info fs.FileInfo, kind EntryKind) error {
		switch kind {
		case KindWhiteout:
			return nil
		case KindOpaque:
			if !info.IsDir() {
				return nil
			}
			fallthrough
		case KindDirectory:
			return m.syncDir(rel, info)
		case KindRegular:
			return m.syncFile(rel, info)
		case KindSymlink:
			return m.syncSymlink(rel)
		default:
			m.log.Warn("skipping special file", "path", rel, "mode", info.Mode().String())
			m.result.Skipped++
			return nil
		}
	})
}

func (m *merge) syncDir(rel string, info fs.FileInfo) error {
	dst, err := m.target(rel)
	if err != nil {
		return err
	}
	if existing, err := os.Lstat(dst); err == nil && !existing.IsDir() {
		if err := os.RemoveAll(dst); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(dst, info.Mode().Perm()); err != nil {
		return err
	}
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return err
	}
	m.result.Copied++
	return nil
}

func (m *merge) syncFile(rel string, info fs.FileInfo) error {
	src := filepath.Join(m.upper, rel)
	dst, err := m.target(rel)
	if err != nil {
		return err
	}

	if existing, err := os.Lstat(dst); err == nil {
		if existing.Mode().IsRegular() && existing.Size() == info.Size() {
			same, err := sameContent(src, dst)
			if err != nil {
				return err
			}
			if same {
				if existing.Mode().Perm() != info.Mode().Perm() {
					return os.Chmod(dst, info.Mode().Perm())
				}
				return nil
			}
		}
		if !existing.Mode().IsRegular() {
			if err := os.RemoveAll(dst); err != nil {
				return err
			}
		}
	}

	if err := copyFile(src, dst, info.Mode().Perm()); err != nil {
		return fmt.Errorf("copy %s: %w", rel, err)
	}
	m.result.Copied++
	return nil
}

func (m *merge) syncSymlink(rel string) error {
	link, err := os.Readlink(filepath.Join(m.upper, rel))
	if err != nil {
		return err
	}
	dst, err := m.target(rel)
	if err != nil {
		return err
	}
	if current, err := os.Readlink(dst); err == nil && current == link {
		return nil
	}
	if err := os.RemoveAll(dst); err != nil {
		return err
	}
	if err := os.Symlink(link, dst); err != nil {
		return err
	}
	m.result.Copied++
	return nil
}

// sameContent compares two files of equal size by BLAKE3 digest.
func sameContent(a, b string) (bool, error) {
	da, err := digest(a)
	if err != nil {
		return false, err
	}
	db, err := digest(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(da, db), nil
}

func digest(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// copyFile writes src to a temporary sibling of dst and renames it into place.
func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".onyx-merge-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, dst)
}

func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
