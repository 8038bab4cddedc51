package store

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
)

// CopyStats counts what a copy or extraction wrote.
type CopyStats struct {
	Files    int
	Dirs     int
	Symlinks int
	Links    int
	// Skipped counts device nodes, FIFOs and sockets, which are never
	// recreated inside the store.
	Skipped int
}

// pendingMode defers directory permissions until their contents exist,
// so read-only directories can still be populated.
type pendingMode struct {
	path string
	mode fs.FileMode
}

// CopyTree copies the directory src to dest, which must not exist.
// Symlinks are recreated verbatim, special files are skipped, and
// ownership is preserved when running as root.
func CopyTree(ctx context.Context, src, dest string) (CopyStats, error) {
	var stats CopyStats
	var dirs []pendingMode
	preserveOwner := os.Geteuid() == 0

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch mode := info.Mode(); {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("create directory %s: %w", rel, err)
			}
			dirs = append(dirs, pendingMode{target, mode.Perm() | (mode & (fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky))})
			stats.Dirs++
		case mode&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return fmt.Errorf("read symlink %s: %w", rel, err)
			}
			if err := os.Symlink(link, target); err != nil {
				return fmt.Errorf("create symlink %s: %w", rel, err)
			}
			stats.Symlinks++
		case mode.IsRegular():
			if err := copyFile(path, target, mode); err != nil {
				return fmt.Errorf("copy %s: %w", rel, err)
			}
			stats.Files++
		default:
			stats.Skipped++
			return nil
		}

		if preserveOwner {
			if st, ok := info.Sys().(*syscall.Stat_t); ok {
				if err := os.Lchown(target, int(st.Uid), int(st.Gid)); err != nil {
					return fmt.Errorf("chown %s: %w", rel, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return stats, err
	}
	return stats, applyDirModes(dirs)
}

func applyDirModes(dirs []pendingMode) error {
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := os.Chmod(dirs[i].path, dirs[i].mode); err != nil {
			return fmt.Errorf("chmod %s: %w", dirs[i].path, err)
		}
	}
	return nil
}

func copyFile(src, dest string, mode fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	return writeFile(in, dest, mode)
}

func writeFile(r io.Reader, dest string, mode fs.FileMode) error {
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	// Chmod after writing so setuid bits survive and umask is ignored.
	return os.Chmod(dest, mode&(fs.ModePerm|fs.ModeSetuid|fs.ModeSetgid|fs.ModeSticky))
}
