package store

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/klauspost/compress/zstd"
)

// ExtractArchive unpacks a .tar, .tar.zst or .tar.zstd rootfs archive into
// dest. Entry paths and hard link targets are confined to dest; device
// nodes and FIFOs are skipped.
func ExtractArchive(ctx context.Context, src, dest string) (CopyStats, error) {
	var stats CopyStats

	file, err := os.Open(src)
	if err != nil {
		return stats, fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	var r io.Reader = file
	if strings.HasSuffix(src, ".zst") || strings.HasSuffix(src, ".zstd") {
		zr, err := zstd.NewReader(file)
		if err != nil {
			return stats, fmt.Errorf("create zstd reader: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	if err := os.MkdirAll(dest, 0755); err != nil {
		return stats, fmt.Errorf("create image directory: %w", err)
	}

	var dirs []pendingMode
	preserveOwner := os.Geteuid() == 0

	tr := tar.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("read tar entry: %w", err)
		}

		name := filepath.Clean("/" + hdr.Name)
		if name == "/" {
			continue
		}
		target, err := entryPath(dest, name)
		if err != nil {
			return stats, fmt.Errorf("resolve %s: %w", hdr.Name, err)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return stats, fmt.Errorf("create parent of %s: %w", hdr.Name, err)
		}

		mode := hdr.FileInfo().Mode()
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return stats, fmt.Errorf("create directory %s: %w", hdr.Name, err)
			}
			dirs = append(dirs, pendingMode{target, mode & (fs.ModePerm | fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky)})
			stats.Dirs++
		case tar.TypeReg:
			if err := replaceable(target); err != nil {
				return stats, err
			}
			if err := writeFile(tr, target, mode); err != nil {
				return stats, fmt.Errorf("write %s: %w", hdr.Name, err)
			}
			stats.Files++
		case tar.TypeSymlink:
			if err := replaceable(target); err != nil {
				return stats, err
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return stats, fmt.Errorf("create symlink %s: %w", hdr.Name, err)
			}
			stats.Symlinks++
		case tar.TypeLink:
			old, err := entryPath(dest, filepath.Clean("/"+hdr.Linkname))
			if err != nil {
				return stats, fmt.Errorf("resolve link target of %s: %w", hdr.Name, err)
			}
			if err := replaceable(target); err != nil {
				return stats, err
			}
			if err := os.Link(old, target); err != nil {
				return stats, fmt.Errorf("create hard link %s: %w", hdr.Name, err)
			}
			stats.Links++
		default:
			stats.Skipped++
			continue
		}

		if preserveOwner {
			if err := os.Lchown(target, hdr.Uid, hdr.Gid); err != nil {
				return stats, fmt.Errorf("chown %s: %w", hdr.Name, err)
			}
		}
	}

	return stats, applyDirModes(dirs)
}

// entryPath resolves the parent of name inside root and appends the final
// component unresolved, so an entry can replace a symlink rather than
// write through it.
func entryPath(root, name string) (string, error) {
	parent, err := securejoin.SecureJoin(root, filepath.Dir(name))
	if err != nil {
		return "", err
	}
	return filepath.Join(parent, filepath.Base(name)), nil
}

// replaceable removes an existing non-directory at path so a later
// archive entry wins.
func replaceable(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s: archive entry would replace a directory", path)
	}
	return os.Remove(path)
}
