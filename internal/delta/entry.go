package delta

import (
	"io/fs"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// EntryKind is the merge-relevant type of an entry in an upper directory.
type EntryKind int

const (
	KindRegular EntryKind = iota
	KindDirectory
	KindSymlink
	// KindWhiteout marks a path deleted in the session.
	KindWhiteout
	// KindOpaque marks a directory whose lower contents are hidden.
	KindOpaque
	// KindOtherSpecial covers devices, FIFOs and sockets.
	KindOtherSpecial
)

func (k EntryKind) String() string {
	switch k {
	case KindRegular:
		return "regular"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	case KindWhiteout:
		return "whiteout"
	case KindOpaque:
		return "opaque"
	default:
		return "special"
	}
}

const (
	whiteoutPrefix = ".wh."
	opaqueMarker   = ".wh..wh..opq"
)

var opaqueXattrs = []string{"trusted.overlay.opaque", "user.overlay.opaque"}

// Classify returns the kind of the entry at path, using lstat info.
func Classify(path string, info fs.FileInfo) EntryKind {
	name := info.Name()
	mode := info.Mode()

	switch {
	case mode&fs.ModeCharDevice != 0 && mode&fs.ModeDevice != 0:
		if isZeroDevice(info) {
			return KindWhiteout
		}
		return KindOtherSpecial
	case mode.IsDir():
		if hasOpaqueXattr(path) {
			return KindOpaque
		}
		return KindDirectory
	case mode&fs.ModeSymlink != 0:
		return KindSymlink
	case mode.IsRegular():
		if name == opaqueMarker {
			return KindOpaque
		}
		if strings.HasPrefix(name, whiteoutPrefix) {
			return KindWhiteout
		}
		return KindRegular
	default:
		return KindOtherSpecial
	}
}

// WhiteoutTarget returns the path, relative to the upper root, that a
// whiteout at rel hides.
func WhiteoutTarget(rel string) string {
	dir, name := filepath.Split(rel)
	if strings.HasPrefix(name, whiteoutPrefix) && name != opaqueMarker {
		return filepath.Join(dir, strings.TrimPrefix(name, whiteoutPrefix))
	}
	return rel
}

// OpaqueDir returns the directory, relative to the upper root, that an
// opaque entry at rel applies to.
func OpaqueDir(rel string, info fs.FileInfo) string {
	if info.IsDir() {
		return rel
	}
	return filepath.Dir(rel)
}

func isZeroDevice(info fs.FileInfo) bool {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return false
	}
	rdev := uint64(st.Rdev)
	return unix.Major(rdev) == 0 && unix.Minor(rdev) == 0
}

func hasOpaqueXattr(path string) bool {
	buf := make([]byte, 1)
	for _, attr := range opaqueXattrs {
		n, err := unix.Lgetxattr(path, attr, buf)
		if err == nil && n == 1 && buf[0] == 'y' {
			return true
		}
	}
	return false
}
