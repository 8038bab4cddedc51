package store

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/firefly-engineering/onyx/internal/audit"
	"github.com/firefly-engineering/onyx/internal/config"
	onyxerrors "github.com/firefly-engineering/onyx/internal/errors"
)

func newTestStore(t *testing.T) (*Store, *config.Paths) {
	t.Helper()
	paths := config.NewPaths(t.TempDir())
	return New(paths, audit.NewLogger(paths)), paths
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestCreate_Copy(t *testing.T) {
	s, paths := newTestStore(t)
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"etc/hostname": "alpine\n",
		"bin/busybox":  "elf",
	})
	if err := os.Symlink("busybox", filepath.Join(src, "bin", "sh")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	result, err := s.Create(context.Background(), "alpine", src, CreateOptions{})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if result.Method != "copy" {
		t.Errorf("Method = %q, want copy", result.Method)
	}
	if result.Stats.Files != 2 || result.Stats.Symlinks != 1 {
		t.Errorf("Stats = %+v, want 2 files and 1 symlink", result.Stats)
	}

	root := filepath.Join(paths.SysDir, "alpine")
	if got := readFile(t, filepath.Join(root, "etc", "hostname")); got != "alpine\n" {
		t.Errorf("hostname = %q", got)
	}
	link, err := os.Readlink(filepath.Join(root, "bin", "sh"))
	if err != nil || link != "busybox" {
		t.Errorf("bin/sh link = %q, %v; want busybox", link, err)
	}
	if _, err := os.Stat(filepath.Join(src, "etc", "hostname")); err != nil {
		t.Error("copy should leave the source in place")
	}

	events, err := audit.NewLogger(paths).Events("alpine")
	if err != nil {
		t.Fatalf("Events() error: %v", err)
	}
	if len(events) != 1 || events[0].Type != audit.EventCreate {
		t.Errorf("events = %+v, want one create event", events)
	}
}

func TestCreate_Move(t *testing.T) {
	s, paths := newTestStore(t)
	// Keep the source on the same filesystem as the store.
	src := filepath.Join(paths.StoreDir, "incoming")
	writeTree(t, src, map[string]string{"etc/os-release": "ID=test\n"})

	result, err := s.Create(context.Background(), "moved", src, CreateOptions{Move: true})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if result.Method != "move" {
		t.Errorf("Method = %q, want move", result.Method)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("source should be gone after move, stat err = %v", err)
	}
	if got := readFile(t, filepath.Join(paths.SysDir, "moved", "etc", "os-release")); got != "ID=test\n" {
		t.Errorf("os-release = %q", got)
	}
}

func TestCreate_DuplicateLeavesFirstImage(t *testing.T) {
	s, paths := newTestStore(t)
	first := t.TempDir()
	writeTree(t, first, map[string]string{"marker": "first"})
	second := t.TempDir()
	writeTree(t, second, map[string]string{"marker": "second", "extra": "x"})

	if _, err := s.Create(context.Background(), "img", first, CreateOptions{}); err != nil {
		t.Fatalf("first Create() error: %v", err)
	}

	_, err := s.Create(context.Background(), "img", second, CreateOptions{})
	if !onyxerrors.HasCode(err, onyxerrors.ExitImageExists) {
		t.Fatalf("second Create() error = %v, want ImageExists", err)
	}

	root := filepath.Join(paths.SysDir, "img")
	if got := readFile(t, filepath.Join(root, "marker")); got != "first" {
		t.Errorf("marker = %q, want first", got)
	}
	if _, err := os.Stat(filepath.Join(root, "extra")); !os.IsNotExist(err) {
		t.Error("second source leaked into the first image")
	}
}

func TestCreate_Validation(t *testing.T) {
	s, _ := newTestStore(t)
	file := filepath.Join(t.TempDir(), "notes.txt")
	writeTree(t, filepath.Dir(file), map[string]string{"notes.txt": "hi"})
	archive := filepath.Join(t.TempDir(), "root.tar")
	writeTar(t, archive, nil)

	tests := []struct {
		name   string
		image  string
		source string
		opts   CreateOptions
	}{
		{"invalid name", "../escape", t.TempDir(), CreateOptions{}},
		{"missing source", "img", filepath.Join(t.TempDir(), "nope"), CreateOptions{}},
		{"plain file", "img", file, CreateOptions{}},
		{"move archive", "img", archive, CreateOptions{Move: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Create(context.Background(), tt.image, tt.source, tt.opts); err == nil {
				t.Error("Create() should fail")
			}
			if s.Exists("img") {
				t.Error("failed Create() left an image behind")
			}
		})
	}
}

func TestCreate_SkipsSpecialFiles(t *testing.T) {
	s, paths := newTestStore(t)
	src := t.TempDir()
	writeTree(t, src, map[string]string{"file": "x"})
	if err := mkfifo(filepath.Join(src, "pipe")); err != nil {
		t.Skipf("mkfifo unavailable: %v", err)
	}

	result, err := s.Create(context.Background(), "fifo", src, CreateOptions{})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if result.Stats.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Stats.Skipped)
	}
	if _, err := os.Lstat(filepath.Join(paths.SysDir, "fifo", "pipe")); !os.IsNotExist(err) {
		t.Error("FIFO should not be recreated in the image")
	}
}

func TestCreate_PreservesModes(t *testing.T) {
	s, paths := newTestStore(t)
	src := t.TempDir()
	writeTree(t, src, map[string]string{"bin/tool": "#!/bin/sh\n", "ro/file": "x"})
	if err := os.Chmod(filepath.Join(src, "bin", "tool"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(filepath.Join(src, "ro"), 0555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(filepath.Join(src, "ro"), 0755) })

	if _, err := s.Create(context.Background(), "modes", src, CreateOptions{}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	root := filepath.Join(paths.SysDir, "modes")
	t.Cleanup(func() { os.Chmod(filepath.Join(root, "ro"), 0755) })

	info, err := os.Stat(filepath.Join(root, "bin", "tool"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0755 {
		t.Errorf("tool mode = %v, want 0755", info.Mode().Perm())
	}
	info, err = os.Stat(filepath.Join(root, "ro"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0555 {
		t.Errorf("ro mode = %v, want 0555", info.Mode().Perm())
	}
}

type tarEntry struct {
	hdr  tar.Header
	body string
}

func writeTar(t *testing.T, path string, entries []tarEntry) {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		hdr := e.hdr
		hdr.Size = int64(len(e.body))
		if err := tw.WriteHeader(&hdr); err != nil {
			t.Fatalf("WriteHeader: %v", err)
		}
		if _, err := tw.Write([]byte(e.body)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar Close: %v", err)
	}

	data := buf.Bytes()
	if filepath.Ext(path) == ".zst" {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			t.Fatalf("zstd.NewWriter: %v", err)
		}
		data = enc.EncodeAll(data, nil)
		enc.Close()
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
}

func rootfsEntries() []tarEntry {
	return []tarEntry{
		{hdr: tar.Header{Name: "etc/", Typeflag: tar.TypeDir, Mode: 0755}},
		{hdr: tar.Header{Name: "etc/hostname", Typeflag: tar.TypeReg, Mode: 0644}, body: "box\n"},
		{hdr: tar.Header{Name: "bin/busybox", Typeflag: tar.TypeReg, Mode: 0755}, body: "elf"},
		{hdr: tar.Header{Name: "bin/sh", Typeflag: tar.TypeSymlink, Linkname: "busybox"}},
		{hdr: tar.Header{Name: "bin/ash", Typeflag: tar.TypeLink, Linkname: "bin/busybox"}},
		{hdr: tar.Header{Name: "dev/null", Typeflag: tar.TypeChar, Mode: 0666, Devmajor: 1, Devminor: 3}},
	}
}

func TestCreate_FromArchive(t *testing.T) {
	for _, name := range []string{"rootfs.tar", "rootfs.tar.zst"} {
		t.Run(name, func(t *testing.T) {
			s, paths := newTestStore(t)
			archive := filepath.Join(t.TempDir(), name)
			writeTar(t, archive, rootfsEntries())

			result, err := s.Create(context.Background(), "box", archive, CreateOptions{})
			if err != nil {
				t.Fatalf("Create() error: %v", err)
			}
			if result.Method != "extract" {
				t.Errorf("Method = %q, want extract", result.Method)
			}
			if result.Stats.Skipped != 1 {
				t.Errorf("Skipped = %d, want 1 (dev/null)", result.Stats.Skipped)
			}

			root := filepath.Join(paths.SysDir, "box")
			if got := readFile(t, filepath.Join(root, "etc", "hostname")); got != "box\n" {
				t.Errorf("hostname = %q", got)
			}
			if got := readFile(t, filepath.Join(root, "bin", "ash")); got != "elf" {
				t.Errorf("hard link content = %q", got)
			}
			if link, _ := os.Readlink(filepath.Join(root, "bin", "sh")); link != "busybox" {
				t.Errorf("bin/sh = %q, want busybox", link)
			}
			if _, err := os.Lstat(filepath.Join(root, "dev", "null")); !os.IsNotExist(err) {
				t.Error("device node should be skipped")
			}
		})
	}
}

func TestExtractArchive_ConfinesPaths(t *testing.T) {
	outside := t.TempDir()
	dest := filepath.Join(t.TempDir(), "img")
	archive := filepath.Join(t.TempDir(), "evil.tar")
	writeTar(t, archive, []tarEntry{
		{hdr: tar.Header{Name: "../../" + filepath.Base(outside) + "/pwned", Typeflag: tar.TypeReg, Mode: 0644}, body: "x"},
		{hdr: tar.Header{Name: "escape", Typeflag: tar.TypeSymlink, Linkname: outside}},
		{hdr: tar.Header{Name: "escape/through-link", Typeflag: tar.TypeReg, Mode: 0644}, body: "y"},
	})

	if _, err := ExtractArchive(context.Background(), archive, dest); err != nil {
		t.Fatalf("ExtractArchive() error: %v", err)
	}

	entries, err := os.ReadDir(outside)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("archive wrote outside the image: %v", entries)
	}
	if got := readFile(t, filepath.Join(dest, filepath.Base(outside), "pwned")); got != "x" {
		t.Errorf("pwned = %q, want it confined to the image root", got)
	}
}

func TestDelete(t *testing.T) {
	s, paths := newTestStore(t)
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a/b/c": "deep"})
	if _, err := s.Create(context.Background(), "gone", src, CreateOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create(context.Background(), "kept", src, CreateOptions{}); err != nil {
		t.Fatal(err)
	}

	if err := s.Delete("gone"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(paths.SysDir, "gone")); !os.IsNotExist(err) {
		t.Error("image directory should be absent after Delete")
	}
	if !s.Exists("kept") {
		t.Error("Delete removed an unrelated image")
	}
}

func TestDelete_Missing(t *testing.T) {
	s, paths := newTestStore(t)
	src := t.TempDir()
	writeTree(t, src, map[string]string{"f": "x"})
	if _, err := s.Create(context.Background(), "present", src, CreateOptions{}); err != nil {
		t.Fatal(err)
	}

	before, err := os.ReadDir(paths.SysDir)
	if err != nil {
		t.Fatal(err)
	}

	err = s.Delete("absent")
	if !onyxerrors.HasCode(err, onyxerrors.ExitImageNotFound) {
		t.Fatalf("Delete() error = %v, want ImageNotFound", err)
	}

	after, err := os.ReadDir(paths.SysDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(before) != len(after) {
		t.Errorf("Delete of a missing image changed the store: %d -> %d entries", len(before), len(after))
	}
}

func TestList(t *testing.T) {
	s, paths := newTestStore(t)

	images, err := s.List()
	if err != nil {
		t.Fatalf("List() on empty store error: %v", err)
	}
	if len(images) != 0 {
		t.Errorf("List() = %v, want empty", images)
	}

	src := t.TempDir()
	writeTree(t, src, map[string]string{"a": "12345", "dir/b": "123"})
	for _, name := range []string{"zeta", "alpha"} {
		if _, err := s.Create(context.Background(), name, src, CreateOptions{}); err != nil {
			t.Fatal(err)
		}
	}
	// Stray files in sys/ are not images.
	if err := os.WriteFile(filepath.Join(paths.SysDir, "README"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	images, err = s.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("List() returned %d images, want 2", len(images))
	}
	if images[0].Name != "alpha" || images[1].Name != "zeta" {
		t.Errorf("List() order = %s, %s; want alpha, zeta", images[0].Name, images[1].Name)
	}
	if images[0].Size != 8 {
		t.Errorf("Size = %d, want 8", images[0].Size)
	}
	if images[0].ModTime.IsZero() {
		t.Error("ModTime should be set")
	}
}

func TestList_SkipsUnreadable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	s, paths := newTestStore(t)
	src := t.TempDir()
	writeTree(t, src, map[string]string{"sub/f": "x"})
	for _, name := range []string{"open", "locked"} {
		if _, err := s.Create(context.Background(), name, src, CreateOptions{}); err != nil {
			t.Fatal(err)
		}
	}
	locked := filepath.Join(paths.SysDir, "locked")
	if err := os.Chmod(locked, 0); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	images, err := s.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(images) != 1 || images[0].Name != "open" {
		t.Errorf("List() = %+v, want only the readable image", images)
	}
}

func TestRoot(t *testing.T) {
	s, paths := newTestStore(t)
	if _, err := s.Root("missing"); !onyxerrors.HasCode(err, onyxerrors.ExitImageNotFound) {
		t.Errorf("Root(missing) error = %v, want ImageNotFound", err)
	}

	src := t.TempDir()
	writeTree(t, src, map[string]string{"f": "x"})
	if _, err := s.Create(context.Background(), "img", src, CreateOptions{}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Root("img")
	if err != nil {
		t.Fatalf("Root() error: %v", err)
	}
	if want := filepath.Join(paths.SysDir, "img"); got != want {
		t.Errorf("Root() = %q, want %q", got, want)
	}
}

func TestIsArchive(t *testing.T) {
	tests := map[string]bool{
		"alpine.tar":      true,
		"alpine.tar.zst":  true,
		"alpine.tar.zstd": true,
		"alpine.tar.gz":   false,
		"alpine":          false,
	}
	for path, want := range tests {
		if got := IsArchive(path); got != want {
			t.Errorf("IsArchive(%q) = %v, want %v", path, got, want)
		}
	}
}

func lockDir(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(dir, 0555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(dir, 0755) })
}

func TestCreate_ReadOnlyStoreIsAuthorization(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	s, paths := newTestStore(t)
	src := t.TempDir()
	writeTree(t, src, map[string]string{"etc/hostname": "alpine\n"})
	lockDir(t, paths.SysDir)

	_, err := s.Create(context.Background(), "alpine", src, CreateOptions{})
	if !onyxerrors.HasCode(err, onyxerrors.ExitAuthorization) {
		t.Errorf("Create() error = %v, want AuthorizationError", err)
	}
}

func TestDelete_ReadOnlyStoreIsAuthorization(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	s, paths := newTestStore(t)
	src := t.TempDir()
	writeTree(t, src, map[string]string{"etc/hostname": "alpine\n"})
	if _, err := s.Create(context.Background(), "alpine", src, CreateOptions{}); err != nil {
		t.Fatal(err)
	}
	lockDir(t, paths.SysDir)

	err := s.Delete("alpine")
	if !onyxerrors.HasCode(err, onyxerrors.ExitAuthorization) {
		t.Errorf("Delete() error = %v, want AuthorizationError", err)
	}
	if !s.Exists("alpine") {
		t.Error("image directory should survive a refused delete")
	}
}

func TestStoreError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"permission", &os.PathError{Op: "mkdir", Path: "/s", Err: syscall.EACCES}, onyxerrors.ExitAuthorization},
		{"read-only filesystem", syscall.EROFS, onyxerrors.ExitStorageError},
		{"no space", fmt.Errorf("copy a: %w", syscall.ENOSPC), onyxerrors.ExitStorageError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := onyxerrors.GetExitCode(storeError("copy", tt.err)); got != tt.want {
				t.Errorf("exit code = %d, want %d", got, tt.want)
			}
		})
	}
}
