// Package testutil provides test utilities for command tests
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/firefly-engineering/onyx/internal/app"
	"github.com/firefly-engineering/onyx/internal/config"
	"github.com/firefly-engineering/onyx/internal/diag"
	"github.com/firefly-engineering/onyx/internal/profile"
	"github.com/firefly-engineering/onyx/internal/system"
)

// TestEnv holds the test environment
type TestEnv struct {
	T        *testing.T
	TmpDir   string
	Paths    *config.Paths
	Mounter  *system.MockMounter
	Executor *system.MockExecutor
	Process  *system.MockProcess
	App      *app.App
	cleanup  func()
}

// NewTestEnv creates a store in a temp directory and installs an app wired
// to mocks as app.Default. The process runs as uid 1000 unless AsRoot is
// called.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	tmpDir := t.TempDir()
	paths := config.NewPaths(filepath.Join(tmpDir, "store"))

	for _, dir := range []string{
		paths.SysDir,
		paths.DeltaDir,
		paths.ProfilesDir,
		paths.BinDir,
		paths.AuditDir,
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}

	mounter := system.NewMockMounter()
	executor := system.NewMockExecutor()
	process := system.NewMockProcess(1000)

	testApp := app.New(
		app.WithPaths(paths),
		app.WithMounter(mounter),
		app.WithExecutor(executor),
		app.WithProcess(process),
		app.WithMemory(diag.Fixed(8192)),
	)

	// Save original default and set test app
	originalDefault := app.Default
	app.SetDefault(testApp)

	env := &TestEnv{
		T:        t,
		TmpDir:   tmpDir,
		Paths:    paths,
		Mounter:  mounter,
		Executor: executor,
		Process:  process,
		App:      testApp,
		cleanup: func() {
			app.SetDefault(originalDefault)
		},
	}
	t.Cleanup(env.Cleanup)

	return env
}

// Cleanup restores the original app default
func (e *TestEnv) Cleanup() {
	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}
}

// AsRoot makes the mock process report euid 0.
func (e *TestEnv) AsRoot() *TestEnv {
	e.Process.Euid = 0
	e.Process.Egid = 0
	return e
}

// WriteTree creates files under root from a relative path to content map.
func WriteTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create parent of %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", rel, err)
		}
	}
}

// ReadFile returns the content of path, failing the test if unreadable.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return string(data)
}

// Rootfs writes a minimal root filesystem tree outside the store and
// returns its path.
func (e *TestEnv) Rootfs(name string, files map[string]string) string {
	e.T.Helper()

	root := filepath.Join(e.TmpDir, "rootfs", name)
	all := map[string]string{
		"bin/sh":         "#!elf",
		"etc/os-release": "ID=" + name + "\n",
	}
	for k, v := range files {
		all[k] = v
	}
	WriteTree(e.T, root, all)
	return root
}

// AddImage stores an image directly under sys/ and returns its root.
func (e *TestEnv) AddImage(name string, files map[string]string) string {
	e.T.Helper()

	root := filepath.Join(e.Paths.SysDir, name)
	WriteTree(e.T, root, files)
	if len(files) == 0 {
		if err := os.MkdirAll(root, 0755); err != nil {
			e.T.Fatalf("Failed to create image: %v", err)
		}
	}
	return root
}

// AddDelta writes files into the upper directory of (uid, image).
func (e *TestEnv) AddDelta(uid int, image string, files map[string]string) config.DeltaPaths {
	e.T.Helper()

	d, err := e.Paths.Delta(uid, image)
	if err != nil {
		e.T.Fatalf("Invalid delta: %v", err)
	}
	if err := d.Ensure(); err != nil {
		e.T.Fatalf("Failed to create delta: %v", err)
	}
	WriteTree(e.T, d.Upper, files)
	return d
}

// AddProfile saves a profile record.
func (e *TestEnv) AddProfile(p profile.Profile) {
	e.T.Helper()

	if err := profile.Save(e.Paths.ProfilesDir, p); err != nil {
		e.T.Fatalf("Failed to save profile: %v", err)
	}
}

// SetCurrentProfile writes the current-profile pointer without checks.
func (e *TestEnv) SetCurrentProfile(name string) {
	e.T.Helper()

	if err := os.WriteFile(e.Paths.CurrentProfileFile, []byte(name+"\n"), 0644); err != nil {
		e.T.Fatalf("Failed to write current profile: %v", err)
	}
}

// InstallHelpers places executable stand-ins for external helpers in
// <store>/bin so lookups never reach the host PATH.
func (e *TestEnv) InstallHelpers(names ...string) {
	e.T.Helper()

	for _, name := range names {
		path := filepath.Join(e.Paths.BinDir, name)
		if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0755); err != nil {
			e.T.Fatalf("Failed to install helper %s: %v", name, err)
		}
	}
}

// Helper returns the path of an installed helper.
func (e *TestEnv) Helper(name string) string {
	return filepath.Join(e.Paths.BinDir, name)
}

// ImageExists reports whether an image directory exists.
func (e *TestEnv) ImageExists(name string) bool {
	return e.App.Store.Exists(name)
}
