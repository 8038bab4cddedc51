package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
)

const (
	// DefaultStoreDir is used when neither --store nor ONYX_DIR is set.
	DefaultStoreDir = "/home/onyx"
	// StoreDirEnv overrides the default store root.
	StoreDirEnv = "ONYX_DIR"

	// BackupProfileName is the synthetic profile used when nothing else resolves.
	BackupProfileName = "backup"

	// SandboxHome is HOME inside every session.
	SandboxHome = "/root"
	// DefaultTerm is used when the caller has no TERM.
	DefaultTerm = "xterm-256color"
	// CanonicalPath is PATH inside every session.
	CanonicalPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"
	// DefaultShell is used when no candidate shell exists in the image.
	DefaultShell = "/bin/sh"

	// SettleDelay is how long the unprivileged chain waits for the FUSE
	// overlay to come up before starting proot.
	SettleDelay = time.Second
)

// ShellCandidates are tried in order, relative to the session root.
var ShellCandidates = []string{
	"usr/bin/zsh",
	"bin/bash",
	"bin/ash",
	"bin/sh",
	"usr/bin/bash",
}

// Environment variables that must never reach a sandboxed process.
var StrippedEnv = []string{"LD_PRELOAD", "LD_LIBRARY_PATH", "LD_AUDIT"}

// nameRegex validates image and profile names.
// Names start with a letter or digit, followed by letters, digits, dots,
// underscores, or hyphens. Maximum length is 63 characters.
var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,62}$`)

// ValidateName checks if an image or profile name is valid.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("invalid name %q: must start with a letter or digit, contain only letters, digits, dots, underscores, or hyphens, and be at most 63 characters", name)
	}
	return nil
}

// ResolveStoreDir picks the store root: explicit flag, then $ONYX_DIR, then the default.
func ResolveStoreDir(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(StoreDirEnv); env != "" {
		return env
	}
	return DefaultStoreDir
}

// Paths holds the configured paths
type Paths struct {
	StoreDir           string
	SysDir             string
	DeltaDir           string
	ProfilesDir        string
	CurrentProfileFile string
	BinDir             string
	AuditDir           string
}

// NewPaths derives every store location from a root directory.
func NewPaths(storeDir string) *Paths {
	return &Paths{
		StoreDir:           storeDir,
		SysDir:             filepath.Join(storeDir, "sys"),
		DeltaDir:           filepath.Join(storeDir, "delta"),
		ProfilesDir:        filepath.Join(storeDir, "profiles"),
		CurrentProfileFile: filepath.Join(storeDir, "current-profile"),
		BinDir:             filepath.Join(storeDir, "bin"),
		AuditDir:           filepath.Join(storeDir, "audit"),
	}
}

// DefaultPaths returns the paths for the store resolved from the environment.
func DefaultPaths() *Paths {
	return NewPaths(ResolveStoreDir(""))
}

// join validates name and resolves it beneath base. The result never escapes base.
func join(base, name, suffix string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return securejoin.SecureJoin(base, name+suffix)
}

// ImagePath returns <store>/sys/<name>.
func (p *Paths) ImagePath(name string) (string, error) {
	return join(p.SysDir, name, "")
}

// ProfilePath returns <store>/profiles/<name>.toml.
func (p *Paths) ProfilePath(name string) (string, error) {
	return join(p.ProfilesDir, name, ".toml")
}

// AuditPath returns the event log for an image.
func (p *Paths) AuditPath(name string) (string, error) {
	return join(p.AuditDir, name, ".events.jsonl")
}

// DeltaPaths is the per-(user, image) overlay directory set.
type DeltaPaths struct {
	Root   string
	Upper  string
	Work   string
	Merged string
}

// Delta returns the delta directories for uid and image name.
func (p *Paths) Delta(uid int, name string) (DeltaPaths, error) {
	if uid < 0 {
		return DeltaPaths{}, fmt.Errorf("invalid uid %d", uid)
	}
	userDir, err := securejoin.SecureJoin(p.DeltaDir, strconv.Itoa(uid))
	if err != nil {
		return DeltaPaths{}, err
	}
	root, err := join(userDir, name, "")
	if err != nil {
		return DeltaPaths{}, err
	}
	return DeltaPaths{
		Root:   root,
		Upper:  filepath.Join(root, "upper"),
		Work:   filepath.Join(root, "work"),
		Merged: filepath.Join(root, "merged"),
	}, nil
}

// Ensure creates upper, work and merged if missing.
func (d DeltaPaths) Ensure() error {
	for _, dir := range []string{d.Upper, d.Work, d.Merged} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// LookupHelper finds an external helper binary, preferring <store>/bin over $PATH.
func (p *Paths) LookupHelper(name string) (string, error) {
	local := filepath.Join(p.BinDir, name)
	if info, err := os.Stat(local); err == nil && !info.IsDir() && info.Mode()&0111 != 0 {
		return local, nil
	}
	return exec.LookPath(name)
}
