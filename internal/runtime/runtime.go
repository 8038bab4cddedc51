package runtime

import (
	"context"
	"errors"
	"log/slog"

	"github.com/firefly-engineering/onyx/internal/config"
	"github.com/firefly-engineering/onyx/internal/logging"
	"github.com/firefly-engineering/onyx/internal/system"
)

// Isolation describes how strongly a session is separated from the host.
type Isolation string

const (
	// IsolationNamespace is a private kernel mount namespace.
	IsolationNamespace Isolation = "mount-namespace"
	// IsolationPrivateMounts means unshare failed and the host mount tree
	// was only marked private. Session mounts do not propagate but live in
	// the host namespace.
	IsolationPrivateMounts Isolation = "private-mounts"
	// IsolationUserNamespace is the unprivileged overlay chain.
	IsolationUserNamespace Isolation = "user-namespace"
	// IsolationEmulatedOnly is proot directly on the image, with no
	// namespace and no delta. Writes land in the image.
	IsolationEmulatedOnly Isolation = "emulated"
)

// Degraded reports whether the level is weaker than its path's primary mode.
func (i Isolation) Degraded() bool {
	return i == IsolationPrivateMounts || i == IsolationEmulatedOnly
}

// Request describes one session.
type Request struct {
	Image     string
	ImageRoot string

	// UID and GID are the caller's ids. The unprivileged chain maps root
	// inside its user namespace to them.
	UID int
	GID int

	Delta config.DeltaPaths
	// Persist layers Delta over the image so writes survive the session.
	Persist bool

	// Command is run with the image shell's -c. Empty means an
	// interactive shell.
	Command []string

	// Term is passed through as TERM.
	Term string

	// Limits are placed on the sandboxed process and its children.
	Limits system.Limits

	Logger *slog.Logger
}

func (r Request) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return logging.Logger
}

// Result describes how a session ran.
type Result struct {
	Strategy  string
	Isolation Isolation
	// Persistent is true when writes went to the delta.
	Persistent bool
	// Fallback is true when the primary mode failed and a weaker one ran.
	Fallback bool
	// ExitCode is the sandboxed process's status, passed through as is.
	ExitCode int
	// Attempts lists the modes tried, in order.
	Attempts []string
}

// Strategy runs sessions for one privilege level.
type Strategy interface {
	Name() string
	Run(ctx context.Context, req Request) (*Result, error)
}

// Deps are the collaborators a strategy needs.
type Deps struct {
	Paths    *config.Paths
	Mounter  system.Mounter
	Executor system.CommandExecutor
}

// Select picks the strategy for the effective uid.
func Select(euid int, deps Deps) Strategy {
	if euid == 0 {
		return &Privileged{Paths: deps.Paths, Mounter: deps.Mounter, Executor: deps.Executor}
	}
	return &Unprivileged{Paths: deps.Paths, Executor: deps.Executor, SettleDelay: config.SettleDelay}
}

// exitStatus separates the sandboxed process's own exit status, which is
// passed through, from failures to run it at all.
func exitStatus(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *system.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, nil
	}
	return 0, err
}
