// Package system provides abstractions for OS operations to enable testing.
package system

import (
	"context"
	"fmt"
	"io"
)

// IDMap maps root inside a new user namespace to a host uid and gid.
type IDMap struct {
	UID int
	GID int
}

// CommandSpec describes a child process.
type CommandSpec struct {
	Name string
	Args []string

	// Env replaces the child's environment when non-nil.
	Env []string

	// UserNamespace starts the child in a new user and mount namespace
	// with root mapped to the given ids.
	UserNamespace *IDMap

	// Limits are placed on the child only.
	Limits Limits

	// Nil streams are connected to the terminal.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Limits are scheduling and resource limits for a child process.
type Limits struct {
	// Nice is the child's niceness when set.
	Nice *int
	// Cores pins the child to cores 0..Cores-1. Zero leaves it unpinned.
	Cores int
	// MemoryBytes caps the child's address space. Zero is no cap.
	MemoryBytes uint64

	// OnError receives each limit ("cpu", "nice" or "memory") that could
	// not be applied. The child runs without it.
	OnError func(limit string, err error)
}

// IsZero reports whether no limit is set.
func (l Limits) IsZero() bool {
	return l.Nice == nil && l.Cores <= 0 && l.MemoryBytes == 0
}

func (l Limits) report(limit string, err error) {
	if err != nil && l.OnError != nil {
		l.OnError(limit, err)
	}
}

// ExitError reports a child that ran and exited non-zero.
type ExitError struct {
	Name string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Name, e.Code)
}

// CommandExecutor abstracts command execution for testability.
type CommandExecutor interface {
	// Execute runs a command and returns its combined output.
	Execute(ctx context.Context, name string, args ...string) ([]byte, error)

	// ExecuteInteractive runs a command with stdio attached and waits for it.
	// A non-zero exit is returned as *ExitError.
	ExecuteInteractive(ctx context.Context, spec CommandSpec) error
}

// Mounter abstracts the mount table and mount namespaces.
type Mounter interface {
	Mount(source, target, fstype string, flags uintptr, data string) error
	Unmount(target string, flags int) error

	// Unshare moves the calling OS thread into new namespaces. The thread
	// stays locked so children started from it inherit them.
	Unshare(flags int) error
}

// Process abstracts the identity of the calling process.
type Process interface {
	Geteuid() int
	Getegid() int
}

// Default instances using real OS operations.
var (
	defaultExecutor CommandExecutor = &osExecutor{}
	defaultMounter  Mounter         = &osMounter{}
	defaultProcess  Process         = &osProcess{}
)

// DefaultExecutor returns the default CommandExecutor implementation.
func DefaultExecutor() CommandExecutor {
	return defaultExecutor
}

// DefaultMounter returns the default Mounter implementation.
func DefaultMounter() Mounter {
	return defaultMounter
}

// DefaultProcess returns the default Process implementation.
func DefaultProcess() Process {
	return defaultProcess
}

// SetDefaultExecutor sets the default CommandExecutor (useful for testing).
func SetDefaultExecutor(exec CommandExecutor) {
	defaultExecutor = exec
}

// SetDefaultMounter sets the default Mounter (useful for testing).
func SetDefaultMounter(m Mounter) {
	defaultMounter = m
}

// SetDefaultProcess sets the default Process (useful for testing).
func SetDefaultProcess(p Process) {
	defaultProcess = p
}

// ResetDefaults restores the default OS implementations.
func ResetDefaults() {
	defaultExecutor = &osExecutor{}
	defaultMounter = &osMounter{}
	defaultProcess = &osProcess{}
}
