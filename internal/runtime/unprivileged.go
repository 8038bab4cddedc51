package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/firefly-engineering/onyx/internal/config"
	onyxerrors "github.com/firefly-engineering/onyx/internal/errors"
	"github.com/firefly-engineering/onyx/internal/mount"
	"github.com/firefly-engineering/onyx/internal/system"
)

// Unprivileged runs sessions as a normal user. The primary mode starts
// fuse-overlayfs and proot inside a fresh user and mount namespace; if
// that chain fails, proot runs directly on the image and writes land there.
type Unprivileged struct {
	Paths    *config.Paths
	Executor system.CommandExecutor

	// SettleDelay is how long the chain waits for the FUSE mount.
	SettleDelay time.Duration
}

func (u *Unprivileged) Name() string {
	return "unprivileged"
}

func (u *Unprivileged) Run(ctx context.Context, req Request) (*Result, error) {
	log := req.logger().With("strategy", u.Name())
	res := &Result{Strategy: u.Name()}

	proot, err := u.Paths.LookupHelper("proot")
	if err != nil {
		return nil, onyxerrors.HelperMissing("proot")
	}

	if !req.Persist {
		return u.direct(ctx, log, req, proot, res)
	}

	fuse, err := u.Paths.LookupHelper("fuse-overlayfs")
	if err != nil {
		return nil, onyxerrors.HelperMissing("fuse-overlayfs")
	}

	chain, err := u.chain(req, fuse, proot)
	if err != nil {
		return nil, err
	}
	if err := req.Delta.Ensure(); err != nil {
		return nil, onyxerrors.StorageError("create delta directories", err)
	}

	res.Attempts = append(res.Attempts, "overlay")
	log.Debug("starting overlay chain", "merged", req.Delta.Merged)
	err = u.Executor.ExecuteInteractive(ctx, system.CommandSpec{
		Name:          "sh",
		Args:          []string{"-c", chain},
		Env:           Environment(req.Term),
		UserNamespace: &system.IDMap{UID: req.UID, GID: req.GID},
		Limits:        req.Limits,
	})
	u.unmountFuse(ctx, log, req.Delta.Merged)

	code, err := exitStatus(err)
	if err != nil {
		return nil, fmt.Errorf("failed to start overlay chain: %w", err)
	}
	if code == 0 {
		res.Isolation = IsolationUserNamespace
		res.Persistent = true
		return res, nil
	}

	log.Warn("overlay chain failed, falling back to proot directly on the image", "status", code)
	res.Fallback = true
	return u.direct(ctx, log, req, proot, res)
}

// chain builds the script run by sh inside the user namespace.
func (u *Unprivileged) chain(req Request, fuse, proot string) (string, error) {
	opts, err := mount.OverlayOptions(req.ImageRoot, req.Delta.Upper, req.Delta.Work)
	if err != nil {
		return "", onyxerrors.MountError("overlay", err)
	}
	merged := req.Delta.Merged
	shell := FindShell(req.ImageRoot)

	steps := []string{
		shellquote.Join("mkdir", "-p", merged),
		shellquote.Join(fuse, "-o", opts, merged),
		"sleep " + seconds(u.SettleDelay),
		shellquote.Join(prootArgs(proot, merged, shell, req.Command)...),
	}
	return strings.Join(steps, " && "), nil
}

// direct runs proot on the base image. Writes land in the image.
func (u *Unprivileged) direct(ctx context.Context, log *slog.Logger, req Request, proot string, res *Result) (*Result, error) {
	res.Attempts = append(res.Attempts, "proot")
	res.Isolation = IsolationEmulatedOnly
	res.Persistent = false

	args := prootArgs(proot, req.ImageRoot, FindShell(req.ImageRoot), req.Command)
	log.Debug("starting proot", "root", req.ImageRoot)
	err := u.Executor.ExecuteInteractive(ctx, system.CommandSpec{
		Name:   args[0],
		Args:   args[1:],
		Env:    Environment(req.Term),
		Limits: req.Limits,
	})
	res.ExitCode, err = exitStatus(err)
	if err != nil {
		return nil, fmt.Errorf("failed to run proot: %w", err)
	}
	return res, nil
}

// unmountFuse is best effort: the namespace that owned the mount is
// usually gone already.
func (u *Unprivileged) unmountFuse(ctx context.Context, log *slog.Logger, merged string) {
	for _, helper := range []string{"fusermount3", "fusermount"} {
		_, err := u.Executor.Execute(ctx, helper, "-u", merged)
		if err == nil {
			return
		}
		log.Debug("fuse unmount failed", "helper", helper, "error", err)
	}
}

func prootArgs(proot, root, shell string, command []string) []string {
	args := []string{proot, "-r", root, "-0", "-b", "/dev", "-b", "/proc", "-b", "/sys", "-w", "/"}
	return append(args, shellArgs(shell, command)...)
}

func seconds(d time.Duration) string {
	if d <= 0 {
		return "0"
	}
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
