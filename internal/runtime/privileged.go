package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"

	"github.com/firefly-engineering/onyx/internal/config"
	onyxerrors "github.com/firefly-engineering/onyx/internal/errors"
	"github.com/firefly-engineering/onyx/internal/mount"
	"github.com/firefly-engineering/onyx/internal/system"
)

// Privileged runs sessions as real root: a private mount namespace, a
// mount session under the image (optionally overlaid by the delta) and
// chroot.
type Privileged struct {
	Paths    *config.Paths
	Mounter  system.Mounter
	Executor system.CommandExecutor
}

func (p *Privileged) Name() string {
	return "privileged"
}

// Run isolates, builds the mount session, runs the shell through chroot
// and tears the mounts down whatever the outcome.
func (p *Privileged) Run(ctx context.Context, req Request) (*Result, error) {
	log := req.logger().With("strategy", p.Name())
	res := &Result{Strategy: p.Name()}

	chroot, err := p.Paths.LookupHelper("chroot")
	if err != nil {
		return nil, onyxerrors.HelperMissing("chroot")
	}

	res.Isolation, err = p.isolate(log, res)
	if err != nil {
		return nil, err
	}

	opts := mount.Options{Image: req.ImageRoot, Logger: log}
	if req.Persist {
		delta := req.Delta
		opts.Delta = &delta
		res.Persistent = true
	}

	session := mount.NewSession(p.Mounter, opts)
	defer session.Close()
	if err := session.Build(); err != nil {
		return nil, err
	}

	root := session.Root()
	shell := FindShell(root)
	log.Debug("starting chroot", "root", root, "shell", shell)

	res.Attempts = append(res.Attempts, "chroot")
	err = p.Executor.ExecuteInteractive(ctx, system.CommandSpec{
		Name:   chroot,
		Args:   append([]string{root}, shellArgs(shell, req.Command)...),
		Env:    Environment(req.Term),
		Limits: req.Limits,
	})
	res.ExitCode, err = exitStatus(err)
	if err != nil {
		return nil, fmt.Errorf("failed to run chroot: %w", err)
	}
	return res, nil
}

// isolate enters a new mount namespace, falling back to marking the host
// mount tree private. Both failing is fatal and nothing is mounted.
func (p *Privileged) isolate(log *slog.Logger, res *Result) (Isolation, error) {
	res.Attempts = append(res.Attempts, "unshare")
	unshareErr := p.Mounter.Unshare(unix.CLONE_NEWNS)
	if unshareErr == nil {
		return IsolationNamespace, nil
	}
	log.Warn("could not enter a new mount namespace, falling back to private mounts", "error", unshareErr)

	res.Attempts = append(res.Attempts, "rprivate")
	res.Fallback = true
	if err := p.Mounter.Mount("", "/", "", unix.MS_REC|unix.MS_PRIVATE, ""); err != nil {
		return "", onyxerrors.MountError("isolation",
			fmt.Errorf("refusing to run without isolation: unshare: %v; make-rprivate: %w", unshareErr, err))
	}
	return IsolationPrivateMounts, nil
}
