package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/firefly-engineering/onyx/internal/app"
	"github.com/firefly-engineering/onyx/internal/audit"
	"github.com/firefly-engineering/onyx/internal/errors"
	"github.com/firefly-engineering/onyx/internal/logging"
	"github.com/firefly-engineering/onyx/internal/profile"
	"github.com/firefly-engineering/onyx/internal/runtime"
)

// sessionOptions are the flags shared by open and exec.
type sessionOptions struct {
	profile   string
	noPersist bool
}

// runSession resolves the image and profile, and runs the session with the
// strategy for the effective uid. Profile limits go on the sandboxed
// process, never on onyx itself. A non-zero exit of the sandboxed process is returned as a silent
// error carrying that status.
func runSession(ctx context.Context, name string, command []string, opts sessionOptions) error {
	a := app.Default

	root, err := imageRoot(name)
	if err != nil {
		return err
	}

	resolved, err := a.ResolveProfile(opts.profile)
	if err != nil {
		return err
	}
	if resolved.Missing != "" {
		logWarning("Profile %s not found, using %s", resolved.Missing, resolved.Profile.Name)
	}

	sessionID := uuid.NewString()
	log := logging.ForSession(sessionID, name)

	limits, warnings := profile.Limits(resolved.Profile, a.Memory)
	for _, w := range warnings {
		logWarning("%s", w)
	}
	limits.OnError = func(limit string, err error) {
		log.Warn("resource limit not applied", "limit", limit, "error", err)
		logWarning("%s", profile.LimitWarning{Limit: limit, Err: err})
	}

	uid := a.Process.Geteuid()
	d, err := a.Paths.Delta(uid, name)
	if err != nil {
		return errors.ValidationError(err.Error())
	}

	req := runtime.Request{
		Image:     name,
		ImageRoot: root,
		UID:       uid,
		GID:       a.Process.Getegid(),
		Delta:     d,
		Persist:   !opts.noPersist,
		Command:   command,
		Term:      os.Getenv("TERM"),
		Limits:    limits,
		Logger:    log,
	}

	strategy := a.Strategy()
	log.Info("session starting",
		"strategy", strategy.Name(),
		"profile", resolved.Profile.Name,
		"profile_source", resolved.Source,
		"persist", req.Persist,
	)

	eventType := audit.EventOpen
	if len(command) > 0 {
		eventType = audit.EventExec
	}

	result, err := strategy.Run(ctx, req)
	if err != nil {
		recordEvent(audit.Event{
			Type:    audit.EventError,
			Image:   name,
			Session: sessionID,
			UID:     &uid,
			Details: fmt.Sprintf("%s: %v", eventType, err),
		})
		return err
	}

	recordEvent(audit.Event{
		Type:    eventType,
		Image:   name,
		Session: sessionID,
		UID:     &uid,
		Details: fmt.Sprintf("strategy=%s isolation=%s persistent=%t exit=%d",
			result.Strategy, result.Isolation, result.Persistent, result.ExitCode),
	})

	if result.Isolation.Degraded() {
		logWarning("Session ran with degraded isolation (%s)", result.Isolation)
		recordEvent(audit.Event{
			Type:    audit.EventDegraded,
			Image:   name,
			Session: sessionID,
			UID:     &uid,
			Details: fmt.Sprintf("isolation=%s attempts=%v", result.Isolation, result.Attempts),
		})
	}
	if req.Persist && !result.Persistent {
		logWarning("No delta was used: changes from this session were written into image %s", name)
	}

	log.Info("session finished", "exit_code", result.ExitCode, "isolation", result.Isolation)

	if result.ExitCode != 0 {
		return errors.ExitStatus(result.ExitCode)
	}
	return nil
}
