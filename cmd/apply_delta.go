package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/onyx/internal/app"
	"github.com/firefly-engineering/onyx/internal/audit"
	"github.com/firefly-engineering/onyx/internal/delta"
	"github.com/firefly-engineering/onyx/internal/errors"
	"github.com/firefly-engineering/onyx/internal/tui"
)

var applyDeltaCmd = &cobra.Command{
	Use:   "apply-delta <user> <name>",
	Short: "Merge a user's session changes into an image",
	Long: `Merges the persistent delta of <user> into image <name> and removes
the delta. Deletions recorded as whiteouts are applied first.

<user> is a user name, a numeric uid, or "self" for the current user.
The merge asks for confirmation unless --yes is given.`,
	Args: cobra.ExactArgs(2),
	RunE: runApplyDelta,
}

var applyDeltaYes bool

func init() {
	applyDeltaCmd.Flags().BoolVarP(&applyDeltaYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(applyDeltaCmd)
}

func runApplyDelta(cmd *cobra.Command, args []string) error {
	user, name := args[0], args[1]

	uid, err := delta.ResolveUser(user, delta.CurrentIdentity())
	if err != nil {
		return err
	}

	prompt := tui.Prompter(os.Stdin, cmd.OutOrStdout())
	if applyDeltaYes {
		prompt = func(string) (string, error) { return "y", nil }
	}

	result, err := app.Default.Committer(prompt).Commit(cmd.Context(), uid, name)
	switch {
	case errors.Is(err, delta.ErrNothingToApply):
		logWarning("No changes to apply for uid %d on image %s", uid, name)
		return nil
	case errors.Is(err, delta.ErrAborted):
		logInfo("Aborted, nothing was changed")
		return nil
	case err != nil:
		recordEvent(audit.Event{
			Type:    audit.EventError,
			Image:   name,
			UID:     &uid,
			Details: fmt.Sprintf("apply-delta: %v", err),
		})
		return err
	}

	recordEvent(audit.Event{
		Type:    audit.EventApplyDelta,
		Image:   name,
		UID:     &uid,
		Details: fmt.Sprintf("removed=%d copied=%d skipped=%d", result.Removed, result.Copied, result.Skipped),
	})

	if result.Skipped > 0 {
		logWarning("Skipped %d special files", result.Skipped)
	}
	logSuccess("Applied delta of uid %d to %s (%d written, %d removed)", uid, name, result.Copied, result.Removed)
	return nil
}
