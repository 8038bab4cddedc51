package cmd

import (
	"github.com/spf13/cobra"

	"github.com/firefly-engineering/onyx/internal/errors"
)

var execCmd = &cobra.Command{
	Use:   "exec <name> [--] <command...>",
	Short: "Run a command in an image",
	Long: `Runs a command with the image's shell. A single argument is passed to
the shell as a script; several arguments are quoted and joined.

The exit status of the command becomes the exit status of onyx.

With --no-persist the command runs on the image itself and its changes
land there.`,
	Example: `  onyx exec alpine 'apk add curl && curl --version'
  onyx exec --no-persist alpine -- ls -la /etc`,
	Args: cobra.MinimumNArgs(2),
	RunE: runExec,
}

var execOpts sessionOptions

func init() {
	execCmd.Flags().StringVarP(&execOpts.profile, "profile", "p", "", "Resource profile for this session")
	execCmd.Flags().BoolVar(&execOpts.noPersist, "no-persist", false, "Write changes straight into the image instead of a per-user delta")
	execCmd.Flags().SetInterspersed(false)
	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
	command := args[1:]
	if command[0] == "--" {
		command = command[1:]
	}
	if len(command) == 0 {
		return errors.ValidationError("usage: onyx exec <name> [--] <command...>")
	}
	return runSession(cmd.Context(), args[0], command, execOpts)
}
