package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/firefly-engineering/onyx/internal/app"
	"github.com/firefly-engineering/onyx/internal/logging"
	"github.com/firefly-engineering/onyx/internal/tui"
)

var openCmd = &cobra.Command{
	Use:   "open [name]",
	Short: "Open an interactive shell in an image",
	Long: `Opens the image's shell (zsh, bash, ash or sh, whichever exists).

Without a name, an interactive picker lists the stored images.

Changes are written to a per-user delta and survive the session. Use
'onyx apply-delta' to merge them into the image. With --no-persist there
is no delta and changes are written straight into the image.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runOpen,
}

var openOpts sessionOptions

func init() {
	openCmd.Flags().StringVarP(&openOpts.profile, "profile", "p", "", "Resource profile for this session")
	openCmd.Flags().BoolVar(&openOpts.noPersist, "no-persist", false, "Write changes straight into the image instead of a per-user delta")
	rootCmd.AddCommand(openCmd)
}

func runOpen(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		return runSession(cmd.Context(), args[0], nil, openOpts)
	}

	images, err := imageStore().List()
	if err != nil {
		return err
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(cmd.OutOrStdout(), tui.SimplePicker(images))
		return nil
	}

	if len(images) == 0 {
		logInfo("No images found. Create one with: onyx create <name> <rootfs>")
		return nil
	}

	result, err := tui.RunPicker(images, hasPendingDelta)
	if err != nil {
		return fmt.Errorf("picker error: %w", err)
	}

	logging.Debug("picker result", "action", result.Action)

	if result.Image == nil {
		return nil
	}
	opts := openOpts
	switch result.Action {
	case tui.ActionOpen:
	case tui.ActionOpenDirect:
		opts.noPersist = true
	default:
		return nil
	}
	return runSession(cmd.Context(), result.Image.Name, nil, opts)
}

// hasPendingDelta reports whether the effective user's delta for an image
// holds anything.
func hasPendingDelta(name string) bool {
	d, err := paths().Delta(app.Default.Process.Geteuid(), name)
	if err != nil {
		return false
	}
	entries, err := os.ReadDir(d.Upper)
	return err == nil && len(entries) > 0
}
