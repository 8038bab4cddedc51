package cmd

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/firefly-engineering/onyx/internal/store"
)

var createCmd = &cobra.Command{
	Use:   "create <name> <source>",
	Short: "Add an image to the store",
	Long: `Adds a root filesystem to the store under <name>.

<source> is either a directory, which is copied (or moved with --move),
or a .tar, .tar.zst or .tar.zstd archive, which is extracted.`,
	Args: cobra.ExactArgs(2),
	RunE: runCreate,
}

var createMove bool

func init() {
	createCmd.Flags().BoolVar(&createMove, "move", false, "Move the source directory instead of copying it")
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	name, source := args[0], args[1]

	logInfo("Creating image %s from %s", name, source)

	result, err := imageStore().Create(cmd.Context(), name, source, store.CreateOptions{Move: createMove})
	if err != nil {
		return err
	}

	if result.Stats.Skipped > 0 {
		logWarning("Skipped %d special files", result.Stats.Skipped)
	}
	logSuccess("Created image %s (%s, %s)", name, result.Method, humanize.Bytes(uint64(result.Image.Size)))
	return nil
}
