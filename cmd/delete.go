package cmd

import (
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <name>",
	Aliases: []string{"rm"},
	Short:   "Remove an image from the store",
	Long: `Removes the image directory. Per-user deltas and the audit history
of the image are kept.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	name := args[0]

	if err := imageStore().Delete(name); err != nil {
		return err
	}

	logSuccess("Deleted image %s", name)
	return nil
}
