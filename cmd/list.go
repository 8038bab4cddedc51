package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List stored images",
	Args:    cobra.NoArgs,
	RunE:    runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	images, err := imageStore().List()
	if err != nil {
		return err
	}

	if len(images) == 0 {
		logInfo("No images found. Create one with: onyx create <name> <rootfs>")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tMODIFIED")
	fmt.Fprintln(w, "----\t----\t--------")

	for _, img := range images {
		fmt.Fprintf(w, "%s\t%s\t%s\n", img.Name, humanize.Bytes(uint64(img.Size)), humanize.Time(img.ModTime))
	}

	return w.Flush()
}
