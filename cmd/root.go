package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/onyx/internal/app"
	"github.com/firefly-engineering/onyx/internal/config"
	"github.com/firefly-engineering/onyx/internal/errors"
	"github.com/firefly-engineering/onyx/internal/logging"
)

var (
	verbose    bool
	jsonOutput bool
	storeDir   string
)

var rootCmd = &cobra.Command{
	Use:   "onyx",
	Short: "Persistent Linux sandboxes on a local image store",
	Long: `onyx keeps root filesystem images in a local store and opens shells
or runs commands inside them.

Each session gets:
  - Its own mount namespace with /proc, /dev and a read-only /sys
  - A per-user writable layer over the image (--no-persist writes to the image)
  - The resource limits of the selected profile

Run as root for kernel mount namespaces and chroot. Unprivileged users
get user namespaces with fuse-overlayfs and proot.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(verbose, jsonOutput, os.Stderr)
		if cmd.Flags().Changed("store") {
			app.SetDefault(app.Default.WithStore(config.ResolveStoreDir(storeDir)))
		}
	},
}

// Execute runs the root command and reports any error to the user.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !errors.IsSilent(err) {
		logError("%v", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().StringVar(&storeDir, "store", "", "Store directory (default $"+config.StoreDirEnv+" or "+config.DefaultStoreDir+")")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// Helper aliases for user-facing output (delegates to logging package)
var (
	logInfo    = logging.UserInfo
	logSuccess = logging.UserSuccess
	logWarning = logging.UserWarning
	logError   = logging.UserError
)
