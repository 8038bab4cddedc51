package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/onyx/internal/errors"
	"github.com/firefly-engineering/onyx/internal/profile"
	"github.com/firefly-engineering/onyx/internal/tui"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage resource profiles",
	Long: `Resource profiles bundle a nice value, a memory ceiling and CPU pinning.
Sessions use the profile given with --profile, else the current profile,
else the built-in backup profile (no limits).`,
}

var profileListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List profiles, most generous first",
	Args:    cobra.NoArgs,
	RunE:    runProfileList,
}

var profileUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the current profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileUse,
}

var profileCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a profile",
	Example: `  onyx profile create tight --memory=fixed:512 --cpu-cores=1 --nice=10
  onyx profile create half --memory=percent:50 --description="half the RAM"`,
	Args: cobra.ExactArgs(1),
	RunE: runProfileCreate,
}

var profileEditCmd = &cobra.Command{
	Use:   "edit <name>",
	Short: "Change fields of an existing profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileEdit,
}

var profileDeleteCmd = &cobra.Command{
	Use:     "delete <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a profile",
	Args:    cobra.ExactArgs(1),
	RunE:    runProfileDelete,
}

// profileFlags holds the field flags of create and edit.
type profileFlags struct {
	description string
	nice        int
	memory      string
	cpuCores    int
}

var (
	createFlags profileFlags
	editFlags   profileFlags
)

func (f *profileFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.description, "description", "", "Free-form description")
	cmd.Flags().IntVar(&f.nice, "nice", 0, "Scheduling priority, -20 to 19")
	cmd.Flags().StringVar(&f.memory, "memory", "unlimited", "Memory ceiling: unlimited, percent:N or fixed:MB")
	cmd.Flags().IntVar(&f.cpuCores, "cpu-cores", 0, "Pin to the first N cores (0 removes pinning)")
}

// apply copies every flag the user set onto p.
func (f *profileFlags) apply(cmd *cobra.Command, p *profile.Profile) {
	flags := cmd.Flags()
	if flags.Changed("description") {
		p.Description = f.description
	}
	if flags.Changed("nice") {
		p.Nice = f.nice
	}
	if flags.Changed("memory") {
		p.Memory = profile.ParseMemory(f.memory)
	}
	if flags.Changed("cpu-cores") {
		if f.cpuCores > 0 {
			p.CPU = &profile.CPU{Cores: f.cpuCores}
		} else {
			p.CPU = nil
		}
	}
}

func init() {
	createFlags.register(profileCreateCmd)
	editFlags.register(profileEditCmd)

	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileUseCmd)
	profileCmd.AddCommand(profileCreateCmd)
	profileCmd.AddCommand(profileEditCmd)
	profileCmd.AddCommand(profileDeleteCmd)
	rootCmd.AddCommand(profileCmd)
}

func runProfileList(cmd *cobra.Command, args []string) error {
	p := paths()

	profiles, err := profile.Load(p.ProfilesDir)
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		logInfo("No profiles found. Sessions use the %s profile (no limits).", profile.Backup().Name)
		return nil
	}

	current := profile.ReadCurrent(p.CurrentProfileFile)
	fmt.Fprint(cmd.OutOrStdout(), tui.ProfileTable(profile.Rank(profiles), current))
	return nil
}

func runProfileUse(cmd *cobra.Command, args []string) error {
	p := paths()
	name := args[0]

	if err := profile.SetCurrent(p.CurrentProfileFile, p.ProfilesDir, name); err != nil {
		return err
	}
	logSuccess("Using profile %s", name)
	return nil
}

func runProfileCreate(cmd *cobra.Command, args []string) error {
	p := paths()
	name := args[0]

	profiles, err := profile.Load(p.ProfilesDir)
	if err != nil {
		return err
	}
	if _, ok := profiles[name]; ok {
		return errors.ConfigError(fmt.Sprintf("profile %q already exists (use 'onyx profile edit')", name), nil)
	}

	prof := profile.Profile{Name: name, Memory: profile.Memory{Type: profile.MemoryUnlimited}}
	createFlags.apply(cmd, &prof)

	if err := profile.Save(p.ProfilesDir, prof); err != nil {
		return err
	}
	logSuccess("Created profile %s (score %d)", name, prof.Score())
	return nil
}

func runProfileEdit(cmd *cobra.Command, args []string) error {
	p := paths()
	name := args[0]

	profiles, err := profile.Load(p.ProfilesDir)
	if err != nil {
		return err
	}
	prof, ok := profiles[name]
	if !ok {
		return errors.ConfigError(fmt.Sprintf("profile %q does not exist", name), nil)
	}

	editFlags.apply(cmd, &prof)

	if err := profile.Save(p.ProfilesDir, prof); err != nil {
		return err
	}
	logSuccess("Updated profile %s (score %d)", name, prof.Score())
	return nil
}

func runProfileDelete(cmd *cobra.Command, args []string) error {
	p := paths()
	name := args[0]

	if err := profile.Delete(p.ProfilesDir, name); err != nil {
		return err
	}
	if profile.ReadCurrent(p.CurrentProfileFile) == name {
		logWarning("%s was the current profile; sessions will use %s until another is chosen", name, profile.Backup().Name)
	}
	logSuccess("Deleted profile %s", name)
	return nil
}
