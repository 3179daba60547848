package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PolymathAlchemist/wcbt/internal/profilestore"
)

var initFlags struct {
	profile    string
	dataRoot   string
	printPaths bool
}

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Initialize a profile's on-disk folder structure",
	Example: `  wcbt init --profile server --print-paths`,
	RunE:    runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&initFlags.profile, "profile", "", "profile name to initialize")
	initCmd.Flags().StringVar(&initFlags.dataRoot, "data-root", "", "override the wcbt data root")
	initCmd.Flags().BoolVar(&initFlags.printPaths, "print-paths", false, "print resolved paths after initialization")
	initCmd.MarkFlagRequired("profile")
}

func runInit(cmd *cobra.Command, args []string) error {
	paths, err := profilestore.ResolveProfilePaths(initFlags.profile, initFlags.dataRoot)
	if err != nil {
		return err
	}
	if err := paths.EnsureProfileDirectories(); err != nil {
		return err
	}
	store, err := profilestore.Open(paths.RulesDBPath)
	if err != nil {
		return err
	}
	if err := store.Close(); err != nil {
		return err
	}
	fmt.Printf("profile %s initialized\n", initFlags.profile)
	if initFlags.printPaths {
		fmt.Print(paths.AsText())
	}
	return nil
}
