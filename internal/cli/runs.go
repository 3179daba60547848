package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PolymathAlchemist/wcbt/internal/manifest"
)

var runsFlags struct {
	dest string
}

var runsCmd = &cobra.Command{
	Use:     "runs",
	Short:   "List run ids under a destination root",
	Example: `  wcbt runs --dest ./backups`,
	RunE:    runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().StringVar(&runsFlags.dest, "dest", "", "destination root to list")
	runsCmd.MarkFlagRequired("dest")
}

func runRuns(cmd *cobra.Command, args []string) error {
	ids, err := manifest.ListRuns(runsFlags.dest)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}
