package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PolymathAlchemist/wcbt/internal/manifest"
	"github.com/PolymathAlchemist/wcbt/internal/restore"
	"github.com/PolymathAlchemist/wcbt/internal/wcbterrors"
)

var restoreFlags struct {
	manifestPath string
	dest         string
	dryRun       bool
	verifyMode   string
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore a run to a destination via an atomically promoted stage",
	Long: `Restore rebuilds a source tree from a run's manifest and payload.
The tree is assembled in an isolated stage and atomically promoted; an
existing destination is preserved under a sibling name, never touched
in place.`,
	Example: `  wcbt restore --manifest ./backups/2025-01-01T12-00-00Z/manifest.json --dest ./restored
  wcbt restore --manifest ./backups/2025-01-01T12-00-00Z/manifest.json --dest ./restored --verify size`,
	RunE: runRestore,
}

func init() {
	rootCmd.AddCommand(restoreCmd)
	restoreCmd.Flags().StringVar(&restoreFlags.manifestPath, "manifest", "", "path to the run's manifest.json")
	restoreCmd.Flags().StringVar(&restoreFlags.dest, "dest", "", "restore destination directory")
	restoreCmd.Flags().BoolVar(&restoreFlags.dryRun, "dry-run", false, "stage nothing; record what would be restored")
	restoreCmd.Flags().StringVar(&restoreFlags.verifyMode, "verify", restore.VerifyModeNone, "stage verification mode (none, size)")
	restoreCmd.MarkFlagRequired("manifest")
	restoreCmd.MarkFlagRequired("dest")
}

func runRestore(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	res, err := restore.Run(ctx, restore.Options{
		ManifestPath: restoreFlags.manifestPath,
		Destination:  restoreFlags.dest,
		DryRun:       restoreFlags.dryRun,
		VerifyMode:   restoreFlags.verifyMode,
	}, engineClock)
	if err != nil {
		return err
	}

	if res.DryRun {
		fmt.Printf("run %s: dry run, %d candidates staged nothing\n", res.RunID, res.Staged)
		return nil
	}
	fmt.Printf("run %s restored to %s (%d files)\n", res.RunID, res.Destination, res.Staged)
	if res.PreservedPrior != "" {
		fmt.Printf("prior destination preserved at %s\n", res.PreservedPrior)
	}
	if res.ManifestRunStatus == manifest.RunStatusPartial {
		return exitStatus(wcbterrors.ExitBackupPartial,
			"restored from a partial run: only files recorded in the manifest were restored")
	}
	return nil
}
