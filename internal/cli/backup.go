package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PolymathAlchemist/wcbt/internal/backup"
	"github.com/PolymathAlchemist/wcbt/internal/manifest"
	"github.com/PolymathAlchemist/wcbt/internal/profilestore"
	"github.com/PolymathAlchemist/wcbt/internal/wcbterrors"
)

var backupFlags struct {
	source        string
	dest          string
	dryRun        bool
	excludeDirs   []string
	excludeFiles  []string
	noDefaults    bool
	profile       string
	dataRoot      string
	hashAlgorithm string
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up a source tree into a new timestamped run",
	Example: `  wcbt backup --source ./world --dest ./backups
  wcbt backup --source ./world --dest ./backups --dry-run
  wcbt backup --source ./world --dest ./backups --profile server --exclude-dir cache`,
	RunE: runBackup,
}

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.Flags().StringVar(&backupFlags.source, "source", "", "source directory to back up")
	backupCmd.Flags().StringVar(&backupFlags.dest, "dest", "", "destination root for runs")
	backupCmd.Flags().BoolVar(&backupFlags.dryRun, "dry-run", false, "plan and journal without writing payload or manifest")
	backupCmd.Flags().StringArrayVar(&backupFlags.excludeDirs, "exclude-dir", nil, "directory name to exclude (repeatable)")
	backupCmd.Flags().StringArrayVar(&backupFlags.excludeFiles, "exclude-file", nil, "file name to exclude (repeatable)")
	backupCmd.Flags().BoolVar(&backupFlags.noDefaults, "no-default-excludes", false, "disable built-in default excludes")
	backupCmd.Flags().StringVar(&backupFlags.profile, "profile", "", "profile whose stored exclusion rules apply")
	backupCmd.Flags().StringVar(&backupFlags.dataRoot, "data-root", "", "override the wcbt data root")
	backupCmd.Flags().StringVar(&backupFlags.hashAlgorithm, "hash-algorithm", "", "content hash algorithm (default sha256)")
	backupCmd.MarkFlagRequired("source")
	backupCmd.MarkFlagRequired("dest")
}

func runBackup(cmd *cobra.Command, args []string) error {
	excludes := backup.ExcludeRules{
		DirNames:   backupFlags.excludeDirs,
		FileNames:  backupFlags.excludeFiles,
		NoDefaults: backupFlags.noDefaults,
	}
	if backupFlags.profile != "" {
		stored, err := loadProfileExcludes(backupFlags.profile, backupFlags.dataRoot)
		if err != nil {
			return err
		}
		excludes.DirNames = append(excludes.DirNames, stored.DirNames...)
		excludes.FileNames = append(excludes.FileNames, stored.FileNames...)
	}

	ctx, cancel := signalContext()
	defer cancel()

	res, err := backup.Run(ctx, backup.Options{
		Source:          backupFlags.source,
		DestinationRoot: backupFlags.dest,
		DryRun:          backupFlags.dryRun,
		Excludes:        excludes,
		HashAlgorithm:   backupFlags.hashAlgorithm,
	}, engineClock)
	if err != nil {
		if res != nil && errors.Is(err, wcbterrors.ErrCancelled) {
			return exitStatus(wcbterrors.ExitFatal, "backup cancelled; run %s retained for inspection", res.RunID)
		}
		return err
	}

	fmt.Printf("run %s: %s (%d copied, %d skipped, %d failed)\n",
		res.RunID, res.Status, res.Copied, res.Skipped, res.Failed)
	if res.Status == manifest.RunStatusPartial {
		return exitStatus(wcbterrors.ExitBackupPartial, "backup partial: %d ops failed", res.Failed)
	}
	return nil
}

func loadProfileExcludes(profile, dataRoot string) (backup.ExcludeRules, error) {
	paths, err := profilestore.ResolveProfilePaths(profile, dataRoot)
	if err != nil {
		return backup.ExcludeRules{}, err
	}
	store, err := profilestore.Open(paths.RulesDBPath)
	if err != nil {
		return backup.ExcludeRules{}, err
	}
	defer store.Close()
	return store.Excludes(profile)
}
