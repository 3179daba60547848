package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PolymathAlchemist/wcbt/internal/verify"
	"github.com/PolymathAlchemist/wcbt/internal/wcbterrors"
)

var verifyFlags struct {
	run string
}

var verifyCmd = &cobra.Command{
	Use:     "verify",
	Short:   "Verify a run's payload against its manifest",
	Example: `  wcbt verify --run ./backups/2025-01-01T12-00-00Z`,
	RunE:    runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().StringVar(&verifyFlags.run, "run", "", "run directory to verify")
	verifyCmd.MarkFlagRequired("run")
}

func runVerify(cmd *cobra.Command, args []string) error {
	res, err := verify.Run(verifyFlags.run)
	if err != nil {
		return err
	}
	c := res.Report.Counts
	fmt.Printf("run %s: %d ok, %d missing, %d unreadable, %d hash_mismatch (total %d)\n",
		res.Report.RunID, c.OK, c.Missing, c.Unreadable, c.HashMismatch, res.Report.Total)
	if !res.AllOK() {
		return exitStatus(wcbterrors.ExitVerifyFailed, "verification failed for run %s", res.Report.RunID)
	}
	return nil
}
