// Package cli is the thin shell over the engine entry points. It parses
// arguments, dispatches to pipelines, and maps outcomes to the stable
// exit codes. No engine logic lives here.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/PolymathAlchemist/wcbt/internal/clock"
	"github.com/PolymathAlchemist/wcbt/internal/logging"
	"github.com/PolymathAlchemist/wcbt/internal/wcbterrors"
)

var (
	// Version is replaced at startup by SetVersion.
	Version = "1.0.0"

	logLevel string
	logJSON  bool
	quiet    bool
)

// engineClock is the Clock handed to every pipeline. Tests may replace it.
var engineClock = clock.System()

var rootCmd = &cobra.Command{
	Use:   "wcbt",
	Short: "Working Copy Backup Tool",
	Long: `wcbt is a deterministic, artifact-first backup, restore and verify
engine for local directory trees. Every run produces a timestamped,
self-describing artifact set; restores are add-only and promoted
atomically; verification checks archived payloads against recorded
hashes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitStatusError carries a non-default exit code out of a RunE handler
// for outcomes that are not engine errors, such as a partial backup.
type exitStatusError struct {
	code wcbterrors.ExitCode
	msg  string
}

func (e *exitStatusError) Error() string { return e.msg }

func exitStatus(code wcbterrors.ExitCode, format string, args ...any) error {
	return &exitStatusError{code: code, msg: fmt.Sprintf(format, args...)}
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	defer logging.Sync()
	err := rootCmd.Execute()
	if err == nil {
		return int(wcbterrors.ExitSuccess)
	}
	fmt.Fprintf(os.Stderr, "wcbt: %v\n", err)
	var es *exitStatusError
	if errors.As(err, &es) {
		return int(es.code)
	}
	return int(wcbterrors.ExitCodeFor(err))
}

// SetVersion sets the version string.
func SetVersion(v string) {
	Version = v
	rootCmd.Version = v
}

func init() {
	cobra.OnInitialize(initLogging)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit logs as JSON")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "log errors only")
}

func initLogging() {
	_ = logging.Init(logging.Config{Level: logLevel, JSON: logJSON, Quiet: quiet})
}

// signalContext returns a context cancelled on SIGINT/SIGTERM, so
// pipelines get cooperative cancellation and journal the interrupted op.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
