package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PolymathAlchemist/wcbt/internal/profilelock"
	"github.com/PolymathAlchemist/wcbt/internal/profilestore"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage profile rule sets and locks",
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage a profile's stored exclusion rules",
}

var rulesFlags struct {
	profile  string
	dataRoot string
}

var rulesAddCmd = &cobra.Command{
	Use:   "add KIND PATTERN",
	Short: "Add an exclusion rule (kind: exclude_dir or exclude_file)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuleStore(func(store *profilestore.Store) error {
			rule, err := store.AddRule(rulesFlags.profile, args[0], args[1], engineClock)
			if err != nil {
				return err
			}
			fmt.Printf("%s  %s  %s\n", rule.ID, rule.Kind, rule.Pattern)
			return nil
		})
	},
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a profile's exclusion rules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuleStore(func(store *profilestore.Store) error {
			rules, err := store.ListRules(rulesFlags.profile)
			if err != nil {
				return err
			}
			for _, rule := range rules {
				fmt.Printf("%s  %s  %s\n", rule.ID, rule.Kind, rule.Pattern)
			}
			return nil
		})
	},
}

var rulesRemoveCmd = &cobra.Command{
	Use:   "remove ID",
	Short: "Remove an exclusion rule by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuleStore(func(store *profilestore.Store) error {
			return store.RemoveRule(args[0])
		})
	},
}

var breakLockFlags struct {
	dest        string
	force       bool
	breakAnyway bool
}

var breakLockCmd = &cobra.Command{
	Use:   "break-lock",
	Short: "Break the lock on a destination root",
	Long: `Break the profile lock on a destination root. Without flags this
refuses and reports the holder. With --force only a provably stale lock
is broken: one recorded on this host whose process is no longer running.
--break-anyway removes the lock unconditionally; breaking a live lock
can corrupt an in-flight run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := profilelock.Break(breakLockFlags.dest, breakLockFlags.force, breakLockFlags.breakAnyway); err != nil {
			return err
		}
		fmt.Printf("lock released for %s\n", breakLockFlags.dest)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(rulesCmd)
	profileCmd.AddCommand(breakLockCmd)
	rulesCmd.AddCommand(rulesAddCmd, rulesListCmd, rulesRemoveCmd)

	rulesCmd.PersistentFlags().StringVar(&rulesFlags.profile, "profile", "", "profile name")
	rulesCmd.PersistentFlags().StringVar(&rulesFlags.dataRoot, "data-root", "", "override the wcbt data root")
	rulesCmd.MarkPersistentFlagRequired("profile")

	breakLockCmd.Flags().StringVar(&breakLockFlags.dest, "dest", "", "destination root whose lock to break")
	breakLockCmd.Flags().BoolVar(&breakLockFlags.force, "force", false, "break the lock if it is provably stale")
	breakLockCmd.Flags().BoolVar(&breakLockFlags.breakAnyway, "break-anyway", false, "break the lock even when it is not provably stale")
	breakLockCmd.MarkFlagRequired("dest")
}

func withRuleStore(fn func(*profilestore.Store) error) error {
	paths, err := profilestore.ResolveProfilePaths(rulesFlags.profile, rulesFlags.dataRoot)
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
	defer store.Close()
	return fn(store)
}
