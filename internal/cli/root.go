// Package cli wires the command-line surface onto the resolution
// pipeline: flag parsing (spf13/cobra), destructive-action confirmation
// (AlecAivazis/survey/v2), and the seed -> resolve -> materialize ->
// fetch orchestration in pipeline.go.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/0xa1bed0/cratesmirror/internal/diag"
	"github.com/0xa1bed0/cratesmirror/internal/version"
)

// Options holds every flag the root command accepts.
type Options struct {
	ConfigPath string
	DBDumpPath string

	Download    bool
	Update      bool
	Purge       bool
	GitRegistry bool
	Commit      bool
	Yes         bool

	TestOne []string

	Verbosity int
}

var verbosity int

// Execute builds and runs the root "cratesmirror" command.
func Execute() {
	if err := version.CheckRelease(); err != nil {
		diag.L().Error("%v", err)
		os.Exit(1)
	}
	if err := NewRootCmd().Execute(); err != nil {
		diag.L().Error("%v", err)
		os.Exit(1)
	}
}

// NewRootCmd builds the cobra command tree for the cratesmirror CLI.
func NewRootCmd() *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:   "cratesmirror",
		Short: "Build a curated mirror of the crates.io registry",
		Long: `cratesmirror selects a set of top-downloaded and curated crates,
transitively resolves every version their dependency trees require against
the upstream index, and materializes a pruned local index plus a flat
directory of downloaded .crate archives.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			diag.L().SetLevel(levelFor(verbosity))
			return Run(cmd.Context(), opts)
		},
	}

	cmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase diagnostic verbosity (repeatable)")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "./cratesmirror.toml", "path to the TOML seed-source config")
	cmd.Flags().StringVar(&opts.DBDumpPath, "db-dump", "", "path to a crates.io db-dump.tar.gz; selects the SQLite-backed index reader instead of the on-disk index tree")
	cmd.Flags().BoolVarP(&opts.Download, "download", "d", false, "force rebuild of the seed (re-fetch top lists) before resolving")
	cmd.Flags().BoolVarP(&opts.Update, "update", "u", false, "update the upstream on-disk index via git fetch/reset before resolving")
	cmd.Flags().BoolVarP(&opts.Purge, "purge", "p", false, "remove archives no longer referenced by the resolved catalog")
	cmd.Flags().BoolVarP(&opts.GitRegistry, "git-registry", "g", false, "write to the git-registry output tree instead of the local-registry output tree")
	cmd.Flags().BoolVarP(&opts.Commit, "commit", "c", false, "commit and push the resulting index tree")
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "skip confirmation prompts for destructive actions (--purge, --commit)")
	cmd.Flags().StringSliceVarP(&opts.TestOne, "test-one", "t", nil, "debug: seed one \"<name> <version>\" requirement and run a single resolver iteration")

	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the cratesmirror version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("cratesmirror %s (index schema %d)\n", version.Release, version.IndexSchemaVersion)
			return nil
		},
	}
}

func levelFor(v int) diag.Level {
	switch {
	case v >= 2:
		return diag.LevelDebug
	case v == 1:
		return diag.LevelInfo
	default:
		return diag.LevelWarn
	}
}

func confirm(opts *Options, prompt string) (bool, error) {
	if opts.Yes {
		return true, nil
	}
	if !isTTY() {
		return false, fmt.Errorf("refusing destructive action without --yes on a non-interactive stdin: %s", prompt)
	}
	return askConfirm(prompt)
}
