// freshmk check [path]
package cmd

import (
	"context"
	"path/filepath"

	"github.com/freshmk-build/freshmk/internal/builder"
	"github.com/freshmk-build/freshmk/internal/check"
	"github.com/freshmk-build/freshmk/internal/msg"
	"github.com/spf13/cobra"
)

var checkNoBuild bool

func doCheck(cmd *cobra.Command, args []string) {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}
	b, err := builder.NewBuilderInDirectory(target)
	if err != nil {
		msg.Fatal("%v", err)
	}

	cfg := b.Config()
	if len(cfg.Check) == 0 {
		msg.Info("no [[check]] tables configured, nothing to do")
		return
	}

	profile := flagProfile.Value()
	if !checkNoBuild {
		if err := b.Build(profile); err != nil {
			msg.Fatal("%v", err)
		}
	}

	exe, err := b.Executable(profile)
	if err != nil {
		msg.Fatal("%v", err)
	}
	exePath, err := filepath.Abs(filepath.Join(target, exe))
	if err != nil {
		msg.Fatal("%v", err)
	}

	cases := make([]check.Case, len(cfg.Check))
	for i, c := range cfg.Check {
		cases[i] = check.Case{Flag: c.Flag, Input: c.Input, Expect: c.Expect}
	}

	runner := check.NewRunner(exePath, target)
	if err := runner.Run(context.Background(), cases); err != nil {
		msg.Fatal("%v", err)
	}
	msg.Info("%d check(s) passed", len(cases))
}

var checkCmd = &cobra.Command{
	Use:   "check [project path]",
	Short: "Build and verify the executable's token stream",
	Long: `Build the project, then run the executable against each [[check]]
table in ` + builder.ConfigFilename + ` and compare the diagnostic token
stream with the expected sequence.`,
	Args: cobra.MaximumNArgs(1),
	Run:  doCheck,
}

func init() {
	// freshmk check subcommand
	rootCmd.AddCommand(checkCmd)
	addBuildFlags(checkCmd)
	checkCmd.Flags().BoolVar(&checkNoBuild, "no-build", false, "Run checks against an existing binary without rebuilding")
}
