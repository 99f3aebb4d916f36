// freshmk run [path]
package cmd

import (
	"github.com/freshmk-build/freshmk/internal/builder"
	"github.com/freshmk-build/freshmk/internal/msg"
	"github.com/spf13/cobra"
)

func doRun(cmd *cobra.Command, args []string) {
	target := "."
	if len(args) > 0 {
		target = args[0]
		args = args[1:] // other arguments will be passed to program
	}
	b, err := builder.NewBuilderInDirectory(target)
	if err != nil {
		msg.Fatal("%v", err)
	}
	if err := b.BuildAndRun(args, flagProfile.Value()); err != nil {
		msg.Fatal("%v", err)
	}
}

var runCmd = &cobra.Command{
	Use:   "run [project path]",
	Short: "Build the project and run the executable",
	Long:  `Build the project and run the executable. If no project path is given, uses "."`,
	Args:  cobra.ArbitraryArgs,
	Run:   doRun,
}

func init() {
	// freshmk run subcommand
	rootCmd.AddCommand(runCmd)
	addBuildFlags(runCmd)
}
