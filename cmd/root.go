// freshmk [path], freshmk build [path]
package cmd

import (
	"fmt"
	"os"

	"github.com/freshmk-build/freshmk/internal/builder"
	"github.com/freshmk-build/freshmk/internal/msg"
	"github.com/spf13/cobra"
)

var flagProfile EnumValue = NewEnumValue("debug", map[string]string{
	"debug":   "Unoptimized build with diagnostics (default)",
	"release": "Optimized build",
})

func doBuild(cmd *cobra.Command, args []string) {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}
	b, err := builder.NewBuilderInDirectory(target)
	if err != nil {
		msg.Fatal("%v", err)
	}
	if err := b.Build(flagProfile.Value()); err != nil {
		msg.Fatal("%v", err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "freshmk [project path]",
	Short: "Always-fresh makefile synthesizer",
	Long: `Regenerates a dependency-aware makefile from scratch and pipes it
straight into make. The makefile is never written to disk, so prerequisite
information can never go stale.`,
	Args: cobra.MaximumNArgs(1),
	Run:  doBuild,
}

var buildCmd = &cobra.Command{
	Use:   "build [project path]",
	Short: "Build the project",
	Long:  `Build the project. If no project path is given, uses "."`,
	Args:  cobra.MaximumNArgs(1),
	Run:   doBuild,
}

func init() {
	addBuildFlags(rootCmd)

	// freshmk build subcommand
	rootCmd.AddCommand(buildCmd)
	addBuildFlags(buildCmd)
}

func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().VarP(&flagProfile, "profile", "p", "Build the given profile, one of "+flagProfile.HelpString())
	cmd.RegisterFlagCompletionFunc("profile", flagProfile.CompletionFunc())
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
