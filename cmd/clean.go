// freshmk clean [path]
package cmd

import (
	"github.com/freshmk-build/freshmk/internal/builder"
	"github.com/freshmk-build/freshmk/internal/msg"
	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean [project path]",
	Short: "Remove both profile output directories",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		target := "."
		if len(args) > 0 {
			target = args[0]
		}
		b, err := builder.NewBuilderInDirectory(target)
		if err != nil {
			msg.Fatal("%v", err)
		}
		if err := b.Clean(); err != nil {
			msg.Fatal("%v", err)
		}
	},
}

func init() {
	// freshmk clean subcommand
	rootCmd.AddCommand(cleanCmd)
}
