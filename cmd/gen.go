// freshmk gen [path]
package cmd

import (
	"fmt"
	"os"

	"github.com/freshmk-build/freshmk/internal/builder"
	"github.com/freshmk-build/freshmk/internal/msg"
	"github.com/spf13/cobra"
)

func doGen(cmd *cobra.Command, args []string) {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}
	b, err := builder.NewBuilderInDirectory(target)
	if err != nil {
		msg.Fatal("%v", err)
	}

	script, err := b.Generate()
	if err != nil {
		msg.Fatal("%v", err)
	}
	fmt.Fprint(os.Stdout, script)
}

var genCmd = &cobra.Command{
	Use:   "gen [project path]",
	Short: "Print the generated makefile without building",
	Long: `Print the generated makefile to stdout without invoking make, for
inspection or manual piping (freshmk gen | make -f - debug).`,
	Args: cobra.MaximumNArgs(1),
	Run:  doGen,
}

func init() {
	// freshmk gen subcommand
	rootCmd.AddCommand(genCmd)
}
