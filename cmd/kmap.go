// freshmk kmap [keywords file]
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/freshmk-build/freshmk/internal/kmap"
	"github.com/freshmk-build/freshmk/internal/msg"
	"github.com/spf13/cobra"
)

var (
	kmapHashName string
	kmapHeader   string
	kmapStruct   string
	kmapOutput   string
)

func doKmap(cmd *cobra.Command, args []string) {
	keywords := args[0]
	dir := filepath.Dir(keywords)

	text, err := kmap.Generate(dir, filepath.Base(keywords), kmap.Options{
		HashName:  kmapHashName,
		Header:    kmapHeader,
		StructDef: kmapStruct,
	})
	if err != nil {
		msg.Fatal("%v", err)
	}

	if kmapOutput == "" {
		fmt.Fprint(os.Stdout, text)
		return
	}
	if err := os.WriteFile(kmapOutput, []byte(text), 0o644); err != nil {
		msg.Fatal("write %s: %v", kmapOutput, err)
	}
}

var kmapCmd = &cobra.Command{
	Use:   "kmap [keywords file]",
	Short: "Generate and patch a perfect-hash keyword table",
	Long: `Run gperf on a keywords file and fix up the generated C table:
include string.h and the public API header, silence -Wconversion with GCC
pragmas, and drop the key-pair struct redefinition.`,
	Args: cobra.ExactArgs(1),
	Run:  doKmap,
}

func init() {
	// freshmk kmap subcommand
	rootCmd.AddCommand(kmapCmd)
	kmapCmd.Flags().StringVar(&kmapHashName, "hash-function", "kmap_hash", "Name for the generated hash function")
	kmapCmd.Flags().StringVar(&kmapHeader, "header", "kmap.h", "Public API header to include")
	kmapCmd.Flags().StringVar(&kmapStruct, "struct", "", "Exact struct definition to remove (default: the kv_pair definition)")
	kmapCmd.Flags().StringVarP(&kmapOutput, "output", "o", "", "Write the table to a file instead of stdout")
}
