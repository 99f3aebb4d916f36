// freshmk init [name]
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/freshmk-build/freshmk/internal/msg"
	"github.com/spf13/cobra"
)

func writefile(content string, elem ...string) {
	path := filepath.Join(elem...)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err = os.WriteFile(path, []byte(content), 0o644); err != nil {
			msg.Fatal("create file %s: %v", path, err)
		}
		fmt.Fprintf(os.Stderr, "%s file: %s\n", color.HiGreenString("Created"), filepath.ToSlash(path))
	}
}

func mkdir(elem ...string) {
	path := filepath.Join(elem...)
	if err := os.MkdirAll(path, 0o755); err != nil {
		msg.Fatal("mkdir %s: %v", path, err)
	}
}

func getProgramName() string {
	if len(os.Args) == 0 {
		return "freshmk"
	}
	basename := filepath.Base(os.Args[0])
	return strings.TrimSuffix(basename, filepath.Ext(basename))
}

// initIn scaffolds a project in an existing specified directory
func initIn(dir, name string) {
	writefile(`[package]
name = "`+name+`"
description = "A C project built with freshmk."

[target]
sources = ["./src/**/*.c"]
libraries = []
cflags = [
    "-std=gnu17", "-Wall", "-Wextra", "-Werror", "-Wpedantic",
    "-Wconversion", "-Wcast-qual", "-Wnull-dereference",
    "-Wdouble-promotion",
]

[profile.debug]
dir = "./debug/"
cflags = ["-ggdb", "-O0", "-DDEBUG"]
message = [
    "Build finished successfully.",
    "Compiled in debug mode.",
    "Pass --profile release to turn on optimisations.",
]

[profile.release]
dir = "./release/"
cflags = ["-O3", "-march=native"]
message = ["Build finished successfully.", "Compiled in release mode."]
`, dir, "Freshmk.toml")

	mkdir(dir, "src")

	writefile(`#include <stdio.h>

int main(void) {
    puts("Hello, World!");
    return 0;
}
`, dir, "src", "main.c")

	writefile(`debug/
release/
`, dir, ".gitignore")

	programName := getProgramName()
	fmt.Fprintf(os.Stderr, "You can now do %s to build, or %s to build and run.\n",
		color.HiCyanString(programName+" "+dir), color.HiCyanString(programName+" run "+dir))
}

var initCmd = &cobra.Command{
	Use:   "init [name]",
	Short: "Create a new project in the current directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		initIn(".", args[0])
	},
}

var newCmd = &cobra.Command{
	Use:   "new [path]",
	Short: "Create a new project in a new directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mkdir(args[0])
		initIn(args[0], filepath.Base(args[0]))
	},
}

func init() {
	// freshmk init subcommand
	rootCmd.AddCommand(initCmd)

	// freshmk new subcommand
	rootCmd.AddCommand(newCmd)
}
