package main

import "github.com/freshmk-build/freshmk/cmd"

func main() {
	cmd.Execute()
}
