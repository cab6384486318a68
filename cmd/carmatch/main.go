package main

import (
	"os"

	"github.com/varsilias/carmatch/internal/cli"
)

func main() {
	if err := cli.NewRootCommand(os.Stdin, os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
