package main

import (
	"os"

	"ledgerly/internal/cli"
	"ledgerly/internal/commands"
)

func main() {
	cli.LoadEnvFile()
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
