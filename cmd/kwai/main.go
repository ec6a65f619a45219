package main

import (
	"os"

	"github.com/kwai-club/kwai/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
