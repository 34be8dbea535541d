package main

import (
	"os"

	"github.com/twchip/chipkline/cmd/chipkline/commands"
)

// main is the entry point for the chipkline CLI.
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
