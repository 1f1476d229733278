package main

import (
	"fmt"
	"os"

	"jama-reports/cmd/jama-reports/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
