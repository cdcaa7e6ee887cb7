// Package main provides the entry point for the archrag CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/archrag/cmd/archrag/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
