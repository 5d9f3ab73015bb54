// Package main is the entry point for the taskctl admin tool.
package main

import (
	"os"

	"github.com/good-yellow-bee/taskforge/cmd/taskctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
