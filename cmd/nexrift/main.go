// Package main is the entry point for the nexrift desktop shell.
package main

import (
	"fmt"
	"os"

	"github.com/bongobongo2020/nexrift/internal/shell/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "nexrift: %v\n", err)
		os.Exit(1)
	}
}
