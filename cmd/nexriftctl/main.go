// Package main is the entry point for the nexriftctl control CLI.
package main

import (
	"os"

	"github.com/bongobongo2020/nexrift/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
