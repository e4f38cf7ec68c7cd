// Package main provides the entry point for jpegsim.
// jpegsim is a cycle-accurate model of clocked dataflow processing stages
// built on Akita.
//
// For the full CLI, use: go run ./cmd/jpegsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("jpegsim - Dataflow Processing Stage Simulator")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: jpegsim <command> [options]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  run      Run samples through a stage or a chain of stages")
	fmt.Println("  config   Create and inspect configuration files")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/jpegsim --help' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/jpegsim' instead.")
	}
}
