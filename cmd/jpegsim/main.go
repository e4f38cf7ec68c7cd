// Package main provides the entry point for jpegsim.
// jpegsim is a cycle-accurate model of clocked dataflow processing stages,
// such as the stages of a JPEG encoder, built on Akita.
package main

import (
	"github.com/tebeka/atexit"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
