// Command benchmark runs the jpegsim timing benchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	--csv          Output results in CSV format (default: human-readable)
//	--json         Output results in JSON format
//	--sweep        Run a sweep over cycle counts and buffer modes instead
//	--cycles       Cycle counts of the sweep
//	--stall-every  Consumer stall period of the sweep
//
// Example:
//
//	# Run all benchmarks with human-readable output
//	go run ./cmd/benchmark
//
//	# Output CSV for spreadsheet comparison
//	go run ./cmd/benchmark --sweep --csv > sweep.csv
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/jpegsim/benchmarks"
	"github.com/sarchlab/jpegsim/timing/driver"
)

func main() {
	var (
		csvOutput  bool
		jsonOutput bool
		sweep      bool
		cycles     []int
		samples    int
		stallEvery uint64
		width      int
	)

	cmd := &cobra.Command{
		Use:          "benchmark",
		Short:        "Run the jpegsim timing benchmarks.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Configure harness
			config := benchmarks.DefaultConfig()
			config.Width = width
			config.Output = cmd.OutOrStdout()

			// Create harness and add benchmarks
			harness := benchmarks.NewHarness(config)
			if sweep {
				harness.AddBenchmarks(benchmarks.Sweep(cycles, samples,
					driver.StallEvery(stallEvery)))
			} else {
				harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
			}

			// Print configuration
			if !csvOutput && !jsonOutput {
				fmt.Fprintln(config.Output, "jpegsim Timing Benchmark Harness")
				fmt.Fprintln(config.Output, "================================")
				fmt.Fprintf(config.Output, "Width: %d\n", config.Width)
				fmt.Fprintf(config.Output, "Sweep: %v\n", sweep)
				fmt.Fprintln(config.Output, "")
			}

			// Run benchmarks
			results, err := harness.RunAll()
			if err != nil {
				return err
			}

			// Output results
			switch {
			case jsonOutput:
				return harness.PrintJSON(results)
			case csvOutput:
				harness.PrintCSV(results)
			default:
				harness.PrintResults(results)
			}

			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&csvOutput, "csv", false, "Output results in CSV format")
	f.BoolVar(&jsonOutput, "json", false, "Output results in JSON format")
	f.BoolVar(&sweep, "sweep", false, "Sweep cycle counts, pipelining and buffer modes")
	f.IntSliceVar(&cycles, "cycles", []int{1, 2, 4, 8}, "Cycle counts of the sweep")
	f.IntVar(&samples, "samples", 64, "Samples per sweep benchmark")
	f.Uint64Var(&stallEvery, "stall-every", 0, "Consumer stall period of the sweep (0: never)")
	f.IntVar(&width, "width", 16, "Data bus width in bits")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
