// Package main provides a profiling wrapper for jpegsim to identify
// performance bottlenecks of the simulator itself.
package main

import (
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/jpegsim/benchmarks"
	"github.com/sarchlab/jpegsim/timing/latency"
)

func main() {
	var (
		cpuProfile string
		memProfile string
		duration   time.Duration
		samples    int
		chain      string
	)

	cmd := &cobra.Command{
		Use:          "profile",
		Short:        "Run a long encoder chain under the Go profiler.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Start CPU profiling if requested
			if cpuProfile != "" {
				f, err := os.Create(cpuProfile)
				if err != nil {
					return fmt.Errorf("failed to create CPU profile: %w", err)
				}
				defer func() { _ = f.Close() }()

				if err := pprof.StartCPUProfile(f); err != nil {
					return fmt.Errorf("failed to start CPU profile: %w", err)
				}
				defer pprof.StopCPUProfile()
			}

			kinds, err := latency.ParseChain(chain)
			if err != nil {
				return err
			}

			// Set timeout
			go func() {
				time.Sleep(duration)
				fmt.Printf("\nTimeout reached after %v - stopping execution\n", duration)
				atexit.Exit(2)
			}()

			config := benchmarks.DefaultConfig()
			config.MaxCycles = uint64(samples) * 1000
			harness := benchmarks.NewHarness(config)

			start := time.Now()
			result, err := harness.RunBenchmark(
				benchmarks.EncoderBenchmark("profile", latency.NewTable(), kinds, samples))
			if err != nil {
				return err
			}
			elapsed := time.Since(start)

			// Write memory profile if requested
			if memProfile != "" {
				f, err := os.Create(memProfile)
				if err != nil {
					return fmt.Errorf("failed to create memory profile: %w", err)
				}
				defer func() { _ = f.Close() }()

				if err := pprof.WriteHeapProfile(f); err != nil {
					fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
				}
			}

			fmt.Printf("\nProfiling Results:\n")
			fmt.Printf("Samples delivered: %d\n", result.Delivered)
			fmt.Printf("Simulated cycles: %d\n", result.SimulatedCycles)
			fmt.Printf("Elapsed time: %v\n", elapsed)
			if result.SimulatedCycles > 0 {
				fmt.Printf("Cycles/second: %.0f\n",
					float64(result.SimulatedCycles)/elapsed.Seconds())
			}

			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cpuProfile, "cpuprofile", "", "write cpu profile to file")
	f.StringVar(&memProfile, "memprofile", "", "write memory profile to file")
	f.DurationVar(&duration, "duration", 30*time.Second, "max duration to run (for profiling)")
	f.IntVar(&samples, "samples", 100_000, "samples to push through the chain")
	f.StringVar(&chain, "chain", "color,dct,quant,rle,huffman", "stage kinds of the chain")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
