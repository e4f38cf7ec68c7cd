// Package benchmarks provides timing benchmark infrastructure for jpegsim
// stage chains.
package benchmarks

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/sarchlab/jpegsim/timing/clock"
	"github.com/sarchlab/jpegsim/timing/core"
	"github.com/sarchlab/jpegsim/timing/driver"
	"github.com/sarchlab/jpegsim/timing/stage"
)

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// SimulatedCycles is the number of edges until the chain drained
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// Injected and Delivered count samples entering and leaving the chain
	Injected  uint64 `json:"injected"`
	Delivered uint64 `json:"delivered"`

	// Throughput is delivered samples per cycle
	Throughput float64 `json:"throughput"`

	// MeanLatency and MaxLatency are injection to delivery distances
	MeanLatency float64 `json:"mean_latency"`
	MaxLatency  uint64  `json:"max_latency"`

	// StallCycles is the sum of stall cycles over all stages
	StallCycles uint64 `json:"stall_cycles"`

	// BlockedCycles is the sum of cycles stages spent blocked by their
	// consumer
	BlockedCycles uint64 `json:"blocked_cycles"`

	// BufferPeak is the largest buffer level seen in any stage
	BufferPeak int `json:"buffer_peak"`

	// Drained is false when the cycle limit was hit first
	Drained bool `json:"drained"`

	// InOrder is true when the delivered data equals the injected data
	InOrder bool `json:"in_order"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single chain scenario.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Stages configures the chain in order
	Stages []stage.Config

	// Samples are injected in order
	Samples []uint64

	// Gap keeps the source idle for this many cycles after each transfer
	Gap int

	// Ready is the consumer pattern (nil: always ready)
	Ready driver.ReadyPattern
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Width is the data bus width of every link
	Width int

	// MaxCycles bounds every run
	MaxCycles uint64

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose enables detailed output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Width:     16,
		MaxCycles: 1_000_000,
		Output:    os.Stdout,
		Verbose:   false,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() ([]BenchmarkResult, error) {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result, err := h.RunBenchmark(bench)
		if err != nil {
			return results, fmt.Errorf("benchmark %s: %w", bench.Name, err)
		}

		results = append(results, result)
	}

	return results, nil
}

// RunBenchmark executes a single benchmark. Hitting the cycle limit is not
// an error; it is reported through Drained.
func (h *Harness) RunBenchmark(bench Benchmark) (BenchmarkResult, error) {
	env := clock.MakeBuilder().Build("Env")
	src := driver.NewSource("Src", bench.Samples, driver.WithGap(bench.Gap))
	sink := driver.NewSink("Sink", bench.Ready)

	chain, err := core.NewCore(env, h.config.Width, src, sink, bench.Stages...)
	if err != nil {
		return BenchmarkResult{}, err
	}

	// Run simulation and measure time
	start := time.Now()
	_, runErr := chain.Run(h.config.MaxCycles)
	wallTime := time.Since(start)

	drained := runErr == nil
	if runErr != nil && !isNotDrained(runErr) {
		return BenchmarkResult{}, runErr
	}

	// Collect statistics
	stats := chain.Stats()
	result := BenchmarkResult{
		Name:            bench.Name,
		Description:     bench.Description,
		SimulatedCycles: stats.Cycles,
		Injected:        stats.Injected,
		Delivered:       stats.Delivered,
		Throughput:      stats.Throughput(),
		MeanLatency:     stats.MeanLatency,
		MaxLatency:      stats.MaxLatency,
		Drained:         drained,
		InOrder:         slices.Equal(driver.Data(src.Accepted()), driver.Data(sink.Received())),
		WallTime:        wallTime,
	}

	for _, s := range stats.Stages {
		result.StallCycles += s.StallCycles
		result.BlockedCycles += s.BlockedCycles
		result.BufferPeak = max(result.BufferPeak, s.InputBufferPeak, s.OutputBufferPeak)
	}

	if h.config.Verbose {
		_, _ = fmt.Fprintf(h.config.Output, "ran %s: %d cycles, %d samples\n",
			bench.Name, result.SimulatedCycles, result.Delivered)
	}

	return result, nil
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== jpegsim Timing Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintln(h.config.Output, "  --- Timing ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Cycles: %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Injected:         %d\n", r.Injected)
		_, _ = fmt.Fprintf(h.config.Output, "  Delivered:        %d\n", r.Delivered)
		_, _ = fmt.Fprintf(h.config.Output, "  Throughput:       %.3f\n", r.Throughput)
		_, _ = fmt.Fprintf(h.config.Output, "  Mean Latency:     %.2f\n", r.MeanLatency)
		_, _ = fmt.Fprintf(h.config.Output, "  Max Latency:      %d\n", r.MaxLatency)
		_, _ = fmt.Fprintf(h.config.Output, "  Stall Cycles:     %d\n", r.StallCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Blocked Cycles:   %d\n", r.BlockedCycles)
		if r.BufferPeak > 0 {
			_, _ = fmt.Fprintf(h.config.Output, "  Buffer Peak:      %d\n", r.BufferPeak)
		}

		if !r.Drained {
			_, _ = fmt.Fprintln(h.config.Output, "  WARNING: cycle limit reached before drain")
		}

		if !r.InOrder {
			_, _ = fmt.Fprintln(h.config.Output, "  WARNING: delivered data differs from injected data")
		}

		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,cycles,injected,delivered,throughput,mean_latency,max_latency,stalls,blocked,buffer_peak,drained")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%d,%.3f,%.2f,%d,%d,%d,%d,%t\n",
			r.Name,
			r.SimulatedCycles,
			r.Injected,
			r.Delivered,
			r.Throughput,
			r.MeanLatency,
			r.MaxLatency,
			r.StallCycles,
			r.BlockedCycles,
			r.BufferPeak,
			r.Drained,
		)
	}
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Version of the simulator
	Version string `json:"version"`

	// Config describes the benchmark configuration
	Config BenchmarkConfig `json:"config"`
}

// BenchmarkConfig describes the harness configuration used.
type BenchmarkConfig struct {
	Width     int    `json:"width"`
	MaxCycles uint64 `json:"max_cycles"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmarks run
	TotalBenchmarks int `json:"total_benchmarks"`

	// TotalCycles is the sum of all simulated cycles
	TotalCycles uint64 `json:"total_cycles"`

	// TotalDelivered is the sum of all delivered samples
	TotalDelivered uint64 `json:"total_delivered"`

	// AverageThroughput is delivered samples per cycle over all benchmarks
	AverageThroughput float64 `json:"average_throughput"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// Version is reported in JSON output.
const Version = "0.1.0"

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	// Calculate summary statistics
	var totalCycles, totalDelivered uint64
	var totalWallTime time.Duration
	for _, r := range results {
		totalCycles += r.SimulatedCycles
		totalDelivered += r.Delivered
		totalWallTime += r.WallTime
	}

	avgThroughput := float64(0)
	if totalCycles > 0 {
		avgThroughput = float64(totalDelivered) / float64(totalCycles)
	}

	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   Version,
			Config: BenchmarkConfig{
				Width:     h.config.Width,
				MaxCycles: h.config.MaxCycles,
			},
		},
		Results: results,
		Summary: ReportSummary{
			TotalBenchmarks:   len(results),
			TotalCycles:       totalCycles,
			TotalDelivered:    totalDelivered,
			AverageThroughput: avgThroughput,
			TotalWallTime:     totalWallTime,
		},
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

func isNotDrained(err error) bool {
	return errors.Is(err, core.ErrNotDrained)
}
