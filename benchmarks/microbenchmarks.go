package benchmarks

import (
	"fmt"

	"github.com/sarchlab/jpegsim/timing/driver"
	"github.com/sarchlab/jpegsim/timing/latency"
	"github.com/sarchlab/jpegsim/timing/stage"
)

// GetMicrobenchmarks returns the standard set of chain scenarios. Each
// benchmark targets one behavior of a stage or a chain.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		stallingSingle(),
		pipelinedSingle(),
		backpressured(),
		burstySource(),
		bufferedInput(),
		jpegEncoder(),
	}
}

// GetCoreBenchmarks returns a minimal set of benchmarks for quick validation.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		stallingSingle(),
		pipelinedSingle(),
	}
}

// Ramp returns n samples counting up from first.
func Ramp(first uint64, n int) []uint64 {
	s := make([]uint64, n)
	for i := range s {
		s[i] = first + uint64(i)
	}

	return s
}

// 1. Stalling single stage - one sample in flight at a time
func stallingSingle() Benchmark {
	return Benchmark{
		Name:        "stalling_single",
		Description: "3 samples through a stalling stage of 3 cycles",
		Stages: []stage.Config{
			{Name: "PE", CyclesToProcess: 3, Buffered: stage.BufferNone},
		},
		Samples: []uint64{5, 9, 2},
	}
}

// 2. Pipelined single stage - one sample per cycle
func pipelinedSingle() Benchmark {
	return Benchmark{
		Name:        "pipelined_single",
		Description: "10 samples through a pipelined stage of 4 cycles",
		Stages: []stage.Config{
			{Name: "PE", CyclesToProcess: 4, Pipelined: true, Buffered: stage.BufferNone},
		},
		Samples: Ramp(1, 10),
	}
}

// 3. Backpressure - a consumer that stalls every other cycle
func backpressured() Benchmark {
	return Benchmark{
		Name:        "backpressured",
		Description: "pipelined stage behind a consumer ready every other cycle",
		Stages: []stage.Config{
			{Name: "PE", CyclesToProcess: 2, Pipelined: true, Buffered: stage.BufferNone},
		},
		Samples: Ramp(1, 16),
		Ready:   driver.StallEvery(2),
	}
}

// 4. Bursty source - idle cycles between samples
func burstySource() Benchmark {
	return Benchmark{
		Name:        "bursty_source",
		Description: "stalling stage fed with two idle cycles between samples",
		Stages: []stage.Config{
			{Name: "PE", CyclesToProcess: 2, Buffered: stage.BufferNone},
		},
		Samples: Ramp(1, 8),
		Gap:     2,
	}
}

// 5. Buffered input - the upstream never sees a stall
func bufferedInput() Benchmark {
	return Benchmark{
		Name:        "buffered_input",
		Description: "stalling stage of 3 cycles behind an unbounded input buffer",
		Stages: []stage.Config{
			{Name: "PE", CyclesToProcess: 3, Buffered: stage.BufferInput},
		},
		Samples: Ramp(1, 8),
	}
}

// 6. JPEG encoder - the default five stage chain
func jpegEncoder() Benchmark {
	return EncoderBenchmark("jpeg_encoder", latency.NewTable(), latency.EncoderChain, 64)
}

// EncoderBenchmark builds a chain of the given stage kinds with latencies
// from table, fed with one block of n samples.
func EncoderBenchmark(name string, table *latency.Table, kinds []latency.Kind, n int) Benchmark {
	stages := make([]stage.Config, len(kinds))
	for i, k := range kinds {
		stages[i] = table.StageConfig(k, i)
	}

	return Benchmark{
		Name:        name,
		Description: fmt.Sprintf("%d samples through a %d stage encoder chain", n, len(kinds)),
		Stages:      stages,
		Samples:     Ramp(0, n),
	}
}

// Sweep returns one single-stage benchmark per combination of cycle count,
// pipelining and buffer mode.
func Sweep(cycles []int, samples int, ready driver.ReadyPattern) []Benchmark {
	modes := []stage.BufferMode{
		stage.BufferNone, stage.BufferInput, stage.BufferOutput, stage.BufferBoth,
	}

	var benchmarks []Benchmark

	for _, k := range cycles {
		for _, pipelined := range []bool{false, true} {
			for _, mode := range modes {
				kind := "stalling"
				if pipelined {
					kind = "pipelined"
				}

				benchmarks = append(benchmarks, Benchmark{
					Name:        fmt.Sprintf("k%d_%s_%s", k, kind, mode),
					Description: fmt.Sprintf("%s stage of %d cycles, buffered %s", kind, k, mode),
					Stages: []stage.Config{{
						Name:            "PE",
						CyclesToProcess: k,
						Pipelined:       pipelined,
						Buffered:        mode,
					}},
					Samples: Ramp(1, samples),
					Ready:   ready,
				})
			}
		}
	}

	return benchmarks
}
