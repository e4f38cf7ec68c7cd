package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sarchlab/jpegsim/monitoring"
	"github.com/sarchlab/jpegsim/timing/clock"
	"github.com/sarchlab/jpegsim/timing/core"
	"github.com/sarchlab/jpegsim/timing/driver"
	"github.com/sarchlab/jpegsim/timing/latency"
	"github.com/sarchlab/jpegsim/timing/stage"
	"github.com/sarchlab/jpegsim/trace"
)

type runOptions struct {
	configPath string
	timingPath string
	chain      string

	cycles         int
	pipelined      bool
	buffered       string
	bufferCapacity int

	// Set when the flag was given, so that it overrides the config file.
	cyclesSet, pipelinedSet, bufferedSet, capacitySet bool

	width       int
	samples     int
	gap         int
	stallEvery  uint64
	maxCycles   uint64
	resetCycles uint64

	traceFormat string
	tracePath   string

	monitor     bool
	monitorPort int
	openBrowser bool
	keepServing bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run samples through a stage or a chain of stages.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			opts.cyclesSet = flags.Changed("cycles-to-process")
			opts.pipelinedSet = flags.Changed("pipelined")
			opts.bufferedSet = flags.Changed("buffered")
			opts.capacitySet = flags.Changed("buffer-capacity")

			if !flags.Changed("trace") {
				opts.traceFormat = envString(envTrace, opts.traceFormat)
			}

			if !flags.Changed("monitor-port") {
				opts.monitorPort = envInt(envMonitorPort, opts.monitorPort)
			}

			_, err := runSimulation(opts, cmd.OutOrStdout())

			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "Stage configuration file (.json or .toml)")
	f.StringVar(&opts.timingPath, "timing", "", "Timing configuration JSON file for --chain")
	f.StringVar(&opts.chain, "chain", "",
		"Comma-separated stage kinds, e.g. color,dct,quant,rle,huffman")
	f.IntVar(&opts.cycles, "cycles-to-process", 1, "Cycles each sample spends in the stage")
	f.BoolVar(&opts.pipelined, "pipelined", false, "Accept a sample on every cycle")
	f.StringVar(&opts.buffered, "buffered", "none",
		"Elastic buffers: none, input, output, both, true or false")
	f.IntVar(&opts.bufferCapacity, "buffer-capacity", 0, "Buffer capacity (0: unbounded)")
	f.IntVar(&opts.width, "width", 16, "Data bus width in bits")
	f.IntVar(&opts.samples, "samples", 64, "Number of samples to inject")
	f.IntVar(&opts.gap, "gap", 0, "Idle cycles after each injected sample")
	f.Uint64Var(&opts.stallEvery, "stall-every", 0, "Consumer stalls every n-th cycle (0: never)")
	f.Uint64Var(&opts.maxCycles, "max-cycles", 1_000_000, "Stop after this many cycles")
	f.Uint64Var(&opts.resetCycles, "reset-cycles", 0, "Hold reset for the first n cycles")
	f.StringVar(&opts.traceFormat, "trace", "", "Trace format: csv, sqlite or cbor")
	f.StringVar(&opts.tracePath, "trace-path", "", "Trace file (default: generated name)")
	f.BoolVar(&opts.monitor, "monitor", false, "Serve the monitoring API while running")
	f.IntVar(&opts.monitorPort, "monitor-port", 0, "Monitoring port (0: random)")
	f.BoolVar(&opts.openBrowser, "open-browser", false, "Open the monitor in a browser")
	f.BoolVar(&opts.keepServing, "keep-serving", false,
		"Keep the monitor running after the simulation until interrupted")

	return cmd
}

// stageConfigs resolves the chain described by the options.
func stageConfigs(opts *runOptions) ([]stage.Config, error) {
	var configs []stage.Config

	if opts.chain != "" {
		timing := latency.DefaultTimingConfig()
		if opts.timingPath != "" {
			var err error
			if timing, err = latency.LoadConfig(opts.timingPath); err != nil {
				return nil, err
			}
		}

		if err := timing.Validate(); err != nil {
			return nil, fmt.Errorf("invalid timing config: %w", err)
		}

		kinds, err := latency.ParseChain(opts.chain)
		if err != nil {
			return nil, err
		}

		table := latency.NewTableWithConfig(timing)
		for i, k := range kinds {
			configs = append(configs, table.StageConfig(k, i))
		}
	} else {
		config := stage.DefaultConfig()
		if opts.configPath != "" {
			var err error
			if config, err = stage.LoadConfig(opts.configPath); err != nil {
				return nil, err
			}
		}

		if opts.cyclesSet {
			config.CyclesToProcess = opts.cycles
		}

		if opts.pipelinedSet {
			config.Pipelined = opts.pipelined
		}

		configs = append(configs, *config)
	}

	for i := range configs {
		if opts.bufferedSet {
			mode, err := parseBufferedFlag(opts.buffered)
			if err != nil {
				return nil, err
			}

			configs[i].Buffered = mode
		}

		if opts.capacitySet {
			configs[i].BufferCapacity = opts.bufferCapacity
		}
	}

	return configs, nil
}

// parseBufferedFlag accepts the mode names and the bool spellings of
// strconv.ParseBool.
func parseBufferedFlag(s string) (stage.BufferMode, error) {
	if b, err := strconv.ParseBool(s); err == nil {
		return stage.ParseBuffered(b)
	}

	return stage.ParseBuffered(stage.BufferMode(strings.ToLower(s)))
}

// runSimulation builds the chain, runs it to completion and writes a report
// to out.
func runSimulation(opts *runOptions, out io.Writer) (*core.Core, error) {
	configs, err := stageConfigs(opts)
	if err != nil {
		return nil, err
	}

	env := clock.MakeBuilder().
		WithResetCycles(opts.resetCycles).
		Build("Env")

	samples := make([]uint64, opts.samples)
	for i := range samples {
		samples[i] = uint64(i)
	}

	src := driver.NewSource("Src", samples, driver.WithGap(opts.gap))
	sink := driver.NewSink("Sink", driver.StallEvery(opts.stallEvery))

	chain, err := core.NewCore(env, opts.width, src, sink, configs...)
	if err != nil {
		return nil, err
	}

	if opts.traceFormat != "" {
		closeTrace, err := startTrace(opts, chain)
		if err != nil {
			return nil, err
		}
		defer closeTrace()
	}

	var monitor *monitoring.Monitor
	if opts.monitor {
		monitor, err = startMonitor(opts, chain)
		if err != nil {
			return nil, err
		}
		defer func() {
			if !opts.keepServing {
				_ = monitor.StopServer()
			}
		}()
	}

	slog.Info("jpegsim: running",
		"stages", len(chain.Stages),
		"samples", opts.samples,
		"max_cycles", opts.maxCycles)

	_, runErr := chain.Run(opts.maxCycles)
	if runErr != nil && !errors.Is(runErr, core.ErrNotDrained) {
		return chain, runErr
	}

	printReport(out, chain)

	if opts.monitor && opts.keepServing {
		slog.Info("jpegsim: simulation finished, monitor still serving")
		select {}
	}

	return chain, runErr
}

func startTrace(opts *runOptions, chain *core.Core) (func(), error) {
	format, err := trace.ParseFormat(opts.traceFormat)
	if err != nil {
		return nil, err
	}

	w, err := trace.NewWriter(format, opts.tracePath)
	if err != nil {
		return nil, err
	}

	if err := w.Init(); err != nil {
		return nil, err
	}

	rec := trace.NewRecorder(w)
	for _, pe := range chain.Stages {
		rec.Attach(pe.Taps()...)
	}

	slog.Info("jpegsim: tracing", "format", string(format))

	return func() {
		if err := rec.Err(); err != nil {
			slog.Error("jpegsim: trace incomplete", "error", err)
		}

		if err := w.Close(); err != nil {
			slog.Error("jpegsim: cannot close trace", "error", err)
		}

		slog.Info("jpegsim: trace written", "records", rec.Count())
	}, nil
}

func startMonitor(opts *runOptions, chain *core.Core) (*monitoring.Monitor, error) {
	m := monitoring.NewMonitor().
		WithPortNumber(opts.monitorPort).
		WithBrowser(opts.openBrowser)

	m.RegisterEnvironment(chain.Env())
	for _, pe := range chain.Stages {
		m.RegisterStage(pe)
	}

	if _, err := m.StartServer(); err != nil {
		return nil, err
	}

	return m, nil
}

func printReport(out io.Writer, chain *core.Core) {
	stats := chain.Stats()

	_, _ = fmt.Fprintf(out, "\n")
	_, _ = fmt.Fprintf(out, "Total Cycles: %d\n", stats.Cycles)
	_, _ = fmt.Fprintf(out, "Injected:     %d\n", stats.Injected)
	_, _ = fmt.Fprintf(out, "Delivered:    %d\n", stats.Delivered)
	_, _ = fmt.Fprintf(out, "Throughput:   %.3f samples/cycle\n", stats.Throughput())
	_, _ = fmt.Fprintf(out, "Latency:      %.2f mean, %d max\n", stats.MeanLatency, stats.MaxLatency)
	_, _ = fmt.Fprintf(out, "\n")
	_, _ = fmt.Fprintf(out, "Stages:\n")

	for _, s := range stats.Stages {
		_, _ = fmt.Fprintf(out, "  %-14s accepted %4d  emitted %4d  stalls %4d (%5.1f%%)  blocked %4d",
			s.Name, s.Accepted, s.Emitted, s.StallCycles, 100*s.StallRate(), s.BlockedCycles)

		if s.InputBufferPeak > 0 || s.OutputBufferPeak > 0 {
			_, _ = fmt.Fprintf(out, "  buffers %d/%d", s.InputBufferPeak, s.OutputBufferPeak)
		}

		if s.Flushed > 0 {
			_, _ = fmt.Fprintf(out, "  flushed %d", s.Flushed)
		}

		_, _ = fmt.Fprintf(out, "\n")
	}
}
