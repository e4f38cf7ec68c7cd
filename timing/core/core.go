// Package core provides the chain model: a source, a series of processing
// stages joined by streams, and a sink.
// It wraps the clock environment to provide a high-level interface.
package core

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/sarchlab/jpegsim/stream"
	"github.com/sarchlab/jpegsim/timing/clock"
	"github.com/sarchlab/jpegsim/timing/driver"
	"github.com/sarchlab/jpegsim/timing/stage"
)

// ErrNoStages is returned when a chain is created without stages.
var ErrNoStages = errors.New("core: chain has no stages")

// ErrNotDrained is returned by Run when the chain still holds samples after
// the cycle limit.
var ErrNotDrained = errors.New("core: chain not drained")

// Stats holds performance statistics for the chain.
type Stats struct {
	// Cycles is the total number of edges simulated.
	Cycles uint64 `json:"cycles"`
	// Injected is the number of samples taken by the first stage.
	Injected uint64 `json:"injected"`
	// Delivered is the number of samples taken by the sink.
	Delivered uint64 `json:"delivered"`
	// MeanLatency is the mean number of edges between injection and
	// delivery.
	MeanLatency float64 `json:"mean_latency"`
	// MaxLatency is the largest injection to delivery distance.
	MaxLatency uint64 `json:"max_latency"`
	// Stages holds per-stage statistics in chain order.
	Stages []StageStats `json:"stages"`
}

// StageStats are the statistics of one named stage.
type StageStats struct {
	Name string `json:"name"`
	stage.Statistics
}

// Throughput returns the delivered samples per edge.
func (s Stats) Throughput() float64 {
	if s.Cycles == 0 {
		return 0
	}

	return float64(s.Delivered) / float64(s.Cycles)
}

// Core represents a chain of processing stages.
type Core struct {
	// Stages are the processing stages in chain order.
	Stages []*stage.ProcessingStage

	env    *clock.Environment
	links  []*stream.DataStream
	source *driver.Source
	sink   *driver.Sink
}

// NewCore creates a chain of stages with the given configurations, wired
// between source and sink with streams of the given width.
func NewCore(
	env *clock.Environment,
	width int,
	source *driver.Source,
	sink *driver.Sink,
	configs ...stage.Config,
) (*Core, error) {
	if len(configs) == 0 {
		return nil, ErrNoStages
	}

	c := &Core{env: env, source: source, sink: sink}

	for i := 0; i <= len(configs); i++ {
		s, err := stream.New(env, fmt.Sprintf("Link[%d]", i), width)
		if err != nil {
			return nil, fmt.Errorf("failed to create link %d: %w", i, err)
		}

		c.links = append(c.links, s)
	}

	for i, config := range configs {
		pe, err := stage.New(config)
		if err != nil {
			return nil, fmt.Errorf("failed to create stage %d: %w", i, err)
		}

		if _, err := pe.Process(env, c.links[i], c.links[i+1]); err != nil {
			return nil, fmt.Errorf("failed to wire stage %s: %w", pe.Name(), err)
		}

		c.Stages = append(c.Stages, pe)
	}

	source.Wire(env, c.Input())
	sink.Wire(env, c.Output())

	slog.Debug("core: chain built",
		"stages", len(c.Stages),
		"width", width)

	return c, nil
}

// Env returns the clock environment.
func (c *Core) Env() *clock.Environment {
	return c.env
}

// Input returns the stream that feeds the first stage.
func (c *Core) Input() stream.Stream {
	return c.links[0]
}

// Output returns the stream that leaves the last stage.
func (c *Core) Output() stream.Stream {
	return c.links[len(c.links)-1]
}

// Links returns all streams in chain order.
func (c *Core) Links() []*stream.DataStream {
	return c.links
}

// Source returns the sample source.
func (c *Core) Source() *driver.Source {
	return c.source
}

// Sink returns the sample sink.
func (c *Core) Sink() *driver.Sink {
	return c.sink
}

// Stage returns the stage with the given name, or nil.
func (c *Core) Stage(name string) *stage.ProcessingStage {
	for _, pe := range c.Stages {
		if pe.Name() == name {
			return pe
		}
	}

	return nil
}

// Tick executes one edge.
func (c *Core) Tick() {
	c.env.Step()
}

// Done returns true when every sample has been injected and every sample
// still owed by the chain has been delivered.
func (c *Core) Done() bool {
	if !c.source.Done() {
		return false
	}

	for _, pe := range c.Stages {
		if pe.Occupancy() > 0 {
			return false
		}
	}

	return true
}

// RunCycles executes the chain for the specified number of edges.
// Returns true if samples are still in flight.
func (c *Core) RunCycles(cycles uint64) (bool, error) {
	if err := c.env.Run(cycles); err != nil {
		return false, err
	}

	return !c.Done(), nil
}

// Run executes the chain until it is drained or limit edges have passed.
// Returns the number of edges executed.
func (c *Core) Run(limit uint64) (uint64, error) {
	start := c.env.Cycle()

	for !c.Done() {
		if c.env.Cycle()-start >= limit {
			return c.env.Cycle() - start, fmt.Errorf("%w after %d cycles", ErrNotDrained, limit)
		}

		if err := c.env.Run(1); err != nil {
			return c.env.Cycle() - start, err
		}
	}

	return c.env.Cycle() - start, nil
}

// Reset holds reset for n edges. Samples in flight are discarded.
func (c *Core) Reset(n uint64) {
	c.env.AssertReset(n)
}

// Latencies returns, for every delivered sample, the number of edges from
// its injection to its delivery. Samples dropped by a reset are not
// matched, so the result is only meaningful for runs without reset.
func (c *Core) Latencies() []uint64 {
	accepted := c.source.Accepted()
	received := c.sink.Received()

	n := min(len(accepted), len(received))
	lat := make([]uint64, n)

	for i := 0; i < n; i++ {
		lat[i] = received[i].Edge - accepted[i].Edge
	}

	return lat
}

// Stats returns performance statistics for the chain.
func (c *Core) Stats() Stats {
	s := Stats{
		Cycles:    c.env.Cycle(),
		Injected:  uint64(len(c.source.Accepted())),
		Delivered: uint64(len(c.sink.Received())),
	}

	lat := c.Latencies()

	var sum uint64
	for _, l := range lat {
		sum += l
		s.MaxLatency = max(s.MaxLatency, l)
	}

	if len(lat) > 0 {
		s.MeanLatency = float64(sum) / float64(len(lat))
	}

	for _, pe := range c.Stages {
		s.Stages = append(s.Stages, StageStats{
			Name:       pe.Name(),
			Statistics: pe.Stats(),
		})
	}

	return s
}
