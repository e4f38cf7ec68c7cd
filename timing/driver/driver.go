// Package driver provides stream producers and consumers that respect the
// ready/valid handshake, for driving and observing clocked parts.
package driver

import (
	"github.com/sarchlab/jpegsim/signal"
	"github.com/sarchlab/jpegsim/stream"
	"github.com/sarchlab/jpegsim/timing/clock"
)

// Transfer is one sample that crossed a stream, with the edge at which it
// was taken.
type Transfer struct {
	Edge uint64 `json:"edge"`
	Data uint64 `json:"data"`
}

// Edges returns the edges of a list of transfers.
func Edges(ts []Transfer) []uint64 {
	edges := make([]uint64, len(ts))
	for i, t := range ts {
		edges[i] = t.Edge
	}

	return edges
}

// Data returns the data of a list of transfers.
func Data(ts []Transfer) []uint64 {
	data := make([]uint64, len(ts))
	for i, t := range ts {
		data[i] = t.Data
	}

	return data
}

// Source injects a fixed list of samples into a stream. A sample stays on
// the bus until it is taken.
type Source struct {
	name    string
	gap     int
	samples []uint64

	env  *clock.Environment
	out  stream.Stream
	next int
	idle int

	accepted []Transfer
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithGap keeps valid low for n edges after every accepted sample.
func WithGap(n int) SourceOption {
	return func(s *Source) {
		s.gap = n
	}
}

// NewSource creates a source that injects samples in order.
func NewSource(name string, samples []uint64, opts ...SourceOption) *Source {
	s := &Source{
		name:    name,
		samples: append([]uint64(nil), samples...),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the name of the source.
func (s *Source) Name() string {
	return s.name
}

// Wire connects the source to out. The first sample is on the bus before
// the first edge.
func (s *Source) Wire(env *clock.Environment, out stream.Stream) []clock.Process {
	s.env = env
	s.out = out

	if len(s.samples) > 0 {
		out.Data().Drive(s.samples[0])
		out.Valid().Drive(true)
	}

	env.AddProcess(s)

	return []clock.Process{s}
}

// Settle does nothing; the source has no combinational outputs.
func (s *Source) Settle() bool {
	return false
}

// Update advances to the next sample after a transfer.
func (s *Source) Update() {
	if s.out.Fired() {
		s.accepted = append(s.accepted, Transfer{
			Edge: s.env.Edge(),
			Data: s.out.Data().Value(),
		})
		s.next++

		if s.gap > 0 {
			s.idle = s.gap
			s.out.Present(signal.Bubble)

			return
		}

		s.presentNext()

		return
	}

	if s.idle > 0 {
		s.idle--
		if s.idle == 0 {
			s.presentNext()
		}
	}
}

func (s *Source) presentNext() {
	if s.next >= len(s.samples) {
		s.out.Present(signal.Bubble)
		return
	}

	s.out.Present(signal.Of(s.samples[s.next]))
}

// Commit does nothing; the stream registers are committed by the
// environment.
func (s *Source) Commit() {}

// Done reports whether every sample has been taken.
func (s *Source) Done() bool {
	return s.next >= len(s.samples)
}

// Injected returns the number of samples taken so far.
func (s *Source) Injected() int {
	return s.next
}

// Accepted returns the transfers in order.
func (s *Source) Accepted() []Transfer {
	return s.accepted
}

// ReadyPattern decides whether a sink is ready at an edge.
type ReadyPattern func(edge uint64) bool

// AlwaysReady is a sink that never stalls.
func AlwaysReady() ReadyPattern {
	return func(uint64) bool { return true }
}

// StallEvery stalls on every n-th edge. A non-positive n never stalls.
func StallEvery(n uint64) ReadyPattern {
	if n == 0 {
		return AlwaysReady()
	}

	return func(edge uint64) bool { return edge%n != 0 }
}

// ReadyFrom stalls until the given edge and is ready from then on.
func ReadyFrom(first uint64) ReadyPattern {
	return func(edge uint64) bool { return edge >= first }
}

// Sink consumes a stream.
type Sink struct {
	name    string
	pattern ReadyPattern

	env *clock.Environment
	in  stream.Stream

	received []Transfer
}

// NewSink creates a sink. A nil pattern is always ready.
func NewSink(name string, pattern ReadyPattern) *Sink {
	if pattern == nil {
		pattern = AlwaysReady()
	}

	return &Sink{name: name, pattern: pattern}
}

// Name returns the name of the sink.
func (s *Sink) Name() string {
	return s.name
}

// Wire connects the sink to in.
func (s *Sink) Wire(env *clock.Environment, in stream.Stream) []clock.Process {
	s.env = env
	s.in = in
	env.AddProcess(s)

	return []clock.Process{s}
}

// Settle drives the ready line for the current edge.
func (s *Sink) Settle() bool {
	return s.in.Ready().Drive(s.pattern(s.env.Edge()))
}

// Update records a transfer.
func (s *Sink) Update() {
	if s.in.Fired() {
		s.received = append(s.received, Transfer{
			Edge: s.env.Edge(),
			Data: s.in.Data().Value(),
		})
	}
}

// Commit does nothing.
func (s *Sink) Commit() {}

// Received returns the transfers in order.
func (s *Sink) Received() []Transfer {
	return s.received
}

// Observation is the state of a stream at one edge.
type Observation struct {
	Edge  uint64
	Data  uint64
	Valid bool
	Ready bool
}

// Fired reports whether a transfer took place.
func (o Observation) Fired() bool {
	return o.Valid && o.Ready
}

// Probe records the state of a stream at every edge, as seen by the parts
// that update at that edge.
type Probe struct {
	env *clock.Environment
	s   stream.Stream
	obs []Observation
}

// NewProbe creates a probe on s and registers it with env.
func NewProbe(env *clock.Environment, s stream.Stream) *Probe {
	p := &Probe{env: env, s: s}
	env.AddProcess(p)

	return p
}

// Settle does nothing.
func (p *Probe) Settle() bool {
	return false
}

// Update records the current edge.
func (p *Probe) Update() {
	p.obs = append(p.obs, Observation{
		Edge:  p.env.Edge(),
		Data:  p.s.Data().Value(),
		Valid: p.s.Valid().Value(),
		Ready: p.s.Ready().Value(),
	})
}

// Commit does nothing.
func (p *Probe) Commit() {}

// Observations returns one entry per edge.
func (p *Probe) Observations() []Observation {
	return p.obs
}

// At returns the observation at an edge.
func (p *Probe) At(edge uint64) (Observation, bool) {
	for _, o := range p.obs {
		if o.Edge == edge {
			return o, true
		}
	}

	return Observation{}, false
}

// ReadyLowEdges returns the edges at which ready was low.
func (p *Probe) ReadyLowEdges() []uint64 {
	var edges []uint64

	for _, o := range p.obs {
		if !o.Ready {
			edges = append(edges, o.Edge)
		}
	}

	return edges
}
