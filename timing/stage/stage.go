// Package stage models one processing element of a clocked dataflow
// pipeline, such as the DCT or quantization stage of a JPEG encoder.
//
// A ProcessingStage takes samples from a ready/valid input stream and
// presents each of them on a ready/valid output stream exactly
// CyclesToProcess edges after it was accepted. A pipelined stage accepts a
// sample on every edge; a stalling stage holds its input ready low while a
// sample is being processed. Either side can be cushioned by an elastic
// buffer, each adding one edge of latency.
package stage

import (
	"fmt"
	"log/slog"

	"github.com/sarchlab/jpegsim/signal"
	"github.com/sarchlab/jpegsim/stream"
	"github.com/sarchlab/jpegsim/timing/buffer"
	"github.com/sarchlab/jpegsim/timing/clock"
)

// ProcessingStage is the latency and handshake model of one processing
// element.
type ProcessingStage struct {
	config *Config

	fifoIn  *buffer.FIFO
	fifoOut *buffer.FIFO

	env *clock.Environment

	// in and out are the external streams. engineIn and engineOut are the
	// streams the state machine works on; they differ from the external
	// ones on buffered sides.
	in, out             stream.Stream
	engineIn, engineOut stream.Stream
	processedView       *stream.DataStream

	slots     []*signal.Signal[signal.Sample]
	processed *signal.Signal[signal.Sample]
	latch     *signal.Signal[bool]
	remaining *signal.Signal[int]

	inTap, processedTap, outTap *stream.Tap

	processes []clock.Process
	stats     Statistics
}

// New creates a stage. It returns a *ConfigurationError if the
// configuration is invalid.
func New(config Config) (*ProcessingStage, error) {
	c := config.Clone()
	if c.Name == "" {
		c.Name = DefaultName
	}

	if c.Buffered == "" {
		c.Buffered = BufferNone
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	p := &ProcessingStage{
		config:    c,
		processed: signal.New(signal.Bubble),
		latch:     signal.New(true),
		remaining: signal.New(0),
	}

	if c.Pipelined {
		p.slots = make([]*signal.Signal[signal.Sample], c.CyclesToProcess-1)
		for i := range p.slots {
			p.slots[i] = signal.New(signal.Bubble)
		}
	}

	if c.Buffered.HasInput() {
		p.fifoIn = buffer.MakeBuilder().
			WithCapacity(c.BufferCapacity).
			WithAdmission(p.accepting).
			Build(c.Name + ".InBuf")
	}

	if c.Buffered.HasOutput() {
		p.fifoOut = buffer.MakeBuilder().
			WithCapacity(c.BufferCapacity).
			Build(c.Name + ".OutBuf")
	}

	slog.Debug("stage: created",
		"name", c.Name,
		"cycles", c.CyclesToProcess,
		"pipelined", c.Pipelined,
		"buffered", string(c.Buffered))

	return p, nil
}

// NewFromOptions creates a stage from loosely typed values. See
// ConfigFromOptions for what is accepted.
func NewFromOptions(cycles, pipelined, blockSize, buffered any) (*ProcessingStage, error) {
	config, err := ConfigFromOptions(cycles, pipelined, blockSize, buffered)
	if err != nil {
		return nil, err
	}

	return New(*config)
}

// Name returns the name of the stage.
func (p *ProcessingStage) Name() string {
	return p.config.Name
}

// Config returns a copy of the configuration.
func (p *ProcessingStage) Config() Config {
	return *p.config.Clone()
}

// InputBuffer returns the input FIFO, or nil when the input is unbuffered.
func (p *ProcessingStage) InputBuffer() *buffer.FIFO {
	return p.fifoIn
}

// OutputBuffer returns the output FIFO, or nil when the output is
// unbuffered.
func (p *ProcessingStage) OutputBuffer() *buffer.FIFO {
	return p.fifoOut
}

// Buffers returns the FIFOs the stage owns.
func (p *ProcessingStage) Buffers() []*buffer.FIFO {
	var fifos []*buffer.FIFO

	if p.fifoIn != nil {
		fifos = append(fifos, p.fifoIn)
	}

	if p.fifoOut != nil {
		fifos = append(fifos, p.fifoOut)
	}

	return fifos
}

// Process wires the stage between in and out and registers the stage and
// its buffers with env. It returns the processes the stage owns.
//
// With an input buffer, the ready line upstream sees is the buffer's own
// readiness: the buffer keeps taking samples while the state machine stalls
// and only stops when it is full or reset is asserted.
func (p *ProcessingStage) Process(
	env *clock.Environment,
	in, out stream.Stream,
) ([]clock.Process, error) {
	if p.env != nil {
		return nil, &ContractViolation{
			Stage:  p.config.Name,
			Reason: "stage is already wired",
			Err:    ErrAlreadyWired,
		}
	}

	if in.Width() != out.Width() {
		return nil, &ContractViolation{
			Stage: p.config.Name,
			Reason: fmt.Sprintf("input width %d differs from output width %d",
				in.Width(), out.Width()),
			Err: ErrWidthMismatch,
		}
	}

	p.env = env
	p.in, p.out = in, out
	p.engineIn, p.engineOut = in, out

	env.AddProcess(p)
	p.processes = []clock.Process{p}

	if p.fifoIn != nil {
		p.engineIn = in.Duplicate(p.config.Name + ".Staged")
		if err := p.wireBuffer(p.fifoIn, in, p.engineIn); err != nil {
			return nil, err
		}
	}

	if p.fifoOut != nil {
		p.engineOut = out.Duplicate(p.config.Name + ".Result")
		if err := p.wireBuffer(p.fifoOut, p.engineOut, out); err != nil {
			return nil, err
		}
	}

	p.processedView = stream.MustNew(env, p.config.Name+".Processed", in.Width())

	p.inTap = in.TraceTap(p.config.Name + ".In")
	p.processedTap = p.processedView.TraceTap(p.config.Name + ".Processed")
	p.outTap = out.TraceTap(p.config.Name + ".Out")

	slog.Debug("stage: wired",
		"name", p.config.Name,
		"in", in.Name(),
		"out", out.Name(),
		"width", in.Width(),
		"processes", len(p.processes))

	return p.processes, nil
}

func (p *ProcessingStage) wireBuffer(f *buffer.FIFO, in, out stream.Stream) error {
	procs, err := f.Wire(p.env, in, out)
	if err != nil {
		return &ContractViolation{
			Stage:  p.config.Name,
			Reason: fmt.Sprintf("cannot wire %s", f.Name()),
			Err:    err,
		}
	}

	p.processes = append(p.processes, procs...)

	return nil
}

// Processes returns the processes registered by Process: the stage itself
// followed by its input and output buffers, if any.
func (p *ProcessingStage) Processes() []clock.Process {
	return p.processes
}

// Taps returns the change recorders on the input, the holding register and
// the output.
func (p *ProcessingStage) Taps() []*stream.Tap {
	if p.inTap == nil {
		return nil
	}

	return []*stream.Tap{p.inTap, p.processedTap, p.outTap}
}

// InTap returns the tap on the external input.
func (p *ProcessingStage) InTap() *stream.Tap {
	return p.inTap
}

// ProcessedTap returns the tap on the holding register.
func (p *ProcessingStage) ProcessedTap() *stream.Tap {
	return p.processedTap
}

// OutTap returns the tap on the external output.
func (p *ProcessingStage) OutTap() *stream.Tap {
	return p.outTap
}

// EngineInput returns the stream the state machine takes samples from. It
// is the external input unless the input is buffered.
func (p *ProcessingStage) EngineInput() stream.Stream {
	return p.engineIn
}

// EngineOutput returns the stream the state machine presents samples on. It
// is the external output unless the output is buffered.
func (p *ProcessingStage) EngineOutput() stream.Stream {
	return p.engineOut
}

// Ready reports whether the state machine accepts a sample at the current
// edge. An unwired stage reports its readiness latch, which is set at
// construction.
func (p *ProcessingStage) Ready() bool {
	if p.env == nil {
		return p.latch.Value()
	}

	return p.engineReady()
}

func (p *ProcessingStage) accepting() bool {
	return !p.env.InReset()
}

func (p *ProcessingStage) blocked() bool {
	return p.engineOut.Valid().Value() && !p.engineOut.Ready().Value()
}

func (p *ProcessingStage) engineReady() bool {
	return p.accepting() && p.latch.Value() && !p.blocked()
}

// Settle drives the ready line of the engine input and mirrors the holding
// register.
func (p *ProcessingStage) Settle() bool {
	changed := p.engineIn.Ready().Drive(p.engineReady())

	cur := p.processed.Value()
	if p.processedView.Data().Drive(cur.Data) {
		changed = true
	}

	if p.processedView.Valid().Drive(cur.Valid) {
		changed = true
	}

	return changed
}

// Update runs one step of the state machine.
func (p *ProcessingStage) Update() {
	p.stats.Edges++

	if p.in.Fired() {
		p.stats.Accepted++
	}

	if p.out.Fired() {
		p.stats.Emitted++
	}

	if p.env.InReset() {
		p.stats.ResetCycles++
		p.stats.Flushed = p.stats.Accepted - p.stats.Emitted
		p.clear()

		return
	}

	if p.blocked() {
		p.stats.BlockedCycles++
		return
	}

	if p.config.Pipelined {
		p.stepPipelined()
	} else {
		p.stepStalling()
	}
}

func (p *ProcessingStage) incoming() signal.Sample {
	if p.engineIn.Fired() {
		return p.engineIn.Sample()
	}

	return signal.Bubble
}

func (p *ProcessingStage) stepPipelined() {
	in := p.incoming()

	p.engineOut.Present(p.processed.Value())

	n := len(p.slots)
	if n == 0 {
		p.processed.SetNext(in)
		return
	}

	p.processed.SetNext(p.slots[n-1].Value())

	for i := n - 1; i > 0; i-- {
		p.slots[i].SetNext(p.slots[i-1].Value())
	}

	p.slots[0].SetNext(in)
}

func (p *ProcessingStage) stepStalling() {
	if !p.latch.Value() {
		p.stats.StallCycles++
	}

	rem := p.remaining.Value()

	if rem == 1 {
		p.engineOut.Present(p.processed.Value())
	} else {
		p.engineOut.Present(signal.Bubble)
	}

	if rem == 2 {
		p.latch.SetNext(true)
	}

	if rem > 0 {
		p.remaining.SetNext(rem - 1)
	}

	if p.engineIn.Fired() {
		k := p.config.CyclesToProcess

		p.processed.SetNext(p.engineIn.Sample())
		p.remaining.SetNext(k)
		p.latch.SetNext(k == 1)
	}
}

func (p *ProcessingStage) clear() {
	for _, s := range p.slots {
		s.SetNext(signal.Bubble)
	}

	p.processed.SetNext(signal.Bubble)
	p.latch.SetNext(true)
	p.remaining.SetNext(0)
	p.engineOut.Clear()
}

// Commit applies the next state of the internal registers.
func (p *ProcessingStage) Commit() {
	for _, s := range p.slots {
		s.Commit()
	}

	p.processed.Commit()
	p.latch.Commit()
	p.remaining.Commit()
}

// Occupancy returns the number of samples taken from the input and not yet
// delivered on the output, including those held in buffers.
func (p *ProcessingStage) Occupancy() uint64 {
	return p.stats.Accepted - p.stats.Emitted - p.stats.Flushed
}

// Stats returns a snapshot of the stage statistics.
func (p *ProcessingStage) Stats() Statistics {
	s := p.stats

	if p.fifoIn != nil {
		s.InputBufferPeak = p.fifoIn.MaxLevel()
	}

	if p.fifoOut != nil {
		s.OutputBufferPeak = p.fifoOut.MaxLevel()
	}

	return s
}
