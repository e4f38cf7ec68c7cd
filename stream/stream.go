// Package stream defines the ready/valid channel that connects clocked parts.
package stream

import (
	"errors"
	"fmt"

	"github.com/sarchlab/jpegsim/signal"
)

// MaxWidth is the widest data bus a stream can carry.
const MaxWidth = 64

// ErrInvalidWidth is returned when a stream is created with a width outside
// 1..MaxWidth.
var ErrInvalidWidth = errors.New("stream: invalid width")

// Observer is notified after every committed edge.
type Observer interface {
	Observe(edge uint64)
}

// Registry collects the registers of streams so that they are committed at
// every edge, and the observers that watch them.
type Registry interface {
	Register(c signal.Committer)
	Observe(o Observer)
}

// Stream is a ready/valid channel with a fixed-width data bus.
//
// The producer owns Data and Valid, the consumer owns Ready. A transfer
// commits at an edge if and only if Valid and Ready both hold at that edge.
type Stream interface {
	Name() string
	Width() int

	Data() *signal.Signal[uint64]
	Valid() *signal.Signal[bool]
	Ready() *signal.Signal[bool]

	// Fired reports whether a transfer takes place at the current edge.
	Fired() bool

	// Sample returns the committed data and valid pair.
	Sample() signal.Sample

	// Present schedules s for the next edge. A bubble only clears valid
	// and leaves the data bus untouched.
	Present(s signal.Sample)

	// Clear schedules zero data and valid low.
	Clear()

	// Duplicate creates an independent stream of the same width in the same
	// registry.
	Duplicate(name string) Stream

	// TraceTap attaches a change recorder to the stream.
	TraceTap(name string) *Tap
}

// DataStream is the register-backed Stream implementation.
type DataStream struct {
	name  string
	width int
	mask  uint64
	reg   Registry

	data  *signal.Signal[uint64]
	valid *signal.Signal[bool]
	ready *signal.Signal[bool]
}

// New creates a stream and registers its registers with reg.
func New(reg Registry, name string, width int) (*DataStream, error) {
	if width < 1 || width > MaxWidth {
		return nil, fmt.Errorf("%w: %s has width %d", ErrInvalidWidth, name, width)
	}

	s := &DataStream{
		name:  name,
		width: width,
		mask:  maskOf(width),
		reg:   reg,
		data:  signal.New[uint64](0),
		valid: signal.New(false),
		ready: signal.New(false),
	}

	reg.Register(s.data)
	reg.Register(s.valid)
	reg.Register(s.ready)

	return s, nil
}

// MustNew is like New but panics on an invalid width.
func MustNew(reg Registry, name string, width int) *DataStream {
	s, err := New(reg, name, width)
	if err != nil {
		panic(err)
	}

	return s
}

func maskOf(width int) uint64 {
	if width >= MaxWidth {
		return ^uint64(0)
	}

	return (uint64(1) << width) - 1
}

// Name returns the name of the stream.
func (s *DataStream) Name() string {
	return s.name
}

// Width returns the data bus width in bits.
func (s *DataStream) Width() int {
	return s.width
}

// Data returns the data bus register.
func (s *DataStream) Data() *signal.Signal[uint64] {
	return s.data
}

// Valid returns the valid register.
func (s *DataStream) Valid() *signal.Signal[bool] {
	return s.valid
}

// Ready returns the ready register.
func (s *DataStream) Ready() *signal.Signal[bool] {
	return s.ready
}

// Fired reports whether valid and ready both hold.
func (s *DataStream) Fired() bool {
	return s.valid.Value() && s.ready.Value()
}

// Sample returns the committed data and valid pair.
func (s *DataStream) Sample() signal.Sample {
	return signal.Sample{Data: s.data.Value(), Valid: s.valid.Value()}
}

// Present schedules a sample for the next edge.
func (s *DataStream) Present(smp signal.Sample) {
	if smp.Valid {
		s.data.SetNext(smp.Data & s.mask)
	}

	s.valid.SetNext(smp.Valid)
}

// Drive puts a sample on the bus immediately, before any edge has run.
func (s *DataStream) Drive(smp signal.Sample) {
	s.data.Drive(smp.Data & s.mask)
	s.valid.Drive(smp.Valid)
}

// Clear schedules zero data and valid low.
func (s *DataStream) Clear() {
	s.data.SetNext(0)
	s.valid.SetNext(false)
}

// Duplicate creates a fresh stream of the same width.
func (s *DataStream) Duplicate(name string) Stream {
	return MustNew(s.reg, name, s.width)
}

// TraceTap attaches a change recorder to the stream.
func (s *DataStream) TraceTap(name string) *Tap {
	t := NewTap(name, s)
	s.reg.Observe(t)

	return t
}
