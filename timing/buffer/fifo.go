// Package buffer provides an elastic ready/valid FIFO.
package buffer

import (
	"errors"
	"fmt"
	"math"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/jpegsim/signal"
	"github.com/sarchlab/jpegsim/stream"
	"github.com/sarchlab/jpegsim/timing/clock"
)

// Unlimited is the capacity of a FIFO that never fills up.
const Unlimited = 0

var (
	// ErrWidthMismatch is returned when the two sides of a FIFO differ in
	// width.
	ErrWidthMismatch = errors.New("buffer: width mismatch")

	// ErrAlreadyWired is returned when a FIFO is wired a second time.
	ErrAlreadyWired = errors.New("buffer: already wired")
)

// FIFO moves samples from an input stream to an output stream through a
// queue and an output register. A sample taken at edge n is on the output at
// edge n+1 at the earliest.
type FIFO struct {
	name      string
	capacity  int
	admission func() bool

	queue sim.Buffer

	env     *clock.Environment
	in, out stream.Stream

	pushPending  bool
	pushValue    uint64
	popPending   bool
	clearPending bool

	pushed   uint64
	popped   uint64
	maxLevel int
}

// Name returns the name of the FIFO.
func (f *FIFO) Name() string {
	return f.name
}

// Capacity returns the configured capacity. Zero means unlimited.
func (f *FIFO) Capacity() int {
	return f.capacity
}

// Size returns the number of queued samples, not counting the one held on
// the output.
func (f *FIFO) Size() int {
	return f.queue.Size()
}

// Buffer returns the underlying queue.
func (f *FIFO) Buffer() sim.Buffer {
	return f.queue
}

// Pushed returns the number of samples taken from the input.
func (f *FIFO) Pushed() uint64 {
	return f.pushed
}

// Popped returns the number of samples moved to the output.
func (f *FIFO) Popped() uint64 {
	return f.popped
}

// MaxLevel returns the highest queue level seen so far.
func (f *FIFO) MaxLevel() int {
	return f.maxLevel
}

// Wire connects the FIFO between in and out and registers it with env.
func (f *FIFO) Wire(
	env *clock.Environment,
	in, out stream.Stream,
) ([]clock.Process, error) {
	if f.env != nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyWired, f.name)
	}

	if in.Width() != out.Width() {
		return nil, fmt.Errorf("%w: %s has input width %d and output width %d",
			ErrWidthMismatch, f.name, in.Width(), out.Width())
	}

	f.env = env
	f.in = in
	f.out = out
	env.AddProcess(f)

	return []clock.Process{f}, nil
}

// Settle drives the input ready line.
func (f *FIFO) Settle() bool {
	ready := !f.env.InReset() && f.queue.CanPush() && f.admission()
	return f.in.Ready().Drive(ready)
}

// Update decides what moves at this edge.
func (f *FIFO) Update() {
	if f.env.InReset() {
		f.clearPending = true
		f.out.Clear()

		return
	}

	fired := f.in.Fired()
	canLoad := !f.out.Valid().Value() || f.out.Fired()

	switch {
	case canLoad && f.queue.Size() > 0:
		f.out.Present(signal.Of(f.queue.Peek().(uint64)))
		f.popPending = true
	case canLoad && fired:
		// Empty queue: the sample goes straight to the output register.
		f.out.Present(signal.Of(f.in.Data().Value()))
		f.pushed++
		f.popped++

		return
	case canLoad:
		f.out.Present(signal.Bubble)
	}

	if fired {
		f.pushPending = true
		f.pushValue = f.in.Data().Value()
	}
}

// Commit applies the queue operations decided in Update.
func (f *FIFO) Commit() {
	if f.clearPending {
		f.queue.Clear()
		f.clearPending = false
		f.pushPending = false
		f.popPending = false

		return
	}

	if f.popPending {
		f.queue.Pop()
		f.popped++
		f.popPending = false
	}

	if f.pushPending {
		f.queue.Push(f.pushValue)
		f.pushed++
		f.pushPending = false
	}

	if f.queue.Size() > f.maxLevel {
		f.maxLevel = f.queue.Size()
	}
}

// A Builder can build FIFOs.
type Builder struct {
	capacity  int
	admission func() bool
}

// MakeBuilder creates a builder for an unlimited FIFO that always admits.
func MakeBuilder() Builder {
	return Builder{
		capacity:  Unlimited,
		admission: func() bool { return true },
	}
}

// WithCapacity limits the number of queued samples. Zero means unlimited.
func (b Builder) WithCapacity(n int) Builder {
	b.capacity = n
	return b
}

// WithAdmission sets a condition ANDed into the input ready line.
func (b Builder) WithAdmission(admit func() bool) Builder {
	b.admission = admit
	return b
}

// Build creates a FIFO with the given name.
func (b Builder) Build(name string) *FIFO {
	if b.capacity < 0 {
		panic("buffer: capacity must not be negative")
	}

	size := b.capacity
	if size == Unlimited {
		size = math.MaxInt
	}

	return &FIFO{
		name:      name,
		capacity:  b.capacity,
		admission: b.admission,
		queue:     sim.NewBuffer(name+".Queue", size),
	}
}
