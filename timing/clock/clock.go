// Package clock provides the clock and reset environment that advances
// clocked parts on an akita engine.
//
// Every tick of the environment is one clock edge. An edge runs in phases:
// combinational settle, sequential update, commit, a second settle for the
// following edge so that observers see consistent values, and finally the
// observers themselves.
package clock

import (
	"fmt"
	"sync"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/jpegsim/signal"
	"github.com/sarchlab/jpegsim/stream"
)

// SettleSlack is added to the number of processes to bound the
// combinational settle loop. Exceeding the bound means the wiring contains
// a combinational loop.
const SettleSlack = 8

// Process is a clocked part of the model.
type Process interface {
	// Settle drives combinational outputs from committed state and reports
	// whether any of them changed.
	Settle() bool

	// Update computes next-state values from committed state.
	Update()

	// Commit applies the values computed in Update.
	Commit()
}

// Environment owns the clock and the reset line.
type Environment struct {
	*sim.TickingComponent

	// lock is held while an edge runs and while Inspect runs.
	lock sync.Mutex

	engine sim.Engine

	registers []signal.Committer
	processes []Process
	observers []stream.Observer

	reset          *signal.Signal[bool]
	resetRemaining uint64

	cycle  uint64
	target uint64
}

// Register adds a register that is committed at every edge.
func (e *Environment) Register(c signal.Committer) {
	e.registers = append(e.registers, c)
}

// Observe adds an observer notified after every edge.
func (e *Environment) Observe(o stream.Observer) {
	e.observers = append(e.observers, o)
}

// AddProcess adds a clocked process.
func (e *Environment) AddProcess(p Process) {
	e.processes = append(e.processes, p)
}

// Processes returns the processes in registration order.
func (e *Environment) Processes() []Process {
	return e.processes
}

// Reset returns the reset line. It is active high and synchronous.
func (e *Environment) Reset() *signal.Signal[bool] {
	return e.reset
}

// InReset reports whether reset is asserted at the current edge.
func (e *Environment) InReset() bool {
	return e.reset.Value()
}

// AssertReset holds reset high for the next n edges.
func (e *Environment) AssertReset(n uint64) {
	if n == 0 {
		return
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	e.resetRemaining = n
	e.reset.Drive(true)
}

// Cycle returns the number of completed edges.
func (e *Environment) Cycle() uint64 {
	return e.cycle
}

// Edge returns the number of the edge that is about to run or is running.
func (e *Environment) Edge() uint64 {
	return e.cycle + 1
}

// Now returns the current simulated time.
func (e *Environment) Now() sim.VTimeInSec {
	return e.engine.CurrentTime()
}

// Inspect runs f between two edges. State read inside f is consistent and
// not modified concurrently, so other goroutines can inspect a running
// simulation. f must not advance the clock.
func (e *Environment) Inspect(f func()) {
	e.lock.Lock()
	defer e.lock.Unlock()

	f()
}

// Engine returns the akita engine that drives the environment.
func (e *Environment) Engine() sim.Engine {
	return e.engine
}

// Run advances the model by n edges.
func (e *Environment) Run(n uint64) error {
	if n == 0 {
		return nil
	}

	e.target = e.cycle + n
	e.TickLater()

	if err := e.engine.Run(); err != nil {
		return fmt.Errorf("clock: engine run: %w", err)
	}

	return nil
}

// Step runs exactly one edge without going through the engine.
func (e *Environment) Step() {
	e.edge()
}

// Tick runs one edge and keeps ticking until the target is reached.
func (e *Environment) Tick() bool {
	if e.cycle >= e.target {
		return false
	}

	e.edge()

	return e.cycle < e.target
}

func (e *Environment) edge() {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.settle()

	for _, p := range e.processes {
		p.Update()
	}

	e.updateReset()

	for _, p := range e.processes {
		p.Commit()
	}

	for _, r := range e.registers {
		r.Commit()
	}

	e.cycle++

	e.settle()

	for _, o := range e.observers {
		o.Observe(e.cycle)
	}
}

// Settle runs the combinational settle loop on its own. It is useful after
// wiring, so that the first edge starts from settled values.
func (e *Environment) Settle() {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.settle()
}

func (e *Environment) settle() {
	limit := len(e.processes) + SettleSlack

	for round := 0; round < limit; round++ {
		changed := false

		for _, p := range e.processes {
			if p.Settle() {
				changed = true
			}
		}

		if !changed {
			return
		}
	}

	panic(fmt.Sprintf("%s: combinational loop, values did not settle in %d rounds",
		e.Name(), limit))
}

func (e *Environment) updateReset() {
	if e.resetRemaining > 0 {
		e.resetRemaining--
	}

	e.reset.SetNext(e.resetRemaining > 0)
}
