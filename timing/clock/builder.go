package clock

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/jpegsim/signal"
)

// DefaultFreq is the clock frequency used when none is given.
const DefaultFreq = 1 * sim.GHz

// A Builder can build clock environments.
type Builder struct {
	engine      sim.Engine
	freq        sim.Freq
	resetCycles uint64
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		freq: DefaultFreq,
	}
}

// WithEngine sets the engine. A serial engine is created when none is set.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the clock frequency.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithResetCycles holds reset for the first n edges.
func (b Builder) WithResetCycles(n uint64) Builder {
	b.resetCycles = n
	return b
}

// Build creates an environment with the given name.
func (b Builder) Build(name string) *Environment {
	engine := b.engine
	if engine == nil {
		engine = sim.NewSerialEngine()
	}

	e := &Environment{
		engine: engine,
		reset:  signal.New(false),
	}
	e.TickingComponent = sim.NewTickingComponent(name, engine, b.freq, e)
	e.Register(e.reset)
	e.AssertReset(b.resetCycles)

	return e
}
