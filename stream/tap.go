package stream

import (
	"github.com/sarchlab/akita/v4/sim"
)

// HookPosChange marks a change of a traced stream.
var HookPosChange = &sim.HookPos{Name: "Stream Change"}

// Change is one snapshot of a stream, stamped with the edge that produced it.
type Change struct {
	Edge  uint64
	Data  uint64
	Valid bool
	Ready bool
}

func (c Change) sameAs(o Change) bool {
	return c.Data == o.Data && c.Valid == o.Valid && c.Ready == o.Ready
}

// Tap records every change of a stream. Hooks attached to a tap are invoked
// with the Change as the item.
type Tap struct {
	sim.HookableBase

	name    string
	stream  Stream
	changes []Change
}

// NewTap creates a tap on s. Use Stream.TraceTap to have it observed at
// every edge.
func NewTap(name string, s Stream) *Tap {
	return &Tap{name: name, stream: s}
}

// Name returns the name of the tap.
func (t *Tap) Name() string {
	return t.name
}

// Stream returns the traced stream.
func (t *Tap) Stream() Stream {
	return t.stream
}

// Observe takes a snapshot after an edge and records it if it differs from
// the previous one. The first snapshot is always recorded.
func (t *Tap) Observe(edge uint64) {
	c := Change{
		Edge:  edge,
		Data:  t.stream.Data().Value(),
		Valid: t.stream.Valid().Value(),
		Ready: t.stream.Ready().Value(),
	}

	if n := len(t.changes); n > 0 && t.changes[n-1].sameAs(c) {
		return
	}

	t.changes = append(t.changes, c)

	t.InvokeHook(sim.HookCtx{
		Domain: t,
		Pos:    HookPosChange,
		Item:   c,
	})
}

// Changes returns all recorded changes in edge order.
func (t *Tap) Changes() []Change {
	return t.changes
}

// Len returns the number of recorded changes.
func (t *Tap) Len() int {
	return len(t.changes)
}

// Last returns the most recent change.
func (t *Tap) Last() (Change, bool) {
	if len(t.changes) == 0 {
		return Change{}, false
	}

	return t.changes[len(t.changes)-1], true
}

// ValidEdges returns the edges at which a new valid value appeared, with the
// data it carried. A sample held across a change of ready counts once.
func (t *Tap) ValidEdges() ([]uint64, []uint64) {
	var (
		edges, data []uint64
		prev        Change
	)

	for _, c := range t.changes {
		if c.Valid && (!prev.Valid || prev.Data != c.Data) {
			edges = append(edges, c.Edge)
			data = append(data, c.Data)
		}

		prev = c
	}

	return edges, data
}
