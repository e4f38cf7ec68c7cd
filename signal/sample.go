package signal

import "fmt"

// Sample is one item carried by a ready/valid stream.
type Sample struct {
	Data  uint64
	Valid bool
}

// Bubble is the empty sample. Registers are cleared to it on reset.
var Bubble = Sample{}

// Of returns a valid sample carrying data.
func Of(data uint64) Sample {
	return Sample{Data: data, Valid: true}
}

// String formats the sample as its data, or "-" when it is a bubble.
func (s Sample) String() string {
	if !s.Valid {
		return "-"
	}

	return fmt.Sprintf("%d", s.Data)
}
