package stage

// Statistics counts what a stage did.
type Statistics struct {
	// Edges is the number of edges the stage has seen.
	Edges uint64 `json:"edges"`

	// Accepted is the number of samples taken from the external input.
	Accepted uint64 `json:"accepted"`

	// Emitted is the number of samples taken from the external output.
	Emitted uint64 `json:"emitted"`

	// StallCycles counts edges at which a stalling stage held ready low
	// while processing.
	StallCycles uint64 `json:"stall_cycles"`

	// BlockedCycles counts edges at which the stage held because its output
	// was not taken.
	BlockedCycles uint64 `json:"blocked_cycles"`

	// ResetCycles counts edges spent in reset.
	ResetCycles uint64 `json:"reset_cycles"`

	// Flushed is the number of accepted samples discarded by reset.
	Flushed uint64 `json:"flushed"`

	InputBufferPeak  int `json:"input_buffer_peak"`
	OutputBufferPeak int `json:"output_buffer_peak"`
}

// Throughput returns the emitted samples per edge.
func (s Statistics) Throughput() float64 {
	if s.Edges == 0 {
		return 0
	}

	return float64(s.Emitted) / float64(s.Edges)
}

// StallRate returns the fraction of edges spent stalling.
func (s Statistics) StallRate() float64 {
	if s.Edges == 0 {
		return 0
	}

	return float64(s.StallCycles) / float64(s.Edges)
}
