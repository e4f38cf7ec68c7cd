// Package trace records the changes seen by stream taps and writes them to
// CSV, SQLite or CBOR files.
package trace

import (
	"fmt"
	"strings"

	"github.com/rs/xid"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/jpegsim/stream"
)

// Record is one change of a traced stream.
type Record struct {
	Tap   string `json:"tap" cbor:"tap"`
	Edge  uint64 `json:"edge" cbor:"edge"`
	Data  uint64 `json:"data" cbor:"data"`
	Valid bool   `json:"valid" cbor:"valid"`
	Ready bool   `json:"ready" cbor:"ready"`
}

// Fired reports whether the record shows a transfer.
func (r Record) Fired() bool {
	return r.Valid && r.Ready
}

// A Writer stores records.
type Writer interface {
	// Init creates the output.
	Init() error

	// Write stores a record. Writers may buffer records until Flush.
	Write(r Record) error

	// Flush writes buffered records.
	Flush() error

	// Close flushes and releases the output. Closing twice is a no-op.
	Close() error
}

// Format names a trace file format.
type Format string

// Supported formats.
const (
	FormatCSV    Format = "csv"
	FormatSQLite Format = "sqlite"
	FormatCBOR   Format = "cbor"
)

// ParseFormat parses a format name, ignoring case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatSQLite, FormatCBOR:
		return f, nil
	default:
		return "", fmt.Errorf("unknown trace format %q", s)
	}
}

// Ext returns the file extension of the format.
func (f Format) Ext() string {
	switch f {
	case FormatSQLite:
		return ".sqlite3"
	default:
		return "." + string(f)
	}
}

// DefaultPath returns a unique file name for a trace of the given format.
func DefaultPath(f Format) string {
	return "jpegsim_trace_" + xid.New().String() + f.Ext()
}

// NewWriter creates an uninitialized writer. An empty path selects
// DefaultPath.
func NewWriter(f Format, path string) (Writer, error) {
	if path == "" {
		path = DefaultPath(f)
	}

	switch f {
	case FormatCSV:
		return NewCSVWriter(path), nil
	case FormatSQLite:
		return NewSQLiteWriter(path), nil
	case FormatCBOR:
		return NewCBORWriter(path), nil
	default:
		return nil, fmt.Errorf("unknown trace format %q", f)
	}
}

// Recorder is a hook that turns tap changes into records.
type Recorder struct {
	writer Writer
	count  uint64
	err    error
}

// NewRecorder creates a recorder that writes to w.
func NewRecorder(w Writer) *Recorder {
	return &Recorder{writer: w}
}

// Attach registers the recorder with taps.
func (r *Recorder) Attach(taps ...*stream.Tap) {
	for _, t := range taps {
		t.AcceptHook(r)
	}
}

// Func writes the change carried by a hook context. Other positions are
// ignored.
func (r *Recorder) Func(ctx sim.HookCtx) {
	if ctx.Pos != stream.HookPosChange || r.err != nil {
		return
	}

	c, ok := ctx.Item.(stream.Change)
	if !ok {
		return
	}

	name := ""
	if t, ok := ctx.Domain.(*stream.Tap); ok {
		name = t.Name()
	}

	err := r.writer.Write(Record{
		Tap:   name,
		Edge:  c.Edge,
		Data:  c.Data,
		Valid: c.Valid,
		Ready: c.Ready,
	})
	if err != nil {
		r.err = fmt.Errorf("failed to write trace record: %w", err)
		return
	}

	r.count++
}

// Count returns the number of records written.
func (r *Recorder) Count() uint64 {
	return r.count
}

// Err returns the first write error. The recorder stops writing after it.
func (r *Recorder) Err() error {
	return r.err
}

// Writer returns the writer of the recorder.
func (r *Recorder) Writer() Writer {
	return r.writer
}
