package trace

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/tebeka/atexit"
)

// CSVWriter writes records to a CSV file.
type CSVWriter struct {
	path string
	file *os.File
	w    *csv.Writer

	records    []Record
	bufferSize int
}

// NewCSVWriter creates a new CSVWriter.
func NewCSVWriter(path string) *CSVWriter {
	return &CSVWriter{
		path:       path,
		bufferSize: 1000,
	}
}

// Path returns the file path.
func (t *CSVWriter) Path() string {
	return t.path
}

// Init creates the trace file. If the file already exists, it will be
// overwritten.
func (t *CSVWriter) Init() error {
	file, err := os.Create(t.path)
	if err != nil {
		return fmt.Errorf("failed to create trace file: %w", err)
	}

	t.file = file
	t.w = csv.NewWriter(file)

	if err := t.w.Write([]string{"tap", "edge", "data", "valid", "ready"}); err != nil {
		return fmt.Errorf("failed to write trace header: %w", err)
	}

	atexit.Register(func() {
		_ = t.Close()
	})

	return nil
}

// Write buffers a record.
func (t *CSVWriter) Write(r Record) error {
	t.records = append(t.records, r)
	if len(t.records) >= t.bufferSize {
		return t.Flush()
	}

	return nil
}

// Flush writes the buffered records to the file.
func (t *CSVWriter) Flush() error {
	if t.w == nil {
		return nil
	}

	for _, r := range t.records {
		err := t.w.Write([]string{
			r.Tap,
			strconv.FormatUint(r.Edge, 10),
			strconv.FormatUint(r.Data, 10),
			strconv.FormatBool(r.Valid),
			strconv.FormatBool(r.Ready),
		})
		if err != nil {
			return fmt.Errorf("failed to write trace record: %w", err)
		}
	}

	t.records = nil
	t.w.Flush()

	return t.w.Error()
}

// Close flushes and closes the file.
func (t *CSVWriter) Close() error {
	if t.file == nil {
		return nil
	}

	if err := t.Flush(); err != nil {
		return err
	}

	err := t.file.Close()
	t.file = nil
	t.w = nil

	return err
}
