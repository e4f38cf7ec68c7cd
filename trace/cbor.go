package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/tebeka/atexit"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("trace: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// CBORWriter writes records as a CBOR sequence, one canonical data item per
// record.
type CBORWriter struct {
	path string
	file *os.File
	buf  *bufio.Writer
	enc  *cbor.Encoder
}

// NewCBORWriter creates a new CBORWriter.
func NewCBORWriter(path string) *CBORWriter {
	return &CBORWriter{path: path}
}

// Path returns the file path.
func (t *CBORWriter) Path() string {
	return t.path
}

// Init creates the trace file.
func (t *CBORWriter) Init() error {
	file, err := os.Create(t.path)
	if err != nil {
		return fmt.Errorf("failed to create trace file: %w", err)
	}

	t.file = file
	t.buf = bufio.NewWriter(file)
	t.enc = cborEncMode.NewEncoder(t.buf)

	atexit.Register(func() {
		_ = t.Close()
	})

	return nil
}

// Write encodes a record.
func (t *CBORWriter) Write(r Record) error {
	if t.enc == nil {
		return fmt.Errorf("trace: %s is not open", t.path)
	}

	return t.enc.Encode(r)
}

// Flush writes buffered bytes to the file.
func (t *CBORWriter) Flush() error {
	if t.buf == nil {
		return nil
	}

	return t.buf.Flush()
}

// Close flushes and closes the file.
func (t *CBORWriter) Close() error {
	if t.file == nil {
		return nil
	}

	if err := t.Flush(); err != nil {
		return err
	}

	err := t.file.Close()
	t.file, t.buf, t.enc = nil, nil, nil

	return err
}

// ReadCBOR decodes a CBOR sequence of records.
func ReadCBOR(r io.Reader) ([]Record, error) {
	dec := cbor.NewDecoder(r)

	var records []Record

	for {
		var rec Record

		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return records, nil
		}

		if err != nil {
			return nil, fmt.Errorf("trace: decode record %d: %w", len(records), err)
		}

		records = append(records, rec)
	}
}
