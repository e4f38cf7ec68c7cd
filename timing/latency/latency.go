// Package latency provides default processing latencies for the stages of a
// JPEG encoder.
//
// The values can be configured via TimingConfig and are turned into stage
// configurations with Table.StageConfig.
package latency

import (
	"fmt"
	"strings"

	"github.com/sarchlab/jpegsim/timing/stage"
)

// Kind is a type of JPEG encoder stage.
type Kind int

// Stage kinds in encoder order.
const (
	KindColorConv Kind = iota
	KindDCT
	KindQuant
	KindRunLength
	KindHuffman
)

// EncoderChain lists the stages of a baseline JPEG encoder in order.
var EncoderChain = []Kind{
	KindColorConv, KindDCT, KindQuant, KindRunLength, KindHuffman,
}

var kindNames = map[Kind]string{
	KindColorConv: "ColorConv",
	KindDCT:       "DCT",
	KindQuant:     "Quant",
	KindRunLength: "RunLength",
	KindHuffman:   "Huffman",
}

var kindAliases = map[string]Kind{
	"color":     KindColorConv,
	"colorconv": KindColorConv,
	"rgb2ycbcr": KindColorConv,
	"dct":       KindDCT,
	"quant":     KindQuant,
	"quantizer": KindQuant,
	"rle":       KindRunLength,
	"runlength": KindRunLength,
	"huffman":   KindHuffman,
	"huff":      KindHuffman,
}

// String returns the name of the kind. It is a valid stage name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind parses a stage kind, ignoring case.
func ParseKind(s string) (Kind, error) {
	if k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return k, nil
	}

	return 0, fmt.Errorf("unknown stage kind %q", s)
}

// ParseChain parses a comma-separated list of stage kinds.
func ParseChain(s string) ([]Kind, error) {
	var kinds []Kind

	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}

		k, err := ParseKind(part)
		if err != nil {
			return nil, err
		}

		kinds = append(kinds, k)
	}

	if len(kinds) == 0 {
		return nil, fmt.Errorf("empty stage chain %q", s)
	}

	return kinds, nil
}

// Table provides stage latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with custom timing configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// GetLatency returns the processing latency in cycles for the given kind.
func (t *Table) GetLatency(k Kind) uint64 {
	switch k {
	case KindColorConv:
		return t.config.ColorConvLatency
	case KindDCT:
		return t.config.DCTLatency
	case KindQuant:
		return t.config.QuantLatency
	case KindRunLength:
		return t.config.RunLengthLatency
	case KindHuffman:
		return t.config.HuffmanLatency
	default:
		return 1
	}
}

// IsPipelined returns true if the kind accepts a value on every cycle.
func (t *Table) IsPipelined(k Kind) bool {
	switch k {
	case KindColorConv, KindDCT, KindQuant:
		return t.config.Pipelined
	default:
		return false
	}
}

// IsBlockBased returns true if the kind works on whole blocks.
func (t *Table) IsBlockBased(k Kind) bool {
	return k == KindDCT || k == KindQuant || k == KindRunLength
}

// StageConfig returns the configuration of a stage of the given kind. The
// index is appended to the name when it is not negative.
func (t *Table) StageConfig(k Kind, index int) stage.Config {
	name := k.String()
	if index >= 0 {
		name = fmt.Sprintf("%s[%d]", name, index)
	}

	c := stage.Config{
		Name:            name,
		CyclesToProcess: int(t.GetLatency(k)),
		Pipelined:       t.IsPipelined(k),
		Buffered:        stage.BufferNone,
	}

	if t.IsBlockBased(k) {
		c.BlockSize = &stage.BlockSize{
			Rows: t.config.BlockRows,
			Cols: t.config.BlockCols,
		}
	}

	return c
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
