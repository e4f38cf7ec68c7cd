package latency

import (
	"encoding/json"
	"fmt"
	"os"
)

// TimingConfig holds processing latencies for the stages of a JPEG encoder.
// Values are rough estimates for a streaming FPGA encoder working on one
// value per cycle.
type TimingConfig struct {
	// ColorConvLatency is the latency of the RGB to YCbCr conversion.
	// Default: 3 cycles (multiply, add, round).
	ColorConvLatency uint64 `json:"color_conv_latency"`

	// DCTLatency is the latency of the 2D DCT on one value.
	// Default: 8 cycles.
	DCTLatency uint64 `json:"dct_latency"`

	// QuantLatency is the latency of quantization.
	// Default: 2 cycles (table lookup, divide by reciprocal multiply).
	QuantLatency uint64 `json:"quant_latency"`

	// RunLengthLatency is the latency of the zig-zag run-length encoder.
	// Default: 1 cycle.
	RunLengthLatency uint64 `json:"run_length_latency"`

	// HuffmanLatency is the latency of the Huffman encoder.
	// Default: 4 cycles.
	HuffmanLatency uint64 `json:"huffman_latency"`

	// Pipelined tells whether the arithmetic stages (color conversion, DCT,
	// quantization) accept a value per cycle. The entropy coding stages
	// always stall. Default: true.
	Pipelined bool `json:"pipelined"`

	// BlockRows and BlockCols give the block size of the block-based
	// stages. Default: 8x8.
	BlockRows int `json:"block_rows"`
	BlockCols int `json:"block_cols"`
}

// DefaultTimingConfig returns a TimingConfig with the default values.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		ColorConvLatency: 3,
		DCTLatency:       8,
		QuantLatency:     2,
		RunLengthLatency: 1,
		HuffmanLatency:   4,
		Pipelined:        true,
		BlockRows:        8,
		BlockCols:        8,
	}
}

// LoadConfig loads a TimingConfig from a JSON file.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that all latency values are valid (> 0).
func (c *TimingConfig) Validate() error {
	if c.ColorConvLatency == 0 {
		return fmt.Errorf("color_conv_latency must be > 0")
	}
	if c.DCTLatency == 0 {
		return fmt.Errorf("dct_latency must be > 0")
	}
	if c.QuantLatency == 0 {
		return fmt.Errorf("quant_latency must be > 0")
	}
	if c.RunLengthLatency == 0 {
		return fmt.Errorf("run_length_latency must be > 0")
	}
	if c.HuffmanLatency == 0 {
		return fmt.Errorf("huffman_latency must be > 0")
	}
	if c.BlockRows < 1 || c.BlockCols < 1 {
		return fmt.Errorf("block_rows and block_cols must be > 0")
	}
	return nil
}

// Clone returns a deep copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
