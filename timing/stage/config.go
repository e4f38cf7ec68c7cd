package stage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sarchlab/akita/v4/sim"
)

// DefaultName is the name of a stage when none is configured.
const DefaultName = "PE"

// BufferMode tells on which sides a stage has an elastic buffer.
type BufferMode string

// Buffer modes.
const (
	BufferNone   BufferMode = "none"
	BufferInput  BufferMode = "input"
	BufferOutput BufferMode = "output"
	BufferBoth   BufferMode = "both"
)

// Valid reports whether m is one of the known modes.
func (m BufferMode) Valid() bool {
	switch m {
	case BufferNone, BufferInput, BufferOutput, BufferBoth:
		return true
	}

	return false
}

// HasInput reports whether the mode buffers the input side.
func (m BufferMode) HasInput() bool {
	return m == BufferInput || m == BufferBoth
}

// HasOutput reports whether the mode buffers the output side.
func (m BufferMode) HasOutput() bool {
	return m == BufferOutput || m == BufferBoth
}

// ParseBuffered resolves a buffering request. A bool selects both sides or
// none; the strings "input" and "output" select one side. A BufferMode is
// accepted as is.
func ParseBuffered(v any) (BufferMode, error) {
	switch b := v.(type) {
	case bool:
		if b {
			return BufferBoth, nil
		}

		return BufferNone, nil
	case BufferMode:
		if b.Valid() {
			return b, nil
		}
	case string:
		switch BufferMode(b) {
		case BufferInput, BufferOutput:
			return BufferMode(b), nil
		}
	}

	return "", configErr("buffered", v, `must be a bool, "input" or "output"`)
}

// UnmarshalJSON accepts a bool or a mode name.
func (m *BufferMode) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*m, _ = ParseBuffered(b)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return configErr("buffered", string(data), "must be a bool or a string")
	}

	return m.set(s)
}

// UnmarshalTOML accepts a bool or a mode name.
func (m *BufferMode) UnmarshalTOML(v any) error {
	switch x := v.(type) {
	case bool:
		*m, _ = ParseBuffered(x)
		return nil
	case string:
		return m.set(x)
	}

	return configErr("buffered", v, "must be a bool or a string")
}

func (m *BufferMode) set(s string) error {
	mode := BufferMode(strings.ToLower(s))
	if !mode.Valid() {
		return configErr("buffered", s, "unknown buffer mode")
	}

	*m = mode

	return nil
}

// BlockSize describes how many values make up one sample, such as an 8x8
// block. The stage carries it as metadata only.
type BlockSize struct {
	Rows int `json:"rows" toml:"rows"`
	Cols int `json:"cols" toml:"cols"`
}

// Samples returns the number of values in one block.
func (b BlockSize) Samples() int {
	return b.Rows * b.Cols
}

// Config holds the construction parameters of a ProcessingStage.
type Config struct {
	// Name is the akita-style name of the stage, such as "PE" or "DCT[0]".
	Name string `json:"name" toml:"name"`

	// CyclesToProcess is the latency of the stage in edges, and its
	// pipeline depth when pipelined. Must be at least 1.
	CyclesToProcess int `json:"cycles_to_process" toml:"cycles_to_process"`

	// Pipelined lets the stage accept a new sample on every edge.
	Pipelined bool `json:"pipelined" toml:"pipelined"`

	// BlockSize is optional metadata.
	BlockSize *BlockSize `json:"block_size,omitempty" toml:"block_size,omitempty"`

	// Buffered selects the sides with an elastic buffer.
	Buffered BufferMode `json:"buffered" toml:"buffered"`

	// BufferCapacity limits each buffer. Zero means unlimited.
	BufferCapacity int `json:"buffer_capacity" toml:"buffer_capacity"`
}

// DefaultConfig returns a one-cycle, stalling, unbuffered stage.
func DefaultConfig() *Config {
	return &Config{
		Name:            DefaultName,
		CyclesToProcess: 1,
		Pipelined:       false,
		Buffered:        BufferNone,
	}
}

// LoadConfig loads a Config from a JSON or TOML file. The format is chosen
// by the file extension.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stage config file: %w", err)
	}

	config := DefaultConfig()

	if isTOML(path) {
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse stage config: %w", err)
		}

		return config, nil
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse stage config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a Config to a JSON or TOML file.
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)

	if isTOML(path) {
		data, err = toml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("failed to serialize stage config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write stage config file: %w", err)
	}

	return nil
}

// nameProblem applies the akita naming rules, which buffers and streams
// derived from the stage name must satisfy. It returns an empty string for a
// valid name.
func nameProblem(name string) (reason string) {
	defer func() {
		if r := recover(); r != nil {
			reason = fmt.Sprint(r)
		}
	}()

	sim.NameMustBeValid(name)

	return ""
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Validate checks every field and returns a *ConfigurationError for the
// first invalid one.
func (c *Config) Validate() error {
	if c.Name != "" {
		if reason := nameProblem(c.Name); reason != "" {
			return configErr("name", c.Name, "%s", reason)
		}
	}

	if c.CyclesToProcess < 1 {
		return configErr("cycles_to_process", c.CyclesToProcess, "must be >= 1")
	}

	if c.BlockSize != nil && (c.BlockSize.Rows < 1 || c.BlockSize.Cols < 1) {
		return configErr("block_size", *c.BlockSize, "dimensions must be positive")
	}

	if !c.Buffered.Valid() {
		return configErr("buffered", c.Buffered, "unknown buffer mode")
	}

	if c.BufferCapacity < 0 {
		return configErr("buffer_capacity", c.BufferCapacity, "must be >= 0")
	}

	return nil
}

// Clone returns a deep copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c

	if c.BlockSize != nil {
		bs := *c.BlockSize
		clone.BlockSize = &bs
	}

	return &clone
}

// ConfigFromOptions builds a Config from loosely typed values, as they come
// from a generic front end. Cycles must be a Go integer, pipelined a bool,
// blockSize nil or a pair of positive integers, and buffered anything
// ParseBuffered accepts.
func ConfigFromOptions(cycles, pipelined, blockSize, buffered any) (*Config, error) {
	config := DefaultConfig()

	n, ok := asInt(cycles)
	if !ok {
		return nil, configErr("cycles_to_process", cycles, "must be an integer")
	}

	config.CyclesToProcess = n

	p, ok := pipelined.(bool)
	if !ok {
		return nil, configErr("pipelined", pipelined, "must be a bool")
	}

	config.Pipelined = p

	bs, err := parseBlockSize(blockSize)
	if err != nil {
		return nil, err
	}

	config.BlockSize = bs

	mode, err := ParseBuffered(buffered)
	if err != nil {
		return nil, err
	}

	config.Buffered = mode

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func parseBlockSize(v any) (*BlockSize, error) {
	var pair []any

	switch b := v.(type) {
	case nil:
		return nil, nil
	case BlockSize:
		pair = []any{b.Rows, b.Cols}
	case *BlockSize:
		if b == nil {
			return nil, nil
		}

		pair = []any{b.Rows, b.Cols}
	case [2]int:
		pair = []any{b[0], b[1]}
	case []int:
		for _, x := range b {
			pair = append(pair, x)
		}
	case []any:
		pair = b
	default:
		return nil, configErr("block_size", v, "must be a pair of positive integers")
	}

	if len(pair) != 2 {
		return nil, configErr("block_size", v, "must have exactly two dimensions")
	}

	rows, okR := asInt(pair[0])
	cols, okC := asInt(pair[1])

	if !okR || !okC || rows < 1 || cols < 1 {
		return nil, configErr("block_size", v, "must be a pair of positive integers")
	}

	return &BlockSize{Rows: rows, Cols: cols}, nil
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int8:
		return int(x), true
	case int16:
		return int(x), true
	case int32:
		return int(x), true
	case int64:
		return int(x), true
	case uint:
		return int(x), true
	case uint8:
		return int(x), true
	case uint16:
		return int(x), true
	case uint32:
		return int(x), true
	case uint64:
		return int(x), true
	}

	return 0, false
}
