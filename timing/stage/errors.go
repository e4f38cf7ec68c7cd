package stage

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is wrapped by every ConfigurationError.
	ErrConfiguration = errors.New("stage: invalid configuration")

	// ErrContractViolation is wrapped by every ContractViolation.
	ErrContractViolation = errors.New("stage: contract violation")

	// ErrWidthMismatch means the input and output streams differ in width.
	ErrWidthMismatch = errors.New("stage: width mismatch")

	// ErrAlreadyWired means Process was called twice on one stage.
	ErrAlreadyWired = errors.New("stage: already wired")
)

// ConfigurationError reports a rejected configuration value.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%v: %s=%v: %s", ErrConfiguration, e.Field, e.Value, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

func configErr(field string, value any, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{
		Field:  field,
		Value:  value,
		Reason: fmt.Sprintf(format, args...),
	}
}

// ContractViolation reports a wiring that the stage cannot accept.
type ContractViolation struct {
	Stage  string
	Reason string
	Err    error
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("%v: %s: %s", ErrContractViolation, e.Stage, e.Reason)
}

func (e *ContractViolation) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrContractViolation}
	}

	return []error{ErrContractViolation, e.Err}
}
