package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for expected failure modes
var (
	ErrInvalidKind          = errors.New("invalid effect kind")
	ErrUnknownParameter     = errors.New("unknown parameter")
	ErrOutOfRange           = errors.New("parameter value out of range")
	ErrInvalidType          = errors.New("invalid parameter type")
	ErrInvalidPosition      = errors.New("position must be non-negative")
	ErrCapacityExceeded     = errors.New("maximum effects per chain exceeded")
	ErrDuplicateEffect      = errors.New("duplicate effect instance")
	ErrOrderMismatch        = errors.New("effect id list must contain all current effects")
	ErrChainNotFound        = errors.New("effects chain not found")
	ErrEffectNotFound       = errors.New("effect not found")
	ErrInvalidChainConfig   = errors.New("invalid effects chain configuration")
	ErrInvalidReorderConfig = errors.New("invalid reorder configuration")
	ErrInvalidMetadata      = errors.New("invalid preset metadata")
	ErrInvalidPresetData    = errors.New("invalid preset data")
	ErrDuplicateName        = errors.New("preset name already exists")
	ErrPresetNotFound       = errors.New("preset not found")
	ErrReconstruction       = errors.New("preset reconstruction failed")
	ErrPresetLoad           = errors.New("failed to load preset")
	ErrInvalidExportRequest = errors.New("invalid export request: missing or empty preset ids")
	ErrInvalidImportFile    = errors.New("invalid import file")
)

// ParameterError reports a rejected parameter update, identifying the effect
// kind that rejected it and the offending key.
type ParameterError struct {
	Kind  string // "BOOST", "DISTORTION", "DELAY", "REVERB"
	Name  string
	Value any
	Min   float64
	Max   float64
	Cause error // ErrUnknownParameter, ErrOutOfRange, or ErrInvalidType
}

func (e *ParameterError) Error() string {
	switch {
	case errors.Is(e.Cause, ErrUnknownParameter):
		return fmt.Sprintf("unknown parameter %q for effect kind %s", e.Name, e.Kind)
	case errors.Is(e.Cause, ErrOutOfRange):
		return fmt.Sprintf("%s must be between %g and %g, got %v", e.Name, e.Min, e.Max, e.Value)
	case errors.Is(e.Cause, ErrInvalidType):
		return fmt.Sprintf("%s rejected value %v: %s", e.Name, e.Value, e.Cause)
	}
	return fmt.Sprintf("parameter %s: %s", e.Name, e.Cause)
}

func (e *ParameterError) Unwrap() error {
	return e.Cause
}

// NewParameterError creates a ParameterError
func NewParameterError(kind, name string, value any, min, max float64, cause error) *ParameterError {
	return &ParameterError{
		Kind:  kind,
		Name:  name,
		Value: value,
		Min:   min,
		Max:   max,
		Cause: cause,
	}
}

// PersistenceError represents an I/O failure in the preset store
type PersistenceError struct {
	Op    string // "save", "load", "delete", "scan"
	Path  string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

// NewPersistenceError creates a PersistenceError
func NewPersistenceError(op, path string, cause error) *PersistenceError {
	return &PersistenceError{Op: op, Path: path, Cause: cause}
}
