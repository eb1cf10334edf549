package effect

import (
	"fmt"

	"github.com/feamster/pedalboard-effects/internal/errors"
)

// Kind identifies one of the four processing types
type Kind string

const (
	Boost      Kind = "BOOST"
	Distortion Kind = "DISTORTION"
	Delay      Kind = "DELAY"
	Reverb     Kind = "REVERB"
)

// Kinds lists every valid effect kind in declaration order
var Kinds = []Kind{Boost, Distortion, Delay, Reverb}

// ParseKind converts a wire string into a Kind
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Boost, Distortion, Delay, Reverb:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: %q", errors.ErrInvalidKind, s)
}

// ParamSpec describes one parameter of an effect kind: its bounds, default,
// display unit, and UI curve hint. Boolean parameters use Unit "bool" and
// carry their default as a bool.
type ParamSpec struct {
	Name    string
	Min     float64
	Max     float64
	Default any // float64 or bool
	Unit    string
	Curve   string
}

// Bool reports whether the parameter is boolean-valued
func (s ParamSpec) Bool() bool {
	return s.Unit == "bool"
}

// Parameter definitions per effect kind, in display order
var schemas = map[Kind][]ParamSpec{
	Boost: {
		{Name: "gain_db", Min: -20, Max: 30, Default: 0.0, Unit: "dB", Curve: "linear"},
		{Name: "tone", Min: 0, Max: 1, Default: 0.5, Unit: "", Curve: "linear"},
	},
	Distortion: {
		{Name: "drive_db", Min: 0, Max: 30, Default: 10.0, Unit: "dB", Curve: "linear"},
		{Name: "tone", Min: 0, Max: 1, Default: 0.5, Unit: "", Curve: "linear"},
		{Name: "level", Min: 0, Max: 1, Default: 0.7, Unit: "", Curve: "linear"},
	},
	Delay: {
		{Name: "delay_seconds", Min: 0, Max: 2, Default: 0.25, Unit: "s", Curve: "linear"},
		{Name: "feedback", Min: 0, Max: 0.95, Default: 0.3, Unit: "", Curve: "linear"},
		{Name: "mix", Min: 0, Max: 1, Default: 0.3, Unit: "", Curve: "linear"},
		{Name: "tempo_sync", Min: 0, Max: 1, Default: false, Unit: "bool", Curve: "linear"},
	},
	Reverb: {
		{Name: "room_size", Min: 0, Max: 1, Default: 0.5, Unit: "", Curve: "linear"},
		{Name: "damping", Min: 0, Max: 1, Default: 0.5, Unit: "", Curve: "linear"},
		{Name: "wet_level", Min: 0, Max: 1, Default: 0.3, Unit: "", Curve: "linear"},
		{Name: "dry_level", Min: 0, Max: 1, Default: 0.7, Unit: "", Curve: "linear"},
	},
}

// Schema returns the parameter specs for a kind, in display order
func Schema(kind Kind) []ParamSpec {
	return schemas[kind]
}

// lookupSpec finds the spec for a parameter name within a kind's schema
func lookupSpec(kind Kind, name string) (ParamSpec, bool) {
	for _, spec := range schemas[kind] {
		if spec.Name == name {
			return spec, true
		}
	}
	return ParamSpec{}, false
}

// validateValue checks a raw value against a spec and returns the normalized
// value: bool for boolean specs, float64 otherwise.
func validateValue(kind Kind, spec ParamSpec, value any) (any, error) {
	if spec.Bool() {
		switch v := value.(type) {
		case bool:
			return v, nil
		case int:
			if v == 0 || v == 1 {
				return v == 1, nil
			}
		case float64:
			if v == 0 || v == 1 {
				return v == 1, nil
			}
		}
		return nil, errors.NewParameterError(string(kind), spec.Name, value, spec.Min, spec.Max, errors.ErrInvalidType)
	}

	num, ok := toFloat(value)
	if !ok {
		return nil, errors.NewParameterError(string(kind), spec.Name, value, spec.Min, spec.Max, errors.ErrInvalidType)
	}
	if num < spec.Min || num > spec.Max {
		return nil, errors.NewParameterError(string(kind), spec.Name, value, spec.Min, spec.Max, errors.ErrOutOfRange)
	}
	return num, nil
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
