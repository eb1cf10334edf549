package effect

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/feamster/pedalboard-effects/internal/errors"
)

// Effect is an individual processing unit with typed, bounds-checked
// parameters. Two effects are equal only when they share an id, never by
// value. Parameter and bypass access is guarded so a concurrent reader
// always sees a valid point-in-time value for any single field; readers
// must not assume two fields are mutually consistent across an update.
type Effect struct {
	mu          sync.RWMutex
	id          uuid.UUID
	kind        Kind
	parameters  map[string]any // float64 or bool, one entry per schema field
	bypassed    bool
	position    int
	presetLabel string // free-form, empty when unset
}

// ParamInfo is parameter metadata plus the current value
type ParamInfo struct {
	Value        any     `json:"value"`
	MinValue     float64 `json:"min_value"`
	MaxValue     float64 `json:"max_value"`
	DefaultValue any     `json:"default_value"`
	Unit         string  `json:"units"`
	CurveType    string  `json:"curve_type"`
}

// Descriptor is the wire/config shape of an effect
type Descriptor struct {
	ID         string         `json:"id,omitempty"`
	Type       string         `json:"type"`
	Parameters map[string]any `json:"parameters"`
	Bypassed   bool           `json:"bypassed"`
	Position   int            `json:"position"`
	PresetName string         `json:"preset_name,omitempty"`
}

// New creates an effect of the given kind with schema defaults, then applies
// overrides through the validated update path.
func New(kind Kind, overrides map[string]any) (*Effect, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}

	e := &Effect{
		id:         uuid.New(),
		kind:       kind,
		parameters: make(map[string]any),
	}
	for _, spec := range Schema(kind) {
		e.parameters[spec.Name] = spec.Default
	}

	if len(overrides) > 0 {
		if err := e.UpdateParameters(overrides); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// ID returns the effect's stable identity
func (e *Effect) ID() uuid.UUID {
	return e.id
}

// Kind returns the effect kind
func (e *Effect) Kind() Kind {
	return e.kind
}

// Equal compares effects by identity only
func (e *Effect) Equal(other *Effect) bool {
	return other != nil && e.id == other.id
}

// UpdateParameters validates every entry against the kind's schema and
// applies the whole set atomically: if any key is rejected, no value changes.
func (e *Effect) UpdateParameters(updates map[string]any) error {
	validated := make(map[string]any, len(updates))
	for name, value := range updates {
		spec, ok := lookupSpec(e.kind, name)
		if !ok {
			return errors.NewParameterError(string(e.kind), name, value, 0, 0, errors.ErrUnknownParameter)
		}
		normalized, err := validateValue(e.kind, spec, value)
		if err != nil {
			return err
		}
		validated[name] = normalized
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for name, value := range validated {
		e.parameters[name] = value
	}
	return nil
}

// Parameter returns the current value of one parameter
func (e *Effect) Parameter(name string) (any, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	value, ok := e.parameters[name]
	if !ok {
		return nil, errors.NewParameterError(string(e.kind), name, nil, 0, 0, errors.ErrUnknownParameter)
	}
	return value, nil
}

// Parameters returns a copy of the current parameter values
func (e *Effect) Parameters() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]any, len(e.parameters))
	for name, value := range e.parameters {
		out[name] = value
	}
	return out
}

// ParameterInfo returns value and schema metadata for one parameter
func (e *Effect) ParameterInfo(name string) (ParamInfo, error) {
	spec, ok := lookupSpec(e.kind, name)
	if !ok {
		return ParamInfo{}, errors.NewParameterError(string(e.kind), name, nil, 0, 0, errors.ErrUnknownParameter)
	}

	e.mu.RLock()
	value := e.parameters[name]
	e.mu.RUnlock()

	return ParamInfo{
		Value:        value,
		MinValue:     spec.Min,
		MaxValue:     spec.Max,
		DefaultValue: spec.Default,
		Unit:         spec.Unit,
		CurveType:    spec.Curve,
	}, nil
}

// AllParameterInfo returns metadata for every parameter
func (e *Effect) AllParameterInfo() map[string]ParamInfo {
	out := make(map[string]ParamInfo)
	for _, spec := range Schema(e.kind) {
		info, _ := e.ParameterInfo(spec.Name)
		out[spec.Name] = info
	}
	return out
}

// SetBypassed sets the bypass flag
func (e *Effect) SetBypassed(bypassed bool) {
	e.mu.Lock()
	e.bypassed = bypassed
	e.mu.Unlock()
}

// Bypassed reports the bypass flag
func (e *Effect) Bypassed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.bypassed
}

// SetPosition sets the chain-relative position
func (e *Effect) SetPosition(position int) error {
	if position < 0 {
		return errors.ErrInvalidPosition
	}
	e.mu.Lock()
	e.position = position
	e.mu.Unlock()
	return nil
}

// Position returns the chain-relative position
func (e *Effect) Position() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.position
}

// SetPresetLabel sets the optional preset label; empty clears it
func (e *Effect) SetPresetLabel(label string) {
	e.mu.Lock()
	e.presetLabel = label
	e.mu.Unlock()
}

// PresetLabel returns the optional preset label
func (e *Effect) PresetLabel() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.presetLabel
}

// Descriptor returns the effect's wire shape
func (e *Effect) Descriptor() Descriptor {
	e.mu.RLock()
	defer e.mu.RUnlock()

	params := make(map[string]any, len(e.parameters))
	for name, value := range e.parameters {
		params[name] = value
	}
	return Descriptor{
		ID:         e.id.String(),
		Type:       string(e.kind),
		Parameters: params,
		Bypassed:   e.bypassed,
		Position:   e.position,
		PresetName: e.presetLabel,
	}
}

// FromDescriptor reconstructs an effect from its wire shape, validating the
// kind and every parameter through the creation path. A missing id gets a
// freshly generated one.
func FromDescriptor(d Descriptor) (*Effect, error) {
	kind, err := ParseKind(d.Type)
	if err != nil {
		return nil, err
	}

	e, err := New(kind, d.Parameters)
	if err != nil {
		return nil, err
	}

	if d.ID != "" {
		id, err := uuid.Parse(d.ID)
		if err != nil {
			return nil, fmt.Errorf("parse effect id: %w", err)
		}
		e.id = id
	}
	e.bypassed = d.Bypassed
	if err := e.SetPosition(d.Position); err != nil {
		return nil, err
	}
	e.presetLabel = d.PresetName
	return e, nil
}

// MarshalJSON serializes the effect as its descriptor
func (e *Effect) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Descriptor())
}

// Deserialize parses a serialized effect descriptor
func Deserialize(data []byte) (*Effect, error) {
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse effect: %w", err)
	}
	return FromDescriptor(d)
}

// Clone deep-copies the effect with a freshly generated identity
func (e *Effect) Clone() *Effect {
	d := e.Descriptor()
	d.ID = ""
	clone, _ := FromDescriptor(d)
	return clone
}

func (e *Effect) String() string {
	return fmt.Sprintf("Effect(kind=%s, id=%s, bypassed=%t)", e.kind, e.id, e.Bypassed())
}
