package preset

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/feamster/pedalboard-effects/internal/chain"
	"github.com/feamster/pedalboard-effects/internal/effect"
	"github.com/feamster/pedalboard-effects/internal/errors"
)

var tagPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// EffectConfig is one stored effect descriptor. Identity and position are
// deliberately absent: position is implicit in sequence order and ids are
// regenerated on reconstruction.
type EffectConfig struct {
	Type       string         `json:"type"`
	Parameters map[string]any `json:"parameters"`
	Bypassed   bool           `json:"bypassed"`
	PresetName string         `json:"preset_name,omitempty"`
}

// ChainConfig is the snapshotted chain configuration
type ChainConfig struct {
	Name    string         `json:"name"`
	Effects []EffectConfig `json:"effects"`
}

// Clone deep-copies the chain config
func (c ChainConfig) Clone() ChainConfig {
	out := ChainConfig{Name: c.Name, Effects: make([]EffectConfig, len(c.Effects))}
	for i, ec := range c.Effects {
		params := make(map[string]any, len(ec.Parameters))
		for k, v := range ec.Parameters {
			params[k] = v
		}
		out.Effects[i] = EffectConfig{
			Type:       ec.Type,
			Parameters: params,
			Bypassed:   ec.Bypassed,
			PresetName: ec.PresetName,
		}
	}
	return out
}

// Meta carries the optional preset metadata
type Meta struct {
	Description string
	Tags        []string
	Author      string
	Version     string // defaults to "1.0.0"
}

// Record is the canonical serialized form of a preset
type Record struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	ChainConfig ChainConfig `json:"effects_chain_config"`
	CreatedAt   time.Time   `json:"created_at"`
	ModifiedAt  time.Time   `json:"modified_at"`
	Tags        []string    `json:"tags"`
	Author      string      `json:"author"`
	Version     string      `json:"version"`
}

// Preset is a named, persisted snapshot of a chain's effect configuration,
// independent of any specific chain instance. Equality is by id.
type Preset struct {
	id          uuid.UUID
	name        string
	description string
	chainConfig ChainConfig
	createdAt   time.Time
	modifiedAt  time.Time
	tags        []string
	author      string
	version     string
}

func validateMetadata(name, description string, tags []string) error {
	if n := utf8.RuneCountInString(name); n < 1 || n > 100 {
		return fmt.Errorf("%w: preset name must be 1-100 characters", errors.ErrInvalidMetadata)
	}
	if utf8.RuneCountInString(description) > 500 {
		return fmt.Errorf("%w: description maximum 500 characters", errors.ErrInvalidMetadata)
	}
	for _, tag := range tags {
		if !tagPattern.MatchString(tag) {
			return fmt.Errorf("%w: tags must be alphanumeric with hyphens/underscores only", errors.ErrInvalidMetadata)
		}
	}
	return nil
}

// New creates a preset from a raw chain config
func New(name string, cfg ChainConfig, meta Meta) (*Preset, error) {
	if err := validateMetadata(name, meta.Description, meta.Tags); err != nil {
		return nil, err
	}
	if meta.Version == "" {
		meta.Version = "1.0.0"
	}
	now := time.Now()
	return &Preset{
		id:          uuid.New(),
		name:        name,
		description: meta.Description,
		chainConfig: cfg.Clone(),
		createdAt:   now,
		modifiedAt:  now,
		tags:        append([]string(nil), meta.Tags...),
		author:      meta.Author,
		version:     meta.Version,
	}, nil
}

// FromChain snapshots an existing chain into a preset: chain name plus the
// ordered (kind, parameters, bypassed, label) descriptors.
func FromChain(c *chain.Chain, name string, meta Meta) (*Preset, error) {
	cfg := ChainConfig{Name: c.Name()}
	for _, e := range c.Effects() {
		cfg.Effects = append(cfg.Effects, EffectConfig{
			Type:       string(e.Kind()),
			Parameters: e.Parameters(),
			Bypassed:   e.Bypassed(),
			PresetName: e.PresetLabel(),
		})
	}
	return New(name, cfg, meta)
}

// ToChain reconstructs a fresh chain from the stored configuration. The
// chain is named after the preset itself, not the originally snapshotted
// chain: presets are named artifacts and the reconstruction reflects that.
// Any stored kind or parameter that no longer validates is rejected, never
// clamped.
func (p *Preset) ToChain() (*chain.Chain, error) {
	c, err := chain.New(p.name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrReconstruction, err)
	}

	for _, ec := range p.chainConfig.Effects {
		kind, err := effect.ParseKind(ec.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", errors.ErrReconstruction, err)
		}
		e, err := effect.New(kind, ec.Parameters)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", errors.ErrReconstruction, err)
		}
		e.SetBypassed(ec.Bypassed)
		if ec.PresetName != "" {
			e.SetPresetLabel(ec.PresetName)
		}
		if err := c.AddEffect(e); err != nil {
			return nil, fmt.Errorf("%w: %s", errors.ErrReconstruction, err)
		}
	}
	return c, nil
}

// ID returns the preset identity
func (p *Preset) ID() uuid.UUID {
	return p.id
}

// Name returns the preset name
func (p *Preset) Name() string {
	return p.name
}

// Description returns the optional description
func (p *Preset) Description() string {
	return p.description
}

// Tags returns a copy of the tags
func (p *Preset) Tags() []string {
	return append([]string(nil), p.tags...)
}

// Author returns the optional author
func (p *Preset) Author() string {
	return p.author
}

// Version returns the semantic version string
func (p *Preset) Version() string {
	return p.version
}

// CreatedAt returns the creation timestamp
func (p *Preset) CreatedAt() time.Time {
	return p.createdAt
}

// ModifiedAt returns the last-update timestamp
func (p *Preset) ModifiedAt() time.Time {
	return p.modifiedAt
}

// ChainConfig returns a copy of the stored chain configuration
func (p *Preset) ChainConfig() ChainConfig {
	return p.chainConfig.Clone()
}

// EffectCount returns the number of stored effect descriptors
func (p *Preset) EffectCount() int {
	return len(p.chainConfig.Effects)
}

// HasTag reports whether the preset carries the tag
func (p *Preset) HasTag(tag string) bool {
	for _, t := range p.tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Patch describes a partial update; nil fields are left unchanged
type Patch struct {
	Name        *string
	Description *string
	Tags        []string
	ChainConfig *ChainConfig
}

// Update applies a partial update, re-validating every touched field.
// ModifiedAt is refreshed even when the patch is empty; CreatedAt never
// changes.
func (p *Preset) Update(patch Patch) error {
	name := p.name
	if patch.Name != nil {
		name = *patch.Name
	}
	description := p.description
	if patch.Description != nil {
		description = *patch.Description
	}
	tags := p.tags
	if patch.Tags != nil {
		tags = patch.Tags
	}
	if err := validateMetadata(name, description, tags); err != nil {
		return err
	}

	p.name = name
	p.description = description
	if patch.Tags != nil {
		p.tags = append([]string(nil), patch.Tags...)
	}
	if patch.ChainConfig != nil {
		p.chainConfig = patch.ChainConfig.Clone()
	}
	p.touch()
	return nil
}

// MatchesSearch reports a case-insensitive substring match against name or
// description
func (p *Preset) MatchesSearch(term string) bool {
	term = strings.ToLower(term)
	if strings.Contains(strings.ToLower(p.name), term) {
		return true
	}
	return p.description != "" && strings.Contains(strings.ToLower(p.description), term)
}

// Copy creates a deep copy with a new identity. An empty newName defaults to
// the source name plus " (Copy)".
func (p *Preset) Copy(newName string) (*Preset, error) {
	if newName == "" {
		newName = p.name + " (Copy)"
	}
	return New(newName, p.chainConfig, Meta{
		Description: p.description,
		Tags:        p.tags,
		Author:      p.author,
		Version:     p.version,
	})
}

// Record returns the canonical serialized form
func (p *Preset) Record() Record {
	tags := p.tags
	if tags == nil {
		tags = []string{}
	}
	return Record{
		ID:          p.id.String(),
		Name:        p.name,
		Description: p.description,
		ChainConfig: p.chainConfig.Clone(),
		CreatedAt:   p.createdAt,
		ModifiedAt:  p.modifiedAt,
		Tags:        append([]string(nil), tags...),
		Author:      p.author,
		Version:     p.version,
	}
}

// FromRecord reconstructs a preset from its canonical form, re-validating
// the metadata. Missing timestamps keep their creation-time defaults.
func FromRecord(r Record) (*Preset, error) {
	p, err := New(r.Name, r.ChainConfig, Meta{
		Description: r.Description,
		Tags:        r.Tags,
		Author:      r.Author,
		Version:     r.Version,
	})
	if err != nil {
		return nil, err
	}

	if r.ID != "" {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: parse preset id: %s", errors.ErrInvalidPresetData, err)
		}
		p.id = id
	}
	if !r.CreatedAt.IsZero() {
		p.createdAt = r.CreatedAt
	}
	if !r.ModifiedAt.IsZero() {
		p.modifiedAt = r.ModifiedAt
	}
	return p, nil
}

// RestoreRecord overwrites the preset's mutable fields in place from a
// record previously captured with Record() on the same preset. Identity is
// left untouched. Callers holding a pointer to the preset observe the
// restored state, which is what a persistence rollback needs.
func (p *Preset) RestoreRecord(r Record) {
	p.name = r.Name
	p.description = r.Description
	p.chainConfig = r.ChainConfig.Clone()
	p.tags = append([]string(nil), r.Tags...)
	p.author = r.Author
	p.version = r.Version
	p.createdAt = r.CreatedAt
	p.modifiedAt = r.ModifiedAt
}

// MarshalJSON serializes the preset in canonical form
func (p *Preset) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Record())
}

// Deserialize parses a preset from its canonical serialized form
func Deserialize(data []byte) (*Preset, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrInvalidPresetData, err)
	}
	return FromRecord(r)
}

func (p *Preset) touch() {
	now := time.Now()
	if now.After(p.modifiedAt) {
		p.modifiedAt = now
	}
}

func (p *Preset) String() string {
	return fmt.Sprintf("Preset(name=%q, effects=%d, tags=%v)", p.name, p.EffectCount(), p.tags)
}
