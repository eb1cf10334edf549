package chain

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/feamster/pedalboard-effects/internal/effect"
	"github.com/feamster/pedalboard-effects/internal/errors"
)

// MaxEffects caps the chain length so the render path can process a full
// chain within one buffer period.
const MaxEffects = 8

// Chain is an ordered sequence of distinct effects applied to the signal in
// sequence. Chains are not safe for concurrent structural mutation; the
// manager serializes all access and hands the render path snapshots.
type Chain struct {
	id         uuid.UUID
	name       string
	effects    []*effect.Effect
	active     bool
	createdAt  time.Time
	modifiedAt time.Time
}

// Descriptor is the wire shape of a chain
type Descriptor struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Effects    []effect.Descriptor `json:"effects"`
	Active     bool                `json:"active"`
	CreatedAt  time.Time           `json:"created_at"`
	ModifiedAt time.Time           `json:"modified_at"`
}

func validateName(name string) error {
	if n := utf8.RuneCountInString(name); n < 1 || n > 50 {
		return fmt.Errorf("chain name must be 1-50 characters")
	}
	return nil
}

// New creates an empty chain with the given name
func New(name string) (*Chain, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	now := time.Now()
	return &Chain{
		id:         uuid.New(),
		name:       name,
		createdAt:  now,
		modifiedAt: now,
	}, nil
}

// ID returns the chain's identity
func (c *Chain) ID() uuid.UUID {
	return c.id
}

// Name returns the chain name
func (c *Chain) Name() string {
	return c.name
}

// Rename changes the chain name, re-validating length
func (c *Chain) Rename(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	c.name = name
	c.touch()
	return nil
}

// Active reports whether the chain is active
func (c *Chain) Active() bool {
	return c.active
}

// CreatedAt returns the creation timestamp
func (c *Chain) CreatedAt() time.Time {
	return c.createdAt
}

// ModifiedAt returns the last-mutation timestamp
func (c *Chain) ModifiedAt() time.Time {
	return c.modifiedAt
}

// AddEffect appends an effect at the end of the chain
func (c *Chain) AddEffect(e *effect.Effect) error {
	if len(c.effects) >= MaxEffects {
		return errors.ErrCapacityExceeded
	}
	for _, existing := range c.effects {
		if existing.Equal(e) {
			return errors.ErrDuplicateEffect
		}
	}
	if err := e.SetPosition(len(c.effects)); err != nil {
		return err
	}
	c.effects = append(c.effects, e)
	c.touch()
	return nil
}

// RemoveEffect removes an effect by id, renumbering the remainder. Returns
// whether the effect was present.
func (c *Chain) RemoveEffect(id uuid.UUID) bool {
	for i, e := range c.effects {
		if e.ID() == id {
			c.effects = append(c.effects[:i], c.effects[i+1:]...)
			c.renumber()
			c.touch()
			return true
		}
	}
	return false
}

// ReorderEffects rebuilds the sequence in the order given by ids. The id
// list must be a permutation of current membership.
func (c *Chain) ReorderEffects(ids []uuid.UUID) error {
	if len(ids) != len(c.effects) {
		return errors.ErrOrderMismatch
	}

	reordered := make([]*effect.Effect, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return errors.ErrOrderMismatch
		}
		seen[id] = true

		e := c.EffectByID(id)
		if e == nil {
			return errors.ErrOrderMismatch
		}
		reordered = append(reordered, e)
	}

	c.effects = reordered
	c.renumber()
	c.touch()
	return nil
}

// EffectByID returns the effect with the given id, or nil
func (c *Chain) EffectByID(id uuid.UUID) *effect.Effect {
	for _, e := range c.effects {
		if e.ID() == id {
			return e
		}
	}
	return nil
}

// Effects returns the ordered effects as a copied slice
func (c *Chain) Effects() []*effect.Effect {
	out := make([]*effect.Effect, len(c.effects))
	copy(out, c.effects)
	return out
}

// EffectsByKind returns all effects of one kind, in chain order
func (c *Chain) EffectsByKind(kind effect.Kind) []*effect.Effect {
	var out []*effect.Effect
	for _, e := range c.effects {
		if e.Kind() == kind {
			out = append(out, e)
		}
	}
	return out
}

// HasKind reports whether the chain contains any effect of the kind
func (c *Chain) HasKind(kind effect.Kind) bool {
	for _, e := range c.effects {
		if e.Kind() == kind {
			return true
		}
	}
	return false
}

// Len returns the number of effects in the chain
func (c *Chain) Len() int {
	return len(c.effects)
}

// ActiveEffectCount returns the number of non-bypassed effects
func (c *Chain) ActiveEffectCount() int {
	count := 0
	for _, e := range c.effects {
		if !e.Bypassed() {
			count++
		}
	}
	return count
}

// Activate marks the chain active for audio processing
func (c *Chain) Activate() {
	c.active = true
	c.touch()
}

// Deactivate marks the chain inactive
func (c *Chain) Deactivate() {
	c.active = false
	c.touch()
}

// ClearEffects removes all effects
func (c *Chain) ClearEffects() {
	c.effects = nil
	c.touch()
}

// Copy deep-clones the chain and every contained effect with new identities.
// An empty newName defaults to the source name plus " (Copy)".
func (c *Chain) Copy(newName string) (*Chain, error) {
	if newName == "" {
		newName = c.name + " (Copy)"
	}
	clone, err := New(newName)
	if err != nil {
		return nil, err
	}
	for _, e := range c.effects {
		if err := clone.AddEffect(e.Clone()); err != nil {
			return nil, err
		}
	}
	return clone, nil
}

// Descriptor returns the chain's wire shape
func (c *Chain) Descriptor() Descriptor {
	effects := make([]effect.Descriptor, len(c.effects))
	for i, e := range c.effects {
		effects[i] = e.Descriptor()
	}
	return Descriptor{
		ID:         c.id.String(),
		Name:       c.name,
		Effects:    effects,
		Active:     c.active,
		CreatedAt:  c.createdAt,
		ModifiedAt: c.modifiedAt,
	}
}

// MarshalJSON serializes the chain as its descriptor
func (c *Chain) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Descriptor())
}

// FromDescriptor reconstructs a chain from its wire shape, validating every
// effect through the creation path
func FromDescriptor(d Descriptor) (*Chain, error) {
	c, err := New(d.Name)
	if err != nil {
		return nil, err
	}

	if d.ID != "" {
		id, err := uuid.Parse(d.ID)
		if err != nil {
			return nil, fmt.Errorf("parse chain id: %w", err)
		}
		c.id = id
	}
	c.active = d.Active
	if !d.CreatedAt.IsZero() {
		c.createdAt = d.CreatedAt
	}

	for _, ed := range d.Effects {
		e, err := effect.FromDescriptor(ed)
		if err != nil {
			return nil, err
		}
		if err := c.AddEffect(e); err != nil {
			return nil, err
		}
	}

	if !d.ModifiedAt.IsZero() {
		c.modifiedAt = d.ModifiedAt
	}
	return c, nil
}

// Deserialize parses a serialized chain descriptor
func Deserialize(data []byte) (*Chain, error) {
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse chain: %w", err)
	}
	return FromDescriptor(d)
}

func (c *Chain) renumber() {
	for i, e := range c.effects {
		e.SetPosition(i)
	}
}

func (c *Chain) touch() {
	now := time.Now()
	// keep modifiedAt monotonically non-decreasing even if the wall clock
	// steps backwards between calls
	if now.After(c.modifiedAt) {
		c.modifiedAt = now
	}
}

func (c *Chain) String() string {
	return fmt.Sprintf("Chain(name=%q, effects=%d, active=%t)", c.name, len(c.effects), c.active)
}
