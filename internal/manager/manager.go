package manager

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/feamster/pedalboard-effects/internal/chain"
	"github.com/feamster/pedalboard-effects/internal/effect"
	"github.com/feamster/pedalboard-effects/internal/errors"
	"github.com/feamster/pedalboard-effects/internal/render"
)

// DefaultChainName names the chain created when the registry would
// otherwise be empty
const DefaultChainName = "Default Chain"

// ChainConfig describes a chain to create
type ChainConfig struct {
	Name    string              `json:"name"`
	Effects []effect.Descriptor `json:"effects"`
}

// ChainUpdate is a partial chain update; nil fields are left unchanged
type ChainUpdate struct {
	Name   *string `json:"name"`
	Active *bool   `json:"active"`
}

// Statistics aggregates effect usage across the registry
type Statistics struct {
	TotalChains               int            `json:"total_chains"`
	CurrentChainName          string         `json:"current_chain_name"`
	CurrentChainEffects       int            `json:"current_chain_effects"`
	CurrentChainActiveEffects int            `json:"current_chain_active_effects"`
	EffectKindsInCurrentChain map[string]int `json:"effect_types_in_current_chain"`
}

// Manager owns every chain and the designated current chain. All structural
// mutation runs behind one mutex, and after any mutation that changes what
// the render path should see, a deep snapshot of the current chain is
// published to the renderer. Read surfaces return deep snapshots taken under
// the same mutex, so callers never hold a reference to a chain that a
// concurrent mutation could modify. The registry is never empty and the
// current pointer always references a registered chain.
type Manager struct {
	mu       sync.RWMutex
	chains   map[uuid.UUID]*chain.Chain
	current  uuid.UUID
	renderer render.Renderer
	logger   *slog.Logger
}

// New creates a manager holding one default chain. The renderer may be nil
// when no render collaborator is attached.
func New(renderer render.Renderer, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		chains:   make(map[uuid.UUID]*chain.Chain),
		renderer: renderer,
		logger:   logger,
	}

	c, _ := chain.New(DefaultChainName)
	m.chains[c.ID()] = c
	m.current = c.ID()
	m.publishLocked()
	return m
}

// CurrentChain returns a snapshot of the current chain, creating a default
// chain if the registry somehow lost it
func (m *Manager) CurrentChain() chain.Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentLocked().Descriptor()
}

func (m *Manager) currentLocked() *chain.Chain {
	if c, ok := m.chains[m.current]; ok {
		return c
	}
	c, _ := chain.New(DefaultChainName)
	m.chains[c.ID()] = c
	m.current = c.ID()
	m.publishLocked()
	return c
}

// CreateChain builds a chain from a config, validating every effect
// descriptor through the effect creation path, registers it and makes it
// current
func (m *Manager) CreateChain(cfg ChainConfig) (chain.Descriptor, error) {
	if cfg.Name == "" {
		return chain.Descriptor{}, fmt.Errorf("%w: missing name", errors.ErrInvalidChainConfig)
	}

	c, err := chain.New(cfg.Name)
	if err != nil {
		return chain.Descriptor{}, fmt.Errorf("%w: %s", errors.ErrInvalidChainConfig, err)
	}
	for _, ed := range cfg.Effects {
		e, err := effect.FromDescriptor(ed)
		if err != nil {
			return chain.Descriptor{}, fmt.Errorf("%w: %s", errors.ErrInvalidChainConfig, err)
		}
		if err := c.AddEffect(e); err != nil {
			return chain.Descriptor{}, fmt.Errorf("%w: %s", errors.ErrInvalidChainConfig, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.chains[c.ID()] = c
	m.current = c.ID()
	m.publishLocked()
	m.logger.Info("chain created", slog.String("name", c.Name()), slog.Int("effects", c.Len()))
	return c.Descriptor(), nil
}

// UpdateChain applies the provided name/active fields to a chain
func (m *Manager) UpdateChain(id uuid.UUID, update ChainUpdate) (chain.Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.chains[id]
	if !ok {
		return chain.Descriptor{}, errors.ErrChainNotFound
	}

	if update.Name != nil {
		if err := c.Rename(*update.Name); err != nil {
			return chain.Descriptor{}, err
		}
	}
	if update.Active != nil {
		if *update.Active {
			c.Activate()
		} else {
			c.Deactivate()
		}
	}
	m.publishIfCurrentLocked(id)
	return c.Descriptor(), nil
}

// AddEffectToChain creates an effect from its descriptor and appends it to
// the chain
func (m *Manager) AddEffectToChain(chainID uuid.UUID, ed effect.Descriptor) (effect.Descriptor, error) {
	e, err := effect.FromDescriptor(ed)
	if err != nil {
		return effect.Descriptor{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.chains[chainID]
	if !ok {
		return effect.Descriptor{}, errors.ErrChainNotFound
	}
	if err := c.AddEffect(e); err != nil {
		return effect.Descriptor{}, err
	}
	m.publishIfCurrentLocked(chainID)
	return e.Descriptor(), nil
}

// RemoveEffectFromChain removes an effect from a chain
func (m *Manager) RemoveEffectFromChain(chainID, effectID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.chains[chainID]
	if !ok {
		return errors.ErrChainNotFound
	}
	if !c.RemoveEffect(effectID) {
		return errors.ErrEffectNotFound
	}
	m.publishIfCurrentLocked(chainID)
	return nil
}

// ReorderEffects applies a new effect order to a chain
func (m *Manager) ReorderEffects(chainID uuid.UUID, ids []uuid.UUID) (chain.Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.chains[chainID]
	if !ok {
		return chain.Descriptor{}, errors.ErrChainNotFound
	}
	if err := c.ReorderEffects(ids); err != nil {
		return chain.Descriptor{}, fmt.Errorf("%w: %s", errors.ErrInvalidReorderConfig, err)
	}
	m.publishIfCurrentLocked(chainID)
	return c.Descriptor(), nil
}

// EffectParameters returns value and metadata for every parameter of an
// effect, located by scanning all chains
func (m *Manager) EffectParameters(effectID uuid.UUID) (map[string]effect.ParamInfo, error) {
	m.mu.RLock()
	e := m.findEffectLocked(effectID)
	m.mu.RUnlock()

	if e == nil {
		return nil, errors.ErrEffectNotFound
	}
	return e.AllParameterInfo(), nil
}

// UpdateEffectParameters validates and applies a parameter update set
// atomically, returning the refreshed parameter info
func (m *Manager) UpdateEffectParameters(effectID uuid.UUID, updates map[string]any) (map[string]effect.ParamInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, chainID := m.findEffectChainLocked(effectID)
	if e == nil {
		return nil, errors.ErrEffectNotFound
	}
	if err := e.UpdateParameters(updates); err != nil {
		return nil, err
	}
	m.publishIfCurrentLocked(chainID)
	return e.AllParameterInfo(), nil
}

// ToggleEffectBypass sets an effect's bypass flag
func (m *Manager) ToggleEffectBypass(effectID uuid.UUID, bypassed bool) (effect.Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, chainID := m.findEffectChainLocked(effectID)
	if e == nil {
		return effect.Descriptor{}, errors.ErrEffectNotFound
	}
	e.SetBypassed(bypassed)
	m.publishIfCurrentLocked(chainID)
	return e.Descriptor(), nil
}

// ChainByID returns a snapshot of a chain by id
func (m *Manager) ChainByID(id uuid.UUID) (chain.Descriptor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.chains[id]
	if !ok {
		return chain.Descriptor{}, false
	}
	return c.Descriptor(), true
}

// InstallChain registers an already-built chain (e.g. reconstructed from a
// preset), makes it current and returns its snapshot. The manager takes
// ownership of the chain; the caller must not mutate it afterwards.
func (m *Manager) InstallChain(c *chain.Chain) chain.Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chains[c.ID()] = c
	m.current = c.ID()
	m.publishLocked()
	m.logger.Info("chain installed", slog.String("name", c.Name()))
	return c.Descriptor()
}

// DeleteChain removes a chain. Deleting the current chain promotes another
// registered chain, or creates a fresh default chain when none remain; the
// registry is never left without a current chain. Returns whether the id
// was known.
func (m *Manager) DeleteChain(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.chains[id]; !ok {
		return false
	}
	delete(m.chains, id)

	if m.current == id {
		if len(m.chains) > 0 {
			for cid := range m.chains {
				m.current = cid
				break
			}
		} else {
			c, _ := chain.New(DefaultChainName)
			m.chains[c.ID()] = c
			m.current = c.ID()
		}
		m.publishLocked()
	}
	return true
}

// SetCurrentChain switches the current chain. Returns false for an unknown
// id rather than an error, to suit UI polling.
func (m *Manager) SetCurrentChain(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.chains[id]; !ok {
		return false
	}
	m.current = id
	m.publishLocked()
	return true
}

// AllChains returns a snapshot of every registered chain
func (m *Manager) AllChains() []chain.Descriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]chain.Descriptor, 0, len(m.chains))
	for _, c := range m.chains {
		out = append(out, c.Descriptor())
	}
	return out
}

// Statistics aggregates counts over the registry and the current chain
func (m *Manager) Statistics() Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.currentLocked()
	stats := Statistics{
		TotalChains:               len(m.chains),
		CurrentChainName:          current.Name(),
		CurrentChainEffects:       current.Len(),
		CurrentChainActiveEffects: current.ActiveEffectCount(),
		EffectKindsInCurrentChain: make(map[string]int),
	}
	for _, e := range current.Effects() {
		stats.EffectKindsInCurrentChain[string(e.Kind())]++
	}
	return stats
}

func (m *Manager) findEffectLocked(effectID uuid.UUID) *effect.Effect {
	e, _ := m.findEffectChainLocked(effectID)
	return e
}

func (m *Manager) findEffectChainLocked(effectID uuid.UUID) (*effect.Effect, uuid.UUID) {
	for id, c := range m.chains {
		if e := c.EffectByID(effectID); e != nil {
			return e, id
		}
	}
	return nil, uuid.Nil
}

func (m *Manager) publishIfCurrentLocked(chainID uuid.UUID) {
	if chainID == m.current {
		m.publishLocked()
	}
}

// publishLocked hands the renderer a deep snapshot of the current chain.
// Snapshots keep the render path free of shared mutable state.
func (m *Manager) publishLocked() {
	if m.renderer == nil {
		return
	}
	if c, ok := m.chains[m.current]; ok {
		m.renderer.SetEffectsChain(c.Descriptor())
	}
}
