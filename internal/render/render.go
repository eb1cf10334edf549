package render

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/feamster/pedalboard-effects/internal/chain"
	"github.com/feamster/pedalboard-effects/internal/device"
)

// Renderer consumes chain snapshots for audio rendering. The manager calls
// SetEffectsChain with a deep snapshot whenever the current chain changes,
// so implementations never observe a chain mid-mutation. A renderer must
// tolerate an empty chain and treat bypassed effects as pass-through.
type Renderer interface {
	SetEffectsChain(snapshot chain.Descriptor)
}

// Status summarizes the engine state for UI polling
type Status struct {
	Running            bool    `json:"running"`
	ChainName          string  `json:"chain_name"`
	EffectCount        int     `json:"effect_count"`
	ActiveEffectCount  int     `json:"active_effect_count"`
	BuffersProcessed   uint64  `json:"buffers_processed"`
	SampleRate         int     `json:"sample_rate"`
	BufferSize         int     `json:"buffer_size"`
	TheoreticalLatency float64 `json:"theoretical_latency_ms"`
	MeasuredLatency    float64 `json:"measured_latency_ms"`
}

// Engine is a pass-through renderer: it tracks the installed chain and
// buffer statistics but produces the input signal unchanged. Real signal
// processing belongs to an external DSP collaborator; this engine exists so
// the control path has something concrete to publish to and the UI has a
// status surface.
type Engine struct {
	mu       sync.RWMutex
	running  bool
	iface    *device.Interface
	snapshot chain.Descriptor
	buffers  atomic.Uint64
}

// NewEngine creates a stopped engine with an empty chain
func NewEngine() *Engine {
	return &Engine{}
}

// Start validates the interface configuration and begins accepting buffers
func (e *Engine) Start(iface *device.Interface) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return fmt.Errorf("audio processing already active")
	}
	if iface == nil {
		return fmt.Errorf("audio interface configuration required")
	}
	if err := iface.Validate(); err != nil {
		return fmt.Errorf("audio interface: %w", err)
	}
	if !iface.SupportsRealTime() {
		return fmt.Errorf("configuration not suitable for real-time processing")
	}

	e.iface = iface
	e.running = true
	return nil
}

// Stop halts buffer processing. Stopping a stopped engine is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

// Running reports whether the engine is accepting buffers
func (e *Engine) Running() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// SetEffectsChain installs a chain snapshot for rendering
func (e *Engine) SetEffectsChain(snapshot chain.Descriptor) {
	e.mu.Lock()
	e.snapshot = snapshot
	e.mu.Unlock()
}

// Chain returns the currently installed snapshot
func (e *Engine) Chain() chain.Descriptor {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot
}

// ProcessBuffer runs one buffer through the chain. An empty chain or one
// containing only bypassed effects is pass-through; this engine is
// pass-through for every unit regardless, leaving the mapping of kind and
// parameters to signal processing to the external collaborator.
func (e *Engine) ProcessBuffer(samples []float64) []float64 {
	out := make([]float64, len(samples))
	copy(out, samples)
	e.buffers.Add(1)
	return out
}

// Status returns a point-in-time summary
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	active := 0
	for _, ed := range e.snapshot.Effects {
		if !ed.Bypassed {
			active++
		}
	}
	st := Status{
		Running:           e.running,
		ChainName:         e.snapshot.Name,
		EffectCount:       len(e.snapshot.Effects),
		ActiveEffectCount: active,
		BuffersProcessed:  e.buffers.Load(),
	}
	if e.iface != nil {
		st.SampleRate = e.iface.SampleRate
		st.BufferSize = e.iface.BufferSize
		st.TheoreticalLatency = float64(e.iface.TheoreticalLatency().Microseconds()) / 1000
		st.MeasuredLatency = e.iface.MeasuredLatency()
	}
	return st
}
