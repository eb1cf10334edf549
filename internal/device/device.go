package device

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Supported hardware configuration values
var (
	SupportedSampleRates = []int{44100, 48000, 96000}
	ValidBufferSizes     = []int{32, 64, 128, 256, 512, 1024, 2048}
)

// Info describes an available audio device
type Info struct {
	Name                 string `json:"name"`
	MaxInputChannels     int    `json:"max_input_channels"`
	MaxOutputChannels    int    `json:"max_output_channels"`
	SupportedSampleRates []int  `json:"supported_sample_rates"`
	DefaultSampleRate    int    `json:"default_sample_rate"`
	Index                int    `json:"device_index"`
}

// Interface is a validated audio hardware configuration: device names,
// sample rate, buffer size and channel routing. It carries no handles to
// real hardware; the render collaborator owns those.
type Interface struct {
	id             uuid.UUID
	InputDevice    string
	OutputDevice   string
	SampleRate     int
	BufferSize     int
	InputChannels  []int
	OutputChannels []int
	latencyMS      float64 // measured, 0 until set
}

type wireInterface struct {
	ID             string  `json:"id"`
	InputDevice    string  `json:"input_device_name"`
	OutputDevice   string  `json:"output_device_name"`
	SampleRate     int     `json:"sample_rate"`
	BufferSize     int     `json:"buffer_size"`
	InputChannels  []int   `json:"input_channels"`
	OutputChannels []int   `json:"output_channels"`
	LatencyMS      float64 `json:"latency_ms"`
}

// New creates an interface configuration with mono input and stereo output
// defaults
func New(inputDevice, outputDevice string, sampleRate, bufferSize int) (*Interface, error) {
	i := &Interface{
		id:             uuid.New(),
		InputDevice:    inputDevice,
		OutputDevice:   outputDevice,
		SampleRate:     sampleRate,
		BufferSize:     bufferSize,
		InputChannels:  []int{0},
		OutputChannels: []int{0, 1},
	}
	if err := i.Validate(); err != nil {
		return nil, err
	}
	return i, nil
}

// ID returns the configuration identity
func (i *Interface) ID() uuid.UUID {
	return i.id
}

// Validate checks sample rate, buffer size and channel lists
func (i *Interface) Validate() error {
	if !containsInt(SupportedSampleRates, i.SampleRate) {
		return fmt.Errorf("sample rate must be one of %v", SupportedSampleRates)
	}
	if !containsInt(ValidBufferSizes, i.BufferSize) {
		return fmt.Errorf("buffer size must be one of %v", ValidBufferSizes)
	}
	if err := validateChannels("input", i.InputChannels); err != nil {
		return err
	}
	return validateChannels("output", i.OutputChannels)
}

// SetInputChannels replaces the input channel routing
func (i *Interface) SetInputChannels(channels []int) error {
	if err := validateChannels("input", channels); err != nil {
		return err
	}
	i.InputChannels = append([]int(nil), channels...)
	return nil
}

// SetOutputChannels replaces the output channel routing
func (i *Interface) SetOutputChannels(channels []int) error {
	if err := validateChannels("output", channels); err != nil {
		return err
	}
	i.OutputChannels = append([]int(nil), channels...)
	return nil
}

// SetMeasuredLatency records a round-trip latency measurement
func (i *Interface) SetMeasuredLatency(ms float64) error {
	if ms < 0 {
		return fmt.Errorf("latency must be non-negative")
	}
	i.latencyMS = ms
	return nil
}

// MeasuredLatency returns the last recorded measurement, 0 when none
func (i *Interface) MeasuredLatency() float64 {
	return i.latencyMS
}

// TheoreticalLatency returns the one-way buffer latency implied by the
// configuration
func (i *Interface) TheoreticalLatency() time.Duration {
	if i.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(i.BufferSize) / float64(i.SampleRate) * float64(time.Second))
}

// LowLatency reports whether the configuration stays under 10ms one way
func (i *Interface) LowLatency() bool {
	return i.TheoreticalLatency() < 10*time.Millisecond
}

// SupportsRealTime reports whether the configuration is suitable for live
// processing: valid, and a buffer no larger than 1024 frames
func (i *Interface) SupportsRealTime() bool {
	return i.Validate() == nil && i.BufferSize <= 1024
}

// Copy duplicates the configuration under a new identity
func (i *Interface) Copy() *Interface {
	clone := *i
	clone.id = uuid.New()
	clone.InputChannels = append([]int(nil), i.InputChannels...)
	clone.OutputChannels = append([]int(nil), i.OutputChannels...)
	return &clone
}

// Equal compares configurations by identity
func (i *Interface) Equal(other *Interface) bool {
	return other != nil && i.id == other.id
}

// MarshalJSON serializes the configuration
func (i *Interface) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireInterface{
		ID:             i.id.String(),
		InputDevice:    i.InputDevice,
		OutputDevice:   i.OutputDevice,
		SampleRate:     i.SampleRate,
		BufferSize:     i.BufferSize,
		InputChannels:  i.InputChannels,
		OutputChannels: i.OutputChannels,
		LatencyMS:      i.latencyMS,
	})
}

// Deserialize parses a serialized interface configuration
func Deserialize(data []byte) (*Interface, error) {
	var w wireInterface
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parse audio interface: %w", err)
	}

	i := &Interface{
		id:             uuid.New(),
		InputDevice:    w.InputDevice,
		OutputDevice:   w.OutputDevice,
		SampleRate:     w.SampleRate,
		BufferSize:     w.BufferSize,
		InputChannels:  w.InputChannels,
		OutputChannels: w.OutputChannels,
		latencyMS:      w.LatencyMS,
	}
	if w.ID != "" {
		id, err := uuid.Parse(w.ID)
		if err != nil {
			return nil, fmt.Errorf("parse audio interface id: %w", err)
		}
		i.id = id
	}
	if len(i.InputChannels) == 0 {
		i.InputChannels = []int{0}
	}
	if len(i.OutputChannels) == 0 {
		i.OutputChannels = []int{0, 1}
	}
	if err := i.Validate(); err != nil {
		return nil, err
	}
	return i, nil
}

func validateChannels(side string, channels []int) error {
	if len(channels) == 0 {
		return fmt.Errorf("%s channels must be non-empty", side)
	}
	for _, ch := range channels {
		if ch < 0 {
			return fmt.Errorf("%s channel indices must be non-negative", side)
		}
	}
	return nil
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
