package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/feamster/pedalboard-effects/internal/device"
)

// FileName is the config file under the config directory
const FileName = "config.yaml"

// AppConfig holds application-level settings
type AppConfig struct {
	Version            string         `yaml:"version"`
	LastPresetID       string         `yaml:"last_preset_id"`
	AutoLoadLastPreset bool           `yaml:"auto_load_last_preset"`
	LogLevel           string         `yaml:"log_level"`
	MaxRecentPresets   int            `yaml:"max_recent_presets"`
	RecentPresets      []RecentPreset `yaml:"recent_presets"`
}

// RecentPreset is one entry of the recently-used list
type RecentPreset struct {
	ID     string    `yaml:"id"`
	Name   string    `yaml:"name"`
	UsedAt time.Time `yaml:"used_at"`
}

// AudioConfig holds the audio hardware settings
type AudioConfig struct {
	SampleRate     int    `yaml:"sample_rate"`
	BufferSize     int    `yaml:"buffer_size"`
	InputDevice    string `yaml:"input_device"`
	OutputDevice   string `yaml:"output_device"`
	InputChannels  []int  `yaml:"input_channels"`
	OutputChannels []int  `yaml:"output_channels"`
	AutoConnect    bool   `yaml:"auto_connect"`
	LowLatencyMode bool   `yaml:"low_latency_mode"`
}

// UIConfig holds front-end settings carried for the UI collaborator
type UIConfig struct {
	WindowWidth          int    `yaml:"window_width"`
	WindowHeight         int    `yaml:"window_height"`
	WindowX              int    `yaml:"window_x"`
	WindowY              int    `yaml:"window_y"`
	Theme                string `yaml:"theme"`
	ShowAdvancedControls bool   `yaml:"show_advanced_controls"`
	ParameterUpdateRate  int    `yaml:"parameter_update_rate"`
	MeterUpdateRate      int    `yaml:"meter_update_rate"`
	AutoSavePresets      bool   `yaml:"auto_save_presets"`
}

// Config is the full on-disk configuration
type Config struct {
	App   AppConfig   `yaml:"app"`
	Audio AudioConfig `yaml:"audio"`
	UI    UIConfig    `yaml:"ui"`
}

// Defaults returns the configuration written on first run
func Defaults() Config {
	return Config{
		App: AppConfig{
			Version:            "1.0.0",
			AutoLoadLastPreset: true,
			LogLevel:           "INFO",
			MaxRecentPresets:   10,
		},
		Audio: AudioConfig{
			SampleRate:     48000,
			BufferSize:     256,
			InputDevice:    "default",
			OutputDevice:   "default",
			InputChannels:  []int{0},
			OutputChannels: []int{0, 1},
			AutoConnect:    true,
			LowLatencyMode: true,
		},
		UI: UIConfig{
			WindowWidth:         800,
			WindowHeight:        600,
			WindowX:             100,
			WindowY:             100,
			Theme:               "dark",
			ParameterUpdateRate: 60,
			MeterUpdateRate:     30,
			AutoSavePresets:     true,
		},
	}
}

// Service loads, validates and persists the application configuration
type Service struct {
	dir  string
	path string
	mu   sync.Mutex
	cfg  Config
}

// DefaultDir returns ~/.pedalboard
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pedalboard"
	}
	return filepath.Join(home, ".pedalboard")
}

// Open loads the config file from dir, creating it with defaults when
// missing
func Open(dir string) (*Service, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	s := &Service{dir: dir, path: filepath.Join(dir, FileName)}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.cfg = Defaults()
		if err := s.saveLocked(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	s.cfg = cfg
	return s, nil
}

// Dir returns the config directory
func (s *Service) Dir() string {
	return s.dir
}

// Snapshot returns a copy of the full configuration
func (s *Service) Snapshot() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneConfig(s.cfg)
}

// App returns a copy of the app section
func (s *Service) App() AppConfig {
	return s.Snapshot().App
}

// Audio returns a copy of the audio section
func (s *Service) Audio() AudioConfig {
	return s.Snapshot().Audio
}

// UI returns a copy of the UI section
func (s *Service) UI() UIConfig {
	return s.Snapshot().UI
}

// SetAudio validates and persists the audio section
func (s *Service) SetAudio(cfg AudioConfig) error {
	if err := validateAudio(cfg); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Audio = cfg
	return s.saveLocked()
}

// SetUI validates and persists the UI section
func (s *Service) SetUI(cfg UIConfig) error {
	if err := validateUI(cfg); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.UI = cfg
	return s.saveLocked()
}

// SetWindowGeometry persists the window size and position
func (s *Service) SetWindowGeometry(width, height, x, y int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.cfg.UI
	cfg.WindowWidth = width
	cfg.WindowHeight = height
	cfg.WindowX = x
	cfg.WindowY = y
	if err := validateUI(cfg); err != nil {
		return err
	}
	s.cfg.UI = cfg
	return s.saveLocked()
}

// SetTheme persists the UI theme
func (s *Service) SetTheme(theme string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.cfg.UI
	cfg.Theme = theme
	if err := validateUI(cfg); err != nil {
		return err
	}
	s.cfg.UI = cfg
	return s.saveLocked()
}

// AddRecentPreset pushes a preset to the front of the recently-used list,
// de-duplicating by id and trimming to max_recent_presets
func (s *Service) AddRecentPreset(id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := RecentPreset{ID: id, Name: name, UsedAt: time.Now()}
	recents := []RecentPreset{entry}
	for _, r := range s.cfg.App.RecentPresets {
		if r.ID != id {
			recents = append(recents, r)
		}
	}
	max := s.cfg.App.MaxRecentPresets
	if max <= 0 {
		max = 10
	}
	if len(recents) > max {
		recents = recents[:max]
	}
	s.cfg.App.RecentPresets = recents
	return s.saveLocked()
}

// RecentPresets returns the recently-used list, most recent first
func (s *Service) RecentPresets() []RecentPreset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecentPreset(nil), s.cfg.App.RecentPresets...)
}

// SetLastPreset persists the id of the last loaded preset
func (s *Service) SetLastPreset(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.App.LastPresetID = id
	return s.saveLocked()
}

// LastPreset returns the id of the last loaded preset, empty when none
func (s *Service) LastPreset() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.App.LastPresetID
}

// ResetSection restores one of "app", "audio" or "ui" to defaults
func (s *Service) ResetSection(section string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	defaults := Defaults()
	switch section {
	case "app":
		s.cfg.App = defaults.App
	case "audio":
		s.cfg.Audio = defaults.Audio
	case "ui":
		s.cfg.UI = defaults.UI
	default:
		return fmt.Errorf("unknown config section: %q", section)
	}
	return s.saveLocked()
}

// Import replaces the whole configuration after validation
func (s *Service) Import(cfg Config) error {
	if err := validate(cfg); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cloneConfig(cfg)
	return s.saveLocked()
}

// AudioInterface builds a validated device configuration from the audio
// section
func (s *Service) AudioInterface() (*device.Interface, error) {
	audio := s.Audio()
	iface, err := device.New(audio.InputDevice, audio.OutputDevice, audio.SampleRate, audio.BufferSize)
	if err != nil {
		return nil, err
	}
	if len(audio.InputChannels) > 0 {
		if err := iface.SetInputChannels(audio.InputChannels); err != nil {
			return nil, err
		}
	}
	if len(audio.OutputChannels) > 0 {
		if err := iface.SetOutputChannels(audio.OutputChannels); err != nil {
			return nil, err
		}
	}
	return iface, nil
}

func (s *Service) saveLocked() error {
	data, err := yaml.Marshal(s.cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func validate(cfg Config) error {
	if err := validateAudio(cfg.Audio); err != nil {
		return err
	}
	return validateUI(cfg.UI)
}

func validateAudio(cfg AudioConfig) error {
	dev, err := device.New(cfg.InputDevice, cfg.OutputDevice, cfg.SampleRate, cfg.BufferSize)
	if err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if len(cfg.InputChannels) > 0 {
		if err := dev.SetInputChannels(cfg.InputChannels); err != nil {
			return fmt.Errorf("audio config: %w", err)
		}
	}
	if len(cfg.OutputChannels) > 0 {
		if err := dev.SetOutputChannels(cfg.OutputChannels); err != nil {
			return fmt.Errorf("audio config: %w", err)
		}
	}
	return nil
}

func validateUI(cfg UIConfig) error {
	if cfg.WindowWidth < 400 || cfg.WindowHeight < 300 {
		return fmt.Errorf("ui config: window must be at least 400x300")
	}
	if cfg.Theme != "dark" && cfg.Theme != "light" {
		return fmt.Errorf("ui config: theme must be dark or light")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.App.RecentPresets = append([]RecentPreset(nil), cfg.App.RecentPresets...)
	out.Audio.InputChannels = append([]int(nil), cfg.Audio.InputChannels...)
	out.Audio.OutputChannels = append([]int(nil), cfg.Audio.OutputChannels...)
	return out
}
