package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/feamster/pedalboard-effects/internal/chain"
	"github.com/feamster/pedalboard-effects/internal/errors"
	"github.com/feamster/pedalboard-effects/internal/preset"
)

// Store persists presets as one JSON record per id under a directory, with
// an in-memory id map and name index for fast lookup and name-uniqueness
// checks. The two indices are kept mutually consistent: a record is only
// indexed after its file has been durably written.
type Store struct {
	dir     string
	mu      sync.RWMutex
	presets map[uuid.UUID]*preset.Preset
	names   map[string]uuid.UUID
	logger  *slog.Logger
}

// Summary is the listing shape for one preset
type Summary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	Tags        []string  `json:"tags"`
	EffectCount int       `json:"effect_count"`
}

// SaveConfig carries the fields for a new preset
type SaveConfig struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Tags        []string            `json:"tags"`
	Author      string              `json:"author"`
	Version     string              `json:"version"`
	ChainConfig *preset.ChainConfig `json:"effects_chain_config"`
}

// ImportResult reports the outcome of a batch import
type ImportResult struct {
	Imported int      `json:"imported_count"`
	Skipped  int      `json:"skipped_count"`
	Errors   []string `json:"errors"`
}

// Open creates the presets directory if needed and loads every readable
// record. Unreadable files are skipped with a logged warning.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create presets dir: %w", err)
	}

	s := &Store{
		dir:     dir,
		presets: make(map[uuid.UUID]*preset.Preset),
		names:   make(map[string]uuid.UUID),
		logger:  logger,
	}
	if err := s.loadAll(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the presets directory
func (s *Store) Dir() string {
	return s.dir
}

// Count returns the number of live presets
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.presets)
}

// List returns preset summaries sorted by name (case-insensitive,
// ascending). When tags are given a preset matches if any of its tags is in
// the filter; a search term additionally requires a name/description
// substring match.
func (s *Store) List(tags []string, search string) []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]Summary, 0, len(s.presets))
	for _, p := range s.presets {
		if len(tags) > 0 && !anyTagMatches(p, tags) {
			continue
		}
		if search != "" && !p.MatchesSearch(search) {
			continue
		}
		summaries = append(summaries, Summary{
			ID:          p.ID().String(),
			Name:        p.Name(),
			Description: p.Description(),
			CreatedAt:   p.CreatedAt(),
			Tags:        p.Tags(),
			EffectCount: p.EffectCount(),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return strings.ToLower(summaries[i].Name) < strings.ToLower(summaries[j].Name)
	})
	return summaries
}

// Save validates and persists a new preset. The record is written to disk
// before it is indexed, so a persistence failure leaves the store unchanged.
func (s *Store) Save(cfg SaveConfig) (*preset.Preset, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: missing name", errors.ErrInvalidPresetData)
	}
	if cfg.ChainConfig == nil {
		return nil, fmt.Errorf("%w: missing effects_chain_config", errors.ErrInvalidPresetData)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.names[cfg.Name]; exists {
		return nil, errors.ErrDuplicateName
	}

	p, err := preset.New(cfg.Name, *cfg.ChainConfig, preset.Meta{
		Description: cfg.Description,
		Tags:        cfg.Tags,
		Author:      cfg.Author,
		Version:     cfg.Version,
	})
	if err != nil {
		return nil, err
	}

	if err := s.writeFile(p); err != nil {
		return nil, err
	}
	s.presets[p.ID()] = p
	s.names[p.Name()] = p.ID()
	return p, nil
}

// Get returns a preset by id, memory-first with a disk fallback that caches
// on hit
func (s *Store) Get(id uuid.UUID) (*preset.Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(id)
}

func (s *Store) getLocked(id uuid.UUID) (*preset.Preset, error) {
	if p, ok := s.presets[id]; ok {
		return p, nil
	}

	p, err := s.readFile(id)
	if err != nil {
		return nil, errors.ErrPresetNotFound
	}
	s.presets[p.ID()] = p
	s.names[p.Name()] = p.ID()
	return p, nil
}

// Update applies a partial update and persists the result. Renaming onto a
// name held by a different preset fails with ErrDuplicateName. A
// persistence failure rolls the in-memory record back.
func (s *Store) Update(id uuid.UUID, patch preset.Patch) (*preset.Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.presets[id]
	if !ok {
		return nil, errors.ErrPresetNotFound
	}

	oldName := p.Name()
	if patch.Name != nil && *patch.Name != oldName {
		if existing, taken := s.names[*patch.Name]; taken && existing != id {
			return nil, errors.ErrDuplicateName
		}
	}

	before := p.Record()
	if err := p.Update(patch); err != nil {
		return nil, err
	}

	if err := s.writeFile(p); err != nil {
		p.RestoreRecord(before)
		return nil, err
	}

	if p.Name() != oldName {
		delete(s.names, oldName)
		s.names[p.Name()] = id
	}
	return p, nil
}

// Delete removes the durable record and both indices
func (s *Store) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(id)
}

func (s *Store) deleteLocked(id uuid.UUID) error {
	p, ok := s.presets[id]
	if !ok {
		return errors.ErrPresetNotFound
	}

	path := s.recordPath(id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.NewPersistenceError("delete", path, err)
	}
	delete(s.presets, id)
	delete(s.names, p.Name())
	return nil
}

// Load fetches a preset and reconstructs its chain
func (s *Store) Load(id uuid.UUID) (*chain.Chain, error) {
	p, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	c, err := p.ToChain()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrPresetLoad, err)
	}
	return c, nil
}

// ExportBatch serializes the full records of the requested presets as one
// JSON array. Unknown ids are silently skipped.
func (s *Store) ExportBatch(ids []uuid.UUID) ([]byte, error) {
	if len(ids) == 0 {
		return nil, errors.ErrInvalidExportRequest
	}

	s.mu.RLock()
	records := make([]preset.Record, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.presets[id]; ok {
			records = append(records, p.Record())
		}
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}
	return data, nil
}

// ImportBatch parses a JSON array of preset records and imports each one.
// A name collision skips the record unless overwrite is set, in which case
// the existing preset is deleted and the record reinserted under a fresh
// identity. Malformed records are collected as errors; only an unparseable
// container fails the whole call.
func (s *Store) ImportBatch(blob []byte, overwrite bool) (ImportResult, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(blob, &raws); err != nil {
		return ImportResult{}, fmt.Errorf("%w: expected a JSON array of presets", errors.ErrInvalidImportFile)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := ImportResult{Errors: []string{}}
	for _, raw := range raws {
		var r preset.Record
		if err := json.Unmarshal(raw, &r); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to import preset: %s", err))
			continue
		}
		// fresh identity on import
		r.ID = ""
		p, err := preset.FromRecord(r)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to import preset %q: %s", r.Name, err))
			continue
		}

		if existing, taken := s.names[p.Name()]; taken {
			if !overwrite {
				result.Skipped++
				continue
			}
			if err := s.deleteLocked(existing); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("failed to overwrite preset %q: %s", p.Name(), err))
				continue
			}
		}

		if err := s.writeFile(p); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to import preset %q: %s", p.Name(), err))
			continue
		}
		s.presets[p.ID()] = p
		s.names[p.Name()] = p.ID()
		result.Imported++
	}
	return result, nil
}

// Clear removes every preset and its record, returning the number removed
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := len(s.presets)
	for id := range s.presets {
		_ = os.Remove(s.recordPath(id))
	}
	s.presets = make(map[uuid.UUID]*preset.Preset)
	s.names = make(map[string]uuid.UUID)
	return count
}

func (s *Store) recordPath(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+".json")
}

func (s *Store) writeFile(p *preset.Preset) error {
	path := s.recordPath(p.ID())
	data, err := json.MarshalIndent(p.Record(), "", "  ")
	if err != nil {
		return errors.NewPersistenceError("save", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.NewPersistenceError("save", path, err)
	}
	return nil
}

func (s *Store) readFile(id uuid.UUID) (*preset.Preset, error) {
	path := s.recordPath(id)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewPersistenceError("load", path, err)
	}
	p, err := preset.Deserialize(data)
	if err != nil {
		return nil, errors.NewPersistenceError("load", path, err)
	}
	return p, nil
}

func (s *Store) loadAll() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return errors.NewPersistenceError("scan", s.dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			s.logger.Warn("skipping preset file with non-uuid name", slog.String("file", entry.Name()))
			continue
		}
		p, err := s.readFile(id)
		if err != nil {
			s.logger.Warn("skipping unreadable preset file", slog.String("file", entry.Name()), slog.Any("error", err))
			continue
		}
		s.presets[p.ID()] = p
		s.names[p.Name()] = p.ID()
	}
	return nil
}

func anyTagMatches(p *preset.Preset, tags []string) bool {
	for _, tag := range tags {
		if p.HasTag(tag) {
			return true
		}
	}
	return false
}
