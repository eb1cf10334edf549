package server

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/feamster/pedalboard-effects/internal/effect"
	"github.com/feamster/pedalboard-effects/internal/errors"
	"github.com/feamster/pedalboard-effects/internal/manager"
	"github.com/feamster/pedalboard-effects/internal/preset"
	"github.com/feamster/pedalboard-effects/internal/store"
)

const maxImportSize = 10 * 1024 * 1024 // 10MB preset bundles

type errorResponse struct {
	Error string `json:"error"`
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleListChains returns every registered chain
func (s *Server) handleListChains(w http.ResponseWriter, r *http.Request) {
	chains := s.manager.AllChains()
	s.writeJSON(w, http.StatusOK, chains)
}

// handleCreateChain builds a chain from a config and makes it current
func (s *Server) handleCreateChain(w http.ResponseWriter, r *http.Request) {
	var cfg manager.ChainConfig
	if !s.decode(w, r, &cfg) {
		return
	}
	c, err := s.manager.CreateChain(cfg)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, c)
}

// handleCurrentChain returns the current chain
func (s *Server) handleCurrentChain(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.manager.CurrentChain())
}

// handleSetCurrentChain switches the current chain
func (s *Server) handleSetCurrentChain(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	id, err := uuid.Parse(body.ID)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid chain id"})
		return
	}
	if !s.manager.SetCurrentChain(id) {
		s.writeError(w, errors.ErrChainNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, s.manager.CurrentChain())
}

// handleGetChain returns one chain by id
func (s *Server) handleGetChain(w http.ResponseWriter, r *http.Request) {
	id, ok := s.uuidParam(w, r, "id")
	if !ok {
		return
	}
	c, ok := s.manager.ChainByID(id)
	if !ok {
		s.writeError(w, errors.ErrChainNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

// handleUpdateChain applies a partial chain update
func (s *Server) handleUpdateChain(w http.ResponseWriter, r *http.Request) {
	id, ok := s.uuidParam(w, r, "id")
	if !ok {
		return
	}
	var update manager.ChainUpdate
	if !s.decode(w, r, &update) {
		return
	}
	c, err := s.manager.UpdateChain(id, update)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

// handleDeleteChain removes a chain
func (s *Server) handleDeleteChain(w http.ResponseWriter, r *http.Request) {
	id, ok := s.uuidParam(w, r, "id")
	if !ok {
		return
	}
	if !s.manager.DeleteChain(id) {
		s.writeError(w, errors.ErrChainNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAddEffect appends an effect to a chain
func (s *Server) handleAddEffect(w http.ResponseWriter, r *http.Request) {
	id, ok := s.uuidParam(w, r, "id")
	if !ok {
		return
	}
	var ed effect.Descriptor
	if !s.decode(w, r, &ed) {
		return
	}
	e, err := s.manager.AddEffectToChain(id, ed)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, e)
}

// handleRemoveEffect removes an effect from a chain
func (s *Server) handleRemoveEffect(w http.ResponseWriter, r *http.Request) {
	chainID, ok := s.uuidParam(w, r, "id")
	if !ok {
		return
	}
	effectID, ok := s.uuidParam(w, r, "effectID")
	if !ok {
		return
	}
	if err := s.manager.RemoveEffectFromChain(chainID, effectID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReorderEffects applies a new effect order
func (s *Server) handleReorderEffects(w http.ResponseWriter, r *http.Request) {
	id, ok := s.uuidParam(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		EffectIDs []string `json:"effect_ids"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	ids := make([]uuid.UUID, 0, len(body.EffectIDs))
	for _, raw := range body.EffectIDs {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			s.writeError(w, errors.ErrInvalidReorderConfig)
			return
		}
		ids = append(ids, parsed)
	}
	c, err := s.manager.ReorderEffects(id, ids)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

// handleGetParameters returns value and metadata for every parameter of an
// effect
func (s *Server) handleGetParameters(w http.ResponseWriter, r *http.Request) {
	id, ok := s.uuidParam(w, r, "id")
	if !ok {
		return
	}
	info, err := s.manager.EffectParameters(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

// handleUpdateParameters applies a parameter update set atomically
func (s *Server) handleUpdateParameters(w http.ResponseWriter, r *http.Request) {
	id, ok := s.uuidParam(w, r, "id")
	if !ok {
		return
	}
	var updates map[string]any
	if !s.decode(w, r, &updates) {
		return
	}
	info, err := s.manager.UpdateEffectParameters(id, updates)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

// handleBypass sets an effect's bypass flag
func (s *Server) handleBypass(w http.ResponseWriter, r *http.Request) {
	id, ok := s.uuidParam(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Bypassed *bool `json:"bypassed"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if body.Bypassed == nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing bypassed"})
		return
	}
	e, err := s.manager.ToggleEffectBypass(id, *body.Bypassed)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, e)
}

// handleListPresets returns preset summaries, optionally filtered by tags
// and a search term
func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	var tags []string
	if raw := r.URL.Query().Get("tags"); raw != "" {
		tags = strings.Split(raw, ",")
	}
	search := r.URL.Query().Get("search")
	s.writeJSON(w, http.StatusOK, s.store.List(tags, search))
}

// handleSavePreset persists a new preset
func (s *Server) handleSavePreset(w http.ResponseWriter, r *http.Request) {
	var cfg store.SaveConfig
	if !s.decode(w, r, &cfg) {
		return
	}
	p, err := s.store.Save(cfg)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, p)
}

// handleGetPreset returns one preset record
func (s *Server) handleGetPreset(w http.ResponseWriter, r *http.Request) {
	id, ok := s.uuidParam(w, r, "id")
	if !ok {
		return
	}
	p, err := s.store.Get(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

// handleUpdatePreset applies a partial preset update
func (s *Server) handleUpdatePreset(w http.ResponseWriter, r *http.Request) {
	id, ok := s.uuidParam(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Name        *string             `json:"name"`
		Description *string             `json:"description"`
		Tags        []string            `json:"tags"`
		ChainConfig *preset.ChainConfig `json:"effects_chain_config"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	p, err := s.store.Update(id, preset.Patch{
		Name:        body.Name,
		Description: body.Description,
		Tags:        body.Tags,
		ChainConfig: body.ChainConfig,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

// handleDeletePreset removes a preset
func (s *Server) handleDeletePreset(w http.ResponseWriter, r *http.Request) {
	id, ok := s.uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := s.store.Delete(id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLoadPreset reconstructs a preset's chain and installs it as current
func (s *Server) handleLoadPreset(w http.ResponseWriter, r *http.Request) {
	id, ok := s.uuidParam(w, r, "id")
	if !ok {
		return
	}
	c, err := s.store.Load(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	installed := s.manager.InstallChain(c)

	if p, err := s.store.Get(id); err == nil {
		if err := s.configs.AddRecentPreset(p.ID().String(), p.Name()); err != nil {
			s.logger.Warn("record recent preset", "error", err)
		}
		if err := s.configs.SetLastPreset(p.ID().String()); err != nil {
			s.logger.Warn("record last preset", "error", err)
		}
	}
	s.writeJSON(w, http.StatusOK, installed)
}

// handleExportPresets serializes the requested presets as one bundle
func (s *Server) handleExportPresets(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PresetIDs []string `json:"preset_ids"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	ids := make([]uuid.UUID, 0, len(body.PresetIDs))
	for _, raw := range body.PresetIDs {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid preset id: " + raw})
			return
		}
		ids = append(ids, parsed)
	}
	data, err := s.store.ExportBatch(ids)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="presets.json"`)
	w.Write(data)
}

// handleImportPresets imports a preset bundle; the request body is the
// bundle itself
func (s *Server) handleImportPresets(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
	blob, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "read import body: " + err.Error()})
		return
	}
	overwrite := r.URL.Query().Get("overwrite") == "true"

	result, err := s.store.ImportBatch(blob, overwrite)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleEngineStatus returns the render engine status
func (s *Server) handleEngineStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Status())
}

// handleStats returns aggregate effect statistics
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.manager.Statistics())
}

// handleGetConfig returns the application configuration
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.configs.Snapshot())
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError maps domain errors onto HTTP status codes
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	var pe *errors.PersistenceError

	switch {
	case stderrors.Is(err, errors.ErrChainNotFound),
		stderrors.Is(err, errors.ErrEffectNotFound),
		stderrors.Is(err, errors.ErrPresetNotFound):
		status = http.StatusNotFound
	case stderrors.Is(err, errors.ErrDuplicateName),
		stderrors.Is(err, errors.ErrDuplicateEffect):
		status = http.StatusConflict
	case stderrors.As(err, &pe):
		status = http.StatusInternalServerError
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}
