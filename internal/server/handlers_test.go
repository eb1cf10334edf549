package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(Config{
		Port:       0,
		PresetsDir: t.TempDir(),
		ConfigDir:  t.TempDir(),
	})
	require.NoError(t, err)
	return s
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

type chainBody struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Active  bool   `json:"active"`
	Effects []struct {
		ID         string         `json:"id"`
		Type       string         `json:"type"`
		Parameters map[string]any `json:"parameters"`
		Bypassed   bool           `json:"bypassed"`
		Position   int            `json:"position"`
	} `json:"effects"`
}

func createLeadChain(t *testing.T, s *Server) chainBody {
	t.Helper()
	rec := doJSON(t, s, http.MethodPost, "/api/chains", map[string]any{
		"name": "Lead",
		"effects": []map[string]any{
			{"type": "BOOST", "parameters": map[string]any{"gain_db": 6.0, "tone": 0.6}},
			{"type": "DISTORTION", "parameters": map[string]any{"drive_db": 15.0}},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var c chainBody
	decodeBody(t, rec, &c)
	return c
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestChainEndpoints(t *testing.T) {
	s := newTestServer(t)

	t.Run("CurrentDefaultsOnStartup", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, "/api/chains/current", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var c chainBody
		decodeBody(t, rec, &c)
		require.Equal(t, "Default Chain", c.Name)
	})

	t.Run("CreateBecomesCurrent", func(t *testing.T) {
		created := createLeadChain(t, s)
		require.Len(t, created.Effects, 2)
		require.Equal(t, "BOOST", created.Effects[0].Type)

		rec := doJSON(t, s, http.MethodGet, "/api/chains/current", nil)
		var current chainBody
		decodeBody(t, rec, &current)
		require.Equal(t, created.ID, current.ID)
	})

	t.Run("CreateInvalidConfig", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/chains", map[string]any{
			"name":    "Bad",
			"effects": []map[string]any{{"type": "CHORUS", "parameters": map[string]any{}}},
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("GetByID", func(t *testing.T) {
		created := createLeadChain(t, s)
		rec := doJSON(t, s, http.MethodGet, "/api/chains/"+created.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, s, http.MethodGet, "/api/chains/"+uuid.NewString(), nil)
		require.Equal(t, http.StatusNotFound, rec.Code)

		rec = doJSON(t, s, http.MethodGet, "/api/chains/not-a-uuid", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("PatchRename", func(t *testing.T) {
		created := createLeadChain(t, s)
		rec := doJSON(t, s, http.MethodPatch, "/api/chains/"+created.ID, map[string]any{"name": "Lead Mk2"})
		require.Equal(t, http.StatusOK, rec.Code)
		var c chainBody
		decodeBody(t, rec, &c)
		require.Equal(t, "Lead Mk2", c.Name)
	})

	t.Run("SetCurrent", func(t *testing.T) {
		created := createLeadChain(t, s)
		createLeadChain(t, s)

		rec := doJSON(t, s, http.MethodPut, "/api/chains/current", map[string]any{"id": created.ID})
		require.Equal(t, http.StatusOK, rec.Code)
		var c chainBody
		decodeBody(t, rec, &c)
		require.Equal(t, created.ID, c.ID)

		rec = doJSON(t, s, http.MethodPut, "/api/chains/current", map[string]any{"id": uuid.NewString()})
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Delete", func(t *testing.T) {
		created := createLeadChain(t, s)
		rec := doJSON(t, s, http.MethodDelete, "/api/chains/"+created.ID, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = doJSON(t, s, http.MethodDelete, "/api/chains/"+created.ID, nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestEffectEndpoints(t *testing.T) {
	s := newTestServer(t)
	created := createLeadChain(t, s)
	boostID := created.Effects[0].ID

	t.Run("AddEffect", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/chains/"+created.ID+"/effects", map[string]any{
			"type": "DELAY", "parameters": map[string]any{"delay_seconds": 0.5},
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("AddEffectBadKind", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/chains/"+created.ID+"/effects", map[string]any{
			"type": "FLANGER", "parameters": map[string]any{},
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("GetParameters", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, "/api/effects/"+boostID+"/parameters", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var info map[string]struct {
			Value    any     `json:"value"`
			MinValue float64 `json:"min_value"`
			MaxValue float64 `json:"max_value"`
		}
		decodeBody(t, rec, &info)
		require.Equal(t, 6.0, info["gain_db"].Value)
		require.Equal(t, 30.0, info["gain_db"].MaxValue)
	})

	t.Run("UpdateParameters", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPatch, "/api/effects/"+boostID+"/parameters", map[string]any{"gain_db": 12.0})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, s, http.MethodPatch, "/api/effects/"+boostID+"/parameters", map[string]any{"gain_db": 99.0})
		require.Equal(t, http.StatusBadRequest, rec.Code)

		rec = doJSON(t, s, http.MethodPatch, "/api/effects/"+uuid.NewString()+"/parameters", map[string]any{"gain_db": 1.0})
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Bypass", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/effects/"+boostID+"/bypass", map[string]any{"bypassed": true})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, s, http.MethodPost, "/api/effects/"+boostID+"/bypass", map[string]any{})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Reorder", func(t *testing.T) {
		chain := createLeadChain(t, s)
		rec := doJSON(t, s, http.MethodPut, "/api/chains/"+chain.ID+"/reorder", map[string]any{
			"effect_ids": []string{chain.Effects[1].ID, chain.Effects[0].ID},
		})
		require.Equal(t, http.StatusOK, rec.Code)
		var c chainBody
		decodeBody(t, rec, &c)
		require.Equal(t, "DISTORTION", c.Effects[0].Type)

		rec = doJSON(t, s, http.MethodPut, "/api/chains/"+chain.ID+"/reorder", map[string]any{
			"effect_ids": []string{chain.Effects[0].ID},
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("RemoveEffect", func(t *testing.T) {
		chain := createLeadChain(t, s)
		rec := doJSON(t, s, http.MethodDelete, "/api/chains/"+chain.ID+"/effects/"+chain.Effects[0].ID, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = doJSON(t, s, http.MethodDelete, "/api/chains/"+chain.ID+"/effects/"+chain.Effects[0].ID, nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func savePreset(t *testing.T, s *Server, name string, tags []string) string {
	t.Helper()
	rec := doJSON(t, s, http.MethodPost, "/api/presets", map[string]any{
		"name": name,
		"tags": tags,
		"effects_chain_config": map[string]any{
			"name": "Lead",
			"effects": []map[string]any{
				{"type": "BOOST", "parameters": map[string]any{"gain_db": 6.0, "tone": 0.6}},
				{"type": "DISTORTION", "parameters": map[string]any{"drive_db": 15.0}},
			},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var body struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &body)
	return body.ID
}

func TestPresetEndpoints(t *testing.T) {
	s := newTestServer(t)

	t.Run("SaveAndGet", func(t *testing.T) {
		id := savePreset(t, s, "My Lead", []string{"rock"})

		rec := doJSON(t, s, http.MethodGet, "/api/presets/"+id, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		decodeBody(t, rec, &body)
		require.Equal(t, "My Lead", body["name"])
		require.Contains(t, body, "effects_chain_config")
	})

	t.Run("DuplicateNameConflicts", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/presets", map[string]any{
			"name": "My Lead",
			"effects_chain_config": map[string]any{
				"name": "Lead", "effects": []map[string]any{},
			},
		})
		require.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("MissingChainConfig", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/presets", map[string]any{"name": "No Config"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("ListWithFilters", func(t *testing.T) {
		savePreset(t, s, "Ambient Pad", []string{"ambient"})

		rec := doJSON(t, s, http.MethodGet, "/api/presets?tags=rock", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var summaries []map[string]any
		decodeBody(t, rec, &summaries)
		require.Len(t, summaries, 1)
		require.Equal(t, "My Lead", summaries[0]["name"])

		rec = doJSON(t, s, http.MethodGet, "/api/presets?search=pad", nil)
		decodeBody(t, rec, &summaries)
		require.Len(t, summaries, 1)
		require.Equal(t, "Ambient Pad", summaries[0]["name"])
	})

	t.Run("Patch", func(t *testing.T) {
		id := savePreset(t, s, "Patchable", nil)
		rec := doJSON(t, s, http.MethodPatch, "/api/presets/"+id, map[string]any{"description": "warmer"})
		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		decodeBody(t, rec, &body)
		require.Equal(t, "warmer", body["description"])

		rec = doJSON(t, s, http.MethodPatch, "/api/presets/"+id, map[string]any{"name": "My Lead"})
		require.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("Delete", func(t *testing.T) {
		id := savePreset(t, s, "Disposable", nil)
		rec := doJSON(t, s, http.MethodDelete, "/api/presets/"+id, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = doJSON(t, s, http.MethodGet, "/api/presets/"+id, nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("LoadInstallsChainNamedAfterPreset", func(t *testing.T) {
		id := savePreset(t, s, "Stage Lead", []string{"rock"})

		rec := doJSON(t, s, http.MethodPost, "/api/presets/"+id+"/load", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var loaded chainBody
		decodeBody(t, rec, &loaded)
		require.Equal(t, "Stage Lead", loaded.Name)
		require.Len(t, loaded.Effects, 2)

		rec = doJSON(t, s, http.MethodGet, "/api/chains/current", nil)
		var current chainBody
		decodeBody(t, rec, &current)
		require.Equal(t, loaded.ID, current.ID)

		// the load is recorded in the app config
		rec = doJSON(t, s, http.MethodGet, "/api/config", nil)
		var cfg struct {
			App struct {
				LastPresetID  string `json:"LastPresetID"`
				RecentPresets []struct {
					Name string `json:"Name"`
				} `json:"RecentPresets"`
			} `json:"App"`
		}
		decodeBody(t, rec, &cfg)
		require.Equal(t, id, cfg.App.LastPresetID)
		require.Equal(t, "Stage Lead", cfg.App.RecentPresets[0].Name)
	})

	t.Run("LoadUnknown", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/presets/"+uuid.NewString()+"/load", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestExportImportEndpoints(t *testing.T) {
	s := newTestServer(t)
	a := savePreset(t, s, "A", nil)
	b := savePreset(t, s, "B", nil)

	rec := doJSON(t, s, http.MethodPost, "/api/presets/export", map[string]any{
		"preset_ids": []string{a, b},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Disposition"), "presets.json")
	bundle := rec.Body.Bytes()

	var records []map[string]any
	require.NoError(t, json.Unmarshal(bundle, &records))
	require.Len(t, records, 2)

	t.Run("EmptyExportRequest", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/presets/export", map[string]any{"preset_ids": []string{}})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("ImportSkipsCollisions", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/presets/import", bytes.NewReader(bundle))
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var result struct {
			Imported int      `json:"imported_count"`
			Skipped  int      `json:"skipped_count"`
			Errors   []string `json:"errors"`
		}
		decodeBody(t, rec, &result)
		require.Equal(t, 0, result.Imported)
		require.Equal(t, 2, result.Skipped)
		require.Empty(t, result.Errors)
	})

	t.Run("ImportWithOverwrite", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/presets/import?overwrite=true", bytes.NewReader(bundle))
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var result struct {
			Imported int `json:"imported_count"`
			Skipped  int `json:"skipped_count"`
		}
		decodeBody(t, rec, &result)
		require.Equal(t, 2, result.Imported)
		require.Equal(t, 0, result.Skipped)
	})

	t.Run("ImportBadContainer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/presets/import", bytes.NewReader([]byte(`{"nope":1}`)))
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestStatusEndpoints(t *testing.T) {
	s := newTestServer(t)
	createLeadChain(t, s)

	t.Run("EngineStatus", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, "/api/engine/status", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var st struct {
			Running     bool   `json:"running"`
			ChainName   string `json:"chain_name"`
			EffectCount int    `json:"effect_count"`
		}
		decodeBody(t, rec, &st)
		require.False(t, st.Running)
		require.Equal(t, "Lead", st.ChainName)
		require.Equal(t, 2, st.EffectCount)
	})

	t.Run("Stats", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, "/api/stats", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var stats struct {
			TotalChains int            `json:"total_chains"`
			CurrentName string         `json:"current_chain_name"`
			Types       map[string]int `json:"effect_types_in_current_chain"`
		}
		decodeBody(t, rec, &stats)
		require.Equal(t, 2, stats.TotalChains)
		require.Equal(t, "Lead", stats.CurrentName)
		require.Equal(t, 1, stats.Types["BOOST"])
	})
}
