package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/feamster/pedalboard-effects/internal/config"
	"github.com/feamster/pedalboard-effects/internal/manager"
	"github.com/feamster/pedalboard-effects/internal/render"
	"github.com/feamster/pedalboard-effects/internal/store"
)

// Config holds server configuration
type Config struct {
	Port       int
	PresetsDir string
	ConfigDir  string
}

// Server is the HTTP surface a UI or CLI front end talks to. Every manager
// and store operation is exposed as a JSON endpoint; no other mutation path
// exists.
type Server struct {
	config  Config
	router  *chi.Mux
	logger  *slog.Logger
	manager *manager.Manager
	store   *store.Store
	configs *config.Service
	engine  *render.Engine
}

// New creates a new server with its own manager, store, config service and
// pass-through render engine
func New(cfg Config) (*Server, error) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	configs, err := config.Open(cfg.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	st, err := store.Open(cfg.PresetsDir, logger)
	if err != nil {
		return nil, fmt.Errorf("open preset store: %w", err)
	}

	engine := render.NewEngine()
	s := &Server{
		config:  cfg,
		router:  chi.NewRouter(),
		logger:  logger,
		manager: manager.New(engine, logger),
		store:   st,
		configs: configs,
		engine:  engine,
	}

	s.setupRoutes()
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/chains", func(r chi.Router) {
			r.Get("/", s.handleListChains)
			r.Post("/", s.handleCreateChain)
			r.Get("/current", s.handleCurrentChain)
			r.Put("/current", s.handleSetCurrentChain)
			r.Get("/{id}", s.handleGetChain)
			r.Patch("/{id}", s.handleUpdateChain)
			r.Delete("/{id}", s.handleDeleteChain)
			r.Post("/{id}/effects", s.handleAddEffect)
			r.Delete("/{id}/effects/{effectID}", s.handleRemoveEffect)
			r.Put("/{id}/reorder", s.handleReorderEffects)
		})

		r.Route("/effects/{id}", func(r chi.Router) {
			r.Get("/parameters", s.handleGetParameters)
			r.Patch("/parameters", s.handleUpdateParameters)
			r.Post("/bypass", s.handleBypass)
		})

		r.Route("/presets", func(r chi.Router) {
			r.Get("/", s.handleListPresets)
			r.Post("/", s.handleSavePreset)
			r.Post("/export", s.handleExportPresets)
			r.Post("/import", s.handleImportPresets)
			r.Get("/{id}", s.handleGetPreset)
			r.Patch("/{id}", s.handleUpdatePreset)
			r.Delete("/{id}", s.handleDeletePreset)
			r.Post("/{id}/load", s.handleLoadPreset)
		})

		r.Get("/engine/status", s.handleEngineStatus)
		r.Get("/stats", s.handleStats)
		r.Get("/config", s.handleGetConfig)
	})
}

// Run starts the server
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		s.logger.Info("shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", slog.Any("error", err))
		}
		close(done)
	}()

	s.logger.Info("server starting", slog.Int("port", s.config.Port))
	fmt.Printf("\n  pedalboard API running at: http://localhost:%d\n\n", s.config.Port)

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}

	<-done
	return nil
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler {
	return s.router
}
