package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"goldenbatch/internal/artifact"
	"goldenbatch/internal/config"
	"goldenbatch/internal/llm"
	"goldenbatch/internal/logging"
	"goldenbatch/internal/metrics"
	"goldenbatch/internal/service"
	"goldenbatch/internal/state"
)

const shutdownTimeout = 10 * time.Second

// Server runs the HTTP API and keeps the artifact bundle current.
type Server struct {
	cfg     *config.Config
	paths   artifact.Paths
	store   *state.Store
	metrics *metrics.Metrics
	handler *Handler
	router  http.Handler
	logger  *slog.Logger
}

func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	if !cfg.Metrics.Enabled {
		m = nil
	}

	s := &Server{
		cfg:     cfg,
		paths:   cfg.Artifacts.Paths(),
		store:   state.NewStore(),
		metrics: m,
		logger:  logger.With("component", "server"),
	}

	var narrator Narrator
	if cfg.LLM.Enabled {
		narrator = llm.NewService(cfg.LLM.LLM())
	}

	var history service.DataSourceConfig
	if cfg.History.Source != "csv" || cfg.History.Path != "" {
		history = cfg.History.DataSource()
	}

	s.handler = NewHandler(Options{
		Store:       s.store,
		Analyzer:    service.NewAnalyzer(cfg.Analysis.DeviationEngine()),
		Reload:      s.LoadArtifacts,
		Narrator:    narrator,
		Metrics:     m,
		MetricsPath: cfg.Metrics.Path,
		CacheTTL:    cfg.Server.CacheTTL,
		Logger:      logger,
		History:     history,
		Builder:     cfg.Training.SignatureBuilder(logger),
		Clusters:    cfg.Training.Clusters,
	})
	s.router = NewRouter(s.handler, cfg.Server.CORSOrigins, logger)
	return s, nil
}

// NewRouter mounts the API routes behind the standard middleware stack.
func NewRouter(h *Handler, origins []string, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("GoldenBatch API is running"))
	})

	h.RegisterRoutes(r)
	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Store exposes the artifact holder.
func (s *Server) Store() *state.Store { return s.store }

// LoadArtifacts reads the artifact directory and installs the bundle. On
// failure the previous bundle stays active.
func (s *Server) LoadArtifacts() error {
	b, err := s.store.Reload(func() (*artifact.Bundle, error) {
		return artifact.LoadBundle(s.paths)
	})
	s.metrics.RecordReload(err)
	if err != nil {
		cur, _ := s.store.Current()
		s.metrics.SetArtifactsLoaded(cur != nil)
		return err
	}
	s.metrics.SetArtifactsLoaded(true)
	s.logger.Info("artifacts loaded",
		"signature", b.Signature.Version,
		"quality_model", b.Quality.ID,
		"risk_model", b.Risk.ID,
		"golden_cluster", b.GoldenCluster())
	return nil
}

// Run serves until ctx is cancelled. Missing artifacts at startup are not
// fatal: analysis answers 503 until a reload succeeds.
func (s *Server) Run(ctx context.Context) error {
	if err := s.LoadArtifacts(); err != nil {
		s.logger.Warn("starting without artifacts", "dir", s.paths.Dir, "error", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	if s.cfg.Artifacts.Watch {
		w, err := artifact.NewWatcher(s.paths, func() {
			if err := s.LoadArtifacts(); err != nil {
				s.logger.Error("artifact reload failed", "error", err)
			}
		}, s.logger)
		if err != nil {
			return fmt.Errorf("artifact watcher: %w", err)
		}
		defer w.Close()
		g.Go(func() error {
			if err := w.Start(ctx); err != nil {
				s.logger.Warn("artifact watcher stopped", "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		s.logger.Info("listening", "addr", srv.Addr, "cors", s.cfg.Server.CORSOrigins)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
