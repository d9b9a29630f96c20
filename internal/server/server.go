package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rankline/seo-cli/internal/config"
	"github.com/rankline/seo-cli/internal/pipeline"
	"github.com/rankline/seo-cli/internal/quota"
	"github.com/rankline/seo-cli/internal/store"
)

// Server exposes each pipeline stage as an independent HTTP operation plus
// read access to persisted run artifacts.
type Server struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	store    store.Store
	gate     *quota.Gate
	limiter  *keyedLimiter
}

// New builds a Server. The store may be nil (run artifact routes then
// return 500 as unconfigured); the gate may be nil (quota checks pass).
func New(cfg *config.Config, p *pipeline.Pipeline, st store.Store, gate *quota.Gate) *Server {
	if gate == nil {
		gate = quota.NewGate(nil)
	}
	rps := cfg.Server.RatePerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Server.RateBurst
	if burst <= 0 {
		burst = 10
	}
	return &Server{
		cfg:      cfg,
		pipeline: p,
		store:    st,
		gate:     gate,
		limiter:  newKeyedLimiter(rps, burst),
	}
}

// Router assembles the chi route tree with CORS, identity and rate-limit
// middleware applied to every API route.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(identityMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.rateLimitMiddleware)

		r.Post("/scrape", s.handleScrape)
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/search", s.handleSearch)
		r.Post("/generate", s.handleGenerate)
		r.Post("/compare", s.handleCompare)

		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Delete("/runs/{id}", s.handleDeleteRun)
	})

	return r
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server: shutdown", zap.Error(err))
		}
	}()

	zap.L().Info("server: listening", zap.Int("port", s.cfg.Server.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}
