// Package api provides the HTTP API server and dashboard for newswatch.
//
// It exposes endpoints for running portfolio analyses, reading the
// latest result, checking backend connectivity, and WebSocket progress
// streaming.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/newswatch/internal/analyzer"
	"github.com/seenimoa/newswatch/internal/config"
	"github.com/seenimoa/newswatch/internal/llm"
	"github.com/seenimoa/newswatch/internal/scrape"
	"github.com/seenimoa/newswatch/internal/search"
	"github.com/seenimoa/newswatch/internal/tracker"
	"github.com/seenimoa/newswatch/pkg/models"
)

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	cfg     *config.Config
	tracker *tracker.Tracker
	wsHub   *WSHub
	log     *logrus.Logger

	mu   sync.RWMutex
	last *models.AnalysisResult
}

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewServer wires the full pipeline behind an API server. A missing
// LLM configuration is not fatal; analyses then run on the keyword
// fallback.
func NewServer(cfg *config.Config, log *logrus.Logger) (*Server, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	searcher, err := search.New(cfg)
	if err != nil {
		return nil, err
	}

	var provider llm.Provider
	router, err := llm.NewRouterFromConfig(cfg)
	switch {
	case err == nil:
		provider = router
	case errors.Is(err, llm.ErrNoProviders):
		log.Warn("no LLM providers configured, analyses will use the keyword fallback")
	default:
		return nil, err
	}

	scraper := scrape.New(cfg, searcher, nil, log)
	an := analyzer.NewFromConfig(cfg, provider, log)
	tr := tracker.New(cfg, scraper, an, log)
	tr.RegisterPinger("search", searcher)
	if router != nil {
		tr.RegisterPinger("llm", router)
	}

	return NewServerWithTracker(cfg, tr, log), nil
}

// NewServerWithTracker builds a server around an existing tracker.
// Tests use it to inject stub pipelines.
func NewServerWithTracker(cfg *config.Config, tr *tracker.Tracker, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	srv := &Server{
		cfg:     cfg,
		tracker: tr,
		wsHub:   NewWSHub(),
		log:     log,
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server with graceful shutdown.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // analyses can be slow
		IdleTimeout:  60 * time.Second,
	}

	go s.wsHub.Run()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-done:
	}
	s.log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return httpSrv.Shutdown(ctx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))

	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/results/latest", s.handleLatestResult)
		r.Get("/status", s.handleStatus)
		r.Get("/config/keys", s.handleConfigKeys)
		r.Get("/ws", s.handleWebSocket)
	})

	r.Get("/", s.handleDashboard)

	return r
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]any{
			"status":  "ok",
			"clients": s.wsHub.ClientCount(),
		},
	})
}

// AnalyzeRequest is the body of POST /api/v1/analyze.
type AnalyzeRequest struct {
	Assets   []string `json:"assets"`
	Articles int      `json:"articles,omitempty"`
	Days     int      `json:"days,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	res, err := s.tracker.AnalyzePortfolio(r.Context(), tracker.Request{
		Assets:      req.Assets,
		MaxArticles: req.Articles,
		DaysBack:    req.Days,
		Progress: func(asset, stage string, n int) {
			s.wsHub.Broadcast(WSMessage{
				Type: "progress",
				Data: map[string]any{"asset": asset, "stage": stage, "count": n},
			})
		},
	})
	if err != nil {
		var verr *tracker.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.mu.Lock()
	s.last = res
	s.mu.Unlock()

	s.wsHub.Broadcast(WSMessage{Type: "complete", Data: res.Stats()})
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: res})
}

func (s *Server) handleLatestResult(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()

	if last == nil {
		writeError(w, http.StatusNotFound, "no analysis has been run yet")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: last})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	results := s.tracker.TestConnectivity(r.Context())
	out := make(map[string]string, len(results))
	healthy := true
	for name, err := range results {
		if err != nil {
			out[name] = err.Error()
			healthy = false
		} else {
			out[name] = "ok"
		}
	}
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, APIResponse{Success: healthy, Data: out})
}

func (s *Server) handleConfigKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    config.CheckAPIKeys(s.cfg),
	})
}

// --- Response Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("failed to write JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
