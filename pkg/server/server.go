// Package server is the HTTP boundary: it parses requests, runs them through
// the usage gate, invokes generation and rendering, and maps the error
// taxonomy onto distinct response statuses.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/easygo-cv/cvforge/pkg/cache"
	"github.com/easygo-cv/cvforge/pkg/config"
	"github.com/easygo-cv/cvforge/pkg/gate"
	"github.com/easygo-cv/cvforge/pkg/genai"
	"github.com/easygo-cv/cvforge/pkg/render"
	"github.com/easygo-cv/cvforge/pkg/tracker"
)

// Operation names used for fingerprinting and usage records, with their
// declared token costs.
const (
	OpSuggestions   = "cv/suggestions"
	OpOptimize      = "cv/optimize"
	OpGenerate      = "cv/generate"
	OpGeneratePlain = "cv/generate-without-optimization"

	CostSuggestions   = 1
	CostOptimize      = 2
	CostGenerate      = 2
	CostGeneratePlain = 1
)

// Server is the cvforge API server.
type Server struct {
	cfg      *config.Config
	gate     *gate.Gate
	genai    *genai.Service
	client   *genai.Client
	renderer render.Renderer
	cache    *cache.Cache
	tracker  tracker.Tracker
	ingress  *ingressLimiter
	mux      *http.ServeMux
}

// New creates a Server wired with all dependencies. tracker may be nil to
// disable usage records.
func New(cfg *config.Config, g *gate.Gate, svc *genai.Service, client *genai.Client, r render.Renderer, c *cache.Cache, tr tracker.Tracker) *Server {
	s := &Server{
		cfg:      cfg,
		gate:     g,
		genai:    svc,
		client:   client,
		renderer: r,
		cache:    c,
		tracker:  tr,
		ingress:  newIngressLimiter(cfg.Ingress.RPS, cfg.Ingress.Burst),
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /", s.handleRoot)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/user/tokens", s.handleUserTokens)
	s.mux.HandleFunc("GET /api/system/stats", s.handleSystemStats)
	s.mux.HandleFunc("POST /api/admin/credit", s.handleCredit)
	s.mux.HandleFunc("POST /api/cv/suggestions", s.handleSuggestions)
	s.mux.HandleFunc("POST /api/cv/optimize", s.handleOptimize)
	s.mux.HandleFunc("POST /api/cv/generate", s.handleGenerate)
	s.mux.HandleFunc("POST /api/cv/generate-without-optimization", s.handleGeneratePlain)

	return s
}

// ServeHTTP implements http.Handler with CORS and ingress limiting applied.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.corsMiddleware(s.ingressMiddleware(s.mux)).ServeHTTP(w, r)
}

// ListenAndServe starts the server with graceful shutdown and a background
// sweep of expired cache entries.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Listen,
		Handler: s,
	}

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := s.cache.Sweep(); removed > 0 {
					slog.Debug("swept expired cache entries", "removed", removed)
				}
				s.ingress.cleanup()
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("cvforge api listening", "addr", s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		<-sweepDone
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

// callerID extracts the caller identity header. It is an opaque identifier,
// not authentication.
func callerID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"success":false,"error":{"message":%q,"code":%d}}`, message, code)
}
