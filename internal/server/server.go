// internal/server/server.go - HTTP status API over the output tree
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/valpere/LeadScrapexter/internal/errors"
	"github.com/valpere/LeadScrapexter/internal/monitoring"
	"github.com/valpere/LeadScrapexter/internal/output"
	"github.com/valpere/LeadScrapexter/internal/utils"
)

// Backend is the part of the client the API exposes
type Backend interface {
	Files(pattern string) ([]string, error)
	Statistics(pattern string) (*output.Statistics, error)
	Merge(opts output.MergeOptions) (*output.MergeResult, error)
}

// Config configures the server
type Config struct {
	Addr string
	// RequestsPerSecond limits the API routes; zero disables limiting
	RequestsPerSecond float64
	Burst             int
	ShutdownTimeout   time.Duration
}

// Server serves health, metrics and merge endpoints
type Server struct {
	config  Config
	backend Backend
	health  *monitoring.HealthManager
	metrics *monitoring.MetricsManager
	logger  utils.Logger
	router  *mux.Router
	limiter *rate.Limiter
	// merges write into the shared output root and must not overlap
	mergeMu sync.Mutex
}

// New creates a server and registers its routes
func New(config Config, backend Backend, health *monitoring.HealthManager, metrics *monitoring.MetricsManager, logger utils.Logger) *Server {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{
		config:  config,
		backend: backend,
		health:  health,
		metrics: metrics,
		logger:  logger,
	}
	if config.RequestsPerSecond > 0 {
		burst := config.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)

	if s.health != nil {
		r.HandleFunc("/health", s.health.HealthHandler()).Methods(http.MethodGet)
	}
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.MetricsHandler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(s.rateLimitMiddleware)
	api.HandleFunc("/statistics", s.handleStatistics).Methods(http.MethodGet)
	api.HandleFunc("/files", s.handleFiles).Methods(http.MethodGet)
	api.HandleFunc("/merge", s.handleMerge).Methods(http.MethodPost)

	return r
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.config.Addr).Info("status server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		s.logger.Info("status server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.backend.Statistics(r.URL.Query().Get("pattern"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.backend.Files(r.URL.Query().Get("pattern"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if files == nil {
		files = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"files": files,
		"total": len(files),
	})
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var opts output.MergeOptions
	if r.ContentLength != 0 {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&opts); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid merge options: %v", err)})
			return
		}
	}

	if !s.mergeMu.TryLock() {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "a merge is already running"})
		return
	}
	defer s.mergeMu.Unlock()

	result, err := s.backend.Merge(opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := errors.KindOf(err)
	switch {
	case stderrors.Is(err, output.ErrNoCSVFiles):
		status = http.StatusNotFound
	case kind == errors.KindMergeRead:
		status = http.StatusUnprocessableEntity
	case kind == errors.KindConfig:
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Errorf("request failed: %v", err)
	}
	resp := errorResponse{Error: err.Error()}
	if kind != errors.KindUnknown {
		resp.Kind = kind.String()
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if m := mux.CurrentRoute(r); m != nil {
			if tpl, err := m.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.metrics.ObserveOperation("http"+route, time.Since(start))
		s.logger.WithFields(map[string]interface{}{
			"method":   r.Method,
			"path":     route,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Debug("request served")
	})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
