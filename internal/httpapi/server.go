// Package httpapi exposes the stock analysis service over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rewired-gh/bandarscope/internal/analysis"
	"github.com/rewired-gh/bandarscope/internal/logger"
	"github.com/rewired-gh/bandarscope/internal/models"
)

const (
	defaultHistoryLimit = 30
	maxHistoryLimit     = 365
	maxBodyBytes        = 1 << 16
)

// Analyzer computes targets for a query.
type Analyzer interface {
	Analyze(ctx context.Context, q models.Query) (*models.Result, error)
}

// HistoryReader lists stored records for a ticker.
type HistoryReader interface {
	ListStockQueries(ctx context.Context, emiten string, limit int) ([]*models.StockQuery, error)
}

// Config holds listener settings.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server serves the stock API.
type Server struct {
	analyzer Analyzer
	history  HistoryReader
	config   Config
}

// envelope is the response body shape shared by every endpoint.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewServer creates a new API server.
func NewServer(analyzer Analyzer, history HistoryReader, config Config) *Server {
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 5 * time.Second
	}
	return &Server{analyzer: analyzer, history: history, config: config}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/stock", s.handleStock)
	mux.HandleFunc("GET /api/stock/{emiten}/history", s.handleHistory)
	mux.HandleFunc("GET /healthz", s.handleHealth)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP shutdown: %v", err)
		}
	}()

	logger.Info("HTTP server listening on %s", s.config.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	var q models.Query
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	start := time.Now()
	result, err := s.analyzer.Analyze(r.Context(), q)
	if err != nil {
		status := statusFor(err)
		switch status {
		case http.StatusInternalServerError:
			logger.Error("Analyze %s %s..%s failed: %v", q.Emiten, q.FromDate, q.ToDate, err)
		default:
			logger.Info("Analyze %s %s..%s: %v", q.Emiten, q.FromDate, q.ToDate, err)
		}
		writeError(w, status, err.Error())
		return
	}

	logger.L().Debugw("analyze done",
		"emiten", result.Input.Emiten,
		"from", q.FromDate,
		"to", q.ToDate,
		"fromHistory", result.FromHistory(),
		"elapsed", time.Since(start),
	)
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: result})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	emiten := strings.ToUpper(strings.TrimSpace(r.PathValue("emiten")))
	if emiten == "" {
		writeError(w, http.StatusBadRequest, "emiten is required")
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := s.history.ListStockQueries(r.Context(), emiten, limit)
	if err != nil {
		logger.Error("List history for %s failed: %v", emiten, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: records})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps a query error to its HTTP status.
func statusFor(err error) int {
	switch {
	case models.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, analysis.ErrNoBrokerData):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Encoding JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: msg})
}
