// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/msci/internal/app"
	"github.com/okian/msci/internal/domain/crawler"
	"github.com/okian/msci/internal/domain/types"
	"github.com/okian/msci/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	WordFrequency(ctx context.Context, article string, depth int) (types.WordCounts, error)
	Keywords(ctx context.Context, article string, depth int, ignore []string, percentile *int) (types.WordCounts, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	wordFreqHandler *WordFrequencyHandler
	keywordsHandler *KeywordsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	log := logger.Get().Named("api")
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		wordFreqHandler: &WordFrequencyHandler{deps: deps, logger: log},
		keywordsHandler: &KeywordsHandler{deps: deps, logger: log},
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/word-frequency", MetricsMiddleware(s.wordFreqHandler.HandleGet, "word_frequency"))
	mux.HandleFunc("/keywords", MetricsMiddleware(s.keywordsHandler.HandlePost, "keywords"))
}

// errorResponse is the body of every failed request:
// {"detail": {"code": "...", "message": "..."}}.
type errorResponse struct {
	Detail errorDetail `json:"detail"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = publicMessage(err)
	}
	writeJSON(w, status, errorResponse{Detail: errorDetail{Code: code, Message: msg}})
}

// writeServiceError maps a service failure to its HTTP status.
func writeServiceError(ctx context.Context, w http.ResponseWriter, log logger.Logger, op string, err error) {
	var jobErr *service.JobError
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, "validation_error", WrapKind(op, ErrValidation, err))
	case errors.As(err, &jobErr):
		writeError(w, http.StatusInternalServerError, "wiki_error", jobErr)
	case errors.Is(err, crawler.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
	case errors.Is(err, crawler.ErrJobTimeout):
		writeError(w, http.StatusGatewayTimeout, "timeout", NewKind(op, ErrTimeout))
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "unavailable", NewKind(op, ErrUnavailable))
	default:
		log.Error(ctx, "request failed", logger.String("op", op), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", NewKind(op, ErrInternal))
	}
}
