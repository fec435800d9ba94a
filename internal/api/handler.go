// internal/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	apperrors "github-repo-etl/internal/errors"
	"github-repo-etl/internal/model"
)

// CacheReader reads mirrored relations.
type CacheReader interface {
	Get(ctx context.Context, key string, dst any) error
}

// ReportQuerier recomputes the joined report from the relational store.
type ReportQuerier interface {
	QueryJoinedReport(ctx context.Context) ([]model.ReportRow, error)
}

// Handler is the container for API dependencies.
type Handler struct {
	cache  CacheReader
	db     ReportQuerier
	logger *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(cache CacheReader, db ReportQuerier, logger *slog.Logger) http.Handler {
	h := &Handler{
		cache:  cache,
		db:     db,
		logger: logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger) // Chi's default logger
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// API Routes
	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/repos", h.getRepos)
		r.Get("/owners", h.getOwners)
		r.Get("/report", h.getReport)
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getRepos returns the cached repos relation.
// GET /v1/repos
func (h *Handler) getRepos(w http.ResponseWriter, r *http.Request) {
	var repos model.Repositories
	if h.readCache(w, r, model.ReposTable, &repos) {
		respondWithJSON(w, http.StatusOK, repos)
	}
}

// getOwners returns the cached owners relation.
// GET /v1/owners
func (h *Handler) getOwners(w http.ResponseWriter, r *http.Request) {
	var owners model.Owners
	if h.readCache(w, r, model.OwnersTable, &owners) {
		respondWithJSON(w, http.StatusOK, owners)
	}
}

// getReport returns the cached report, recomputing it from the database when
// the cache has no usable copy.
// GET /v1/report
func (h *Handler) getReport(w http.ResponseWriter, r *http.Request) {
	var report []model.ReportRow
	err := h.cache.Get(r.Context(), model.ResultKey, &report)
	if err == nil {
		w.Header().Set("X-Report-Source", "cache")
		respondWithJSON(w, http.StatusOK, report)
		return
	}
	h.logger.Warn("Cached report unavailable, querying database", "error", err)

	report, err = h.db.QueryJoinedReport(r.Context())
	if err != nil {
		h.logger.Error("Failed to query report", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	w.Header().Set("X-Report-Source", "database")
	respondWithJSON(w, http.StatusOK, report)
}

// readCache loads key into dst and writes an error response when it cannot.
func (h *Handler) readCache(w http.ResponseWriter, r *http.Request, key string, dst any) bool {
	err := h.cache.Get(r.Context(), key, dst)
	if err == nil {
		return true
	}
	var miss *apperrors.CacheMissError
	if errors.As(err, &miss) {
		respondWithError(w, http.StatusNotFound, "No cached data for "+key)
		return false
	}
	h.logger.Error("Failed to read cache", "key", key, "error", err)
	respondWithError(w, http.StatusServiceUnavailable, "Cache unavailable")
	return false
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
