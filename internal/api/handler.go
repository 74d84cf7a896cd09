package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nidhogg/crew/internal/cache"
	"github.com/nidhogg/crew/internal/cron"
	"github.com/nidhogg/crew/internal/gateway"
	"github.com/nidhogg/crew/internal/orchestrator"
	"github.com/nidhogg/crew/internal/provider"
	"go.uber.org/zap"
)

// RoundHistory reads persisted round reports.
type RoundHistory interface {
	ListRounds(ctx context.Context, limit int) ([]*orchestrator.Report, error)
	GetRound(ctx context.Context, id string) (*orchestrator.Report, error)
}

// Deps are the collaborators the HTTP surface exposes. Only Steward is
// required.
type Deps struct {
	Steward     *orchestrator.Steward
	Providers   *provider.Router
	History     RoundHistory
	Cache       cache.Cache
	Broadcaster *gateway.Broadcaster
	Events      http.Handler
	Metrics     http.Handler
	Schedules   func() []cron.Entry
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	steward     *orchestrator.Steward
	providers   *provider.Router
	history     RoundHistory
	cache       cache.Cache
	broadcaster *gateway.Broadcaster
	events      http.Handler
	metrics     http.Handler
	schedules   func() []cron.Entry
	logger      *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps, logger *zap.Logger) *Handler {
	return &Handler{
		steward:     deps.Steward,
		providers:   deps.Providers,
		history:     deps.History,
		cache:       deps.Cache,
		broadcaster: deps.Broadcaster,
		events:      deps.Events,
		metrics:     deps.Metrics,
		schedules:   deps.Schedules,
		logger:      logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)
		r.Get("/roster", h.listRoster)
		r.Get("/providers", h.listProviders)

		r.Post("/rounds", h.runRound)
		r.Get("/rounds", h.listRounds)
		r.Get("/rounds/{id}", h.getRound)
		r.Get("/artifact", h.serveArtifact)
		r.Get("/cache", h.getCached)
		r.Get("/schedules", h.listSchedules)

		if h.events != nil {
			r.Handle("/events", h.events)
		}
		r.Get("/events/history", h.eventHistory)
	})

	if h.metrics != nil {
		r.Handle("/metrics", h.metrics)
	}
	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"agents": h.steward.Roster().Len(),
	})
}

func (h *Handler) listRoster(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.steward.Roster().Agents())
}

type providerStatus struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Default bool   `json:"default"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

func (h *Handler) listProviders(w http.ResponseWriter, r *http.Request) {
	out := []providerStatus{}
	if h.providers != nil {
		def := h.providers.DefaultID()
		for _, p := range h.providers.ListProviders() {
			st := providerStatus{ID: p.ID(), Name: p.Name(), Default: p.ID() == def, Healthy: true}
			if err := p.HealthCheck(r.Context()); err != nil {
				st.Healthy = false
				st.Error = err.Error()
			}
			out = append(out, st)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type roundRequest struct {
	Prompt string `json:"prompt"`
}

func (h *Handler) runRound(w http.ResponseWriter, r *http.Request) {
	var req roundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	report, err := h.steward.Run(r.Context(), req.Prompt)
	switch {
	case errors.Is(err, orchestrator.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, report)
	case err != nil:
		h.logger.Error("round failed", zap.String("round", report.RoundID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, report)
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

func (h *Handler) listRounds(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if h.history != nil {
		rounds, err := h.history.ListRounds(r.Context(), limit)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if rounds == nil {
			rounds = []*orchestrator.Report{}
		}
		writeJSON(w, http.StatusOK, rounds)
		return
	}
	rounds := []*orchestrator.Report{}
	if last := h.steward.Last(); last != nil {
		rounds = append(rounds, last)
	}
	writeJSON(w, http.StatusOK, rounds)
}

func (h *Handler) getRound(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.history != nil {
		report, err := h.history.GetRound(r.Context(), id)
		if err == nil {
			writeJSON(w, http.StatusOK, report)
			return
		}
		h.logger.Debug("round lookup failed", zap.String("round", id), zap.Error(err))
	}
	if last := h.steward.Last(); last != nil && last.RoundID == id {
		writeJSON(w, http.StatusOK, last)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "round not found"})
}

func (h *Handler) serveArtifact(w http.ResponseWriter, r *http.Request) {
	path := h.steward.ArtifactPath()
	if _, err := os.Stat(path); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no artifact yet"})
		return
	}
	http.ServeFile(w, r, path)
}

func (h *Handler) getCached(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "cache not configured"})
		return
	}
	prompt := r.URL.Query().Get("prompt")
	if prompt == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing prompt"})
		return
	}
	entry, err := h.cache.Get(r.Context(), prompt)
	if errors.Is(err, cache.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not cached"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"prompt":     entry.Prompt,
		"tag":        entry.Tag,
		"updated_at": entry.UpdatedAt,
		"content":    string(entry.Content),
	})
}

func (h *Handler) listSchedules(w http.ResponseWriter, r *http.Request) {
	entries := []cron.Entry{}
	if h.schedules != nil {
		entries = append(entries, h.schedules()...)
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) eventHistory(w http.ResponseWriter, r *http.Request) {
	events := []gateway.Event{}
	if h.broadcaster != nil {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		events = append(events, h.broadcaster.History(limit)...)
	}
	writeJSON(w, http.StatusOK, events)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
