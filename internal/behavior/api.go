package behavior

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pkallio/vigil-platform/internal/behavior/patterns"
	"github.com/pkallio/vigil-platform/internal/behavior/types"
)

// ResultArchive is the durable result store the API reads past results from
type ResultArchive interface {
	Recent(ctx context.Context, limit int) ([]types.Result, error)
}

// API exposes behavior analysis state over HTTP
type API struct {
	analyzer *Analyzer
	store    *patterns.Store
	archive  ResultArchive
	logger   *slog.Logger
}

// NewAPI creates the behavior HTTP API
func NewAPI(analyzer *Analyzer, store *patterns.Store, archive ResultArchive, logger *slog.Logger) *API {
	return &API{analyzer: analyzer, store: store, archive: archive, logger: logger}
}

// Routes registers the API handlers on a fresh mux
func (api *API) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/behavior/latest", api.handleLatest)
	mux.HandleFunc("GET /api/behavior/recent", api.handleRecent)
	mux.HandleFunc("GET /api/behavior/by-type", api.handleByType)
	mux.HandleFunc("GET /api/behavior/archive", api.handleArchive)
	mux.HandleFunc("GET /api/patterns", api.handlePatterns)
	mux.HandleFunc("POST /api/analyze", api.handleAnalyze)
	mux.HandleFunc("POST /api/patterns/reload", api.handleReload)
	return mux
}

func (api *API) handleLatest(w http.ResponseWriter, r *http.Request) {
	result, ok := api.analyzer.Latest()
	if !ok {
		api.writeError(w, http.StatusNotFound, "no analysis has run yet")
		return
	}
	api.writeJSON(w, http.StatusOK, result)
}

func (api *API) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			api.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	api.writeJSON(w, http.StatusOK, api.analyzer.Recent(limit))
}

func (api *API) handleByType(w http.ResponseWriter, r *http.Request) {
	behavior := r.URL.Query().Get("type")
	if behavior == "" {
		api.writeError(w, http.StatusBadRequest, "type query parameter is required")
		return
	}
	api.writeJSON(w, http.StatusOK, api.analyzer.ByType(types.BehaviorType(behavior)))
}

func (api *API) handleArchive(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			api.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	results, err := api.archive.Recent(r.Context(), limit)
	if err != nil {
		api.logger.Error("Failed to read behavior archive", "error", err)
		api.writeError(w, http.StatusInternalServerError, "archive query failed")
		return
	}
	api.writeJSON(w, http.StatusOK, results)
}

func (api *API) handlePatterns(w http.ResponseWriter, r *http.Request) {
	api.writeJSON(w, http.StatusOK, api.store.All())
}

func (api *API) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	result := api.analyzer.Analyze()
	api.writeJSON(w, http.StatusOK, result)
}

func (api *API) handleReload(w http.ResponseWriter, r *http.Request) {
	count, err := api.store.Reload()
	if err != nil {
		api.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]int{"patterns": count})
}

func (api *API) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		api.logger.Error("Failed to encode API response", "error", err)
	}
}

func (api *API) writeError(w http.ResponseWriter, status int, message string) {
	api.writeJSON(w, status, map[string]string{"error": message})
}
