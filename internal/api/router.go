package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/emberhollow/sessiond/internal/api/middleware"
	"github.com/emberhollow/sessiond/internal/api/response"
	"github.com/emberhollow/sessiond/internal/coordinator"
	"github.com/emberhollow/sessiond/internal/model"
	"github.com/emberhollow/sessiond/internal/storage"
)

// RouterConfig holds configuration for the diagnostic API router
type RouterConfig struct {
	Logger      *slog.Logger
	Coordinator *coordinator.Coordinator
	Repository  storage.Repository
}

// NewRouter creates the diagnostic API router. Every endpoint is read-only;
// the only side effect of a request is logging.
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	h := &diagHandler{
		coordinator: cfg.Coordinator,
		repository:  cfg.Repository,
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Recovery(cfg.Logger))
	api.Use(middleware.Logging(cfg.Logger))

	api.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	api.HandleFunc("/diag/dump", h.Dump).Methods(http.MethodGet)
	api.HandleFunc("/diag/player/{id}", h.Player).Methods(http.MethodGet)

	return r
}

type diagHandler struct {
	coordinator *coordinator.Coordinator
	repository  storage.Repository
}

// Health reports liveness and the repository handshake state
func (h *diagHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	repoReady := h.repository.Ready()
	if !repoReady {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, status, map[string]any{
		"status":           "ok",
		"repository_ready": repoReady,
	})
}

// Dump returns every player's state, phase, coordination flags and the
// cumulative counters
func (h *diagHandler) Dump(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.coordinator.Diagnostics())
}

// Player returns the diagnostic view for one player
func (h *diagHandler) Player(w http.ResponseWriter, r *http.Request) {
	id, err := model.ParsePlayerID(mux.Vars(r)["id"])
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid player id")
		return
	}

	diag, ok := h.coordinator.PlayerDiagnostics(id)
	if !ok {
		response.Error(w, http.StatusNotFound, "player is offline")
		return
	}
	response.JSON(w, http.StatusOK, diag)
}
