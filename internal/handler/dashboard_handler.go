package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/service"
)

type DashboardHandler struct {
	evalSvc *service.EvaluationService
}

func NewDashboardHandler(evalSvc *service.EvaluationService) *DashboardHandler {
	return &DashboardHandler{evalSvc: evalSvc}
}

func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.evalSvc.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, "", stats)
}

// Pinger is satisfied by *db.DB.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

// NewHealthHandler reports healthy without checking anything when db is nil.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"success": false,
				"message": "Database unavailable",
				"error":   err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "ok"})
}
