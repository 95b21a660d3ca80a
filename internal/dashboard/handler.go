// internal/dashboard/handler.go
package dashboard

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"bloodbank/internal/httpx"
	"bloodbank/internal/session"
)

type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/dashboard/stats", h.handleStats)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	sess, err := session.FromContext(r.Context())
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	requested, err := httpx.QueryUUID(r, "hospital_id")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	hospitalID, err := sess.ScopeHospital(requested)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	stats, err := h.service.Stats(r.Context(), hospitalID)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stats)
}
