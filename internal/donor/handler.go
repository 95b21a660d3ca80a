// internal/donor/handler.go
package donor

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"bloodbank/internal/apperr"
	"bloodbank/internal/eligibility"
	"bloodbank/internal/httpx"
)

type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Routes registers the donor routes; deleting a donor requires admin.
func (h *Handler) Routes(r chi.Router, admin func(http.Handler) http.Handler) {
	r.Route("/donors", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleRegister)
		r.Get("/{id}", h.handleGet)
		r.Patch("/{id}", h.handleUpdate)
		r.With(admin).Delete("/{id}", h.handleDelete)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	var filter ListFilter
	var err error
	if filter.BloodType, err = httpx.QueryBloodType(r, "blood_type"); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	if filter.CompatibleWith, err = httpx.QueryBloodType(r, "compatible_with"); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	if raw := r.URL.Query().Get("eligibility"); raw != "" {
		status := eligibility.Status(raw)
		if status != eligibility.StatusEligible && status != eligibility.StatusDeferred {
			httpx.WriteError(w, r, h.logger, apperr.Invalidf("eligibility must be Eligible or Deferred"))
			return
		}
		filter.Eligibility = &status
	}
	filter.Query = r.URL.Query().Get("q")

	donors, err := h.service.ListDonors(r.Context(), filter)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, donors)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	d, err := h.service.RegisterDonor(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, d)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	d, err := h.service.GetDonor(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, d)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	var req UpdateRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	d, err := h.service.UpdateDonor(r.Context(), id, req)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, d)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	if err := h.service.DeleteDonor(r.Context(), id); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
