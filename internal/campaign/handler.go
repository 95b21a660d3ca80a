// internal/campaign/handler.go
package campaign

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

// Routes registers the campaign routes. Hospital sessions manage only their
// own campaigns.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/campaigns", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/{id}", h.handleGet)
		r.Patch("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
	})
}

func (h *Handler) authorized(r *http.Request) (*View, error) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		return nil, err
	}
	sess, err := session.FromContext(r.Context())
	if err != nil {
		return nil, err
	}
	c, err := h.service.GetCampaign(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if err := sess.Authorize(c.HospitalID); err != nil {
		return nil, err
	}
	return c, nil
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
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
	var filter ListFilter
	if filter.HospitalID, err = sess.ScopeHospital(requested); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	if raw := r.URL.Query().Get("phase"); raw != "" {
		phase := Phase(raw)
		filter.Phase = &phase
	}

	campaigns, err := h.service.ListCampaigns(r.Context(), filter)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, campaigns)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	sess, err := session.FromContext(r.Context())
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	if req.HospitalID, err = sess.ScopeHospital(req.HospitalID); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	c, err := h.service.CreateCampaign(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	c, err := h.authorized(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	c, err := h.authorized(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	updated, err := h.service.UpdateCampaign(r.Context(), c.ID, req)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	c, err := h.authorized(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	if err := h.service.DeleteCampaign(r.Context(), c.ID); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
