// internal/transfusion/handler.go
package transfusion

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"bloodbank/internal/apperr"
	"bloodbank/internal/httpx"
	"bloodbank/internal/session"
)

// IdempotencyHeader carries the client's retry key on POST /transfusions.
const IdempotencyHeader = "Idempotency-Key"

type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Routes(r chi.Router, admin func(http.Handler) http.Handler) {
	r.Route("/transfusions", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleRecord)
		r.Get("/candidates", h.handleCandidates)
		r.Get("/{id}", h.handleGet)
		r.With(admin).Delete("/{id}", h.handleDelete)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	sess, err := session.FromContext(r.Context())
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	var filter ListFilter
	requested, err := httpx.QueryUUID(r, "hospital_id")
	if err == nil {
		filter.HospitalID, err = sess.ScopeHospital(requested)
	}
	if err == nil {
		filter.PatientID, err = httpx.QueryUUID(r, "patient_id")
	}
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	transfusions, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, transfusions)
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req RecordRequest
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

	t, err := h.service.Record(r.Context(), req, r.Header.Get(IdempotencyHeader))
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, t)
}

func (h *Handler) handleCandidates(w http.ResponseWriter, r *http.Request) {
	unitID, err := httpx.QueryUUID(r, "inventory_id")
	if err == nil && unitID == nil {
		err = apperr.Invalidf("inventory_id is required")
	}
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	sess, err := session.FromContext(r.Context())
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	scope, err := sess.ScopeHospital(nil)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	c, err := h.service.Candidates(r.Context(), *unitID, scope)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) authorized(r *http.Request) (*Transfusion, error) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		return nil, err
	}
	sess, err := session.FromContext(r.Context())
	if err != nil {
		return nil, err
	}
	t, err := h.service.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if err := sess.Authorize(t.HospitalID); err != nil {
		return nil, err
	}
	return t, nil
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	t, err := h.authorized(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	t, err := h.authorized(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	if err := h.service.Delete(r.Context(), t.ID); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
