// internal/patient/handler.go
package patient

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

// Routes registers the patient routes. Patients are only visible to their
// own hospital and to administrators.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/patients", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleAdmit)
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
	p, err := h.service.GetPatient(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if err := sess.Authorize(p.HospitalID); err != nil {
		return nil, err
	}
	return p, nil
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
	if filter.BloodType, err = httpx.QueryBloodType(r, "blood_type"); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	patients, err := h.service.ListPatients(r.Context(), filter)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, patients)
}

func (h *Handler) handleAdmit(w http.ResponseWriter, r *http.Request) {
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

	p, err := h.service.AdmitPatient(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.authorized(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	p, err := h.authorized(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	updated, err := h.service.UpdatePatient(r.Context(), p.ID, req)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	p, err := h.authorized(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	if err := h.service.DeletePatient(r.Context(), p.ID); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
