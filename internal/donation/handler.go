// internal/donation/handler.go
package donation

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
	r.Route("/donations", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleRecord)
		r.Get("/{id}", h.handleGet)
		r.Patch("/{id}/test-result", h.handleTestResult)
		r.Delete("/{id}", h.handleDelete)
	})
}

type testResultRequest struct {
	TestResult TestResult `json:"test_result"`
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
	d, err := h.service.GetDonation(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if err := sess.Authorize(d.HospitalID); err != nil {
		return nil, err
	}
	return d, nil
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
		filter.DonorID, err = httpx.QueryUUID(r, "donor_id")
	}
	if err == nil {
		filter.CampaignID, err = httpx.QueryUUID(r, "campaign_id")
	}
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	if raw := r.URL.Query().Get("test_result"); raw != "" {
		result := TestResult(raw)
		filter.TestResult = &result
	}

	donations, err := h.service.ListDonations(r.Context(), filter)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, donations)
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

	recorded, err := h.service.RecordDonation(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, recorded)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	d, err := h.authorized(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, d)
}

func (h *Handler) handleTestResult(w http.ResponseWriter, r *http.Request) {
	var req testResultRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	d, err := h.authorized(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	updated, err := h.service.UpdateTestResult(r.Context(), d.ID, req.TestResult)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	d, err := h.authorized(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	if err := h.service.DeleteDonation(r.Context(), d.ID); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
