// internal/inventory/handler.go
package inventory

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"bloodbank/internal/httpx"
	"bloodbank/internal/session"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Routes registers the inventory routes. Hospital sessions only see and
// change their own units.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/inventory", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/summary", h.handleSummary)
		r.Get("/export", h.handleExport)
		r.Get("/{id}", h.handleGet)
		r.Patch("/{id}/status", h.handleTransition)
		r.Get("/{id}/history", h.handleHistory)
	})
}

type transitionRequest struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func (h *Handler) listFilter(r *http.Request) (ListFilter, error) {
	var filter ListFilter
	sess, err := session.FromContext(r.Context())
	if err != nil {
		return filter, err
	}
	requested, err := httpx.QueryUUID(r, "hospital_id")
	if err != nil {
		return filter, err
	}
	if filter.HospitalID, err = sess.ScopeHospital(requested); err != nil {
		return filter, err
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := Status(raw)
		if !status.Valid() {
			return filter, fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
		}
		filter.Status = &status
	}
	if filter.BloodType, err = httpx.QueryBloodType(r, "blood_type"); err != nil {
		return filter, err
	}
	if filter.ExpiringWithinDays, err = httpx.QueryInt(r, "expiring_within"); err != nil {
		return filter, err
	}
	return filter, nil
}

// authorizedUnit loads the unit named in the path and checks the session may see it.
func (h *Handler) authorizedUnit(r *http.Request) (*View, error) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		return nil, err
	}
	sess, err := session.FromContext(r.Context())
	if err != nil {
		return nil, err
	}
	v, err := h.service.GetUnit(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if err := sess.Authorize(v.HospitalID); err != nil {
		return nil, err
	}
	return v, nil
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := h.listFilter(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	units, err := h.service.ListUnits(r.Context(), filter)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, units)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
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
	var hospitalID *uuid.UUID
	if hospitalID, err = sess.ScopeHospital(requested); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	summaries, err := h.service.Summary(r.Context(), hospitalID)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, summaries)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filter, err := h.listFilter(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	data, err := h.service.Export(r.Context(), filter)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	name := fmt.Sprintf("inventory-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("failed to write export", zap.Error(err))
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	v, err := h.authorizedUnit(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	v, err := h.authorizedUnit(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	updated, err := h.service.TransitionUnit(r.Context(), v.ID, req.Status, req.Reason)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	v, err := h.authorizedUnit(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	events, err := h.service.History(r.Context(), v.ID)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, events)
}
