// internal/httpx/httpx.go
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"bloodbank/internal/apperr"
	"bloodbank/internal/bloodtype"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// StatusFor maps an error onto its HTTP status and machine readable code.
func StatusFor(err error) (int, string) {
	switch apperr.Kind(err) {
	case apperr.ErrNotFound:
		return http.StatusNotFound, "not_found"
	case apperr.ErrInvalid:
		return http.StatusBadRequest, "invalid"
	case apperr.ErrConflict:
		return http.StatusConflict, "conflict"
	case apperr.ErrUnprocessable:
		return http.StatusUnprocessableEntity, "rule_violation"
	case apperr.ErrUnauthorized:
		return http.StatusUnauthorized, "unauthorized"
	case apperr.ErrForbidden:
		return http.StatusForbidden, "forbidden"
	case apperr.ErrRateLimited:
		return http.StatusTooManyRequests, "rate_limited"
	}
	return http.StatusInternalServerError, "internal"
}

// WriteError writes the error envelope. Unclassified errors are logged and
// reported without their details.
func WriteError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status, code := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		msg = "internal server error"
	}
	WriteJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

// Decode reads a JSON request body into v, rejecting unknown fields.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Invalidf("request body is empty")
		}
		return apperr.Invalidf("malformed request body: %v", err)
	}
	return nil
}

// UUIDParam parses the named chi URL parameter.
func UUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperr.Invalidf("invalid %s", name)
	}
	return id, nil
}

// QueryUUID parses an optional UUID query parameter.
func QueryUUID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.Invalidf("invalid %s", name)
	}
	return &id, nil
}

// QueryInt parses an optional integer query parameter.
func QueryInt(r *http.Request, name string) (*int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, apperr.Invalidf("invalid %s", name)
	}
	return &n, nil
}

// QueryBloodType parses an optional blood type query parameter. An unescaped
// "+" arrives as a space and is read back as "+".
func QueryBloodType(r *http.Request, name string) (*bloodtype.BloodType, error) {
	raw := r.URL.Query().Get(name)
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	bt, err := bloodtype.Parse(strings.ReplaceAll(strings.TrimLeft(raw, " "), " ", "+"))
	if err != nil {
		return nil, err
	}
	return &bt, nil
}
