// internal/session/domain.go
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bloodbank/internal/apperr"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleHospital Role = "hospital"
)

var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthorized)
	ErrInvalidToken       = fmt.Errorf("%w: invalid or expired session", apperr.ErrUnauthorized)
	ErrAdminOnly          = fmt.Errorf("%w: administrator session required", apperr.ErrForbidden)
	ErrOtherHospital      = fmt.Errorf("%w: record belongs to another hospital", apperr.ErrForbidden)
	ErrTooManyAttempts    = fmt.Errorf("%w: too many login attempts", apperr.ErrRateLimited)
)

// Session is the server-side record behind a bearer token.
type Session struct {
	ID         string     `json:"session_id"`
	Role       Role       `json:"role"`
	HospitalID *uuid.UUID `json:"hospital_id,omitempty"`
	IssuedAt   time.Time  `json:"issued_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
}

func (s *Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// ScopeHospital resolves the hospital a request acts on. Admins act on the
// requested hospital (nil meaning all); hospital sessions always act on their
// own and may not name another.
func (s *Session) ScopeHospital(requested *uuid.UUID) (*uuid.UUID, error) {
	if s.IsAdmin() {
		return requested, nil
	}
	if s.HospitalID == nil {
		return nil, ErrInvalidToken
	}
	if requested != nil && *requested != *s.HospitalID {
		return nil, ErrOtherHospital
	}
	own := *s.HospitalID
	return &own, nil
}

// Authorize checks that the session may touch a record of hospitalID.
func (s *Session) Authorize(hospitalID uuid.UUID) error {
	if s.IsAdmin() {
		return nil
	}
	if s.HospitalID == nil || *s.HospitalID != hospitalID {
		return ErrOtherHospital
	}
	return nil
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored by the authentication middleware.
func FromContext(ctx context.Context) (*Session, error) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	if !ok || s == nil {
		return nil, ErrInvalidToken
	}
	return s, nil
}

// LoginRequest carries the credentials of either role.
type LoginRequest struct {
	Role       Role       `json:"role"`
	HospitalID *uuid.UUID `json:"hospital_id,omitempty"`
	Passkey    string     `json:"passkey"`
}

// Token is returned by a successful login.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	Session     *Session  `json:"session"`
}
