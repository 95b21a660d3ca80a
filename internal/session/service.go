// internal/session/service.go
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store keeps encoded sessions until they expire. cache.Store satisfies it.
type Store interface {
	SaveSession(ctx context.Context, id string, data []byte, ttl time.Duration) error
	LoadSession(ctx context.Context, id string) ([]byte, error)
	DeleteSession(ctx context.Context, id string) error
}

// HospitalAuthenticator validates a hospital passkey.
type HospitalAuthenticator interface {
	Authenticate(ctx context.Context, hospitalID uuid.UUID, passkey string) error
}

// Service defines the interface for the session service.
type Service interface {
	Login(ctx context.Context, clientKey string, req LoginRequest) (*Token, error)
	Authenticate(ctx context.Context, token string) (*Session, error)
	Logout(ctx context.Context, token string) error
}
