// internal/hospital/service.go
package hospital

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence contract of hospitals.
type Repository interface {
	Create(ctx context.Context, h *Hospital, cred Credential) error
	Get(ctx context.Context, id uuid.UUID) (*Hospital, error)
	List(ctx context.Context) ([]Hospital, error)
	Update(ctx context.Context, h *Hospital, cred *Credential) error
	Delete(ctx context.Context, h *Hospital) error
	GetCredential(ctx context.Context, id uuid.UUID) (*Credential, error)
}

// Service defines the interface for the hospital service.
type Service interface {
	CreateHospital(ctx context.Context, req CreateRequest) (*Hospital, error)
	GetHospital(ctx context.Context, id uuid.UUID) (*Hospital, error)
	ListHospitals(ctx context.Context) ([]Hospital, error)
	UpdateHospital(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Hospital, error)
	DeleteHospital(ctx context.Context, id uuid.UUID) error
	Authenticate(ctx context.Context, id uuid.UUID, passkey string) error
}
