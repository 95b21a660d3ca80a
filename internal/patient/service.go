// internal/patient/service.go
package patient

import (
	"context"

	"github.com/google/uuid"

	"bloodbank/internal/bloodtype"
)

// Repository is the persistence contract of patients.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	Get(ctx context.Context, id uuid.UUID) (*Patient, error)
	List(ctx context.Context, hospitalID *uuid.UUID, types []bloodtype.BloodType) ([]Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, p *Patient) error
}

// Service defines the interface for the patient service.
type Service interface {
	AdmitPatient(ctx context.Context, req CreateRequest) (*View, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*View, error)
	ListPatients(ctx context.Context, filter ListFilter) ([]View, error)
	// CompatiblePatients lists the patients of hospitalID able to receive
	// blood of donorType.
	CompatiblePatients(ctx context.Context, hospitalID uuid.UUID, donorType bloodtype.BloodType) ([]View, error)
	UpdatePatient(ctx context.Context, id uuid.UUID, req UpdateRequest) (*View, error)
	DeletePatient(ctx context.Context, id uuid.UUID) error
}
