// internal/donor/service.go
package donor

import (
	"context"

	"github.com/google/uuid"

	"bloodbank/internal/bloodtype"
)

// Repository is the persistence contract of donors.
type Repository interface {
	Create(ctx context.Context, d *Donor) error
	Get(ctx context.Context, id uuid.UUID) (*Donor, error)
	List(ctx context.Context, types []bloodtype.BloodType, query string) ([]Donor, error)
	Update(ctx context.Context, d *Donor) error
	Delete(ctx context.Context, d *Donor) error
}

// Service defines the interface for the donor service.
type Service interface {
	RegisterDonor(ctx context.Context, req CreateRequest) (*View, error)
	GetDonor(ctx context.Context, id uuid.UUID) (*View, error)
	ListDonors(ctx context.Context, filter ListFilter) ([]View, error)
	UpdateDonor(ctx context.Context, id uuid.UUID, req UpdateRequest) (*View, error)
	DeleteDonor(ctx context.Context, id uuid.UUID) error
}
