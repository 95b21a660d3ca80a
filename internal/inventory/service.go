// internal/inventory/service.go
package inventory

import (
	"context"

	"github.com/google/uuid"

	"bloodbank/internal/bloodtype"
	"bloodbank/pkg/eventstore"
)

// ListFilter narrows unit listings. Status matches the effective status.
type ListFilter struct {
	HospitalID         *uuid.UUID
	Status             *Status
	BloodType          *bloodtype.BloodType
	ExpiringWithinDays *int
}

// Repository is the persistence contract of inventory units.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (*Unit, error)
	List(ctx context.Context, hospitalID *uuid.UUID, bt *bloodtype.BloodType) ([]Unit, error)
	UpdateStatus(ctx context.Context, u *Unit, to Status, reason string) error
	History(ctx context.Context, id uuid.UUID) ([]eventstore.Event, error)
}

// Service defines the interface for the inventory service.
type Service interface {
	GetUnit(ctx context.Context, id uuid.UUID) (*View, error)
	ListUnits(ctx context.Context, filter ListFilter) ([]View, error)
	Summary(ctx context.Context, hospitalID *uuid.UUID) ([]Summary, error)
	TypeSummary(ctx context.Context, bt bloodtype.BloodType) (*Summary, error)
	TransitionUnit(ctx context.Context, id uuid.UUID, to Status, reason string) (*View, error)
	History(ctx context.Context, id uuid.UUID) ([]eventstore.Event, error)
	Export(ctx context.Context, filter ListFilter) ([]byte, error)
}
