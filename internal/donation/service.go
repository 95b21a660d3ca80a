// internal/donation/service.go
package donation

import (
	"context"

	"github.com/google/uuid"

	"bloodbank/internal/inventory"
)

// Repository is the persistence contract of donations. Record and
// UpdateTestResult change the donor, campaign and unit of a donation in the
// same transaction as the donation itself.
type Repository interface {
	Record(ctx context.Context, d *Donation, unit *inventory.Unit, check Check) error
	Get(ctx context.Context, id uuid.UUID) (*Donation, error)
	List(ctx context.Context, filter ListFilter) ([]Donation, error)
	UpdateTestResult(ctx context.Context, d *Donation, to TestResult) error
	Delete(ctx context.Context, d *Donation) error
}

// Service defines the interface for the donation service.
type Service interface {
	RecordDonation(ctx context.Context, req RecordRequest) (*Recorded, error)
	GetDonation(ctx context.Context, id uuid.UUID) (*View, error)
	ListDonations(ctx context.Context, filter ListFilter) ([]View, error)
	UpdateTestResult(ctx context.Context, id uuid.UUID, to TestResult) (*View, error)
	DeleteDonation(ctx context.Context, id uuid.UUID) error
}
