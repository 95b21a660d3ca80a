// internal/transfusion/service.go
package transfusion

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bloodbank/internal/bloodtype"
	"bloodbank/internal/inventory"
	"bloodbank/internal/patient"
)

// Repository is the persistence contract of transfusions. Commit locks the
// unit and patient, runs check on them and issues the unit in one transaction;
// it returns the unit as issued.
type Repository interface {
	Commit(ctx context.Context, t *Transfusion, check Check) (*inventory.Unit, error)
	Get(ctx context.Context, id uuid.UUID) (*Transfusion, error)
	List(ctx context.Context, filter ListFilter) ([]Transfusion, error)
	Delete(ctx context.Context, t *Transfusion) error
}

// IdempotencyStore claims request keys so that a retried request is only
// applied once.
type IdempotencyStore interface {
	ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseIdempotencyKey(ctx context.Context, key string) error
}

// Stock is the part of the inventory service transfusions read.
type Stock interface {
	GetUnit(ctx context.Context, id uuid.UUID) (*inventory.View, error)
	TypeSummary(ctx context.Context, bt bloodtype.BloodType) (*inventory.Summary, error)
}

// Patients is the part of the patient service transfusions read.
type Patients interface {
	CompatiblePatients(ctx context.Context, hospitalID uuid.UUID, donorType bloodtype.BloodType) ([]patient.View, error)
}

// Service defines the interface for the transfusion service.
type Service interface {
	// Record commits a transfusion. A non-empty idempotencyKey that was
	// already used fails with ErrDuplicateRequest.
	Record(ctx context.Context, req RecordRequest, idempotencyKey string) (*Transfusion, error)
	Get(ctx context.Context, id uuid.UUID) (*Transfusion, error)
	List(ctx context.Context, filter ListFilter) ([]Transfusion, error)
	// Candidates lists the patients an Available unit can go to. A non-nil
	// hospitalID restricts it to units held by that hospital.
	Candidates(ctx context.Context, unitID uuid.UUID, hospitalID *uuid.UUID) (*Candidates, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
