// internal/inventory/domain.go
package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"bloodbank/internal/apperr"
	"bloodbank/internal/bloodtype"
)

// ShelfLife is how long a collected unit stays usable. Domain constant,
// pending confirmation by a transfusion specialist.
const ShelfLife = 42 * 24 * time.Hour

// Status is the stored lifecycle state of a unit.
type Status string

const (
	StatusAvailable Status = "Available"
	StatusReserved  Status = "Reserved"
	StatusIssued    Status = "Issued"
	StatusExpired   Status = "Expired"
	StatusDiscarded Status = "Discarded"
)

var (
	ErrInvalidStatus     = fmt.Errorf("%w: unknown unit status", apperr.ErrInvalid)
	ErrInvalidTransition = fmt.Errorf("%w: status transition not allowed", apperr.ErrConflict)
	ErrUnitNotFound      = fmt.Errorf("%w: inventory unit", apperr.ErrNotFound)
)

// transitions lists the stored state changes allowed from each state. Issued,
// Expired and Discarded are terminal.
var transitions = map[Status][]Status{
	StatusAvailable: {StatusReserved, StatusIssued, StatusDiscarded, StatusExpired},
	StatusReserved:  {StatusAvailable, StatusIssued, StatusDiscarded, StatusExpired},
}

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusReserved, StatusIssued, StatusExpired, StatusDiscarded:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether a unit may move from one stored status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Unit is one collected, trackable quantity of donated blood.
type Unit struct {
	ID            uuid.UUID     `json:"inventory_id" db:"inventory_id"`
	DonationID    uuid.UUID     `json:"donation_id" db:"donation_id"`
	HospitalID    uuid.UUID     `json:"hospital_id" db:"hospital_id"`
	NumberOfUnits int           `json:"number_of_units" db:"number_of_units"`
	CollectedAt   time.Time     `json:"collection_ts" db:"collection_ts"`
	ExpiresAt     time.Time     `json:"expiry_ts" db:"expiry_ts"`
	Status        Status        `json:"status" db:"status"`
	Notes         *string       `json:"notes,omitempty" db:"notes"`
	ABOGroup      bloodtype.ABO `json:"abo_group" db:"abo_group"`
	RhFactor      bloodtype.Rh  `json:"rh_factor" db:"rh_factor"`
	Version       int           `json:"version" db:"version"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

// NewUnit creates the single unit produced by a donation. Its expiry is always
// exactly ShelfLife after collection.
func NewUnit(donationID, hospitalID uuid.UUID, collectedAt time.Time, status Status) Unit {
	return Unit{
		ID:            uuid.New(),
		DonationID:    donationID,
		HospitalID:    hospitalID,
		NumberOfUnits: 1,
		CollectedAt:   collectedAt,
		ExpiresAt:     collectedAt.Add(ShelfLife),
		Status:        status,
		Version:       1,
	}
}

// BloodType is derived from the donor of the originating donation.
func (u Unit) BloodType() bloodtype.BloodType {
	bt, err := bloodtype.Of(u.ABOGroup, u.RhFactor)
	if err != nil {
		return ""
	}
	return bt
}

// EffectiveStatus is the status as read at asOf: units still in stock once
// asOf is past expiry_ts read as Expired without the stored status being
// rewritten. This is stricter than Expiry, which keeps the last day as
// expiring soon for display.
func (u Unit) EffectiveStatus(asOf time.Time) Status {
	if (u.Status == StatusAvailable || u.Status == StatusReserved) && asOf.After(u.ExpiresAt) {
		return StatusExpired
	}
	return u.Status
}

// Transition validates a manual status change against the lifecycle.
func (u Unit) Transition(to Status, asOf time.Time) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	from := u.EffectiveStatus(asOf)
	if from == StatusExpired && u.Status != StatusExpired && to == StatusExpired {
		// Recording an expiry that has already happened.
		return nil
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// View is a unit with its read-time classifications attached.
type View struct {
	Unit
	BloodType       bloodtype.BloodType `json:"blood_type"`
	EffectiveStatus Status              `json:"effective_status"`
	Expiry          ExpiryStatus        `json:"expiry"`
}

// NewView derives the read-time fields of u as of asOf.
func NewView(u Unit, asOf time.Time) View {
	return View{
		Unit:            u,
		BloodType:       u.BloodType(),
		EffectiveStatus: u.EffectiveStatus(asOf),
		Expiry:          Expiry(u.ExpiresAt, asOf),
	}
}

// UnitStatusChangedEvent is appended whenever a unit's stored status changes.
type UnitStatusChangedEvent struct {
	ID     uuid.UUID `json:"inventory_id"`
	From   Status    `json:"from"`
	To     Status    `json:"to"`
	Reason string    `json:"reason,omitempty"`
}

// UnitCreatedEvent is appended when a donation produces a unit.
type UnitCreatedEvent struct {
	ID          uuid.UUID `json:"inventory_id"`
	DonationID  uuid.UUID `json:"donation_id"`
	HospitalID  uuid.UUID `json:"hospital_id"`
	CollectedAt time.Time `json:"collection_ts"`
	ExpiresAt   time.Time `json:"expiry_ts"`
	Status      Status    `json:"status"`
}
