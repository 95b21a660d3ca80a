// internal/transfusion/domain.go
package transfusion

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"bloodbank/internal/apperr"
	"bloodbank/internal/bloodtype"
	"bloodbank/internal/inventory"
	"bloodbank/internal/patient"
)

var (
	ErrUnitNotAvailable      = fmt.Errorf("%w: inventory unit is not available", apperr.ErrConflict)
	ErrIncompatibleBloodType = fmt.Errorf("%w: incompatible blood type", apperr.ErrUnprocessable)
	ErrDuplicateRequest      = fmt.Errorf("%w: request already processed", apperr.ErrConflict)
	ErrTransfusionNotFound   = fmt.Errorf("%w: transfusion", apperr.ErrNotFound)
	ErrPatientOtherHospital  = fmt.Errorf("%w: patient is not admitted to this hospital", apperr.ErrInvalid)
	ErrUnitOtherHospital     = fmt.Errorf("%w: unit is not held by this hospital", apperr.ErrInvalid)
	ErrForeignUnit           = fmt.Errorf("%w: unit belongs to another hospital", apperr.ErrForbidden)
)

// Transfusion records one unit given to one patient.
type Transfusion struct {
	ID              uuid.UUID `json:"transfusion_id" db:"transfusion_id"`
	PatientID       uuid.UUID `json:"patient_id" db:"patient_id"`
	InventoryID     uuid.UUID `json:"inventory_id" db:"inventory_id"`
	HospitalID      uuid.UUID `json:"hospital_id" db:"hospital_id"`
	TransfusedAt    time.Time `json:"transfusion_date" db:"transfusion_date"`
	UnitsTransfused int       `json:"units_transfused" db:"units_transfused"`
	Notes           *string   `json:"notes,omitempty" db:"notes"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

type RecordRequest struct {
	PatientID       uuid.UUID  `json:"patient_id"`
	InventoryID     uuid.UUID  `json:"inventory_id"`
	HospitalID      *uuid.UUID `json:"hospital_id,omitempty"`
	TransfusionDate *time.Time `json:"transfusion_date,omitempty"`
	UnitsTransfused int        `json:"units_transfused,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
}

func (r RecordRequest) Validate() error {
	if r.PatientID == uuid.Nil {
		return apperr.Invalidf("patient_id is required")
	}
	if r.InventoryID == uuid.Nil {
		return apperr.Invalidf("inventory_id is required")
	}
	if r.HospitalID == nil {
		return apperr.Invalidf("hospital_id is required")
	}
	if r.UnitsTransfused < 0 {
		return apperr.Invalidf("units_transfused must be positive")
	}
	return nil
}

type ListFilter struct {
	HospitalID *uuid.UUID
	PatientID  *uuid.UUID
}

// Snapshot is the locked state a transfusion is validated against.
type Snapshot struct {
	Unit    inventory.Unit
	Patient patient.Patient
}

// Check validates a transfusion against its locked snapshot.
type Check func(Snapshot) error

// CheckTransfusion requires the unit to be Available at asOf, the patient to
// accept the unit's blood type and both to belong to the transfusion's
// hospital.
func CheckTransfusion(t Transfusion, asOf time.Time) Check {
	return func(s Snapshot) error {
		if status := s.Unit.EffectiveStatus(asOf); status != inventory.StatusAvailable {
			return fmt.Errorf("%w: unit %s is %s", ErrUnitNotAvailable, s.Unit.ID, status)
		}
		donorType, recipientType := s.Unit.BloodType(), s.Patient.BloodType()
		if !bloodtype.CanReceive(donorType, recipientType) {
			return fmt.Errorf("%w: %s patient cannot receive %s", ErrIncompatibleBloodType, recipientType, donorType)
		}
		if s.Patient.HospitalID != t.HospitalID {
			return ErrPatientOtherHospital
		}
		if s.Unit.HospitalID != t.HospitalID {
			return ErrUnitOtherHospital
		}
		return nil
	}
}

// Candidates lists the patients able to receive an available unit.
type Candidates struct {
	Unit     inventory.View `json:"unit"`
	Patients []patient.View `json:"patients"`
	Message  string         `json:"message,omitempty"`
}

const NoCompatiblePatient = "no compatible patient"

type TransfusionRecordedEvent struct {
	ID          uuid.UUID           `json:"transfusion_id"`
	PatientID   uuid.UUID           `json:"patient_id"`
	InventoryID uuid.UUID           `json:"inventory_id"`
	HospitalID  uuid.UUID           `json:"hospital_id"`
	BloodType   bloodtype.BloodType `json:"blood_type"`
}

type TransfusionDeletedEvent struct {
	ID          uuid.UUID `json:"transfusion_id"`
	InventoryID uuid.UUID `json:"inventory_id"`
}
