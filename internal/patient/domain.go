// internal/patient/domain.go
package patient

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bloodbank/internal/apperr"
	"bloodbank/internal/bloodtype"
	"bloodbank/internal/civil"
	"bloodbank/internal/donor"
)

var ErrPatientNotFound = fmt.Errorf("%w: patient", apperr.ErrNotFound)

// Patient is a transfusion recipient admitted to one hospital.
type Patient struct {
	ID          uuid.UUID     `json:"patient_id" db:"patient_id"`
	HospitalID  uuid.UUID     `json:"hospital_id" db:"hospital_id"`
	CaseNo      string        `json:"case_no" db:"case_no"`
	FirstName   string        `json:"first_name" db:"first_name"`
	LastName    string        `json:"last_name" db:"last_name"`
	DateOfBirth time.Time     `json:"date_of_birth" db:"date_of_birth"`
	Sex         donor.Sex     `json:"sex" db:"sex"`
	ABOGroup    bloodtype.ABO `json:"abo_group" db:"abo_group"`
	RhFactor    bloodtype.Rh  `json:"rh_factor" db:"rh_factor"`
	Diagnosis   *string       `json:"diagnosis,omitempty" db:"diagnosis"`
	Notes       *string       `json:"notes,omitempty" db:"notes"`
	Version     int           `json:"version" db:"version"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
}

func (p Patient) BloodType() bloodtype.BloodType {
	bt, err := bloodtype.Of(p.ABOGroup, p.RhFactor)
	if err != nil {
		return ""
	}
	return bt
}

func (p Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// FilterCompatible keeps the patients who can receive blood of the donor type.
func FilterCompatible(donorType bloodtype.BloodType, patients []Patient) []Patient {
	return bloodtype.Filter(donorType, patients)
}

// View is a patient with derived fields attached.
type View struct {
	Patient
	BloodType bloodtype.BloodType `json:"blood_type"`
	FullName  string              `json:"full_name"`
}

func NewView(p Patient) View {
	return View{Patient: p, BloodType: p.BloodType(), FullName: p.FullName()}
}

type CreateRequest struct {
	HospitalID  *uuid.UUID          `json:"hospital_id,omitempty"`
	CaseNo      string              `json:"case_no"`
	FirstName   string              `json:"first_name"`
	LastName    string              `json:"last_name"`
	DateOfBirth civil.Date          `json:"date_of_birth"`
	Sex         donor.Sex           `json:"sex"`
	BloodType   bloodtype.BloodType `json:"blood_type"`
	Diagnosis   *string             `json:"diagnosis,omitempty"`
	Notes       *string             `json:"notes,omitempty"`
}

type UpdateRequest struct {
	CaseNo    *string              `json:"case_no,omitempty"`
	FirstName *string              `json:"first_name,omitempty"`
	LastName  *string              `json:"last_name,omitempty"`
	BloodType *bloodtype.BloodType `json:"blood_type,omitempty"`
	Diagnosis *string              `json:"diagnosis,omitempty"`
	Notes     *string              `json:"notes,omitempty"`
}

type ListFilter struct {
	HospitalID *uuid.UUID
	BloodType  *bloodtype.BloodType
}

func (r CreateRequest) Validate(asOf time.Time) error {
	if r.HospitalID == nil {
		return apperr.Invalidf("hospital_id is required")
	}
	for field, v := range map[string]string{"case_no": r.CaseNo, "first_name": r.FirstName, "last_name": r.LastName} {
		if strings.TrimSpace(v) == "" {
			return apperr.Invalidf("%s is required", field)
		}
	}
	if r.DateOfBirth.IsZero() || r.DateOfBirth.After(asOf) {
		return apperr.Invalidf("date_of_birth must be a past date")
	}
	if !r.Sex.Valid() {
		return donor.ErrInvalidSex
	}
	if !r.BloodType.Valid() {
		return fmt.Errorf("%w: %q", bloodtype.ErrUnknownBloodType, r.BloodType)
	}
	return nil
}

func (r UpdateRequest) Apply(p *Patient) error {
	for field, v := range map[string]*string{"case_no": r.CaseNo, "first_name": r.FirstName, "last_name": r.LastName} {
		if v != nil && strings.TrimSpace(*v) == "" {
			return apperr.Invalidf("%s must not be empty", field)
		}
	}
	if r.CaseNo != nil {
		p.CaseNo = strings.TrimSpace(*r.CaseNo)
	}
	if r.FirstName != nil {
		p.FirstName = strings.TrimSpace(*r.FirstName)
	}
	if r.LastName != nil {
		p.LastName = strings.TrimSpace(*r.LastName)
	}
	if r.BloodType != nil {
		if !r.BloodType.Valid() {
			return fmt.Errorf("%w: %q", bloodtype.ErrUnknownBloodType, *r.BloodType)
		}
		p.ABOGroup, p.RhFactor = r.BloodType.Group(), r.BloodType.Factor()
	}
	if r.Diagnosis != nil {
		p.Diagnosis = r.Diagnosis
	}
	if r.Notes != nil {
		p.Notes = r.Notes
	}
	return nil
}

type PatientAdmittedEvent struct {
	ID         uuid.UUID           `json:"patient_id"`
	HospitalID uuid.UUID           `json:"hospital_id"`
	CaseNo     string              `json:"case_no"`
	BloodType  bloodtype.BloodType `json:"blood_type"`
}

type PatientUpdatedEvent struct {
	ID        uuid.UUID           `json:"patient_id"`
	BloodType bloodtype.BloodType `json:"blood_type"`
}

type PatientDeletedEvent struct {
	ID uuid.UUID `json:"patient_id"`
}
