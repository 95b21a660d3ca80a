// internal/donor/domain.go
package donor

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bloodbank/internal/apperr"
	"bloodbank/internal/bloodtype"
	"bloodbank/internal/civil"
	"bloodbank/internal/eligibility"
)

type Sex string

const (
	SexMale   Sex = "Male"
	SexFemale Sex = "Female"
	SexOther  Sex = "Other"
)

func (s Sex) Valid() bool {
	return s == SexMale || s == SexFemale || s == SexOther
}

var (
	ErrDonorNotFound = fmt.Errorf("%w: donor", apperr.ErrNotFound)
	ErrInvalidSex    = fmt.Errorf("%w: sex must be Male, Female or Other", apperr.ErrInvalid)
)

// Donor is a registered blood donor. Eligibility is never stored.
type Donor struct {
	ID               uuid.UUID     `json:"donor_id" db:"donor_id"`
	FirstName        string        `json:"first_name" db:"first_name"`
	LastName         string        `json:"last_name" db:"last_name"`
	DateOfBirth      time.Time     `json:"date_of_birth" db:"date_of_birth"`
	Sex              Sex           `json:"sex" db:"sex"`
	PhoneNumber      string        `json:"phone_number" db:"phone_number"`
	Email            *string       `json:"email,omitempty" db:"email"`
	ABOGroup         bloodtype.ABO `json:"abo_group" db:"abo_group"`
	RhFactor         bloodtype.Rh  `json:"rh_factor" db:"rh_factor"`
	LastDonationDate *time.Time    `json:"last_donation_date,omitempty" db:"last_donation_date"`
	City             *string       `json:"city,omitempty" db:"city"`
	Notes            *string       `json:"notes,omitempty" db:"notes"`
	Version          int           `json:"version" db:"version"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

func (d Donor) BloodType() bloodtype.BloodType {
	bt, err := bloodtype.Of(d.ABOGroup, d.RhFactor)
	if err != nil {
		return ""
	}
	return bt
}

func (d Donor) FullName() string {
	return strings.TrimSpace(d.FirstName + " " + d.LastName)
}

// View is a donor with the fields derived at read time.
type View struct {
	Donor
	BloodType             bloodtype.BloodType `json:"blood_type"`
	FullName              string              `json:"full_name"`
	Age                   int                 `json:"age"`
	Eligibility           eligibility.Result  `json:"eligibility"`
	CalculatedEligibility eligibility.Status  `json:"calculated_eligibility"`
}

// NewView evaluates d as of asOf.
func NewView(d Donor, asOf time.Time) View {
	res := eligibility.Evaluate(d.LastDonationDate, asOf)
	return View{
		Donor:                 d,
		BloodType:             d.BloodType(),
		FullName:              d.FullName(),
		Age:                   eligibility.Age(d.DateOfBirth, asOf),
		Eligibility:           res,
		CalculatedEligibility: res.Status(),
	}
}

type CreateRequest struct {
	FirstName        string              `json:"first_name"`
	LastName         string              `json:"last_name"`
	DateOfBirth      civil.Date          `json:"date_of_birth"`
	Sex              Sex                 `json:"sex"`
	PhoneNumber      string              `json:"phone_number"`
	Email            *string             `json:"email,omitempty"`
	BloodType        bloodtype.BloodType `json:"blood_type"`
	LastDonationDate *string             `json:"last_donation_date,omitempty"`
	City             *string             `json:"city,omitempty"`
	Notes            *string             `json:"notes,omitempty"`
}

// UpdateRequest changes only the fields that are set. The last donation date
// is maintained by recorded donations.
type UpdateRequest struct {
	FirstName   *string              `json:"first_name,omitempty"`
	LastName    *string              `json:"last_name,omitempty"`
	DateOfBirth *civil.Date          `json:"date_of_birth,omitempty"`
	Sex         *Sex                 `json:"sex,omitempty"`
	PhoneNumber *string              `json:"phone_number,omitempty"`
	Email       *string              `json:"email,omitempty"`
	BloodType   *bloodtype.BloodType `json:"blood_type,omitempty"`
	City        *string              `json:"city,omitempty"`
	Notes       *string              `json:"notes,omitempty"`
}

// ListFilter narrows donor listings. Eligibility is matched after evaluation;
// CompatibleWith keeps donors whose blood a recipient of that type can receive.
type ListFilter struct {
	BloodType      *bloodtype.BloodType
	CompatibleWith *bloodtype.BloodType
	Eligibility    *eligibility.Status
	Query          string
}

func (r CreateRequest) Validate(asOf time.Time) error {
	if strings.TrimSpace(r.FirstName) == "" || strings.TrimSpace(r.LastName) == "" {
		return apperr.Invalidf("first_name and last_name are required")
	}
	if strings.TrimSpace(r.PhoneNumber) == "" {
		return apperr.Invalidf("phone_number is required")
	}
	if !r.Sex.Valid() {
		return ErrInvalidSex
	}
	if !r.BloodType.Valid() {
		return fmt.Errorf("%w: %q", bloodtype.ErrUnknownBloodType, r.BloodType)
	}
	if r.DateOfBirth.IsZero() {
		return apperr.Invalidf("date_of_birth is required")
	}
	return eligibility.ValidateDonorAge(r.DateOfBirth.Time, asOf)
}

// Apply copies the set fields onto d after validating them.
func (r UpdateRequest) Apply(d *Donor, asOf time.Time) error {
	if r.FirstName != nil {
		if strings.TrimSpace(*r.FirstName) == "" {
			return apperr.Invalidf("first_name must not be empty")
		}
		d.FirstName = strings.TrimSpace(*r.FirstName)
	}
	if r.LastName != nil {
		if strings.TrimSpace(*r.LastName) == "" {
			return apperr.Invalidf("last_name must not be empty")
		}
		d.LastName = strings.TrimSpace(*r.LastName)
	}
	if r.DateOfBirth != nil {
		if err := eligibility.ValidateDonorAge(r.DateOfBirth.Time, asOf); err != nil {
			return err
		}
		d.DateOfBirth = r.DateOfBirth.Time
	}
	if r.Sex != nil {
		if !r.Sex.Valid() {
			return ErrInvalidSex
		}
		d.Sex = *r.Sex
	}
	if r.PhoneNumber != nil {
		if strings.TrimSpace(*r.PhoneNumber) == "" {
			return apperr.Invalidf("phone_number must not be empty")
		}
		d.PhoneNumber = strings.TrimSpace(*r.PhoneNumber)
	}
	if r.BloodType != nil {
		if !r.BloodType.Valid() {
			return fmt.Errorf("%w: %q", bloodtype.ErrUnknownBloodType, *r.BloodType)
		}
		d.ABOGroup, d.RhFactor = r.BloodType.Group(), r.BloodType.Factor()
	}
	if r.Email != nil {
		d.Email = r.Email
	}
	if r.City != nil {
		d.City = r.City
	}
	if r.Notes != nil {
		d.Notes = r.Notes
	}
	return nil
}

// ParseLastDonation reads a recorded last donation date. A missing or
// malformed value means the donor has never donated.
func ParseLastDonation(raw *string) *time.Time {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil
	}
	t, err := civil.ParseDate(*raw)
	if err != nil {
		return nil
	}
	return &t
}

type DonorRegisteredEvent struct {
	ID        uuid.UUID           `json:"donor_id"`
	FullName  string              `json:"full_name"`
	BloodType bloodtype.BloodType `json:"blood_type"`
}

type DonorUpdatedEvent struct {
	ID        uuid.UUID           `json:"donor_id"`
	BloodType bloodtype.BloodType `json:"blood_type"`
}

type DonorDeletedEvent struct {
	ID uuid.UUID `json:"donor_id"`
}

// LastDonationRecordedEvent is appended when a donation moves the donor's
// last donation date, or when deleting it moves the date back.
type LastDonationRecordedEvent struct {
	ID               uuid.UUID  `json:"donor_id"`
	DonationID       uuid.UUID  `json:"donation_id"`
	LastDonationDate *time.Time `json:"last_donation_date"`
}
