// internal/donation/domain.go
package donation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bloodbank/internal/apperr"
	"bloodbank/internal/bloodtype"
	"bloodbank/internal/campaign"
	"bloodbank/internal/donor"
	"bloodbank/internal/eligibility"
	"bloodbank/internal/inventory"
)

type TestResult string

const (
	TestPending  TestResult = "Pending"
	TestAccepted TestResult = "Accepted"
	TestRejected TestResult = "Rejected"
)

func (r TestResult) Valid() bool {
	return r == TestPending || r == TestAccepted || r == TestRejected
}

var (
	ErrDonationNotFound   = fmt.Errorf("%w: donation", apperr.ErrNotFound)
	ErrInvalidTestResult  = fmt.Errorf("%w: test_result must be Pending, Accepted or Rejected", apperr.ErrInvalid)
	ErrResultAlreadyFinal = fmt.Errorf("%w: a rejected donation cannot be re-tested", apperr.ErrConflict)
	ErrDonorDeferred      = fmt.Errorf("%w: donor is not eligible to donate", apperr.ErrUnprocessable)
)

// Donation is one collection of blood from a donor at a hospital.
type Donation struct {
	ID              uuid.UUID           `json:"donation_id" db:"donation_id"`
	DonorID         uuid.UUID           `json:"donor_id" db:"donor_id"`
	HospitalID      uuid.UUID           `json:"hospital_id" db:"hospital_id"`
	CampaignID      *uuid.UUID          `json:"campaign_id,omitempty" db:"campaign_id"`
	DonatedAt       time.Time           `json:"donation_timestamp" db:"donation_timestamp"`
	TestResult      TestResult          `json:"test_result" db:"test_result"`
	QuantityML      int                 `json:"quantity_ml" db:"quantity_ml"`
	HemoglobinLevel decimal.NullDecimal `json:"hemoglobin_level" db:"hemoglobin_level"`
	Notes           *string             `json:"notes,omitempty" db:"notes"`
	InventoryID     *uuid.UUID          `json:"inventory_id,omitempty" db:"inventory_id"`
	ABOGroup        bloodtype.ABO       `json:"abo_group" db:"abo_group"`
	RhFactor        bloodtype.Rh        `json:"rh_factor" db:"rh_factor"`
	Version         int                 `json:"version" db:"version"`
	CreatedAt       time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at" db:"updated_at"`
}

// BloodType is the type of the donor at the time of reading.
func (d Donation) BloodType() bloodtype.BloodType {
	bt, err := bloodtype.Of(d.ABOGroup, d.RhFactor)
	if err != nil {
		return ""
	}
	return bt
}

// UnitStatus is the status of the unit a donation produces when recorded.
func (d Donation) UnitStatus() inventory.Status {
	if d.TestResult == TestRejected {
		return inventory.StatusDiscarded
	}
	return inventory.StatusAvailable
}

type View struct {
	Donation
	BloodType bloodtype.BloodType `json:"blood_type"`
}

func NewView(d Donation) View {
	return View{Donation: d, BloodType: d.BloodType()}
}

// Recorded is the outcome of recording a donation.
type Recorded struct {
	Donation View           `json:"donation"`
	Unit     inventory.View `json:"unit"`
}

type RecordRequest struct {
	DonorID         uuid.UUID           `json:"donor_id"`
	HospitalID      *uuid.UUID          `json:"hospital_id,omitempty"`
	CampaignID      *uuid.UUID          `json:"campaign_id,omitempty"`
	DonatedAt       *time.Time          `json:"donation_timestamp,omitempty"`
	TestResult      TestResult          `json:"test_result,omitempty"`
	QuantityML      int                 `json:"quantity_ml"`
	HemoglobinLevel decimal.NullDecimal `json:"hemoglobin_level"`
	Notes           *string             `json:"notes,omitempty"`
}

func (r RecordRequest) Validate() error {
	if r.DonorID == uuid.Nil {
		return apperr.Invalidf("donor_id is required")
	}
	if r.HospitalID == nil {
		return apperr.Invalidf("hospital_id is required")
	}
	if r.QuantityML <= 0 {
		return apperr.Invalidf("quantity_ml must be positive")
	}
	if r.HemoglobinLevel.Valid && r.HemoglobinLevel.Decimal.IsNegative() {
		return apperr.Invalidf("hemoglobin_level must not be negative")
	}
	if r.TestResult != "" && !r.TestResult.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTestResult, r.TestResult)
	}
	return nil
}

type ListFilter struct {
	DonorID    *uuid.UUID
	HospitalID *uuid.UUID
	CampaignID *uuid.UUID
	TestResult *TestResult
}

// Snapshot is the locked state a donation is checked against before it is
// written.
type Snapshot struct {
	Donor    donor.Donor
	Campaign *campaign.Campaign
}

// Check validates a donation against its locked snapshot.
type Check func(Snapshot) error

// CheckDonation requires the donor to be eligible on the donation date and
// any campaign to be running for the same hospital on that date.
func CheckDonation(d Donation) Check {
	return func(s Snapshot) error {
		result := eligibility.Evaluate(s.Donor.LastDonationDate, d.DonatedAt)
		if !result.Eligible {
			if result.DaysUntilEligible != nil {
				return fmt.Errorf("%w: deferred for %d more days", ErrDonorDeferred, *result.DaysUntilEligible)
			}
			return ErrDonorDeferred
		}
		if s.Campaign != nil {
			return s.Campaign.AcceptsDonation(d.HospitalID, d.DonatedAt)
		}
		return nil
	}
}

type DonationRecordedEvent struct {
	ID          uuid.UUID  `json:"donation_id"`
	DonorID     uuid.UUID  `json:"donor_id"`
	HospitalID  uuid.UUID  `json:"hospital_id"`
	CampaignID  *uuid.UUID `json:"campaign_id,omitempty"`
	InventoryID uuid.UUID  `json:"inventory_id"`
	TestResult  TestResult `json:"test_result"`
	QuantityML  int        `json:"quantity_ml"`
}

type TestResultChangedEvent struct {
	ID   uuid.UUID  `json:"donation_id"`
	From TestResult `json:"from"`
	To   TestResult `json:"to"`
}

type DonationDeletedEvent struct {
	ID uuid.UUID `json:"donation_id"`
}
