// internal/campaign/domain.go
package campaign

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bloodbank/internal/apperr"
	"bloodbank/internal/civil"
)

var (
	ErrCampaignNotFound = fmt.Errorf("%w: campaign", apperr.ErrNotFound)
	ErrInvalidDateRange = fmt.Errorf("%w: end_date must not be before start_date", apperr.ErrInvalid)
	ErrNotOngoing       = fmt.Errorf("%w: campaign is not running on the donation date", apperr.ErrUnprocessable)
	ErrOtherHospital    = fmt.Errorf("%w: campaign belongs to another hospital", apperr.ErrUnprocessable)
)

type Phase string

const (
	PhaseUpcoming Phase = "Upcoming"
	PhaseOngoing  Phase = "Ongoing"
	PhasePast     Phase = "Past"
)

func (p Phase) Valid() bool {
	return p == PhaseUpcoming || p == PhaseOngoing || p == PhasePast
}

// Campaign is a time-boxed donation drive run by one hospital.
type Campaign struct {
	ID                  uuid.UUID `json:"campaign_id" db:"campaign_id"`
	HospitalID          uuid.UUID `json:"hospital_id" db:"hospital_id"`
	Name                string    `json:"name" db:"name"`
	StartDate           time.Time `json:"start_date" db:"start_date"`
	EndDate             time.Time `json:"end_date" db:"end_date"`
	Location            string    `json:"location" db:"location"`
	Notes               *string   `json:"notes,omitempty" db:"notes"`
	TotalUnitsCollected int       `json:"total_units_collected" db:"total_units_collected"`
	Version             int       `json:"version" db:"version"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Phase places asOf relative to the campaign's inclusive date range.
func (c Campaign) Phase(asOf time.Time) Phase {
	day := dateOf(asOf)
	switch {
	case day.Before(dateOf(c.StartDate)):
		return PhaseUpcoming
	case day.After(dateOf(c.EndDate)):
		return PhasePast
	default:
		return PhaseOngoing
	}
}

// AcceptsDonation checks that a donation of hospitalID on date may be
// credited to the campaign.
func (c Campaign) AcceptsDonation(hospitalID uuid.UUID, date time.Time) error {
	if c.HospitalID != hospitalID {
		return ErrOtherHospital
	}
	if c.Phase(date) != PhaseOngoing {
		return fmt.Errorf("%w: %s is outside %s..%s", ErrNotOngoing,
			date.Format(civil.DateLayout), c.StartDate.Format(civil.DateLayout), c.EndDate.Format(civil.DateLayout))
	}
	return nil
}

// ValidateDates enforces end >= start.
func ValidateDates(start, end time.Time) error {
	if dateOf(end).Before(dateOf(start)) {
		return ErrInvalidDateRange
	}
	return nil
}

// View is a campaign with its phase as of the read.
type View struct {
	Campaign
	Phase Phase `json:"phase"`
}

func NewView(c Campaign, asOf time.Time) View {
	return View{Campaign: c, Phase: c.Phase(asOf)}
}

type CreateRequest struct {
	HospitalID *uuid.UUID `json:"hospital_id,omitempty"`
	Name       string     `json:"name"`
	StartDate  civil.Date `json:"start_date"`
	EndDate    civil.Date `json:"end_date"`
	Location   string     `json:"location"`
	Notes      *string    `json:"notes,omitempty"`
}

type UpdateRequest struct {
	Name      *string     `json:"name,omitempty"`
	StartDate *civil.Date `json:"start_date,omitempty"`
	EndDate   *civil.Date `json:"end_date,omitempty"`
	Location  *string     `json:"location,omitempty"`
	Notes     *string     `json:"notes,omitempty"`
}

type ListFilter struct {
	HospitalID *uuid.UUID
	Phase      *Phase
}

func (r CreateRequest) Validate() error {
	if r.HospitalID == nil {
		return apperr.Invalidf("hospital_id is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return apperr.Invalidf("name is required")
	}
	if strings.TrimSpace(r.Location) == "" {
		return apperr.Invalidf("location is required")
	}
	if r.StartDate.IsZero() || r.EndDate.IsZero() {
		return apperr.Invalidf("start_date and end_date are required")
	}
	return ValidateDates(r.StartDate.Time, r.EndDate.Time)
}

// Apply copies the set fields onto c and re-checks the date range.
func (r UpdateRequest) Apply(c *Campaign) error {
	if r.Name != nil {
		if strings.TrimSpace(*r.Name) == "" {
			return apperr.Invalidf("name must not be empty")
		}
		c.Name = strings.TrimSpace(*r.Name)
	}
	if r.Location != nil {
		if strings.TrimSpace(*r.Location) == "" {
			return apperr.Invalidf("location must not be empty")
		}
		c.Location = strings.TrimSpace(*r.Location)
	}
	if r.StartDate != nil {
		c.StartDate = r.StartDate.Time
	}
	if r.EndDate != nil {
		c.EndDate = r.EndDate.Time
	}
	if r.Notes != nil {
		c.Notes = r.Notes
	}
	return ValidateDates(c.StartDate, c.EndDate)
}

type CampaignCreatedEvent struct {
	ID         uuid.UUID `json:"campaign_id"`
	HospitalID uuid.UUID `json:"hospital_id"`
	Name       string    `json:"name"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
}

type CampaignUpdatedEvent struct {
	ID        uuid.UUID `json:"campaign_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

type CampaignDeletedEvent struct {
	ID uuid.UUID `json:"campaign_id"`
}

// UnitCollectedEvent is appended when a donation is credited to the campaign
// or withdrawn from it.
type UnitCollectedEvent struct {
	ID         uuid.UUID `json:"campaign_id"`
	DonationID uuid.UUID `json:"donation_id"`
	Total      int       `json:"total_units_collected"`
}
