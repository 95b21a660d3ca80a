// internal/eligibility/eligibility.go
package eligibility

import (
	"math"
	"time"

	"bloodbank/internal/apperr"
)

// DeferralDays is the minimum number of whole days that must have passed since
// the last donation: a donor is eligible once more than DeferralDays days have
// elapsed. Domain constant, pending confirmation by a transfusion specialist.
const DeferralDays = 58

const (
	MinDonorAge = 18
	MaxDonorAge = 65
)

const day = 24 * time.Hour

// Status is the displayed eligibility label.
type Status string

const (
	StatusEligible Status = "Eligible"
	StatusDeferred Status = "Deferred"
)

// Result is the outcome of an eligibility evaluation. It is derived data and
// must not be persisted: it changes every day.
type Result struct {
	Eligible              bool `json:"is_eligible"`
	DaysSinceLastDonation *int `json:"days_since_last_donation,omitempty"`
	DaysUntilEligible     *int `json:"days_until_eligible,omitempty"`
}

// Status maps the result onto the displayed label.
func (r Result) Status() Status {
	if r.Eligible {
		return StatusEligible
	}
	return StatusDeferred
}

// Evaluate decides whether a donor may donate as of asOf. A nil or zero
// lastDonation means the donor never donated and is always eligible. Future
// dated donations yield a negative day count and are not rejected.
func Evaluate(lastDonation *time.Time, asOf time.Time) Result {
	if lastDonation == nil || lastDonation.IsZero() {
		return Result{Eligible: true}
	}

	daysSince := DaysBetween(*lastDonation, asOf)
	res := Result{
		Eligible:              daysSince > DeferralDays,
		DaysSinceLastDonation: &daysSince,
	}
	if !res.Eligible {
		until := DeferralDays + 1 - daysSince
		res.DaysUntilEligible = &until
	}
	return res
}

// DaysBetween returns floor((to - from) / 24h).
func DaysBetween(from, to time.Time) int {
	return int(math.Floor(float64(to.Sub(from)) / float64(day)))
}

// Age returns the age in completed years on asOf.
func Age(dateOfBirth, asOf time.Time) int {
	age := asOf.Year() - dateOfBirth.Year()
	if asOf.Month() < dateOfBirth.Month() ||
		(asOf.Month() == dateOfBirth.Month() && asOf.Day() < dateOfBirth.Day()) {
		age--
	}
	return age
}

// ValidateDonorAge rejects donors outside the accepted age range.
func ValidateDonorAge(dateOfBirth, asOf time.Time) error {
	age := Age(dateOfBirth, asOf)
	if age < MinDonorAge || age > MaxDonorAge {
		return apperr.Invalidf("donor age %d outside %d-%d", age, MinDonorAge, MaxDonorAge)
	}
	return nil
}
