// internal/inventory/expiry.go
package inventory

import (
	"math"
	"time"
)

// ExpiringSoonDays is the window, in days left, flagged as expiring soon.
const ExpiringSoonDays = 7

type ExpiryState string

const (
	ExpiryExpired      ExpiryState = "Expired"
	ExpiryExpiringSoon ExpiryState = "ExpiringSoon"
	ExpiryValid        ExpiryState = "Valid"
)

// ExpiryStatus classifies a unit's expiry. DaysLeft is negative once expired.
type ExpiryStatus struct {
	State    ExpiryState `json:"state"`
	DaysLeft int         `json:"days_left"`
}

// Expiry computes daysLeft = ceil((expiresAt - asOf) / 24h). Only a negative
// count is expired; a unit on its last day is expiring soon with 0 days left.
func Expiry(expiresAt, asOf time.Time) ExpiryStatus {
	daysLeft := int(math.Ceil(float64(expiresAt.Sub(asOf)) / float64(24*time.Hour)))
	switch {
	case daysLeft < 0:
		return ExpiryStatus{State: ExpiryExpired, DaysLeft: daysLeft}
	case daysLeft <= ExpiringSoonDays:
		return ExpiryStatus{State: ExpiryExpiringSoon, DaysLeft: daysLeft}
	default:
		return ExpiryStatus{State: ExpiryValid, DaysLeft: daysLeft}
	}
}
