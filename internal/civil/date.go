// internal/civil/date.go
package civil

import (
	"encoding/json"
	"strings"
	"time"

	"bloodbank/internal/apperr"
)

// DateLayout is the format of calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar date that travels as "YYYY-MM-DD".
type Date struct {
	time.Time
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(DateLayout))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return apperr.Invalidf("date must be a string")
	}
	t, err := ParseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// ParseDate parses a calendar date, also accepting a full RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, apperr.Invalidf("invalid date %q", s)
}
