// internal/inventory/stock.go
package inventory

import (
	"time"

	"bloodbank/internal/bloodtype"
)

const (
	// CriticalFloor is the available-unit count below which a type is critical.
	CriticalFloor = 5
	// DefaultMinimumThreshold applies uniformly to every blood type.
	DefaultMinimumThreshold = 10
)

type StockLevel string

const (
	StockCritical StockLevel = "Critical"
	StockLow      StockLevel = "Low"
	StockGood     StockLevel = "Good"
)

// ClassifyStock grades the available units of one blood type.
func ClassifyStock(available, minimumThreshold int) StockLevel {
	switch {
	case available < CriticalFloor:
		return StockCritical
	case available < minimumThreshold:
		return StockLow
	default:
		return StockGood
	}
}

// Summary is the stock position of one blood type.
type Summary struct {
	BloodType        bloodtype.BloodType `json:"blood_type"`
	TotalUnits       int                 `json:"total_units"`
	AvailableUnits   int                 `json:"available_units"`
	ReservedUnits    int                 `json:"reserved_units"`
	MinimumThreshold int                 `json:"minimum_threshold"`
	Level            StockLevel          `json:"level"`
	LastUpdated      *time.Time          `json:"last_updated,omitempty"`
}

// Summarize builds one summary per blood type, in display order, counting
// units by their effective status at asOf.
func Summarize(units []Unit, asOf time.Time, minimumThreshold int) []Summary {
	if minimumThreshold <= 0 {
		minimumThreshold = DefaultMinimumThreshold
	}

	byType := make(map[bloodtype.BloodType]*Summary, 8)
	out := make([]Summary, 0, 8)
	for _, bt := range bloodtype.All() {
		out = append(out, Summary{BloodType: bt, MinimumThreshold: minimumThreshold})
	}
	for i := range out {
		byType[out[i].BloodType] = &out[i]
	}

	for _, u := range units {
		s, ok := byType[u.BloodType()]
		if !ok {
			continue
		}
		s.TotalUnits++
		switch u.EffectiveStatus(asOf) {
		case StatusAvailable:
			s.AvailableUnits++
		case StatusReserved:
			s.ReservedUnits++
		}
		if s.LastUpdated == nil || u.CreatedAt.After(*s.LastUpdated) {
			created := u.CreatedAt
			s.LastUpdated = &created
		}
	}

	for i := range out {
		out[i].Level = ClassifyStock(out[i].AvailableUnits, minimumThreshold)
	}
	return out
}
