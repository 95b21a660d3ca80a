package inventory

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"bloodbank/internal/bloodtype"
)

func TestClassifyStock(t *testing.T) {
	assert.Equal(t, StockCritical, ClassifyStock(3, 10))
	assert.Equal(t, StockLow, ClassifyStock(7, 10))
	assert.Equal(t, StockGood, ClassifyStock(12, 10))
	assert.Equal(t, StockLow, ClassifyStock(5, 10))
	assert.Equal(t, StockGood, ClassifyStock(10, 10))
	assert.Equal(t, StockCritical, ClassifyStock(4, 10))
}

func TestClassifyStock_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		threshold := rapid.IntRange(CriticalFloor, 100).Draw(t, "threshold")
		available := rapid.IntRange(0, 200).Draw(t, "available")

		level := ClassifyStock(available, threshold)
		switch {
		case available < CriticalFloor && level != StockCritical:
			t.Fatalf("%d units should be critical, got %s", available, level)
		case available >= CriticalFloor && available < threshold && level != StockLow:
			t.Fatalf("%d units under threshold %d should be low, got %s", available, threshold, level)
		case available >= threshold && level != StockGood:
			t.Fatalf("%d units at or over threshold %d should be good, got %s", available, threshold, level)
		}
	})
}

func TestExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		expires  time.Time
		state    ExpiryState
		daysLeft int
	}{
		{"far future", now.AddDate(0, 0, 30), ExpiryValid, 30},
		{"eight days", now.AddDate(0, 0, 8), ExpiryValid, 8},
		{"seven days", now.AddDate(0, 0, 7), ExpiryExpiringSoon, 7},
		{"partial day rounds up", now.Add(36 * time.Hour), ExpiryExpiringSoon, 2},
		{"expires now", now, ExpiryExpiringSoon, 0},
		{"expired hours ago", now.Add(-6 * time.Hour), ExpiryExpiringSoon, 0},
		{"expired a day ago", now.Add(-24 * time.Hour), ExpiryExpired, -1},
		{"long expired", now.AddDate(0, 0, -10), ExpiryExpired, -10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Expiry(tc.expires, now)
			assert.Equal(t, tc.state, got.State)
			assert.Equal(t, tc.daysLeft, got.DaysLeft)
		})
	}
}

func TestExpiry_Properties(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rapid.Check(t, func(t *rapid.T) {
		minutes := rapid.IntRange(-100*24*60, 100*24*60).Draw(t, "minutes")
		got := Expiry(now.Add(time.Duration(minutes)*time.Minute), now)

		switch got.State {
		case ExpiryExpired:
			if got.DaysLeft >= 0 {
				t.Fatalf("expired with %d days left", got.DaysLeft)
			}
		case ExpiryExpiringSoon:
			if got.DaysLeft < 0 || got.DaysLeft > ExpiringSoonDays {
				t.Fatalf("expiring soon with %d days left", got.DaysLeft)
			}
		case ExpiryValid:
			if got.DaysLeft <= ExpiringSoonDays {
				t.Fatalf("valid with %d days left", got.DaysLeft)
			}
		}
	})
}

func summaryUnit(bt bloodtype.BloodType, status Status, collected time.Time) Unit {
	u := NewUnit(uuid.New(), uuid.New(), collected, status)
	u.ABOGroup = bt.Group()
	u.RhFactor = bt.Factor()
	u.CreatedAt = collected
	return u
}

func TestSummarize(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fresh := now.AddDate(0, 0, -1)
	stale := now.AddDate(0, 0, -50)

	var units []Unit
	for i := 0; i < 12; i++ {
		units = append(units, summaryUnit(bloodtype.OPos, StatusAvailable, fresh))
	}
	for i := 0; i < 6; i++ {
		units = append(units, summaryUnit(bloodtype.ANeg, StatusAvailable, fresh))
	}
	units = append(units,
		summaryUnit(bloodtype.ANeg, StatusReserved, fresh),
		summaryUnit(bloodtype.ANeg, StatusIssued, fresh),
		// Past expiry: counted in the total, never as available.
		summaryUnit(bloodtype.ONeg, StatusAvailable, stale),
	)

	summaries := Summarize(units, now, 0)
	require.Len(t, summaries, 8)
	for i, bt := range bloodtype.All() {
		assert.Equal(t, bt, summaries[i].BloodType)
		assert.Equal(t, DefaultMinimumThreshold, summaries[i].MinimumThreshold)
	}

	byType := map[bloodtype.BloodType]Summary{}
	for _, s := range summaries {
		byType[s.BloodType] = s
	}

	assert.Equal(t, 12, byType[bloodtype.OPos].AvailableUnits)
	assert.Equal(t, StockGood, byType[bloodtype.OPos].Level)

	aNeg := byType[bloodtype.ANeg]
	assert.Equal(t, 8, aNeg.TotalUnits)
	assert.Equal(t, 6, aNeg.AvailableUnits)
	assert.Equal(t, 1, aNeg.ReservedUnits)
	assert.Equal(t, StockLow, aNeg.Level)

	oNeg := byType[bloodtype.ONeg]
	assert.Equal(t, 1, oNeg.TotalUnits)
	assert.Equal(t, 0, oNeg.AvailableUnits)
	assert.Equal(t, StockCritical, oNeg.Level)

	assert.Nil(t, byType[bloodtype.ABPos].LastUpdated)
	assert.Equal(t, StockCritical, byType[bloodtype.ABPos].Level)
}
