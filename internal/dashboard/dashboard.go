// internal/dashboard/dashboard.go
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bloodbank/internal/donation"
	"bloodbank/internal/donor"
	"bloodbank/internal/inventory"
)

// Stats are the headline counts of the dashboard. Donor counts are global;
// donation and unit counts follow the requested hospital.
type Stats struct {
	TotalDonors        int       `json:"total_donors"`
	EligibleDonors     int       `json:"eligible_donors"`
	TotalDonations     int       `json:"total_donations"`
	AcceptedDonations  int       `json:"accepted_donations"`
	TotalUnits         int       `json:"total_units"`
	AvailableUnits     int       `json:"available_units"`
	LowStockTypes      int       `json:"low_stock_types"`
	CriticalStockTypes int       `json:"critical_stock_types"`
	GeneratedAt        time.Time `json:"generated_at"`
}

type Donors interface {
	ListDonors(ctx context.Context, filter donor.ListFilter) ([]donor.View, error)
}

type Donations interface {
	ListDonations(ctx context.Context, filter donation.ListFilter) ([]donation.View, error)
}

type Stock interface {
	Summary(ctx context.Context, hospitalID *uuid.UUID) ([]inventory.Summary, error)
}

type Service interface {
	Stats(ctx context.Context, hospitalID *uuid.UUID) (*Stats, error)
}

type service struct {
	donors    Donors
	donations Donations
	stock     Stock
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(donors Donors, donations Donations, stock Stock, logger *zap.Logger) Service {
	return &service{donors: donors, donations: donations, stock: stock, logger: logger, now: time.Now}
}

func (s *service) Stats(ctx context.Context, hospitalID *uuid.UUID) (*Stats, error) {
	var (
		donors    []donor.View
		donations []donation.View
		summaries []inventory.Summary
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		donors, err = s.donors.ListDonors(ctx, donor.ListFilter{})
		return err
	})
	g.Go(func() (err error) {
		donations, err = s.donations.ListDonations(ctx, donation.ListFilter{HospitalID: hospitalID})
		return err
	})
	g.Go(func() (err error) {
		summaries, err = s.stock.Summary(ctx, hospitalID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to collect dashboard stats: %w", err)
	}

	stats := &Stats{
		TotalDonors:    len(donors),
		TotalDonations: len(donations),
		GeneratedAt:    s.now().UTC(),
	}
	for _, d := range donors {
		if d.Eligibility.Eligible {
			stats.EligibleDonors++
		}
	}
	for _, d := range donations {
		if d.TestResult == donation.TestAccepted {
			stats.AcceptedDonations++
		}
	}
	for _, sum := range summaries {
		stats.TotalUnits += sum.TotalUnits
		stats.AvailableUnits += sum.AvailableUnits
		switch sum.Level {
		case inventory.StockLow:
			stats.LowStockTypes++
		case inventory.StockCritical:
			stats.CriticalStockTypes++
		}
	}
	return stats, nil
}
