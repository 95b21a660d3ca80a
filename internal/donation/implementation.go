// internal/donation/implementation.go
package donation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bloodbank/internal/inventory"
)

// service implements the Service interface.
type service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new donation service instance.
func NewService(repo Repository, logger *zap.Logger) Service {
	return &service{repo: repo, logger: logger, now: time.Now}
}

// RecordDonation writes the donation together with the single unit it
// produces. The donor's last donation date and the campaign's collected total
// move forward in the same transaction.
func (s *service) RecordDonation(ctx context.Context, req RecordRequest) (*Recorded, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	donatedAt := now
	if req.DonatedAt != nil {
		donatedAt = req.DonatedAt.UTC()
	}
	result := req.TestResult
	if result == "" {
		result = TestPending
	}

	d := &Donation{
		ID:              uuid.New(),
		DonorID:         req.DonorID,
		HospitalID:      *req.HospitalID,
		CampaignID:      req.CampaignID,
		DonatedAt:       donatedAt,
		TestResult:      result,
		QuantityML:      req.QuantityML,
		HemoglobinLevel: req.HemoglobinLevel,
		Notes:           req.Notes,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	unit := inventory.NewUnit(d.ID, d.HospitalID, d.DonatedAt, d.UnitStatus())
	unit.CreatedAt, unit.UpdatedAt = now, now
	d.InventoryID = &unit.ID

	if err := s.repo.Record(ctx, d, &unit, CheckDonation(*d)); err != nil {
		return nil, fmt.Errorf("failed to record donation: %w", err)
	}

	s.logger.Info("donation recorded",
		zap.Stringer("donation_id", d.ID),
		zap.Stringer("donor_id", d.DonorID),
		zap.Stringer("inventory_id", unit.ID),
		zap.String("blood_type", string(d.BloodType())),
		zap.String("test_result", string(d.TestResult)),
	)
	return &Recorded{Donation: NewView(*d), Unit: inventory.NewView(unit, now)}, nil
}

func (s *service) GetDonation(ctx context.Context, id uuid.UUID) (*View, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	v := NewView(*d)
	return &v, nil
}

func (s *service) ListDonations(ctx context.Context, filter ListFilter) ([]View, error) {
	if filter.TestResult != nil && !filter.TestResult.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTestResult, *filter.TestResult)
	}
	donations, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list donations: %w", err)
	}
	views := make([]View, 0, len(donations))
	for _, d := range donations {
		views = append(views, NewView(d))
	}
	return views, nil
}

// UpdateTestResult records a screening outcome. Rejecting a donation discards
// its unit if the unit is still in stock.
func (s *service) UpdateTestResult(ctx context.Context, id uuid.UUID, to TestResult) (*View, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTestResult, to)
	}
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.TestResult == to {
		v := NewView(*d)
		return &v, nil
	}
	if d.TestResult == TestRejected {
		return nil, ErrResultAlreadyFinal
	}

	from := d.TestResult
	if err := s.repo.UpdateTestResult(ctx, d, to); err != nil {
		return nil, fmt.Errorf("failed to update test result: %w", err)
	}
	s.logger.Info("donation test result changed",
		zap.Stringer("donation_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)

	d.TestResult = to
	d.Version++
	d.UpdatedAt = s.now().UTC()
	v := NewView(*d)
	return &v, nil
}

func (s *service) DeleteDonation(ctx context.Context, id uuid.UUID) error {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, d); err != nil {
		return fmt.Errorf("failed to delete donation: %w", err)
	}
	s.logger.Info("donation deleted", zap.Stringer("donation_id", id))
	return nil
}
