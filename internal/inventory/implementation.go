// internal/inventory/implementation.go
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bloodbank/internal/apperr"
	"bloodbank/internal/bloodtype"
	"bloodbank/pkg/eventstore"
)

// service implements the Service interface.
type service struct {
	repo             Repository
	logger           *zap.Logger
	minimumThreshold int
	now              func() time.Time
}

// NewService creates a new inventory service instance.
func NewService(repo Repository, logger *zap.Logger, minimumThreshold int) Service {
	if minimumThreshold <= 0 {
		minimumThreshold = DefaultMinimumThreshold
	}
	return &service{
		repo:             repo,
		logger:           logger,
		minimumThreshold: minimumThreshold,
		now:              time.Now,
	}
}

func (s *service) GetUnit(ctx context.Context, id uuid.UUID) (*View, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	v := NewView(*u, s.now())
	return &v, nil
}

// ListUnits loads the units matching the store-side filters and applies the
// read-time ones (effective status, expiry window) as of now.
func (s *service) ListUnits(ctx context.Context, filter ListFilter) ([]View, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *filter.Status)
	}
	if filter.ExpiringWithinDays != nil && *filter.ExpiringWithinDays < 0 {
		return nil, apperr.Invalidf("expiring window must not be negative")
	}

	units, err := s.repo.List(ctx, filter.HospitalID, filter.BloodType)
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}

	now := s.now()
	views := make([]View, 0, len(units))
	for _, u := range units {
		v := NewView(u, now)
		if filter.Status != nil && v.EffectiveStatus != *filter.Status {
			continue
		}
		if filter.ExpiringWithinDays != nil {
			if v.EffectiveStatus != StatusAvailable && v.EffectiveStatus != StatusReserved {
				continue
			}
			if v.Expiry.DaysLeft > *filter.ExpiringWithinDays {
				continue
			}
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *service) Summary(ctx context.Context, hospitalID *uuid.UUID) ([]Summary, error) {
	units, err := s.repo.List(ctx, hospitalID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load units: %w", err)
	}
	return Summarize(units, s.now(), s.minimumThreshold), nil
}

// TypeSummary recomputes the stock position of a single blood type.
func (s *service) TypeSummary(ctx context.Context, bt bloodtype.BloodType) (*Summary, error) {
	if !bt.Valid() {
		return nil, fmt.Errorf("%w: %q", bloodtype.ErrUnknownBloodType, bt)
	}
	units, err := s.repo.List(ctx, nil, &bt)
	if err != nil {
		return nil, fmt.Errorf("failed to load units: %w", err)
	}
	for _, sum := range Summarize(units, s.now(), s.minimumThreshold) {
		if sum.BloodType == bt {
			return &sum, nil
		}
	}
	return nil, fmt.Errorf("no summary for %s", bt)
}

// TransitionUnit applies a manual status change. Issuing a unit is only
// possible by recording a transfusion.
func (s *service) TransitionUnit(ctx context.Context, id uuid.UUID, to Status, reason string) (*View, error) {
	if to == StatusIssued {
		return nil, apperr.Rulef("units are issued by recording a transfusion")
	}

	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := u.Transition(to, now); err != nil {
		return nil, err
	}
	from := u.Status
	if err := s.repo.UpdateStatus(ctx, u, to, reason); err != nil {
		return nil, fmt.Errorf("failed to update unit status: %w", err)
	}

	s.logger.Info("unit status changed",
		zap.Stringer("inventory_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)

	u.Status = to
	u.Version++
	v := NewView(*u, now)
	return &v, nil
}

func (s *service) History(ctx context.Context, id uuid.UUID) ([]eventstore.Event, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, id)
}

func (s *service) Export(ctx context.Context, filter ListFilter) ([]byte, error) {
	views, err := s.ListUnits(ctx, filter)
	if err != nil {
		return nil, err
	}
	summaries, err := s.Summary(ctx, filter.HospitalID)
	if err != nil {
		return nil, err
	}
	return BuildWorkbook(views, summaries, s.now())
}
