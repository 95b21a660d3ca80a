// internal/donor/implementation.go
package donor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bloodbank/internal/apperr"
	"bloodbank/internal/bloodtype"
	"bloodbank/internal/eligibility"
)

// service implements the Service interface.
type service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new donor service instance.
func NewService(repo Repository, logger *zap.Logger) Service {
	return &service{repo: repo, logger: logger, now: time.Now}
}

func (s *service) RegisterDonor(ctx context.Context, req CreateRequest) (*View, error) {
	now := s.now()
	if err := req.Validate(now); err != nil {
		return nil, err
	}

	last := ParseLastDonation(req.LastDonationDate)
	if last == nil && req.LastDonationDate != nil && strings.TrimSpace(*req.LastDonationDate) != "" {
		s.logger.Warn("ignoring malformed last donation date", zap.String("value", *req.LastDonationDate))
	}

	d := &Donor{
		ID:               uuid.New(),
		FirstName:        strings.TrimSpace(req.FirstName),
		LastName:         strings.TrimSpace(req.LastName),
		DateOfBirth:      req.DateOfBirth.Time,
		Sex:              req.Sex,
		PhoneNumber:      strings.TrimSpace(req.PhoneNumber),
		Email:            req.Email,
		ABOGroup:         req.BloodType.Group(),
		RhFactor:         req.BloodType.Factor(),
		LastDonationDate: last,
		City:             req.City,
		Notes:            req.Notes,
		Version:          1,
		CreatedAt:        now.UTC(),
		UpdatedAt:        now.UTC(),
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to register donor: %w", err)
	}

	s.logger.Info("donor registered",
		zap.Stringer("donor_id", d.ID),
		zap.String("blood_type", string(d.BloodType())),
	)
	v := NewView(*d, now)
	return &v, nil
}

// GetDonor returns the donor with eligibility evaluated as of now.
func (s *service) GetDonor(ctx context.Context, id uuid.UUID) (*View, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	v := NewView(*d, s.now())
	return &v, nil
}

func (s *service) ListDonors(ctx context.Context, filter ListFilter) ([]View, error) {
	var types []bloodtype.BloodType
	switch {
	case filter.BloodType != nil && filter.CompatibleWith != nil:
		if bloodtype.CanReceive(*filter.BloodType, *filter.CompatibleWith) {
			types = []bloodtype.BloodType{*filter.BloodType}
		} else {
			return []View{}, nil
		}
	case filter.BloodType != nil:
		types = []bloodtype.BloodType{*filter.BloodType}
	case filter.CompatibleWith != nil:
		types = bloodtype.CompatibleDonors(*filter.CompatibleWith)
	}
	for _, bt := range types {
		if !bt.Valid() {
			return nil, fmt.Errorf("%w: %q", bloodtype.ErrUnknownBloodType, bt)
		}
	}
	if filter.Eligibility != nil && *filter.Eligibility != eligibility.StatusEligible && *filter.Eligibility != eligibility.StatusDeferred {
		return nil, apperr.Invalidf("eligibility must be Eligible or Deferred")
	}

	donors, err := s.repo.List(ctx, types, strings.TrimSpace(filter.Query))
	if err != nil {
		return nil, fmt.Errorf("failed to list donors: %w", err)
	}

	now := s.now()
	views := make([]View, 0, len(donors))
	for _, d := range donors {
		v := NewView(d, now)
		if filter.Eligibility != nil && v.CalculatedEligibility != *filter.Eligibility {
			continue
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *service) UpdateDonor(ctx context.Context, id uuid.UUID, req UpdateRequest) (*View, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := req.Apply(d, now); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to update donor: %w", err)
	}
	d.Version++
	d.UpdatedAt = now.UTC()
	v := NewView(*d, now)
	return &v, nil
}

func (s *service) DeleteDonor(ctx context.Context, id uuid.UUID) error {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, d); err != nil {
		return fmt.Errorf("failed to delete donor: %w", err)
	}
	s.logger.Info("donor deleted", zap.Stringer("donor_id", id))
	return nil
}
