// internal/campaign/implementation.go
package campaign

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bloodbank/internal/apperr"
)

// service implements the Service interface.
type service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new campaign service instance.
func NewService(repo Repository, logger *zap.Logger) Service {
	return &service{repo: repo, logger: logger, now: time.Now}
}

func (s *service) CreateCampaign(ctx context.Context, req CreateRequest) (*View, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	c := &Campaign{
		ID:         uuid.New(),
		HospitalID: *req.HospitalID,
		Name:       strings.TrimSpace(req.Name),
		StartDate:  dateOf(req.StartDate.Time),
		EndDate:    dateOf(req.EndDate.Time),
		Location:   strings.TrimSpace(req.Location),
		Notes:      req.Notes,
		Version:    1,
		CreatedAt:  now.UTC(),
		UpdatedAt:  now.UTC(),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	s.logger.Info("campaign created",
		zap.Stringer("campaign_id", c.ID),
		zap.Stringer("hospital_id", c.HospitalID),
	)
	v := NewView(*c, now)
	return &v, nil
}

func (s *service) GetCampaign(ctx context.Context, id uuid.UUID) (*View, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	v := NewView(*c, s.now())
	return &v, nil
}

func (s *service) ListCampaigns(ctx context.Context, filter ListFilter) ([]View, error) {
	if filter.Phase != nil && !filter.Phase.Valid() {
		return nil, apperr.Invalidf("unknown phase %q", *filter.Phase)
	}
	campaigns, err := s.repo.List(ctx, filter.HospitalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}

	now := s.now()
	views := make([]View, 0, len(campaigns))
	for _, c := range campaigns {
		v := NewView(c, now)
		if filter.Phase != nil && v.Phase != *filter.Phase {
			continue
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *service) UpdateCampaign(ctx context.Context, id uuid.UUID, req UpdateRequest) (*View, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := req.Apply(c); err != nil {
		return nil, err
	}
	c.StartDate, c.EndDate = dateOf(c.StartDate), dateOf(c.EndDate)
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to update campaign: %w", err)
	}

	now := s.now()
	c.Version++
	c.UpdatedAt = now.UTC()
	v := NewView(*c, now)
	return &v, nil
}

func (s *service) DeleteCampaign(ctx context.Context, id uuid.UUID) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, c); err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}
	s.logger.Info("campaign deleted", zap.Stringer("campaign_id", id))
	return nil
}
