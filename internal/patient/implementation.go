// internal/patient/implementation.go
package patient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bloodbank/internal/bloodtype"
)

// service implements the Service interface.
type service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new patient service instance.
func NewService(repo Repository, logger *zap.Logger) Service {
	return &service{repo: repo, logger: logger, now: time.Now}
}

func (s *service) AdmitPatient(ctx context.Context, req CreateRequest) (*View, error) {
	now := s.now()
	if err := req.Validate(now); err != nil {
		return nil, err
	}

	p := &Patient{
		ID:          uuid.New(),
		HospitalID:  *req.HospitalID,
		CaseNo:      strings.TrimSpace(req.CaseNo),
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		DateOfBirth: req.DateOfBirth.Time,
		Sex:         req.Sex,
		ABOGroup:    req.BloodType.Group(),
		RhFactor:    req.BloodType.Factor(),
		Diagnosis:   req.Diagnosis,
		Notes:       req.Notes,
		Version:     1,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to admit patient: %w", err)
	}

	s.logger.Info("patient admitted",
		zap.Stringer("patient_id", p.ID),
		zap.Stringer("hospital_id", p.HospitalID),
		zap.String("blood_type", string(p.BloodType())),
	)
	v := NewView(*p)
	return &v, nil
}

func (s *service) GetPatient(ctx context.Context, id uuid.UUID) (*View, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	v := NewView(*p)
	return &v, nil
}

func (s *service) ListPatients(ctx context.Context, filter ListFilter) ([]View, error) {
	var types []bloodtype.BloodType
	if filter.BloodType != nil {
		if !filter.BloodType.Valid() {
			return nil, fmt.Errorf("%w: %q", bloodtype.ErrUnknownBloodType, *filter.BloodType)
		}
		types = []bloodtype.BloodType{*filter.BloodType}
	}
	patients, err := s.repo.List(ctx, filter.HospitalID, types)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return views(patients), nil
}

func (s *service) CompatiblePatients(ctx context.Context, hospitalID uuid.UUID, donorType bloodtype.BloodType) ([]View, error) {
	if !donorType.Valid() {
		return nil, fmt.Errorf("%w: %q", bloodtype.ErrUnknownBloodType, donorType)
	}
	patients, err := s.repo.List(ctx, &hospitalID, bloodtype.CompatibleRecipients(donorType))
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return views(FilterCompatible(donorType, patients)), nil
}

func (s *service) UpdatePatient(ctx context.Context, id uuid.UUID, req UpdateRequest) (*View, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := req.Apply(p); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update patient: %w", err)
	}
	p.Version++
	p.UpdatedAt = s.now().UTC()
	v := NewView(*p)
	return &v, nil
}

func (s *service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, p); err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	s.logger.Info("patient deleted", zap.Stringer("patient_id", id))
	return nil
}

func views(patients []Patient) []View {
	out := make([]View, 0, len(patients))
	for _, p := range patients {
		out = append(out, NewView(p))
	}
	return out
}
