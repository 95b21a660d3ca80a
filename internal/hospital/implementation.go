// internal/hospital/implementation.go
package hospital

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bloodbank/internal/session"
)

// service implements the Service interface.
type service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new hospital service instance.
func NewService(repo Repository, logger *zap.Logger) Service {
	return &service{repo: repo, logger: logger, now: time.Now}
}

func (s *service) CreateHospital(ctx context.Context, req CreateRequest) (*Hospital, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, salt, err := session.HashPasskey(req.Passkey)
	if err != nil {
		return nil, fmt.Errorf("failed to hash passkey: %w", err)
	}

	now := s.now().UTC()
	h := &Hospital{
		ID:         uuid.New(),
		Name:       strings.TrimSpace(req.Name),
		Type:       req.Type,
		Phone:      strings.TrimSpace(req.Phone),
		Email:      req.Email,
		Address:    strings.TrimSpace(req.Address),
		City:       strings.TrimSpace(req.City),
		State:      strings.TrimSpace(req.State),
		PostalCode: strings.TrimSpace(req.PostalCode),
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, h, Credential{HospitalID: h.ID, Hash: hash, Salt: salt}); err != nil {
		return nil, fmt.Errorf("failed to create hospital: %w", err)
	}

	s.logger.Info("hospital registered", zap.Stringer("hospital_id", h.ID), zap.String("name", h.Name))
	return h, nil
}

func (s *service) GetHospital(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	return s.repo.Get(ctx, id)
}

// ListHospitals returns every hospital ordered by name.
func (s *service) ListHospitals(ctx context.Context) ([]Hospital, error) {
	return s.repo.List(ctx)
}

func (s *service) UpdateHospital(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Hospital, error) {
	h, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := req.Apply(h); err != nil {
		return nil, err
	}

	var cred *Credential
	if req.Passkey != nil {
		hash, salt, err := session.HashPasskey(*req.Passkey)
		if err != nil {
			return nil, fmt.Errorf("failed to hash passkey: %w", err)
		}
		cred = &Credential{HospitalID: id, Hash: hash, Salt: salt}
	}

	if err := s.repo.Update(ctx, h, cred); err != nil {
		return nil, fmt.Errorf("failed to update hospital: %w", err)
	}
	h.Version++
	h.UpdatedAt = s.now().UTC()
	return h, nil
}

// DeleteHospital removes a hospital that no longer owns any record.
func (s *service) DeleteHospital(ctx context.Context, id uuid.UUID) error {
	h, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, h); err != nil {
		return fmt.Errorf("failed to delete hospital: %w", err)
	}
	s.logger.Info("hospital deleted", zap.Stringer("hospital_id", id))
	return nil
}

// Authenticate checks a hospital passkey against its stored hash.
func (s *service) Authenticate(ctx context.Context, id uuid.UUID, passkey string) error {
	cred, err := s.repo.GetCredential(ctx, id)
	if err != nil {
		return err
	}
	if cred.Hash == "" {
		return session.ErrInvalidCredentials
	}
	ok, err := session.VerifyPasskey(passkey, cred.Salt, cred.Hash)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	if !ok {
		return session.ErrInvalidCredentials
	}
	return nil
}
