// internal/transfusion/implementation.go
package transfusion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"bloodbank/internal/alert"
	"bloodbank/internal/apperr"
	"bloodbank/internal/bloodtype"
	"bloodbank/internal/inventory"
)

// IdempotencyTTL is how long a claimed Idempotency-Key stays reserved.
const IdempotencyTTL = 24 * time.Hour

// service implements the Service interface.
type service struct {
	repo     Repository
	stock    Stock
	patients Patients
	keys     IdempotencyStore
	alerts   alert.Publisher
	logger   *zap.Logger
	now      func() time.Time

	tracer   trace.Tracer
	recorded metric.Int64Counter
	rejected metric.Int64Counter
}

// NewService creates a new transfusion service instance. keys may be nil, in
// which case idempotency keys are ignored.
func NewService(repo Repository, stock Stock, patients Patients, keys IdempotencyStore, alerts alert.Publisher, logger *zap.Logger) (Service, error) {
	if alerts == nil {
		alerts = alert.Nop{}
	}
	meter := otel.Meter("bloodbank/transfusion")
	recorded, err := meter.Int64Counter("bloodbank.transfusions.recorded",
		metric.WithDescription("Transfusions committed"))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	rejected, err := meter.Int64Counter("bloodbank.transfusions.rejected",
		metric.WithDescription("Transfusion commits refused, by reason"))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}

	return &service{
		repo:     repo,
		stock:    stock,
		patients: patients,
		keys:     keys,
		alerts:   alerts,
		logger:   logger,
		now:      time.Now,
		tracer:   otel.Tracer("bloodbank/transfusion"),
		recorded: recorded,
		rejected: rejected,
	}, nil
}

func (s *service) Record(ctx context.Context, req RecordRequest, idempotencyKey string) (*Transfusion, error) {
	ctx, span := s.tracer.Start(ctx, "transfusion.record",
		trace.WithAttributes(
			attribute.String("inventory.id", req.InventoryID.String()),
			attribute.String("patient.id", req.PatientID.String()),
		),
	)
	defer span.End()

	t, unit, err := s.record(ctx, req, idempotencyKey)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transfusion refused")
		s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", rejectReason(err))))
		return nil, err
	}

	s.recorded.Add(ctx, 1, metric.WithAttributes(attribute.String("blood_type", string(unit.BloodType()))))
	span.SetAttributes(attribute.String("transfusion.id", t.ID.String()))
	s.logger.Info("transfusion recorded",
		zap.Stringer("transfusion_id", t.ID),
		zap.Stringer("inventory_id", t.InventoryID),
		zap.Stringer("patient_id", t.PatientID),
		zap.String("blood_type", string(unit.BloodType())),
	)

	s.checkStock(ctx, unit.BloodType())
	return t, nil
}

func (s *service) record(ctx context.Context, req RecordRequest, idempotencyKey string) (*Transfusion, *inventory.Unit, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	if idempotencyKey != "" && s.keys != nil {
		key := "transfusion:" + idempotencyKey
		claimed, err := s.keys.ClaimIdempotencyKey(ctx, key, IdempotencyTTL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to claim idempotency key: %w", err)
		}
		if !claimed {
			return nil, nil, ErrDuplicateRequest
		}
		var committed bool
		defer func() {
			if committed {
				return
			}
			if err := s.keys.ReleaseIdempotencyKey(context.WithoutCancel(ctx), key); err != nil {
				s.logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(err))
			}
		}()
		t, unit, err := s.commit(ctx, req)
		committed = err == nil
		return t, unit, err
	}
	return s.commit(ctx, req)
}

func (s *service) commit(ctx context.Context, req RecordRequest) (*Transfusion, *inventory.Unit, error) {
	now := s.now().UTC()
	at := now
	if req.TransfusionDate != nil {
		at = req.TransfusionDate.UTC()
	}
	units := req.UnitsTransfused
	if units == 0 {
		units = 1
	}

	t := &Transfusion{
		ID:              uuid.New(),
		PatientID:       req.PatientID,
		InventoryID:     req.InventoryID,
		HospitalID:      *req.HospitalID,
		TransfusedAt:    at,
		UnitsTransfused: units,
		Notes:           req.Notes,
		CreatedAt:       now,
	}
	unit, err := s.repo.Commit(ctx, t, CheckTransfusion(*t, now))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to record transfusion: %w", err)
	}
	return t, unit, nil
}

// checkStock raises a stock alert when the issued type runs low. Failures are
// logged and never undo the transfusion.
func (s *service) checkStock(ctx context.Context, bt bloodtype.BloodType) {
	summary, err := s.stock.TypeSummary(ctx, bt)
	if err != nil {
		s.logger.Warn("failed to recompute stock", zap.String("blood_type", string(bt)), zap.Error(err))
		return
	}
	a, ok := alert.NewStockAlert(*summary, s.now())
	if !ok {
		return
	}
	if err := s.alerts.PublishStockAlert(ctx, a); err != nil {
		s.logger.Warn("failed to publish stock alert",
			zap.String("blood_type", string(bt)),
			zap.String("level", string(a.Level)),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("stock alert published",
		zap.String("blood_type", string(bt)),
		zap.String("level", string(a.Level)),
		zap.Int("available_units", a.AvailableUnits),
	)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Transfusion, error) {
	return s.repo.Get(ctx, id)
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]Transfusion, error) {
	transfusions, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfusions: %w", err)
	}
	return transfusions, nil
}

// Candidates lists the patients of the unit's hospital who can receive it.
// An empty list is reported as such, never widened.
func (s *service) Candidates(ctx context.Context, unitID uuid.UUID, hospitalID *uuid.UUID) (*Candidates, error) {
	unit, err := s.stock.GetUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if hospitalID != nil && unit.HospitalID != *hospitalID {
		return nil, ErrForeignUnit
	}
	if unit.EffectiveStatus != inventory.StatusAvailable {
		return nil, fmt.Errorf("%w: unit %s is %s", ErrUnitNotAvailable, unit.ID, unit.EffectiveStatus)
	}

	patients, err := s.patients.CompatiblePatients(ctx, unit.HospitalID, unit.BloodType)
	if err != nil {
		return nil, fmt.Errorf("failed to find compatible patients: %w", err)
	}
	c := &Candidates{Unit: *unit, Patients: patients}
	if len(patients) == 0 {
		c.Message = NoCompatiblePatient
	}
	return c, nil
}

// Delete removes a transfusion record. The unit it consumed stays Issued.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, t); err != nil {
		return fmt.Errorf("failed to delete transfusion: %w", err)
	}
	s.logger.Info("transfusion deleted",
		zap.Stringer("transfusion_id", id),
		zap.Stringer("inventory_id", t.InventoryID),
	)
	return nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrUnitNotAvailable):
		return "unit_not_available"
	case errors.Is(err, ErrIncompatibleBloodType):
		return "incompatible"
	case errors.Is(err, ErrDuplicateRequest):
		return "duplicate"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrInvalid):
		return "invalid"
	default:
		return "error"
	}
}
