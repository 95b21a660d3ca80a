// internal/transfusion/postgres.go
package transfusion

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"bloodbank/internal/inventory"
	"bloodbank/internal/patient"
	"bloodbank/internal/platform/postgres"
	"bloodbank/pkg/eventstore"
)

const selectTransfusions = `
	SELECT transfusion_id, patient_id, inventory_id, hospital_id, transfusion_date,
	       units_transfused, notes, created_at
	FROM transfusions
`

// PostgresRepository stores transfusions in PostgreSQL and records their events.
type PostgresRepository struct {
	db         *sqlx.DB
	eventStore *eventstore.EventStore
}

func NewPostgresRepository(db *sqlx.DB, es *eventstore.EventStore) *PostgresRepository {
	return &PostgresRepository{db: db, eventStore: es}
}

// Commit locks the unit row, then the patient, runs check against both and
// issues the unit. The status guard on the update and the unique inventory_id
// of transfusions each let only one commit per unit succeed.
func (r *PostgresRepository) Commit(ctx context.Context, t *Transfusion, check Check) (*inventory.Unit, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var unit inventory.Unit
	err = tx.GetContext(ctx, &unit, inventory.SelectUnits+` WHERE i.inventory_id = $1 FOR UPDATE OF i`, t.InventoryID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", inventory.ErrUnitNotFound, t.InventoryID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock unit: %w", err)
	}
	p, err := patient.GetPatient(ctx, tx, t.PatientID)
	if err != nil {
		return nil, err
	}
	if err := check(Snapshot{Unit: unit, Patient: *p}); err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE inventory
		SET status = $1, version = version + 1, updated_at = $2
		WHERE inventory_id = $3 AND status = $4
	`, inventory.StatusIssued, t.CreatedAt, unit.ID, inventory.StatusAvailable)
	if err != nil {
		return nil, postgres.MapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: unit %s", ErrUnitNotAvailable, unit.ID)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transfusions (transfusion_id, patient_id, inventory_id, hospital_id,
		                          transfusion_date, units_transfused, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, t.ID, t.PatientID, t.InventoryID, t.HospitalID, t.TransfusedAt, t.UnitsTransfused, t.Notes, t.CreatedAt)
	if postgres.IsUniqueViolation(err) {
		return nil, fmt.Errorf("%w: unit %s already transfused", ErrUnitNotAvailable, unit.ID)
	}
	if err != nil {
		return nil, postgres.MapError(err)
	}

	recorded, err := eventstore.NewEvent("TransfusionRecorded", TransfusionRecordedEvent{
		ID:          t.ID,
		PatientID:   t.PatientID,
		InventoryID: t.InventoryID,
		HospitalID:  t.HospitalID,
		BloodType:   unit.BloodType(),
	})
	if err != nil {
		return nil, err
	}
	if err := r.eventStore.Append(ctx, tx, t.ID, eventstore.AggregateTransfusion, 0, recorded); err != nil {
		return nil, postgres.MapError(err)
	}

	issued, err := eventstore.NewEvent(inventory.EventUnitIssued, inventory.UnitStatusChangedEvent{
		ID:     unit.ID,
		From:   unit.Status,
		To:     inventory.StatusIssued,
		Reason: "transfusion " + t.ID.String(),
	})
	if err != nil {
		return nil, err
	}
	if err := r.eventStore.Append(ctx, tx, unit.ID, eventstore.AggregateUnit, unit.Version, issued); err != nil {
		return nil, postgres.MapError(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	unit.Status = inventory.StatusIssued
	unit.Version++
	return &unit, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*Transfusion, error) {
	var t Transfusion
	err := r.db.GetContext(ctx, &t, selectTransfusions+` WHERE transfusion_id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTransfusionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transfusion from read model: %w", err)
	}
	return &t, nil
}

func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]Transfusion, error) {
	var (
		where []string
		args  []any
	)
	if filter.HospitalID != nil {
		args = append(args, *filter.HospitalID)
		where = append(where, fmt.Sprintf("hospital_id = $%d", len(args)))
	}
	if filter.PatientID != nil {
		args = append(args, *filter.PatientID)
		where = append(where, fmt.Sprintf("patient_id = $%d", len(args)))
	}

	q := selectTransfusions
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY transfusion_date DESC"

	transfusions := []Transfusion{}
	if err := r.db.SelectContext(ctx, &transfusions, q, args...); err != nil {
		return nil, fmt.Errorf("failed to list transfusions: %w", err)
	}
	return transfusions, nil
}

// Delete removes the record only; the unit stays Issued.
func (r *PostgresRepository) Delete(ctx context.Context, t *Transfusion) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM transfusions WHERE transfusion_id = $1`, t.ID)
	if err != nil {
		return postgres.MapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrTransfusionNotFound, t.ID)
	}

	event, err := eventstore.NewEvent("TransfusionDeleted", TransfusionDeletedEvent{ID: t.ID, InventoryID: t.InventoryID})
	if err != nil {
		return err
	}
	if err := r.eventStore.Append(ctx, tx, t.ID, eventstore.AggregateTransfusion, 1, event); err != nil {
		return postgres.MapError(err)
	}
	return tx.Commit()
}
