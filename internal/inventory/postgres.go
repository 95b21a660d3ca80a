// internal/inventory/postgres.go
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"bloodbank/internal/bloodtype"
	"bloodbank/internal/platform/postgres"
	"bloodbank/pkg/eventstore"
)

const (
	EventUnitCreated       = "UnitCreated"
	EventUnitStatusChanged = "UnitStatusChanged"
	EventUnitIssued        = "UnitIssued"
)

// SelectUnits reads units together with the blood type of their donor.
const SelectUnits = `
	SELECT i.inventory_id, i.donation_id, i.hospital_id, i.number_of_units,
	       i.collection_ts, i.expiry_ts, i.status, i.notes, i.version,
	       i.created_at, i.updated_at, d.abo_group, d.rh_factor
	FROM inventory i
	JOIN donations dn ON dn.donation_id = i.donation_id
	JOIN donors d ON d.donor_id = dn.donor_id
`

// PostgresRepository stores units in PostgreSQL and records their events.
type PostgresRepository struct {
	db         *sqlx.DB
	eventStore *eventstore.EventStore
}

func NewPostgresRepository(db *sqlx.DB, es *eventstore.EventStore) *PostgresRepository {
	return &PostgresRepository{db: db, eventStore: es}
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*Unit, error) {
	var u Unit
	err := r.db.GetContext(ctx, &u, SelectUnits+` WHERE i.inventory_id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUnitNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get unit from read model: %w", err)
	}
	return &u, nil
}

func (r *PostgresRepository) List(ctx context.Context, hospitalID *uuid.UUID, bt *bloodtype.BloodType) ([]Unit, error) {
	var (
		where []string
		args  []any
	)
	if hospitalID != nil {
		args = append(args, *hospitalID)
		where = append(where, fmt.Sprintf("i.hospital_id = $%d", len(args)))
	}
	if bt != nil {
		args = append(args, bt.Group(), bt.Factor())
		where = append(where, fmt.Sprintf("d.abo_group = $%d AND d.rh_factor = $%d", len(args)-1, len(args)))
	}

	query := SelectUnits
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY i.expiry_ts ASC"

	units := []Unit{}
	if err := r.db.SelectContext(ctx, &units, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}
	return units, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, u *Unit, to Status, reason string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := SetStatus(ctx, tx, r.eventStore, u, to, reason); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *PostgresRepository) History(ctx context.Context, id uuid.UUID) ([]eventstore.Event, error) {
	return r.eventStore.LoadEvents(ctx, id, 0, 0)
}

// InsertUnit writes a new unit and its creation event inside tx.
func InsertUnit(ctx context.Context, tx *sqlx.Tx, es *eventstore.EventStore, u Unit) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO inventory (inventory_id, donation_id, hospital_id, number_of_units,
		                       collection_ts, expiry_ts, status, notes, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, u.ID, u.DonationID, u.HospitalID, u.NumberOfUnits, u.CollectedAt, u.ExpiresAt, u.Status, u.Notes, u.Version)
	if err != nil {
		return postgres.MapError(fmt.Errorf("insert unit: %w", err))
	}

	event, err := eventstore.NewEvent(EventUnitCreated, UnitCreatedEvent{
		ID:          u.ID,
		DonationID:  u.DonationID,
		HospitalID:  u.HospitalID,
		CollectedAt: u.CollectedAt,
		ExpiresAt:   u.ExpiresAt,
		Status:      u.Status,
	})
	if err != nil {
		return err
	}
	return postgres.MapError(es.Append(ctx, tx, u.ID, eventstore.AggregateUnit, 0, event))
}

// SetStatus moves u to a new stored status inside tx, guarded by its version.
func SetStatus(ctx context.Context, tx *sqlx.Tx, es *eventstore.EventStore, u *Unit, to Status, reason string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE inventory
		SET status = $1, version = version + 1, updated_at = $2
		WHERE inventory_id = $3 AND version = $4
	`, to, time.Now().UTC(), u.ID, u.Version)
	if err != nil {
		return postgres.MapError(fmt.Errorf("update unit status: %w", err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return postgres.MapError(eventstore.ErrConcurrencyConflict)
	}

	event, err := eventstore.NewEvent(EventUnitStatusChanged, UnitStatusChangedEvent{
		ID:     u.ID,
		From:   u.Status,
		To:     to,
		Reason: reason,
	})
	if err != nil {
		return err
	}
	return postgres.MapError(es.Append(ctx, tx, u.ID, eventstore.AggregateUnit, u.Version, event))
}
