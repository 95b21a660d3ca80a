// internal/hospital/postgres.go
package hospital

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"bloodbank/internal/platform/postgres"
	"bloodbank/pkg/eventstore"
)

const selectHospitals = `
	SELECT hospital_id, name, type, phone, email, address, city, state,
	       postal_code, version, created_at, updated_at
	FROM hospitals
`

// PostgresRepository stores hospitals in PostgreSQL and records their events.
type PostgresRepository struct {
	db         *sqlx.DB
	eventStore *eventstore.EventStore
}

func NewPostgresRepository(db *sqlx.DB, es *eventstore.EventStore) *PostgresRepository {
	return &PostgresRepository{db: db, eventStore: es}
}

func (r *PostgresRepository) Create(ctx context.Context, h *Hospital, cred Credential) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO hospitals (hospital_id, name, type, phone, email, address, city, state,
		                       postal_code, passkey_hash, passkey_salt, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, h.ID, h.Name, h.Type, h.Phone, h.Email, h.Address, h.City, h.State,
		h.PostalCode, cred.Hash, cred.Salt, h.Version, h.CreatedAt, h.UpdatedAt)
	if err != nil {
		return postgres.MapError(err)
	}

	event, err := eventstore.NewEvent("HospitalRegistered", HospitalRegisteredEvent{ID: h.ID, Name: h.Name, City: h.City})
	if err != nil {
		return err
	}
	if err := r.eventStore.Append(ctx, tx, h.ID, eventstore.AggregateHospital, 0, event); err != nil {
		return postgres.MapError(err)
	}
	return tx.Commit()
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	var h Hospital
	err := r.db.GetContext(ctx, &h, selectHospitals+` WHERE hospital_id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrHospitalNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get hospital from read model: %w", err)
	}
	return &h, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]Hospital, error) {
	hospitals := []Hospital{}
	if err := r.db.SelectContext(ctx, &hospitals, selectHospitals+` ORDER BY name ASC`); err != nil {
		return nil, fmt.Errorf("failed to list hospitals: %w", err)
	}
	return hospitals, nil
}

func (r *PostgresRepository) Update(ctx context.Context, h *Hospital, cred *Credential) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE hospitals
		SET name = $1, type = $2, phone = $3, email = $4, address = $5, city = $6,
		    state = $7, postal_code = $8, version = version + 1, updated_at = NOW()
		WHERE hospital_id = $9 AND version = $10
	`, h.Name, h.Type, h.Phone, h.Email, h.Address, h.City, h.State, h.PostalCode, h.ID, h.Version)
	if err != nil {
		return postgres.MapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return postgres.MapError(eventstore.ErrConcurrencyConflict)
	}

	if cred != nil {
		if _, err := tx.ExecContext(ctx, `
			UPDATE hospitals SET passkey_hash = $1, passkey_salt = $2 WHERE hospital_id = $3
		`, cred.Hash, cred.Salt, h.ID); err != nil {
			return postgres.MapError(err)
		}
	}

	event, err := eventstore.NewEvent("HospitalUpdated", HospitalUpdatedEvent{ID: h.ID, Name: h.Name, PasskeyRotated: cred != nil})
	if err != nil {
		return err
	}
	if err := r.eventStore.Append(ctx, tx, h.ID, eventstore.AggregateHospital, h.Version, event); err != nil {
		return postgres.MapError(err)
	}
	return tx.Commit()
}

func (r *PostgresRepository) Delete(ctx context.Context, h *Hospital) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM hospitals WHERE hospital_id = $1`, h.ID); err != nil {
		return postgres.MapError(err)
	}

	event, err := eventstore.NewEvent("HospitalDeleted", HospitalDeletedEvent{ID: h.ID})
	if err != nil {
		return err
	}
	if err := r.eventStore.Append(ctx, tx, h.ID, eventstore.AggregateHospital, h.Version, event); err != nil {
		return postgres.MapError(err)
	}
	return tx.Commit()
}

func (r *PostgresRepository) GetCredential(ctx context.Context, id uuid.UUID) (*Credential, error) {
	var cred Credential
	err := r.db.GetContext(ctx, &cred, `
		SELECT hospital_id, passkey_hash, passkey_salt FROM hospitals WHERE hospital_id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrHospitalNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get hospital credential: %w", err)
	}
	return &cred, nil
}
