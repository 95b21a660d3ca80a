// internal/patient/postgres.go
package patient

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"bloodbank/internal/bloodtype"
	"bloodbank/internal/platform/postgres"
	"bloodbank/pkg/eventstore"
)

const selectPatients = `
	SELECT patient_id, hospital_id, case_no, first_name, last_name, date_of_birth, sex,
	       abo_group, rh_factor, diagnosis, notes, version, created_at, updated_at
	FROM patients
`

// PostgresRepository stores patients in PostgreSQL and records their events.
type PostgresRepository struct {
	db         *sqlx.DB
	eventStore *eventstore.EventStore
}

func NewPostgresRepository(db *sqlx.DB, es *eventstore.EventStore) *PostgresRepository {
	return &PostgresRepository{db: db, eventStore: es}
}

func (r *PostgresRepository) Create(ctx context.Context, p *Patient) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO patients (patient_id, hospital_id, case_no, first_name, last_name, date_of_birth, sex,
		                      abo_group, rh_factor, diagnosis, notes, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, p.ID, p.HospitalID, p.CaseNo, p.FirstName, p.LastName, p.DateOfBirth, p.Sex,
		p.ABOGroup, p.RhFactor, p.Diagnosis, p.Notes, p.Version, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return postgres.MapError(err)
	}

	event, err := eventstore.NewEvent("PatientAdmitted", PatientAdmittedEvent{
		ID:         p.ID,
		HospitalID: p.HospitalID,
		CaseNo:     p.CaseNo,
		BloodType:  p.BloodType(),
	})
	if err != nil {
		return err
	}
	if err := r.eventStore.Append(ctx, tx, p.ID, eventstore.AggregatePatient, 0, event); err != nil {
		return postgres.MapError(err)
	}
	return tx.Commit()
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return GetPatient(ctx, r.db, id)
}

// List returns the patients of hospitalID (all when nil) whose blood type is
// one of types (any when empty).
func (r *PostgresRepository) List(ctx context.Context, hospitalID *uuid.UUID, types []bloodtype.BloodType) ([]Patient, error) {
	var (
		where []string
		args  []any
	)
	if hospitalID != nil {
		args = append(args, *hospitalID)
		where = append(where, fmt.Sprintf("hospital_id = $%d", len(args)))
	}
	if len(types) > 0 {
		var alts []string
		for _, bt := range types {
			args = append(args, bt.Group(), bt.Factor())
			alts = append(alts, fmt.Sprintf("(abo_group = $%d AND rh_factor = $%d)", len(args)-1, len(args)))
		}
		where = append(where, "("+strings.Join(alts, " OR ")+")")
	}

	q := selectPatients
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY last_name ASC, first_name ASC"

	patients := []Patient{}
	if err := r.db.SelectContext(ctx, &patients, q, args...); err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

func (r *PostgresRepository) Update(ctx context.Context, p *Patient) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE patients
		SET case_no = $1, first_name = $2, last_name = $3, abo_group = $4, rh_factor = $5,
		    diagnosis = $6, notes = $7, version = version + 1, updated_at = NOW()
		WHERE patient_id = $8 AND version = $9
	`, p.CaseNo, p.FirstName, p.LastName, p.ABOGroup, p.RhFactor, p.Diagnosis, p.Notes, p.ID, p.Version)
	if err != nil {
		return postgres.MapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return postgres.MapError(eventstore.ErrConcurrencyConflict)
	}

	event, err := eventstore.NewEvent("PatientUpdated", PatientUpdatedEvent{ID: p.ID, BloodType: p.BloodType()})
	if err != nil {
		return err
	}
	if err := r.eventStore.Append(ctx, tx, p.ID, eventstore.AggregatePatient, p.Version, event); err != nil {
		return postgres.MapError(err)
	}
	return tx.Commit()
}

func (r *PostgresRepository) Delete(ctx context.Context, p *Patient) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM patients WHERE patient_id = $1`, p.ID); err != nil {
		return postgres.MapError(err)
	}

	event, err := eventstore.NewEvent("PatientDeleted", PatientDeletedEvent{ID: p.ID})
	if err != nil {
		return err
	}
	if err := r.eventStore.Append(ctx, tx, p.ID, eventstore.AggregatePatient, p.Version, event); err != nil {
		return postgres.MapError(err)
	}
	return tx.Commit()
}

// GetPatient reads one patient through q, which may be a transaction.
func GetPatient(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*Patient, error) {
	var p Patient
	err := sqlx.GetContext(ctx, q, &p, selectPatients+` WHERE patient_id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrPatientNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient from read model: %w", err)
	}
	return &p, nil
}
