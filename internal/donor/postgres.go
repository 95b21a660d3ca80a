// internal/donor/postgres.go
package donor

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

const selectDonors = `
	SELECT donor_id, first_name, last_name, date_of_birth, sex, phone_number, email,
	       abo_group, rh_factor, last_donation_date, city, notes, version, created_at, updated_at
	FROM donors
`

// PostgresRepository stores donors in PostgreSQL and records their events.
type PostgresRepository struct {
	db         *sqlx.DB
	eventStore *eventstore.EventStore
}

func NewPostgresRepository(db *sqlx.DB, es *eventstore.EventStore) *PostgresRepository {
	return &PostgresRepository{db: db, eventStore: es}
}

func (r *PostgresRepository) Create(ctx context.Context, d *Donor) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO donors (donor_id, first_name, last_name, date_of_birth, sex, phone_number, email,
		                    abo_group, rh_factor, last_donation_date, city, notes, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, d.ID, d.FirstName, d.LastName, d.DateOfBirth, d.Sex, d.PhoneNumber, d.Email,
		d.ABOGroup, d.RhFactor, d.LastDonationDate, d.City, d.Notes, d.Version, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return postgres.MapError(err)
	}

	event, err := eventstore.NewEvent("DonorRegistered", DonorRegisteredEvent{ID: d.ID, FullName: d.FullName(), BloodType: d.BloodType()})
	if err != nil {
		return err
	}
	if err := r.eventStore.Append(ctx, tx, d.ID, eventstore.AggregateDonor, 0, event); err != nil {
		return postgres.MapError(err)
	}
	return tx.Commit()
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*Donor, error) {
	return getDonor(ctx, r.db, id, false)
}

// List returns donors of the given types (all when empty) whose name
// contains query, ordered by name.
func (r *PostgresRepository) List(ctx context.Context, types []bloodtype.BloodType, query string) ([]Donor, error) {
	var (
		where []string
		args  []any
	)
	if len(types) > 0 {
		var alts []string
		for _, bt := range types {
			args = append(args, bt.Group(), bt.Factor())
			alts = append(alts, fmt.Sprintf("(abo_group = $%d AND rh_factor = $%d)", len(args)-1, len(args)))
		}
		where = append(where, "("+strings.Join(alts, " OR ")+")")
	}
	if query != "" {
		args = append(args, "%"+query+"%")
		where = append(where, fmt.Sprintf("(first_name || ' ' || last_name) ILIKE $%d", len(args)))
	}

	q := selectDonors
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY last_name ASC, first_name ASC"

	donors := []Donor{}
	if err := r.db.SelectContext(ctx, &donors, q, args...); err != nil {
		return nil, fmt.Errorf("failed to list donors: %w", err)
	}
	return donors, nil
}

func (r *PostgresRepository) Update(ctx context.Context, d *Donor) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE donors
		SET first_name = $1, last_name = $2, date_of_birth = $3, sex = $4, phone_number = $5,
		    email = $6, abo_group = $7, rh_factor = $8, city = $9, notes = $10,
		    version = version + 1, updated_at = NOW()
		WHERE donor_id = $11 AND version = $12
	`, d.FirstName, d.LastName, d.DateOfBirth, d.Sex, d.PhoneNumber,
		d.Email, d.ABOGroup, d.RhFactor, d.City, d.Notes, d.ID, d.Version)
	if err != nil {
		return postgres.MapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return postgres.MapError(eventstore.ErrConcurrencyConflict)
	}

	event, err := eventstore.NewEvent("DonorUpdated", DonorUpdatedEvent{ID: d.ID, BloodType: d.BloodType()})
	if err != nil {
		return err
	}
	if err := r.eventStore.Append(ctx, tx, d.ID, eventstore.AggregateDonor, d.Version, event); err != nil {
		return postgres.MapError(err)
	}
	return tx.Commit()
}

func (r *PostgresRepository) Delete(ctx context.Context, d *Donor) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM donors WHERE donor_id = $1`, d.ID); err != nil {
		return postgres.MapError(err)
	}

	event, err := eventstore.NewEvent("DonorDeleted", DonorDeletedEvent{ID: d.ID})
	if err != nil {
		return err
	}
	if err := r.eventStore.Append(ctx, tx, d.ID, eventstore.AggregateDonor, d.Version, event); err != nil {
		return postgres.MapError(err)
	}
	return tx.Commit()
}

// LockForDonation loads a donor inside tx and holds its row lock until the
// transaction ends, so concurrent donations see each other's dates.
func LockForDonation(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Donor, error) {
	return getDonor(ctx, tx, id, true)
}

// RecordLastDonation moves the donor's last donation date forward inside tx.
// An older donation date leaves the donor untouched.
func RecordLastDonation(ctx context.Context, tx *sqlx.Tx, es *eventstore.EventStore, d *Donor, donationID uuid.UUID, at time.Time) error {
	at = DonationDay(at)
	if d.LastDonationDate != nil && !at.After(*d.LastDonationDate) {
		return nil
	}
	return setLastDonation(ctx, tx, es, d, &at, "LastDonationRecorded", donationID)
}

// WithdrawLastDonation runs inside tx after the donation deleted at deletedAt
// is gone. When that donation set the donor's last donation date, the date
// falls back to the latest remaining donation, or to none.
func WithdrawLastDonation(ctx context.Context, tx *sqlx.Tx, es *eventstore.EventStore, d *Donor, donationID uuid.UUID, deletedAt time.Time) error {
	if d.LastDonationDate == nil || !DonationDay(deletedAt).Equal(*d.LastDonationDate) {
		return nil
	}

	var latest sql.NullTime
	if err := tx.GetContext(ctx, &latest, `SELECT MAX(donation_timestamp) FROM donations WHERE donor_id = $1`, d.ID); err != nil {
		return fmt.Errorf("failed to find latest donation: %w", err)
	}
	var at *time.Time
	if latest.Valid {
		day := DonationDay(latest.Time)
		if day.Equal(*d.LastDonationDate) {
			return nil
		}
		at = &day
	}
	return setLastDonation(ctx, tx, es, d, at, "LastDonationWithdrawn", donationID)
}

// DonationDay truncates a donation timestamp to its UTC calendar day.
func DonationDay(at time.Time) time.Time {
	at = at.UTC()
	return time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
}

func setLastDonation(ctx context.Context, tx *sqlx.Tx, es *eventstore.EventStore, d *Donor, at *time.Time, eventType string, donationID uuid.UUID) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE donors
		SET last_donation_date = $1, version = version + 1, updated_at = NOW()
		WHERE donor_id = $2 AND version = $3
	`, at, d.ID, d.Version)
	if err != nil {
		return postgres.MapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return postgres.MapError(eventstore.ErrConcurrencyConflict)
	}

	event, err := eventstore.NewEvent(eventType, LastDonationRecordedEvent{ID: d.ID, DonationID: donationID, LastDonationDate: at})
	if err != nil {
		return err
	}
	if err := es.Append(ctx, tx, d.ID, eventstore.AggregateDonor, d.Version, event); err != nil {
		return postgres.MapError(err)
	}

	d.LastDonationDate = at
	d.Version++
	return nil
}

func getDonor(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID, forUpdate bool) (*Donor, error) {
	query := selectDonors + ` WHERE donor_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var d Donor
	err := sqlx.GetContext(ctx, q, &d, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrDonorNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get donor from read model: %w", err)
	}
	return &d, nil
}
