// internal/donation/postgres.go
package donation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"bloodbank/internal/campaign"
	"bloodbank/internal/donor"
	"bloodbank/internal/inventory"
	"bloodbank/internal/platform/postgres"
	"bloodbank/pkg/eventstore"
)

const selectDonations = `
	SELECT dn.donation_id, dn.donor_id, dn.hospital_id, dn.campaign_id, dn.donation_timestamp,
	       dn.test_result, dn.quantity_ml, dn.hemoglobin_level, dn.notes, dn.version,
	       dn.created_at, dn.updated_at, i.inventory_id, d.abo_group, d.rh_factor
	FROM donations dn
	JOIN donors d ON d.donor_id = dn.donor_id
	LEFT JOIN inventory i ON i.donation_id = dn.donation_id
`

// PostgresRepository stores donations in PostgreSQL and records their events.
type PostgresRepository struct {
	db         *sqlx.DB
	eventStore *eventstore.EventStore
}

func NewPostgresRepository(db *sqlx.DB, es *eventstore.EventStore) *PostgresRepository {
	return &PostgresRepository{db: db, eventStore: es}
}

// Record locks the donor and campaign, runs check against them and writes the
// donation, its unit, the donor's last donation date and the campaign total.
func (r *PostgresRepository) Record(ctx context.Context, d *Donation, unit *inventory.Unit, check Check) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	dnr, err := donor.LockForDonation(ctx, tx, d.DonorID)
	if err != nil {
		return err
	}
	var camp *campaign.Campaign
	if d.CampaignID != nil {
		if camp, err = campaign.LockForDonation(ctx, tx, *d.CampaignID); err != nil {
			return err
		}
	}
	if err := check(Snapshot{Donor: *dnr, Campaign: camp}); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO donations (donation_id, donor_id, hospital_id, campaign_id, donation_timestamp,
		                       test_result, quantity_ml, hemoglobin_level, notes, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, d.ID, d.DonorID, d.HospitalID, d.CampaignID, d.DonatedAt,
		d.TestResult, d.QuantityML, d.HemoglobinLevel, d.Notes, d.Version, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return postgres.MapError(err)
	}

	event, err := eventstore.NewEvent("DonationRecorded", DonationRecordedEvent{
		ID:          d.ID,
		DonorID:     d.DonorID,
		HospitalID:  d.HospitalID,
		CampaignID:  d.CampaignID,
		InventoryID: unit.ID,
		TestResult:  d.TestResult,
		QuantityML:  d.QuantityML,
	})
	if err != nil {
		return err
	}
	if err := r.eventStore.Append(ctx, tx, d.ID, eventstore.AggregateDonation, 0, event); err != nil {
		return postgres.MapError(err)
	}

	if err := donor.RecordLastDonation(ctx, tx, r.eventStore, dnr, d.ID, d.DonatedAt); err != nil {
		return err
	}
	unit.ABOGroup, unit.RhFactor = dnr.ABOGroup, dnr.RhFactor
	if err := inventory.InsertUnit(ctx, tx, r.eventStore, *unit); err != nil {
		return err
	}
	if camp != nil {
		if err := campaign.RecordUnitCollected(ctx, tx, r.eventStore, camp, d.ID); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	d.ABOGroup, d.RhFactor = dnr.ABOGroup, dnr.RhFactor
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*Donation, error) {
	var d Donation
	err := r.db.GetContext(ctx, &d, selectDonations+` WHERE dn.donation_id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrDonationNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get donation from read model: %w", err)
	}
	return &d, nil
}

func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]Donation, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.DonorID != nil {
		add("dn.donor_id = $%d", *filter.DonorID)
	}
	if filter.HospitalID != nil {
		add("dn.hospital_id = $%d", *filter.HospitalID)
	}
	if filter.CampaignID != nil {
		add("dn.campaign_id = $%d", *filter.CampaignID)
	}
	if filter.TestResult != nil {
		add("dn.test_result = $%d", *filter.TestResult)
	}

	q := selectDonations
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY dn.donation_timestamp DESC"

	donations := []Donation{}
	if err := r.db.SelectContext(ctx, &donations, q, args...); err != nil {
		return nil, fmt.Errorf("failed to list donations: %w", err)
	}
	return donations, nil
}

// UpdateTestResult changes the screening outcome and, on rejection, discards
// the donation's unit while it is still Available or Reserved.
func (r *PostgresRepository) UpdateTestResult(ctx context.Context, d *Donation, to TestResult) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE donations
		SET test_result = $1, version = version + 1, updated_at = NOW()
		WHERE donation_id = $2 AND version = $3
	`, to, d.ID, d.Version)
	if err != nil {
		return postgres.MapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return postgres.MapError(eventstore.ErrConcurrencyConflict)
	}

	event, err := eventstore.NewEvent("TestResultChanged", TestResultChangedEvent{ID: d.ID, From: d.TestResult, To: to})
	if err != nil {
		return err
	}
	if err := r.eventStore.Append(ctx, tx, d.ID, eventstore.AggregateDonation, d.Version, event); err != nil {
		return postgres.MapError(err)
	}

	if to == TestRejected {
		var unit inventory.Unit
		err := tx.GetContext(ctx, &unit, inventory.SelectUnits+` WHERE i.donation_id = $1 FOR UPDATE OF i`, d.ID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("failed to load unit of donation: %w", err)
		case unit.Status == inventory.StatusAvailable || unit.Status == inventory.StatusReserved:
			if err := inventory.SetStatus(ctx, tx, r.eventStore, &unit, inventory.StatusDiscarded, "donation rejected"); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// Delete removes the donation and its unit, takes the unit off the campaign
// total and moves the donor's last donation date back when this donation set
// it. A unit already transfused keeps the donation in place.
func (r *PostgresRepository) Delete(ctx context.Context, d *Donation) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	dnr, err := donor.LockForDonation(ctx, tx, d.DonorID)
	if err != nil {
		return err
	}
	var camp *campaign.Campaign
	if d.CampaignID != nil {
		if camp, err = campaign.LockForDonation(ctx, tx, *d.CampaignID); err != nil && !errors.Is(err, campaign.ErrCampaignNotFound) {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM inventory WHERE donation_id = $1`, d.ID); err != nil {
		return postgres.MapError(err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM donations WHERE donation_id = $1`, d.ID)
	if err != nil {
		return postgres.MapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrDonationNotFound, d.ID)
	}

	event, err := eventstore.NewEvent("DonationDeleted", DonationDeletedEvent{ID: d.ID})
	if err != nil {
		return err
	}
	if err := r.eventStore.Append(ctx, tx, d.ID, eventstore.AggregateDonation, d.Version, event); err != nil {
		return postgres.MapError(err)
	}

	if err := donor.WithdrawLastDonation(ctx, tx, r.eventStore, dnr, d.ID, d.DonatedAt); err != nil {
		return err
	}
	if camp != nil {
		if err := campaign.RecordUnitWithdrawn(ctx, tx, r.eventStore, camp, d.ID); err != nil {
			return err
		}
	}
	return tx.Commit()
}
