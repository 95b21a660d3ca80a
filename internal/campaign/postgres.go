// internal/campaign/postgres.go
package campaign

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

const selectCampaigns = `
	SELECT campaign_id, hospital_id, name, start_date, end_date, location, notes,
	       total_units_collected, version, created_at, updated_at
	FROM campaigns
`

// PostgresRepository stores campaigns in PostgreSQL and records their events.
type PostgresRepository struct {
	db         *sqlx.DB
	eventStore *eventstore.EventStore
}

func NewPostgresRepository(db *sqlx.DB, es *eventstore.EventStore) *PostgresRepository {
	return &PostgresRepository{db: db, eventStore: es}
}

func (r *PostgresRepository) Create(ctx context.Context, c *Campaign) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO campaigns (campaign_id, hospital_id, name, start_date, end_date, location, notes,
		                       total_units_collected, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, c.ID, c.HospitalID, c.Name, c.StartDate, c.EndDate, c.Location, c.Notes,
		c.TotalUnitsCollected, c.Version, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return postgres.MapError(err)
	}

	event, err := eventstore.NewEvent("CampaignCreated", CampaignCreatedEvent{
		ID:         c.ID,
		HospitalID: c.HospitalID,
		Name:       c.Name,
		StartDate:  c.StartDate,
		EndDate:    c.EndDate,
	})
	if err != nil {
		return err
	}
	if err := r.eventStore.Append(ctx, tx, c.ID, eventstore.AggregateCampaign, 0, event); err != nil {
		return postgres.MapError(err)
	}
	return tx.Commit()
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*Campaign, error) {
	return getCampaign(ctx, r.db, id, false)
}

func (r *PostgresRepository) List(ctx context.Context, hospitalID *uuid.UUID) ([]Campaign, error) {
	campaigns := []Campaign{}
	var err error
	if hospitalID != nil {
		err = r.db.SelectContext(ctx, &campaigns, selectCampaigns+` WHERE hospital_id = $1 ORDER BY start_date DESC`, *hospitalID)
	} else {
		err = r.db.SelectContext(ctx, &campaigns, selectCampaigns+` ORDER BY start_date DESC`)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return campaigns, nil
}

func (r *PostgresRepository) Update(ctx context.Context, c *Campaign) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE campaigns
		SET name = $1, start_date = $2, end_date = $3, location = $4, notes = $5,
		    version = version + 1, updated_at = NOW()
		WHERE campaign_id = $6 AND version = $7
	`, c.Name, c.StartDate, c.EndDate, c.Location, c.Notes, c.ID, c.Version)
	if err != nil {
		return postgres.MapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return postgres.MapError(eventstore.ErrConcurrencyConflict)
	}

	event, err := eventstore.NewEvent("CampaignUpdated", CampaignUpdatedEvent{ID: c.ID, StartDate: c.StartDate, EndDate: c.EndDate})
	if err != nil {
		return err
	}
	if err := r.eventStore.Append(ctx, tx, c.ID, eventstore.AggregateCampaign, c.Version, event); err != nil {
		return postgres.MapError(err)
	}
	return tx.Commit()
}

func (r *PostgresRepository) Delete(ctx context.Context, c *Campaign) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM campaigns WHERE campaign_id = $1`, c.ID); err != nil {
		return postgres.MapError(err)
	}

	event, err := eventstore.NewEvent("CampaignDeleted", CampaignDeletedEvent{ID: c.ID})
	if err != nil {
		return err
	}
	if err := r.eventStore.Append(ctx, tx, c.ID, eventstore.AggregateCampaign, c.Version, event); err != nil {
		return postgres.MapError(err)
	}
	return tx.Commit()
}

// LockForDonation loads a campaign inside tx and holds its row lock so the
// collected-unit counter is incremented serially.
func LockForDonation(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Campaign, error) {
	return getCampaign(ctx, tx, id, true)
}

// RecordUnitCollected increments the campaign's collected-unit counter inside tx.
func RecordUnitCollected(ctx context.Context, tx *sqlx.Tx, es *eventstore.EventStore, c *Campaign, donationID uuid.UUID) error {
	return setUnitsCollected(ctx, tx, es, c, c.TotalUnitsCollected+1, "UnitCollected", donationID)
}

// RecordUnitWithdrawn takes a deleted donation's unit off the campaign's
// counter inside tx. The counter never goes below zero.
func RecordUnitWithdrawn(ctx context.Context, tx *sqlx.Tx, es *eventstore.EventStore, c *Campaign, donationID uuid.UUID) error {
	if c.TotalUnitsCollected == 0 {
		return nil
	}
	return setUnitsCollected(ctx, tx, es, c, c.TotalUnitsCollected-1, "UnitWithdrawn", donationID)
}

func setUnitsCollected(ctx context.Context, tx *sqlx.Tx, es *eventstore.EventStore, c *Campaign, total int, eventType string, donationID uuid.UUID) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE campaigns
		SET total_units_collected = $1, version = version + 1, updated_at = NOW()
		WHERE campaign_id = $2 AND version = $3
	`, total, c.ID, c.Version)
	if err != nil {
		return postgres.MapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return postgres.MapError(eventstore.ErrConcurrencyConflict)
	}

	event, err := eventstore.NewEvent(eventType, UnitCollectedEvent{ID: c.ID, DonationID: donationID, Total: total})
	if err != nil {
		return err
	}
	if err := es.Append(ctx, tx, c.ID, eventstore.AggregateCampaign, c.Version, event); err != nil {
		return postgres.MapError(err)
	}

	c.TotalUnitsCollected = total
	c.Version++
	return nil
}

func getCampaign(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID, forUpdate bool) (*Campaign, error) {
	query := selectCampaigns + ` WHERE campaign_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var c Campaign
	err := sqlx.GetContext(ctx, q, &c, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrCampaignNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign from read model: %w", err)
	}
	return &c, nil
}
