// internal/chaos/experiments.go
package chaos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"bloodbank/internal/apperr"
	"bloodbank/internal/dashboard"
	"bloodbank/internal/inventory"
	"bloodbank/internal/transfusion"
)

var ErrNoTarget = errors.New("no available unit with a compatible patient")

// API is the part of the blood bank API the experiments drive.
type API interface {
	Candidates(ctx context.Context, unitID uuid.UUID) (*transfusion.Candidates, error)
	RecordTransfusion(ctx context.Context, req transfusion.RecordRequest, idempotencyKey string) (*transfusion.Transfusion, error)
	Stats(ctx context.Context) (*dashboard.Stats, error)
}

// Probe reads and stresses the database behind the API.
type Probe interface {
	AvailableUnit(ctx context.Context) (uuid.UUID, error)
	InconsistentTransfusions(ctx context.Context) (int, error)
	HoldConnections(ctx context.Context, n int) (release func(), err error)
}

type Settings struct {
	Concurrency     int
	HeldConnections int
	Duration        time.Duration
	SampleInterval  time.Duration
}

// RegisterDefaults registers the blood bank game-day experiments.
func (e *Engine) RegisterDefaults(probe Probe, api API, s Settings) {
	e.Register(TransfusionRaceExperiment(probe, api, s))
	e.Register(ConnectionExhaustionExperiment(probe, api, s))
}

// TransfusionRaceExperiment fires concurrent commits of one unit for
// different compatible patients. Exactly one may succeed.
func TransfusionRaceExperiment(probe Probe, api API, s Settings) Experiment {
	if s.Concurrency <= 1 {
		s.Concurrency = 20
	}
	var winners, refused atomic.Int64

	return Experiment{
		Name:       "concurrent-transfusion-race",
		Hypothesis: "Concurrent transfusions of one unit issue it exactly once and the rest are refused as unavailable",
		SteadyState: []Metric{
			{
				Name: "transfusion_inconsistencies",
				Query: func(ctx context.Context) (float64, error) {
					n, err := probe.InconsistentTransfusions(ctx)
					return float64(n), err
				},
				Threshold: Threshold{Operator: "==", Value: 0},
			},
			{
				Name: "race_winners",
				Query: func(context.Context) (float64, error) {
					return float64(winners.Load()), nil
				},
				Threshold: Threshold{Operator: "<=", Value: 1},
			},
		},
		Method: []Action{
			{
				Type:   "concurrent-requests",
				Target: "transfusion-commit",
				Execute: func(ctx context.Context) error {
					unitID, err := probe.AvailableUnit(ctx)
					if err != nil {
						return err
					}
					candidates, err := api.Candidates(ctx, unitID)
					if err != nil {
						return err
					}
					if len(candidates.Patients) == 0 {
						return fmt.Errorf("%w: unit %s", ErrNoTarget, unitID)
					}

					hospitalID := candidates.Unit.HospitalID
					var (
						wg       sync.WaitGroup
						mu       sync.Mutex
						failures []error
					)
					for i := 0; i < s.Concurrency; i++ {
						p := candidates.Patients[i%len(candidates.Patients)]
						wg.Add(1)
						go func() {
							defer wg.Done()
							_, err := api.RecordTransfusion(ctx, transfusion.RecordRequest{
								PatientID:   p.ID,
								InventoryID: unitID,
								HospitalID:  &hospitalID,
							}, uuid.NewString())
							switch {
							case err == nil:
								winners.Add(1)
							case errors.Is(err, apperr.ErrConflict):
								refused.Add(1)
							default:
								mu.Lock()
								failures = append(failures, err)
								mu.Unlock()
							}
						}()
					}
					wg.Wait()
					return errors.Join(failures...)
				},
			},
		},
		Validation: []Assertion{
			{
				Metric:    "race_winners",
				Condition: func(v float64) bool { return v == 1 },
				Message:   "exactly one concurrent commit issues the unit",
			},
			{
				Metric:    "transfusion_inconsistencies",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "every transfused unit is Issued and transfused once",
			},
		},
		Duration:       s.Duration,
		SampleInterval: s.SampleInterval,
		BlastRadius:    0.1,
	}
}

// ConnectionExhaustionExperiment holds database connections while checking
// that the API keeps answering.
func ConnectionExhaustionExperiment(probe Probe, api API, s Settings) Experiment {
	if s.HeldConnections <= 0 {
		s.HeldConnections = 50
	}
	var (
		mu      sync.Mutex
		release func()
	)

	return Experiment{
		Name:       "database-connection-exhaustion",
		Hypothesis: "The API keeps serving reads while most database connections are held elsewhere",
		SteadyState: []Metric{
			{
				Name: "api_available",
				Query: func(ctx context.Context) (float64, error) {
					if _, err := api.Stats(ctx); err != nil {
						return 0, nil
					}
					return 1, nil
				},
				Threshold: Threshold{Operator: "==", Value: 1},
			},
		},
		Method: []Action{
			{
				Type:   "exhaust-connections",
				Target: "postgres",
				Execute: func(ctx context.Context) error {
					r, err := probe.HoldConnections(ctx, s.HeldConnections)
					mu.Lock()
					release = r
					mu.Unlock()
					return err
				},
			},
		},
		Rollback: []Action{
			{
				Type:   "release-connections",
				Target: "postgres",
				Execute: func(context.Context) error {
					mu.Lock()
					defer mu.Unlock()
					if release != nil {
						release()
						release = nil
					}
					return nil
				},
			},
		},
		Validation: []Assertion{
			{
				Metric:    "api_available",
				Condition: func(v float64) bool { return v == 1 },
				Message:   "the API answers at the end of the experiment",
			},
		},
		Duration:       s.Duration,
		SampleInterval: s.SampleInterval,
		BlastRadius:    1.0,
	}
}

// PostgresProbe implements Probe against the blood bank schema.
type PostgresProbe struct {
	db *sqlx.DB
}

func NewPostgresProbe(db *sqlx.DB) *PostgresProbe {
	return &PostgresProbe{db: db}
}

func (p *PostgresProbe) AvailableUnit(ctx context.Context) (uuid.UUID, error) {
	var id uuid.UUID
	err := p.db.GetContext(ctx, &id, `
		SELECT inventory_id FROM inventory
		WHERE status = $1 AND expiry_ts > NOW()
		ORDER BY expiry_ts ASC
		LIMIT 1
	`, inventory.StatusAvailable)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, ErrNoTarget
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to find available unit: %w", err)
	}
	return id, nil
}

// InconsistentTransfusions counts transfusions whose unit is not Issued plus
// units transfused more than once.
func (p *PostgresProbe) InconsistentTransfusions(ctx context.Context) (int, error) {
	var n int
	err := p.db.GetContext(ctx, &n, `
		SELECT
			(SELECT COUNT(*) FROM transfusions t
			 JOIN inventory i ON i.inventory_id = t.inventory_id
			 WHERE i.status <> $1)
			+
			(SELECT COUNT(*) FROM (
				SELECT inventory_id FROM transfusions
				GROUP BY inventory_id HAVING COUNT(*) > 1
			) dup)
	`, inventory.StatusIssued)
	if err != nil {
		return 0, fmt.Errorf("failed to count inconsistencies: %w", err)
	}
	return n, nil
}

// HoldConnections opens up to n connections and keeps them until release is
// called. Running out of connections early is not an error.
func (p *PostgresProbe) HoldConnections(ctx context.Context, n int) (func(), error) {
	conns := make([]*sql.Conn, 0, n)
	for i := 0; i < n; i++ {
		conn, err := p.db.Conn(ctx)
		if err != nil {
			break
		}
		conns = append(conns, conn)
	}
	if len(conns) == 0 {
		return func() {}, fmt.Errorf("failed to hold any connection")
	}
	return func() {
		for _, c := range conns {
			c.Close()
		}
	}, nil
}
