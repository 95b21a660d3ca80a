package chaos

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bloodbank/internal/dashboard"
	"bloodbank/internal/inventory"
	"bloodbank/internal/patient"
	"bloodbank/internal/transfusion"
)

func TestThreshold(t *testing.T) {
	assert.True(t, Threshold{Operator: "==", Value: 0}.Holds(0))
	assert.True(t, Threshold{Operator: "<=", Value: 1}.Holds(1))
	assert.False(t, Threshold{Operator: ">", Value: 1}.Holds(1))
	assert.False(t, Threshold{Operator: "!=", Value: 1}.Holds(2))
}

func TestRun_AbortsOnInvalidSteadyState(t *testing.T) {
	var injected bool
	exp := Experiment{
		Name: "broken",
		SteadyState: []Metric{{
			Name:      "errors",
			Query:     func(context.Context) (float64, error) { return 3, nil },
			Threshold: Threshold{Operator: "==", Value: 0},
		}},
		Method: []Action{{Execute: func(context.Context) error { injected = true; return nil }}},
	}

	result, err := NewEngine(zap.NewNop()).Run(context.Background(), exp)
	assert.ErrorIs(t, err, ErrSteadyStateInvalid)
	assert.False(t, injected)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, 3.0, result.Violations[0].Actual)
}

func TestRun_RecordsRecovery(t *testing.T) {
	var (
		samples    atomic.Int32
		rolledBack atomic.Bool
	)
	exp := Experiment{
		Name: "flaky",
		SteadyState: []Metric{{
			Name: "available",
			Query: func(context.Context) (float64, error) {
				// steady-state check, then one degraded sample
				if samples.Add(1) == 2 {
					return 0, nil
				}
				return 1, nil
			},
			Threshold: Threshold{Operator: "==", Value: 1},
		}},
		Method: []Action{{Target: "db", Execute: func(context.Context) error { return errors.New("partial") }}},
		Rollback: []Action{{Execute: func(context.Context) error {
			rolledBack.Store(true)
			return nil
		}}},
		Validation: []Assertion{{
			Metric:    "available",
			Condition: func(v float64) bool { return v == 1 },
			Message:   "recovers",
		}},
		Duration:       120 * time.Millisecond,
		SampleInterval: 10 * time.Millisecond,
	}

	engine := NewEngine(zap.NewNop())
	result, err := engine.Run(context.Background(), exp)
	require.NoError(t, err)

	assert.True(t, result.SteadyStateValid)
	assert.True(t, result.HypothesisHeld)
	assert.True(t, rolledBack.Load())
	require.Len(t, result.Violations, 1)
	require.NotNil(t, result.MTTR)
	require.Len(t, result.ErrorEvents, 1)
	assert.Equal(t, "db", result.ErrorEvents[0].Component)
	assert.Len(t, engine.Results(), 1)
}

type fakeAPI struct {
	mu        sync.Mutex
	hospital  uuid.UUID
	patients  []patient.View
	issued    map[uuid.UUID]uuid.UUID
	statsDown bool
}

func (f *fakeAPI) Candidates(_ context.Context, unitID uuid.UUID) (*transfusion.Candidates, error) {
	u := inventory.Unit{ID: unitID, HospitalID: f.hospital}
	return &transfusion.Candidates{Unit: inventory.View{Unit: u}, Patients: f.patients}, nil
}

func (f *fakeAPI) RecordTransfusion(_ context.Context, req transfusion.RecordRequest, _ string) (*transfusion.Transfusion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, taken := f.issued[req.InventoryID]; taken {
		return nil, transfusion.ErrUnitNotAvailable
	}
	f.issued[req.InventoryID] = req.PatientID
	return &transfusion.Transfusion{ID: uuid.New(), InventoryID: req.InventoryID, PatientID: req.PatientID}, nil
}

func (f *fakeAPI) Stats(context.Context) (*dashboard.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statsDown {
		return nil, errors.New("unavailable")
	}
	return &dashboard.Stats{}, nil
}

type fakeProbe struct {
	unit     uuid.UUID
	held     atomic.Int32
	released atomic.Bool
}

func (p *fakeProbe) AvailableUnit(context.Context) (uuid.UUID, error) { return p.unit, nil }

func (p *fakeProbe) InconsistentTransfusions(context.Context) (int, error) { return 0, nil }

func (p *fakeProbe) HoldConnections(_ context.Context, n int) (func(), error) {
	p.held.Store(int32(n))
	return func() { p.released.Store(true) }, nil
}

func TestTransfusionRaceExperiment(t *testing.T) {
	api := &fakeAPI{
		hospital: uuid.New(),
		patients: []patient.View{{Patient: patient.Patient{ID: uuid.New()}}, {Patient: patient.Patient{ID: uuid.New()}}},
		issued:   map[uuid.UUID]uuid.UUID{},
	}
	probe := &fakeProbe{unit: uuid.New()}
	exp := TransfusionRaceExperiment(probe, api, Settings{Concurrency: 12, Duration: 50 * time.Millisecond, SampleInterval: 10 * time.Millisecond})

	result, err := NewEngine(zap.NewNop()).Run(context.Background(), exp)
	require.NoError(t, err)
	assert.True(t, result.HypothesisHeld, result.FailedAssertions)
	assert.Empty(t, result.ErrorEvents)
	assert.Len(t, api.issued, 1)
}

func TestTransfusionRaceExperiment_NoCandidates(t *testing.T) {
	api := &fakeAPI{hospital: uuid.New(), issued: map[uuid.UUID]uuid.UUID{}}
	exp := TransfusionRaceExperiment(&fakeProbe{unit: uuid.New()}, api, Settings{Duration: 30 * time.Millisecond, SampleInterval: 10 * time.Millisecond})

	result, err := NewEngine(zap.NewNop()).Run(context.Background(), exp)
	require.NoError(t, err)
	assert.False(t, result.HypothesisHeld)
	require.Len(t, result.ErrorEvents, 1)
	assert.Contains(t, result.ErrorEvents[0].Error, ErrNoTarget.Error())
}

func TestConnectionExhaustionExperiment(t *testing.T) {
	probe := &fakeProbe{}
	api := &fakeAPI{issued: map[uuid.UUID]uuid.UUID{}}
	engine := NewEngine(zap.NewNop())
	engine.RegisterDefaults(probe, api, Settings{HeldConnections: 7, Duration: 30 * time.Millisecond, SampleInterval: 10 * time.Millisecond})
	require.Len(t, engine.Experiments(), 2)

	result, err := engine.Run(context.Background(), engine.Experiments()[1])
	require.NoError(t, err)
	assert.True(t, result.HypothesisHeld)
	assert.Equal(t, int32(7), probe.held.Load())
	assert.True(t, probe.released.Load())
}

func TestExecuteGameDay(t *testing.T) {
	ok := Experiment{
		Name: "ok",
		SteadyState: []Metric{{
			Name:      "m",
			Query:     func(context.Context) (float64, error) { return 1, nil },
			Threshold: Threshold{Operator: "==", Value: 1},
		}},
		Validation: []Assertion{{Metric: "m", Condition: func(v float64) bool { return v == 1 }}},
		Duration:       30 * time.Millisecond,
		SampleInterval: 10 * time.Millisecond,
	}
	broken := ok
	broken.Name = "broken"
	broken.SteadyState = []Metric{{
		Name:      "m",
		Query:     func(context.Context) (float64, error) { return 0, errors.New("down") },
		Threshold: Threshold{Operator: "==", Value: 1},
	}}

	engine := NewEngine(zap.NewNop())
	held, err := engine.ExecuteGameDay(context.Background(), GameDay{Name: "test", Scenarios: []Experiment{ok}})
	require.NoError(t, err)
	assert.True(t, held)

	held, err = engine.ExecuteGameDay(context.Background(), GameDay{Name: "test", Scenarios: []Experiment{ok, broken}})
	require.NoError(t, err)
	assert.False(t, held)
}
