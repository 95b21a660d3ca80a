package patient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"bloodbank/internal/apperr"
	"bloodbank/internal/bloodtype"
	"bloodbank/internal/civil"
	"bloodbank/internal/donor"
	"bloodbank/internal/platform/postgres/pgtest"
	"bloodbank/internal/session"
	"bloodbank/pkg/eventstore"
)

type mockRepository struct {
	mu       sync.Mutex
	patients map[uuid.UUID]Patient
}

func (m *mockRepository) Create(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients[p.ID] = *p
	return nil
}

func (m *mockRepository) Get(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (m *mockRepository) List(_ context.Context, hospitalID *uuid.UUID, types []bloodtype.BloodType) ([]Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Patient{}
	for _, p := range m.patients {
		if hospitalID != nil && p.HospitalID != *hospitalID {
			continue
		}
		if len(types) > 0 {
			match := false
			for _, bt := range types {
				match = match || p.BloodType() == bt
			}
			if !match {
				continue
			}
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *mockRepository) Update(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.patients[p.ID].Version != p.Version {
		return eventstore.ErrConcurrencyConflict
	}
	updated := *p
	updated.Version++
	m.patients[p.ID] = updated
	return nil
}

func (m *mockRepository) Delete(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.patients, p.ID)
	return nil
}

func newTestService() Service {
	return NewService(&mockRepository{patients: map[uuid.UUID]Patient{}}, zap.NewNop())
}

func request(hospitalID uuid.UUID, caseNo string, bt bloodtype.BloodType) CreateRequest {
	return CreateRequest{
		HospitalID:  &hospitalID,
		CaseNo:      caseNo,
		FirstName:   "Pat",
		LastName:    "Case " + caseNo,
		DateOfBirth: civil.Date{Time: time.Date(1970, 7, 1, 0, 0, 0, 0, time.UTC)},
		Sex:         donor.SexMale,
		BloodType:   bt,
	}
}

func TestFilterCompatible(t *testing.T) {
	patients := []Patient{}
	for _, bt := range bloodtype.All() {
		patients = append(patients, Patient{ID: uuid.New(), ABOGroup: bt.Group(), RhFactor: bt.Factor()})
	}

	assert.Len(t, FilterCompatible(bloodtype.ONeg, patients), 8)
	assert.Len(t, FilterCompatible(bloodtype.OPos, patients), 4)

	abPos := FilterCompatible(bloodtype.ABPos, patients)
	require.Len(t, abPos, 1)
	assert.Equal(t, bloodtype.ABPos, abPos[0].BloodType())

	assert.Empty(t, FilterCompatible(bloodtype.APos, []Patient{{ABOGroup: bloodtype.O, RhFactor: bloodtype.Negative}}))
}

func TestFilterCompatible_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		donorType := rapid.SampledFrom(bloodtype.All()).Draw(t, "donor")
		types := rapid.SliceOf(rapid.SampledFrom(bloodtype.All())).Draw(t, "patients")
		patients := make([]Patient, 0, len(types))
		for _, bt := range types {
			patients = append(patients, Patient{ABOGroup: bt.Group(), RhFactor: bt.Factor()})
		}

		got := FilterCompatible(donorType, patients)
		for _, p := range got {
			if !bloodtype.CanReceive(donorType, p.BloodType()) {
				t.Fatalf("%s patient kept for %s donor", p.BloodType(), donorType)
			}
		}
		want := 0
		for _, p := range patients {
			if bloodtype.CanReceive(donorType, p.BloodType()) {
				want++
			}
		}
		if len(got) != want {
			t.Fatalf("kept %d of %d compatible patients", len(got), want)
		}
	})
}

func TestAdmitPatient_Validation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	hospital := uuid.New()

	v, err := svc.AdmitPatient(ctx, request(hospital, "C-1", bloodtype.ABNeg))
	require.NoError(t, err)
	assert.Equal(t, bloodtype.ABNeg, v.BloodType)
	assert.Equal(t, "Pat Case C-1", v.FullName)

	noCase := request(hospital, " ", bloodtype.ABNeg)
	_, err = svc.AdmitPatient(ctx, noCase)
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	_, err = svc.AdmitPatient(ctx, request(hospital, "C-2", "Z+"))
	assert.ErrorIs(t, err, bloodtype.ErrUnknownBloodType)

	unborn := request(hospital, "C-3", bloodtype.APos)
	unborn.DateOfBirth = civil.Date{Time: time.Now().AddDate(0, 1, 0)}
	_, err = svc.AdmitPatient(ctx, unborn)
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestCompatiblePatients(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	hospital := uuid.New()

	for i, bt := range []bloodtype.BloodType{bloodtype.APos, bloodtype.ANeg, bloodtype.BPos, bloodtype.ABPos} {
		_, err := svc.AdmitPatient(ctx, request(hospital, string(rune('A'+i)), bt))
		require.NoError(t, err)
	}
	_, err := svc.AdmitPatient(ctx, request(uuid.New(), "X", bloodtype.APos))
	require.NoError(t, err)

	got, err := svc.CompatiblePatients(ctx, hospital, bloodtype.ANeg)
	require.NoError(t, err)
	types := []bloodtype.BloodType{}
	for _, p := range got {
		types = append(types, p.BloodType)
	}
	assert.ElementsMatch(t, []bloodtype.BloodType{bloodtype.APos, bloodtype.ANeg, bloodtype.ABPos}, types)

	got, err = svc.CompatiblePatients(ctx, hospital, bloodtype.BNeg)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	list, err := svc.ListPatients(ctx, ListFilter{HospitalID: &hospital})
	require.NoError(t, err)
	assert.Len(t, list, 4)
}

func TestHandler_OtherHospitalForbidden(t *testing.T) {
	svc := newTestService()
	own, other := uuid.New(), uuid.New()
	theirs, err := svc.AdmitPatient(context.Background(), request(other, "T-1", bloodtype.OPos))
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			s := &session.Session{Role: session.RoleHospital, HospitalID: &own}
			next.ServeHTTP(w, req.WithContext(session.NewContext(req.Context(), s)))
		})
	})
	NewHandler(svc, zap.NewNop()).Routes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/patients/"+theirs.ID.String(), nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	body := `{"hospital_id":"` + other.String() + `","case_no":"Z","first_name":"A","last_name":"B",` +
		`"date_of_birth":"1980-01-01","sex":"Other","blood_type":"B-"}`
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/patients", strings.NewReader(body)))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/patients?blood_type=B%2B", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPostgresRepository(t *testing.T) {
	db := pgtest.Open(t)
	repo := NewPostgresRepository(db, eventstore.NewEventStore(db))
	svc := NewService(repo, zap.NewNop())
	ctx := context.Background()
	hospital := pgtest.SeedHospital(t, db)

	v, err := svc.AdmitPatient(ctx, request(hospital, "PG-1", bloodtype.ANeg))
	require.NoError(t, err)
	_, err = svc.AdmitPatient(ctx, request(hospital, "PG-2", bloodtype.BPos))
	require.NoError(t, err)

	got, err := svc.CompatiblePatients(ctx, hospital, bloodtype.ONeg)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = svc.CompatiblePatients(ctx, hospital, bloodtype.ANeg)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, v.ID, got[0].ID)

	bt := bloodtype.ABPos
	updated, err := svc.UpdatePatient(ctx, v.ID, UpdateRequest{BloodType: &bt})
	require.NoError(t, err)
	assert.Equal(t, bloodtype.ABPos, updated.BloodType)

	require.NoError(t, svc.DeletePatient(ctx, v.ID))
	_, err = svc.GetPatient(ctx, v.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
