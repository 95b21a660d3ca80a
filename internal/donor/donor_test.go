package donor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bloodbank/internal/apperr"
	"bloodbank/internal/bloodtype"
	"bloodbank/internal/civil"
	"bloodbank/internal/eligibility"
	"bloodbank/internal/platform/postgres/pgtest"
	"bloodbank/pkg/eventstore"
)

var today = time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC)

type mockRepository struct {
	mu     sync.Mutex
	donors map[uuid.UUID]Donor
}

func newMockRepository() *mockRepository {
	return &mockRepository{donors: map[uuid.UUID]Donor{}}
}

func (m *mockRepository) Create(_ context.Context, d *Donor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.donors[d.ID] = *d
	return nil
}

func (m *mockRepository) Get(_ context.Context, id uuid.UUID) (*Donor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.donors[id]
	if !ok {
		return nil, ErrDonorNotFound
	}
	return &d, nil
}

func (m *mockRepository) List(_ context.Context, types []bloodtype.BloodType, query string) ([]Donor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Donor{}
	for _, d := range m.donors {
		if len(types) > 0 {
			match := false
			for _, bt := range types {
				if d.BloodType() == bt {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		if query != "" && !strings.Contains(strings.ToLower(d.FullName()), strings.ToLower(query)) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastName < out[j].LastName })
	return out, nil
}

func (m *mockRepository) Update(_ context.Context, d *Donor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.donors[d.ID].Version != d.Version {
		return eventstore.ErrConcurrencyConflict
	}
	updated := *d
	updated.Version++
	m.donors[d.ID] = updated
	return nil
}

func (m *mockRepository) Delete(_ context.Context, d *Donor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.donors, d.ID)
	return nil
}

func newTestService() (*service, *mockRepository) {
	repo := newMockRepository()
	svc := NewService(repo, zap.NewNop()).(*service)
	svc.now = func() time.Time { return today }
	return svc, repo
}

func strptr(s string) *string { return &s }

func request(first, last string, bt bloodtype.BloodType, lastDonation *string) CreateRequest {
	return CreateRequest{
		FirstName:        first,
		LastName:         last,
		DateOfBirth:      civil.Date{Time: time.Date(1990, 1, 15, 0, 0, 0, 0, time.UTC)},
		Sex:              SexFemale,
		PhoneNumber:      "555-0142",
		BloodType:        bt,
		LastDonationDate: lastDonation,
	}
}

func TestRegisterDonor_DerivedFields(t *testing.T) {
	svc, _ := newTestService()

	v, err := svc.RegisterDonor(context.Background(), request("Ada", "Lovelace", bloodtype.ONeg, strptr("2025-04-01")))
	require.NoError(t, err)

	assert.Equal(t, bloodtype.ONeg, v.BloodType)
	assert.Equal(t, "Ada Lovelace", v.FullName)
	assert.Equal(t, 35, v.Age)
	assert.False(t, v.Eligibility.Eligible)
	assert.Equal(t, eligibility.StatusDeferred, v.CalculatedEligibility)
	require.NotNil(t, v.Eligibility.DaysSinceLastDonation)
	assert.Equal(t, 49, *v.Eligibility.DaysSinceLastDonation)
	assert.Equal(t, 10, *v.Eligibility.DaysUntilEligible)
}

func TestRegisterDonor_MalformedLastDonationMeansNeverDonated(t *testing.T) {
	svc, _ := newTestService()

	v, err := svc.RegisterDonor(context.Background(), request("Grace", "Hopper", bloodtype.APos, strptr("last spring")))
	require.NoError(t, err)

	assert.Nil(t, v.LastDonationDate)
	assert.True(t, v.Eligibility.Eligible)
	assert.Nil(t, v.Eligibility.DaysSinceLastDonation)
}

func TestRegisterDonor_Validation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	young := request("Young", "Donor", bloodtype.APos, nil)
	young.DateOfBirth = civil.Date{Time: today.AddDate(-17, 0, 0)}
	_, err := svc.RegisterDonor(ctx, young)
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	badType := request("Bad", "Type", "C+", nil)
	_, err = svc.RegisterDonor(ctx, badType)
	assert.ErrorIs(t, err, bloodtype.ErrUnknownBloodType)

	badSex := request("Bad", "Sex", bloodtype.APos, nil)
	badSex.Sex = "Unknown"
	_, err = svc.RegisterDonor(ctx, badSex)
	assert.ErrorIs(t, err, ErrInvalidSex)
}

func TestGetDonor_EvaluatedOnEveryRead(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	v, err := svc.RegisterDonor(ctx, request("Ada", "Lovelace", bloodtype.ONeg, strptr("2025-04-01")))
	require.NoError(t, err)
	require.False(t, v.Eligibility.Eligible)

	svc.now = func() time.Time { return today.AddDate(0, 0, 10) }
	later, err := svc.GetDonor(ctx, v.ID)
	require.NoError(t, err)
	assert.True(t, later.Eligibility.Eligible)
	assert.Equal(t, 59, *later.Eligibility.DaysSinceLastDonation)
}

func TestListDonors_Filters(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for _, req := range []CreateRequest{
		request("Ada", "Lovelace", bloodtype.ONeg, strptr("2025-04-01")),
		request("Grace", "Hopper", bloodtype.APos, nil),
		request("Alan", "Turing", bloodtype.ABPos, nil),
		request("Edsger", "Dijkstra", bloodtype.BNeg, strptr("2025-01-01")),
	} {
		_, err := svc.RegisterDonor(ctx, req)
		require.NoError(t, err)
	}

	eligible := eligibility.StatusEligible
	got, err := svc.ListDonors(ctx, ListFilter{Eligibility: &eligible})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	deferred := eligibility.StatusDeferred
	got, err = svc.ListDonors(ctx, ListFilter{Eligibility: &deferred})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Lovelace", got[0].LastName)

	recipient := bloodtype.ANeg
	got, err = svc.ListDonors(ctx, ListFilter{CompatibleWith: &recipient})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, bloodtype.ONeg, got[0].BloodType)

	ab := bloodtype.ABPos
	got, err = svc.ListDonors(ctx, ListFilter{CompatibleWith: &ab})
	require.NoError(t, err)
	assert.Len(t, got, 4)

	donorType := bloodtype.APos
	got, err = svc.ListDonors(ctx, ListFilter{BloodType: &donorType, CompatibleWith: &recipient})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = svc.ListDonors(ctx, ListFilter{Query: "tur"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Alan Turing", got[0].FullName)
}

func TestUpdateDonor(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	v, err := svc.RegisterDonor(ctx, request("Ada", "Lovelace", bloodtype.ONeg, nil))
	require.NoError(t, err)

	bt := bloodtype.OPos
	updated, err := svc.UpdateDonor(ctx, v.ID, UpdateRequest{BloodType: &bt, City: strptr("London")})
	require.NoError(t, err)
	assert.Equal(t, bloodtype.OPos, updated.BloodType)
	assert.Equal(t, "London", *updated.City)
	assert.Equal(t, 2, updated.Version)

	_, err = svc.UpdateDonor(ctx, v.ID, UpdateRequest{FirstName: strptr("  ")})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestHandler_ListRejectsUnknownEligibility(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc, zap.NewNop())
	r := chi.NewRouter()
	h.Routes(r, func(next http.Handler) http.Handler { return next })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/donors?eligibility=Maybe", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := `{"first_name":"Ada","last_name":"Lovelace","date_of_birth":"1990-01-15","sex":"Female",` +
		`"phone_number":"555","blood_type":"o-"}`
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/donors", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created View
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, bloodtype.ONeg, created.BloodType)
	assert.Equal(t, eligibility.StatusEligible, created.CalculatedEligibility)
}

func TestPostgresRepository(t *testing.T) {
	db := pgtest.Open(t)
	es := eventstore.NewEventStore(db)
	repo := NewPostgresRepository(db, es)
	svc := NewService(repo, zap.NewNop())
	ctx := context.Background()

	name := "Pg" + uuid.NewString()[:8]
	v, err := svc.RegisterDonor(ctx, request(name, "Donor", bloodtype.BPos, strptr("2020-01-01")))
	require.NoError(t, err)

	got, err := svc.GetDonor(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, bloodtype.BPos, got.BloodType)
	require.NotNil(t, got.LastDonationDate)
	assert.True(t, got.Eligibility.Eligible)

	list, err := svc.ListDonors(ctx, ListFilter{Query: name})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	locked, err := LockForDonation(ctx, tx, v.ID)
	require.NoError(t, err)
	require.NoError(t, RecordLastDonation(ctx, tx, es, locked, uuid.New(), time.Now()))
	require.NoError(t, tx.Commit())

	got, err = svc.GetDonor(ctx, v.ID)
	require.NoError(t, err)
	assert.False(t, got.Eligibility.Eligible)
	assert.Equal(t, 2, got.Version)

	history, err := es.LoadEvents(ctx, v.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	require.NoError(t, svc.DeleteDonor(ctx, v.ID))
}
