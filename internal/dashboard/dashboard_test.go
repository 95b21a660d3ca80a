package dashboard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bloodbank/internal/apperr"
	"bloodbank/internal/bloodtype"
	"bloodbank/internal/donation"
	"bloodbank/internal/donor"
	"bloodbank/internal/eligibility"
	"bloodbank/internal/inventory"
	"bloodbank/internal/session"
)

var now = time.Date(2025, 5, 5, 8, 0, 0, 0, time.UTC)

type fakeSources struct {
	donors    []donor.View
	donations []donation.View
	summaries []inventory.Summary
	err       error

	donationFilter donation.ListFilter
	stockHospital  *uuid.UUID
}

func (f *fakeSources) ListDonors(context.Context, donor.ListFilter) ([]donor.View, error) {
	return f.donors, f.err
}

func (f *fakeSources) ListDonations(_ context.Context, filter donation.ListFilter) ([]donation.View, error) {
	f.donationFilter = filter
	return f.donations, nil
}

func (f *fakeSources) Summary(_ context.Context, hospitalID *uuid.UUID) ([]inventory.Summary, error) {
	f.stockHospital = hospitalID
	return f.summaries, nil
}

func newFakeSources() *fakeSources {
	recent := now.AddDate(0, 0, -10)
	old := now.AddDate(0, 0, -90)
	f := &fakeSources{}
	for _, last := range []*time.Time{nil, &recent, &old} {
		f.donors = append(f.donors, donor.View{Eligibility: eligibility.Evaluate(last, now)})
	}
	for _, result := range []donation.TestResult{donation.TestAccepted, donation.TestAccepted, donation.TestPending, donation.TestRejected} {
		f.donations = append(f.donations, donation.View{Donation: donation.Donation{TestResult: result}})
	}
	levels := map[bloodtype.BloodType]int{bloodtype.ONeg: 2, bloodtype.APos: 7}
	for _, bt := range bloodtype.All() {
		available, ok := levels[bt]
		if !ok {
			available = 12
		}
		f.summaries = append(f.summaries, inventory.Summary{
			BloodType:      bt,
			TotalUnits:     available + 1,
			AvailableUnits: available,
			Level:          inventory.ClassifyStock(available, inventory.DefaultMinimumThreshold),
		})
	}
	return f
}

func newTestService(f *fakeSources) *service {
	svc := NewService(f, f, f, zap.NewNop()).(*service)
	svc.now = func() time.Time { return now }
	return svc
}

func TestStats(t *testing.T) {
	f := newFakeSources()
	hospital := uuid.New()

	got, err := newTestService(f).Stats(context.Background(), &hospital)
	require.NoError(t, err)

	assert.Equal(t, &Stats{
		TotalDonors:        3,
		EligibleDonors:     2,
		TotalDonations:     4,
		AcceptedDonations:  2,
		TotalUnits:         2 + 7 + 6*12 + 8,
		AvailableUnits:     2 + 7 + 6*12,
		LowStockTypes:      1,
		CriticalStockTypes: 1,
		GeneratedAt:        now,
	}, got)
	assert.Equal(t, &hospital, f.donationFilter.HospitalID)
	assert.Equal(t, &hospital, f.stockHospital)
}

func TestStats_SourceFailure(t *testing.T) {
	f := newFakeSources()
	f.err = errors.New("db down")

	_, err := newTestService(f).Stats(context.Background(), nil)
	assert.ErrorContains(t, err, "db down")
}

func TestHandler_ScopesToSessionHospital(t *testing.T) {
	f := newFakeSources()
	own := uuid.New()

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			s := &session.Session{Role: session.RoleHospital, HospitalID: &own}
			next.ServeHTTP(w, req.WithContext(session.NewContext(req.Context(), s)))
		})
	})
	NewHandler(newTestService(f), zap.NewNop()).Routes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"critical_stock_types":1`)
	require.NotNil(t, f.stockHospital)
	assert.Equal(t, own, *f.stockHospital)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard/stats?hospital_id="+uuid.NewString(), nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), apperr.ErrForbidden.Error())
}
