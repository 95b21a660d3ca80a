package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bloodbank/internal/cache"
	"bloodbank/internal/campaign"
	"bloodbank/internal/config"
	"bloodbank/internal/dashboard"
	"bloodbank/internal/donation"
	"bloodbank/internal/donor"
	"bloodbank/internal/hospital"
	"bloodbank/internal/inventory"
	"bloodbank/internal/patient"
	"bloodbank/internal/session"
	"bloodbank/internal/transfusion"
)

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

type memoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memoryStore) SaveSession(_ context.Context, id string, data []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[id] = data
	return nil
}

func (m *memoryStore) LoadSession(_ context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[id]
	if !ok {
		return nil, cache.ErrMiss
	}
	return d, nil
}

func (m *memoryStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}

type noHospitals struct{}

func (noHospitals) Authenticate(context.Context, uuid.UUID, string) error {
	return session.ErrInvalidCredentials
}

type emptySources struct{}

func (emptySources) ListDonors(context.Context, donor.ListFilter) ([]donor.View, error) {
	return nil, nil
}

func (emptySources) ListDonations(context.Context, donation.ListFilter) ([]donation.View, error) {
	return nil, nil
}

func (emptySources) Summary(context.Context, *uuid.UUID) ([]inventory.Summary, error) {
	return nil, nil
}

func newTestRouter(t *testing.T, checks map[string]Pinger) http.Handler {
	t.Helper()
	logger := zap.NewNop()
	sessions, err := session.NewService(&memoryStore{data: map[string][]byte{}}, noHospitals{}, config.AuthConfig{
		AdminPasskey: "admin-secret",
		JWTSecret:    "test-secret",
		SessionTTL:   time.Hour,
	}, logger)
	require.NoError(t, err)

	return NewRouter(Handlers{
		Session:     session.NewHandler(sessions, logger),
		Hospital:    hospital.NewHandler(nil, logger),
		Donor:       donor.NewHandler(nil, logger),
		Campaign:    campaign.NewHandler(nil, logger),
		Patient:     patient.NewHandler(nil, logger),
		Donation:    donation.NewHandler(nil, logger),
		Inventory:   inventory.NewHandler(nil, logger),
		Transfusion: transfusion.NewHandler(nil, logger),
		Dashboard:   dashboard.NewHandler(dashboard.NewService(emptySources{}, emptySources{}, emptySources{}, logger), logger),
	}, checks, logger)
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t, map[string]Pinger{"postgres": pinger{}, "redis": pinger{}})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"up"`)

	r = newTestRouter(t, map[string]Pinger{"postgres": pinger{err: errors.New("refused")}})
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"postgres":"down"`)
}

func TestAPIRequiresSession(t *testing.T) {
	r := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"role":"admin","passkey":"admin-secret"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var token session.Token
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &token))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_donors":0`)
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, "127.0.0.1:0", http.NotFoundHandler(), time.Second, zap.NewNop())
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
