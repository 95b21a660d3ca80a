package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bloodbank/internal/apperr"
	"bloodbank/internal/bloodtype"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apperr.NotFoundf("donor %d", 1), http.StatusNotFound, "not_found"},
		{apperr.Invalidf("bad"), http.StatusBadRequest, "invalid"},
		{fmt.Errorf("wrapped: %w", apperr.ErrConflict), http.StatusConflict, "conflict"},
		{apperr.Rulef("incompatible"), http.StatusUnprocessableEntity, "rule_violation"},
		{apperr.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{apperr.ErrForbidden, http.StatusForbidden, "forbidden"},
		{apperr.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		status, code := StatusFor(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func TestWriteError_HidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	WriteError(rec, req, zap.NewNop(), errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "internal server error", body.Error)
	assert.Equal(t, "internal", body.Code)
}

func TestDecode(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
	require.NoError(t, Decode(req, &v))
	assert.Equal(t, "x", v.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"other":1}`))
	assert.ErrorIs(t, Decode(req, &v), apperr.ErrInvalid)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	assert.ErrorIs(t, Decode(req, &v), apperr.ErrInvalid)
}

func TestQueryParams(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?n=7&id=not-a-uuid", nil)

	n, err := QueryInt(req, "n")
	require.NoError(t, err)
	assert.Equal(t, 7, *n)

	missing, err := QueryInt(req, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = QueryUUID(req, "id")
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestQueryBloodType(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?a=O+&b=AB%2B&c=o-&d=C%2B", nil)

	a, err := QueryBloodType(req, "a")
	require.NoError(t, err)
	assert.Equal(t, bloodtype.OPos, *a)

	b, err := QueryBloodType(req, "b")
	require.NoError(t, err)
	assert.Equal(t, bloodtype.ABPos, *b)

	c, err := QueryBloodType(req, "c")
	require.NoError(t, err)
	assert.Equal(t, bloodtype.ONeg, *c)

	_, err = QueryBloodType(req, "d")
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	none, err := QueryBloodType(req, "none")
	require.NoError(t, err)
	assert.Nil(t, none)
}
