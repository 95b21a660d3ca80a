package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"bloodbank/internal/apperr"
	"bloodbank/pkg/eventstore"
)

func TestMapError(t *testing.T) {
	assert.NoError(t, MapError(nil))

	unique := fmt.Errorf("insert: %w", &pq.Error{Code: "23505", Constraint: "inventory_donation_id_key"})
	assert.ErrorIs(t, MapError(unique), apperr.ErrConflict)
	assert.ErrorIs(t, MapError(unique), unique)

	assert.ErrorIs(t, MapError(&pq.Error{Code: "23503"}), apperr.ErrConflict)
	assert.ErrorIs(t, MapError(&pq.Error{Code: "23514", Message: "check violated"}), apperr.ErrInvalid)

	assert.ErrorIs(t, MapError(eventstore.ErrConcurrencyConflict), apperr.ErrConflict)

	plain := errors.New("connection reset")
	assert.Equal(t, plain, MapError(plain))
	assert.Nil(t, apperr.Kind(MapError(&pq.Error{Code: "57014"})))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
}
