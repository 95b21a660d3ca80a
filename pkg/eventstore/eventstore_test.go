package eventstore_test

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodbank/internal/platform/postgres/pgtest"
	"bloodbank/pkg/eventstore"
)

type testEvent struct {
	Message string `json:"message"`
}

func TestNewEvent(t *testing.T) {
	ev, err := eventstore.NewEvent("Tested", testEvent{Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "Tested", ev.EventType)
	assert.JSONEq(t, `{"message":"hello"}`, string(ev.EventData))

	_, err = eventstore.NewEvent("Broken", make(chan int))
	assert.Error(t, err)
}

func TestAppendAndLoad(t *testing.T) {
	db := pgtest.Open(t)
	es := eventstore.NewEventStore(db)
	ctx := context.Background()
	id := uuid.New()

	first, err := eventstore.NewEvent("First", testEvent{Message: "1"})
	require.NoError(t, err)
	second, err := eventstore.NewEvent("Second", testEvent{Message: "2"})
	require.NoError(t, err)

	require.NoError(t, es.Append(ctx, db, id, eventstore.AggregateDonor, 0, first, second))

	version, err := es.GetCurrentVersion(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	events, err := es.LoadEvents(ctx, id, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "First", events[0].EventType)
	assert.Equal(t, 2, events[1].Version)

	var payload testEvent
	require.NoError(t, json.Unmarshal(events[1].EventData, &payload))
	assert.Equal(t, "2", payload.Message)

	ranged, err := es.LoadEvents(ctx, id, 2, 2)
	require.NoError(t, err)
	assert.Len(t, ranged, 1)
}

func TestAppend_StaleVersion(t *testing.T) {
	db := pgtest.Open(t)
	es := eventstore.NewEventStore(db)
	ctx := context.Background()
	id := uuid.New()

	ev, err := eventstore.NewEvent("Created", testEvent{})
	require.NoError(t, err)
	require.NoError(t, es.Append(ctx, db, id, eventstore.AggregateDonor, 0, ev))

	err = es.Append(ctx, db, id, eventstore.AggregateDonor, 0, ev)
	assert.ErrorIs(t, err, eventstore.ErrConcurrencyConflict)

	assert.ErrorIs(t, es.Append(ctx, db, id, eventstore.AggregateDonor, -1, ev), eventstore.ErrInvalidVersion)
}

func TestAppend_ConcurrentWriters(t *testing.T) {
	db := pgtest.Open(t)
	es := eventstore.NewEventStore(db)
	ctx := context.Background()
	id := uuid.New()

	const writers = 10
	var wg sync.WaitGroup
	var succeeded, conflicted atomic.Int32
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ev, _ := eventstore.NewEvent("Raced", testEvent{})
			err := es.Append(ctx, db, id, eventstore.AggregateUnit, 0, ev)
			switch {
			case err == nil:
				succeeded.Add(1)
			case assert.ErrorIs(t, err, eventstore.ErrConcurrencyConflict):
				conflicted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(writers-1), conflicted.Load())
}
