package matchmaking

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/mauv0809/courtmatch/internal/catalog"
	"github.com/mauv0809/courtmatch/internal/database"
	"github.com/mauv0809/courtmatch/internal/events"
	"github.com/mauv0809/courtmatch/internal/metrics"
	"github.com/stretchr/testify/require"
)

const testDate = "2024-06-01"

// fakeClock is a settable clock shared by the store and the service.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) Kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]events.Kind, 0, len(r.events))
	for _, e := range r.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func (r *recorder) Count(kind events.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

type testEnv struct {
	db      *sql.DB
	catalog catalog.Store
	store   Store
	service *Service
	clock   *fakeClock
	events  *recorder
	metrics *metrics.Mock
}

// setupTestEnv creates an in-memory database with a badminton sport and a
// service whose store and clock are wired together.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, teardown, err := database.InitDB(":memory:", "", "")
	require.NoError(t, err)

	cat := catalog.New(db)
	_, err = cat.AddSport(context.Background(), "Badminton", 2)
	require.NoError(t, err)

	clock := newFakeClock()
	store := NewStore(db, 10*time.Minute, WithClock(clock.Now))
	rec := &recorder{}
	m := metrics.NewMock()
	svc := NewService(store, cat, rec, m, 3)
	svc.SetClock(clock.Now)

	env := &testEnv{
		db:      db,
		catalog: cat,
		store:   store,
		service: svc,
		clock:   clock,
		events:  rec,
		metrics: m,
	}
	t.Cleanup(teardown)
	return env
}

// addPlayer creates a profile and places the player at a badminton rating.
func (env *testEnv) addPlayer(t *testing.T, userID string, gender catalog.Gender, r int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, env.catalog.UpsertProfile(ctx, catalog.Profile{UserID: userID, Name: userID, Gender: gender}))
	require.NoError(t, env.catalog.SetRating(ctx, userID, "badminton", r))
}

func criteria(tolerance int) Criteria {
	return Criteria{
		PreferredDate:   testDate,
		PreferredTime:   "17:00",
		RatingTolerance: &tolerance,
	}
}

func strPtr(s string) *string { return &s }
