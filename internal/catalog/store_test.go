package catalog_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/mauv0809/courtmatch/internal/catalog"
	"github.com/mauv0809/courtmatch/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) (catalog.Store, *sql.DB, func()) {
	t.Helper()

	db, teardown, err := database.InitDB(":memory:", "", "")
	require.NoError(t, err)

	return catalog.New(db), db, teardown
}

func TestAddSport_SlugsName(t *testing.T) {
	store, _, teardown := setupTestDB(t)
	defer teardown()
	ctx := context.Background()

	sport, err := store.AddSport(ctx, "Table Tennis", 0)
	require.NoError(t, err)
	assert.Equal(t, "table-tennis", sport.ID)
	assert.Equal(t, "Table Tennis", sport.Name)
	assert.Equal(t, 2, sport.PlayersRequired)
	assert.True(t, sport.Active)

	again, err := store.AddSport(ctx, "table tennis", 2)
	require.NoError(t, err)
	assert.Equal(t, "Table Tennis", again.Name, "re-adding keeps the stored sport")

	_, err = store.AddSport(ctx, "Badminton", 2)
	require.NoError(t, err)

	sports, err := store.ListSports(ctx)
	require.NoError(t, err)
	require.Len(t, sports, 2)
	assert.Equal(t, "badminton", sports[0].ID)

	_, err = store.GetSport(ctx, "curling")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestVenues(t *testing.T) {
	store, _, teardown := setupTestDB(t)
	defer teardown()
	ctx := context.Background()

	venue, err := store.AddVenue(ctx, catalog.Venue{Name: "Arena", City: "Copenhagen", Lat: 55.67, Lng: 12.56})
	require.NoError(t, err)
	assert.NotEmpty(t, venue.ID)

	got, err := store.GetVenue(ctx, venue.ID)
	require.NoError(t, err)
	assert.Equal(t, "Arena", got.Name)
	assert.InDelta(t, 55.67, got.Lat, 1e-9)

	_, err = store.AddVenue(ctx, catalog.Venue{Name: "Nowhere", Lat: 120})
	assert.Error(t, err)

	_, err = store.GetVenue(ctx, "missing")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestProfiles(t *testing.T) {
	store, _, teardown := setupTestDB(t)
	defer teardown()
	ctx := context.Background()

	require.NoError(t, store.UpsertProfile(ctx, catalog.Profile{UserID: "u1", Name: "Ann", Gender: catalog.GenderFemale}))
	require.NoError(t, store.UpsertProfile(ctx, catalog.Profile{UserID: "u1", Name: "Ann B", Gender: catalog.GenderFemale}))

	p, err := store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ann B", p.Name)
	assert.Equal(t, catalog.GenderFemale, p.Gender)

	err = store.UpsertProfile(ctx, catalog.Profile{UserID: "u2", Name: "Bo", Gender: "other"})
	assert.Error(t, err)

	_, err = store.GetProfile(ctx, "u2")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestRatingsAndSnapshots(t *testing.T) {
	store, _, teardown := setupTestDB(t)
	defer teardown()
	ctx := context.Background()

	_, err := store.AddSport(ctx, "Badminton", 2)
	require.NoError(t, err)
	require.NoError(t, store.UpsertProfile(ctx, catalog.Profile{UserID: "a", Name: "A", Gender: catalog.GenderMale}))
	require.NoError(t, store.UpsertProfile(ctx, catalog.Profile{UserID: "b", Name: "B"}))

	r, err := store.GetRating(ctx, "a", "badminton")
	require.NoError(t, err)
	assert.Equal(t, 1200, r.Rating, "unrated players start at the base rating")
	assert.Equal(t, "Intermediate", r.Tier)

	require.NoError(t, store.SetRating(ctx, "a", "badminton", 1450))

	snaps, err := store.Snapshots(ctx, "badminton", []string{"a", "b", "ghost"})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, catalog.PlayerSnapshot{Rating: 1450, Gender: catalog.GenderMale}, snaps["a"])
	assert.Equal(t, catalog.PlayerSnapshot{Rating: 1200, Gender: catalog.GenderUnknown}, snaps["b"])

	empty, err := store.Snapshots(ctx, "badminton", nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLeaderboard(t *testing.T) {
	store, db, teardown := setupTestDB(t)
	defer teardown()
	ctx := context.Background()

	_, err := store.AddSport(ctx, "Padel", 2)
	require.NoError(t, err)
	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		require.NoError(t, store.UpsertProfile(ctx, catalog.Profile{UserID: id, Name: "Player " + id}))
	}
	_, err = db.Exec(`INSERT INTO player_ratings (user_id, sport_id, rating, games_played, wins, losses, updated_at) VALUES
		('p1', 'padel', 1300, 4, 3, 1, 0),
		('p2', 'padel', 1500, 6, 5, 1, 0),
		('p3', 'padel', 1300, 4, 2, 2, 0),
		('p4', 'padel', 1800, 0, 0, 0, 0)`)
	require.NoError(t, err)

	board, err := store.Leaderboard(ctx, "padel", 10)
	require.NoError(t, err)
	require.Len(t, board, 3, "players without games are not ranked")
	assert.Equal(t, "p2", board[0].UserID)
	assert.Equal(t, "p1", board[1].UserID, "equal ratings rank by wins")
	assert.Equal(t, "p3", board[2].UserID)
	assert.Equal(t, "Advanced", board[0].Tier)

	top, err := store.Leaderboard(ctx, "padel", 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)
}

func TestBehaviorMetrics_DefaultsToEmpty(t *testing.T) {
	store, _, teardown := setupTestDB(t)
	defer teardown()

	m, err := store.GetBehaviorMetrics(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, m.TotalRatings)
}
