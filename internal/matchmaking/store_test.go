package matchmaking

import (
	"context"
	"testing"
	"time"

	"github.com/mauv0809/courtmatch/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoin_CreatesWaitingEntry(t *testing.T) {
	env := setupTestEnv(t)
	env.addPlayer(t, "alice", catalog.GenderFemale, 1300)
	ctx := context.Background()

	entry, err := env.store.Join(ctx, "alice", "badminton", Criteria{PreferredDate: testDate, PreferredTime: "18:30"})
	require.NoError(t, err)

	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, EntryWaiting, entry.Status)
	assert.Equal(t, GenderAny, entry.GenderPreference)
	assert.Equal(t, 200, entry.RatingTolerance, "tolerance defaults to 200")
	assert.Nil(t, entry.MatchID)
	assert.Equal(t, env.clock.Now().Add(10*time.Minute), entry.ExpiresAt)

	got, err := env.store.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, "18:30", got.PreferredTime)
	assert.Equal(t, 1, got.Version)
	assert.True(t, entry.ExpiresAt.Equal(got.ExpiresAt))
}

func TestJoin_Validation(t *testing.T) {
	env := setupTestEnv(t)
	env.addPlayer(t, "alice", catalog.GenderFemale, 1300)
	ctx := context.Background()

	negative := -1
	tests := []struct {
		name     string
		userID   string
		sportID  string
		criteria Criteria
		field    string
	}{
		{"missing user", "", "badminton", criteria(100), "user_id"},
		{"missing sport", "alice", "", criteria(100), "sport_id"},
		{"unknown sport", "alice", "curling", criteria(100), "sport_id"},
		{"bad date", "alice", "badminton", Criteria{PreferredDate: "01/06/2024", PreferredTime: "17:00"}, "preferred_date"},
		{"bad time", "alice", "badminton", Criteria{PreferredDate: testDate, PreferredTime: "5pm"}, "preferred_time"},
		{"bad gender", "alice", "badminton", Criteria{PreferredDate: testDate, PreferredTime: "17:00", GenderPreference: "mixed"}, "gender_preference"},
		{"negative tolerance", "alice", "badminton", Criteria{PreferredDate: testDate, PreferredTime: "17:00", RatingTolerance: &negative}, "rating_tolerance"},
		{"unknown venue", "alice", "badminton", Criteria{PreferredDate: testDate, PreferredTime: "17:00", VenueID: strPtr("nowhere")}, "venue_id"},
		{"zero radius", "alice", "badminton", Criteria{PreferredDate: testDate, PreferredTime: "17:00", Location: &GeoArea{Lat: 55, Lng: 12}}, "location.radius_km"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.store.Join(ctx, tt.userID, tt.sportID, tt.criteria)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	_, err := env.store.Join(ctx, "ghost", "badminton", criteria(100))
	assert.ErrorIs(t, err, ErrNotFound, "players need a profile")
}

func TestJoin_RejectsSecondWaitingEntry(t *testing.T) {
	env := setupTestEnv(t)
	env.addPlayer(t, "alice", catalog.GenderFemale, 1300)
	ctx := context.Background()

	first, err := env.store.Join(ctx, "alice", "badminton", criteria(100))
	require.NoError(t, err)

	_, err = env.store.Join(ctx, "alice", "badminton", criteria(300))
	assert.ErrorIs(t, err, ErrDuplicateActiveEntry)

	_, err = env.store.Cancel(ctx, first.ID, "alice")
	require.NoError(t, err)

	_, err = env.store.Join(ctx, "alice", "badminton", criteria(300))
	assert.NoError(t, err, "a cancelled entry does not block rejoining")
}

func TestJoin_ExpiresStaleEntryOnRejoin(t *testing.T) {
	env := setupTestEnv(t)
	env.addPlayer(t, "alice", catalog.GenderFemale, 1300)
	ctx := context.Background()

	stale, err := env.store.Join(ctx, "alice", "badminton", criteria(100))
	require.NoError(t, err)

	env.clock.Advance(11 * time.Minute)
	fresh, err := env.store.Join(ctx, "alice", "badminton", criteria(100))
	require.NoError(t, err)
	assert.NotEqual(t, stale.ID, fresh.ID)

	old, err := env.store.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, EntryExpired, old.Status)
}

func TestDatabaseRejectsSecondWaitingEntry(t *testing.T) {
	env := setupTestEnv(t)
	env.addPlayer(t, "alice", catalog.GenderFemale, 1300)

	insert := `INSERT INTO queue_entries (id, user_id, sport_id, preferred_date, preferred_time, gender_preference,
		rating_tolerance, status, version, created_at, expires_at, updated_at)
		VALUES (?, 'alice', 'badminton', '2024-06-01', '17:00', 'any', 200, 'waiting', 1, 0, 0, 0)`
	_, err := env.db.Exec(insert, "e1")
	require.NoError(t, err)
	_, err = env.db.Exec(insert, "e2")
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err))

	_, err = env.db.Exec(`UPDATE queue_entries SET status = 'matched' WHERE id = 'e1'`)
	assert.Error(t, err, "a matched entry must carry a match id")
}

func TestCancel(t *testing.T) {
	env := setupTestEnv(t)
	env.addPlayer(t, "alice", catalog.GenderFemale, 1300)
	ctx := context.Background()

	entry, err := env.store.Join(ctx, "alice", "badminton", criteria(100))
	require.NoError(t, err)

	_, err = env.store.Cancel(ctx, entry.ID, "mallory")
	assert.ErrorIs(t, err, ErrForbidden)

	cancelled, err := env.store.Cancel(ctx, entry.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, EntryCancelled, cancelled.Status)
	assert.Equal(t, 2, cancelled.Version)

	_, err = env.store.Cancel(ctx, entry.ID, "alice")
	assert.ErrorIs(t, err, ErrAlreadyTerminal)

	_, err = env.store.Cancel(ctx, "missing", "alice")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpire(t *testing.T) {
	env := setupTestEnv(t)
	env.addPlayer(t, "alice", catalog.GenderFemale, 1300)
	ctx := context.Background()

	entry, err := env.store.Join(ctx, "alice", "badminton", criteria(100))
	require.NoError(t, err)

	_, err = env.store.Expire(ctx, entry.ID)
	assert.ErrorIs(t, err, ErrNotExpired)

	due, err := env.store.ListExpired(ctx)
	require.NoError(t, err)
	assert.Empty(t, due)

	env.clock.Advance(10*time.Minute + time.Second)
	due, err = env.store.ListExpired(ctx)
	require.NoError(t, err)
	require.Len(t, due, 1)

	expired, err := env.store.Expire(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, EntryExpired, expired.Status)

	_, err = env.store.Expire(ctx, entry.ID)
	assert.ErrorIs(t, err, ErrAlreadyTerminal)
}

func TestTransitionEntry_StaleVersionConflicts(t *testing.T) {
	env := setupTestEnv(t)
	env.addPlayer(t, "alice", catalog.GenderFemale, 1300)
	ctx := context.Background()

	entry, err := env.store.Join(ctx, "alice", "badminton", criteria(100))
	require.NoError(t, err)
	stale := *entry

	_, err = env.store.Cancel(ctx, entry.ID, "alice")
	require.NoError(t, err)

	err = transitionEntry(ctx, env.db, &stale, EntryExpired, nil, env.clock.Now())
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, EntryWaiting, stale.Status, "a lost compare-and-set leaves the entry untouched")
}

func TestCommitMatch_ConflictRollsBack(t *testing.T) {
	env := setupTestEnv(t)
	env.addPlayer(t, "alice", catalog.GenderFemale, 1300)
	env.addPlayer(t, "bob", catalog.GenderMale, 1300)
	env.addPlayer(t, "carol", catalog.GenderFemale, 1300)
	ctx := context.Background()

	a, err := env.store.Join(ctx, "alice", "badminton", criteria(100))
	require.NoError(t, err)
	b, err := env.store.Join(ctx, "bob", "badminton", criteria(100))
	require.NoError(t, err)
	c, err := env.store.Join(ctx, "carol", "badminton", criteria(100))
	require.NoError(t, err)

	_, err = env.store.CommitMatch(ctx, *a, *b)
	require.NoError(t, err)

	// c read b as waiting before the first commit.
	_, err = env.store.CommitMatch(ctx, *c, *b)
	assert.ErrorIs(t, err, ErrConflict)

	still, err := env.store.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, EntryWaiting, still.Status)
	assert.Nil(t, still.MatchID)

	var matches int
	require.NoError(t, env.db.QueryRow(`SELECT COUNT(*) FROM matches`).Scan(&matches))
	assert.Equal(t, 1, matches, "the failed attempt must not leave a match behind")
}

func TestCommitMatch_SchedulesFromLongerWaitingEntry(t *testing.T) {
	env := setupTestEnv(t)
	env.addPlayer(t, "alice", catalog.GenderFemale, 1400)
	env.addPlayer(t, "bob", catalog.GenderMale, 1500)
	ctx := context.Background()

	early := criteria(200)
	early.PreferredTime = "09:00"
	a, err := env.store.Join(ctx, "alice", "badminton", early)
	require.NoError(t, err)

	env.clock.Advance(time.Minute)
	b, err := env.store.Join(ctx, "bob", "badminton", criteria(200))
	require.NoError(t, err)

	match, err := env.store.CommitMatch(ctx, *b, *a)
	require.NoError(t, err)
	assert.Equal(t, "09:00", match.ScheduledTime)
	assert.Equal(t, testDate, match.ScheduledDate)
	assert.Equal(t, MatchPending, match.Status)

	got, err := env.store.GetMatch(ctx, match.ID)
	require.NoError(t, err)
	require.Len(t, got.Players, 2)
	alice, ok := got.Player("alice")
	require.True(t, ok)
	assert.Equal(t, 1400, alice.RatingBefore)
	assert.Equal(t, a.ID, alice.QueueEntryID)
	bob, _ := got.Player("bob")
	assert.Equal(t, 1500, bob.RatingBefore)
	assert.Nil(t, bob.RatingAfter)
}

func TestMatchLifecycle(t *testing.T) {
	env := setupTestEnv(t)
	env.addPlayer(t, "alice", catalog.GenderFemale, 1300)
	env.addPlayer(t, "bob", catalog.GenderMale, 1300)
	env.addPlayer(t, "eve", catalog.GenderFemale, 1300)
	ctx := context.Background()

	a, err := env.store.Join(ctx, "alice", "badminton", criteria(100))
	require.NoError(t, err)
	b, err := env.store.Join(ctx, "bob", "badminton", criteria(100))
	require.NoError(t, err)
	match, err := env.store.CommitMatch(ctx, *a, *b)
	require.NoError(t, err)

	_, _, err = env.store.ConfirmMatch(ctx, match.ID, "eve")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.store.StartMatch(ctx, match.ID, "alice")
	assert.ErrorIs(t, err, ErrConflict, "a pending match cannot start")

	m, changed, err := env.store.ConfirmMatch(ctx, match.ID, "alice")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, MatchPending, m.Status)

	m, changed, err = env.store.ConfirmMatch(ctx, match.ID, "bob")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, MatchConfirmed, m.Status)

	m, err = env.store.StartMatch(ctx, match.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, MatchInProgress, m.Status)

	_, err = env.store.CancelMatch(ctx, match.ID, "alice")
	assert.ErrorIs(t, err, ErrConflict, "a match in progress cannot be cancelled")
}

func TestCancelMatch(t *testing.T) {
	env := setupTestEnv(t)
	env.addPlayer(t, "alice", catalog.GenderFemale, 1300)
	env.addPlayer(t, "bob", catalog.GenderMale, 1300)
	ctx := context.Background()

	a, err := env.store.Join(ctx, "alice", "badminton", criteria(100))
	require.NoError(t, err)
	b, err := env.store.Join(ctx, "bob", "badminton", criteria(100))
	require.NoError(t, err)
	match, err := env.store.CommitMatch(ctx, *a, *b)
	require.NoError(t, err)

	m, err := env.store.CancelMatch(ctx, match.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, MatchCancelled, m.Status)

	_, err = env.store.CancelMatch(ctx, match.ID, "alice")
	assert.ErrorIs(t, err, ErrAlreadyTerminal)

	err = env.store.AddFeedback(ctx, Feedback{ID: "f1", MatchID: match.ID, FromUserID: "alice", ToUserID: "bob",
		ReportedWinnerID: "alice", Scores: validScores(), CreatedAt: env.clock.Now()})
	assert.ErrorIs(t, err, ErrAlreadyTerminal)
}

func TestMatchStatusTransitions(t *testing.T) {
	assert.True(t, MatchPending.CanTransitionTo(MatchConfirmed))
	assert.True(t, MatchDisputed.CanTransitionTo(MatchCompleted))
	assert.False(t, MatchDisputed.CanTransitionTo(MatchCancelled))
	assert.False(t, MatchInProgress.CanTransitionTo(MatchCancelled))
	assert.False(t, MatchCompleted.CanTransitionTo(MatchDisputed))
	assert.False(t, MatchCancelled.CanTransitionTo(MatchPending))
	assert.True(t, MatchCompleted.IsTerminal())
	assert.True(t, MatchCancelled.IsTerminal())
	assert.False(t, MatchDisputed.IsTerminal())
}
