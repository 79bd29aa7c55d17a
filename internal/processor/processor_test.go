package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mauv0809/courtmatch/internal/catalog"
	"github.com/mauv0809/courtmatch/internal/database"
	"github.com/mauv0809/courtmatch/internal/events"
	"github.com/mauv0809/courtmatch/internal/matchmaking"
	"github.com/mauv0809/courtmatch/internal/metrics"
	"github.com/mauv0809/courtmatch/internal/notifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStore serves a fixed set of matches and feedback.
type stubStore struct {
	matches  map[string]*matchmaking.Match
	feedback map[string][]matchmaking.Feedback
}

func (s *stubStore) GetMatch(_ context.Context, matchID string) (*matchmaking.Match, error) {
	m, ok := s.matches[matchID]
	if !ok {
		return nil, matchmaking.ErrNotFound
	}
	return m, nil
}

func (s *stubStore) ListFeedback(_ context.Context, matchID string) ([]matchmaking.Feedback, error) {
	return s.feedback[matchID], nil
}

type stubDirectory struct {
	names map[string]string
}

func (d *stubDirectory) GetSport(_ context.Context, sportID string) (*catalog.Sport, error) {
	if sportID == "padel" {
		return &catalog.Sport{ID: "padel", Name: "Padel"}, nil
	}
	return nil, catalog.ErrNotFound
}

func (d *stubDirectory) GetProfile(_ context.Context, userID string) (*catalog.Profile, error) {
	name, ok := d.names[userID]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &catalog.Profile{UserID: userID, Name: name}, nil
}

func newStubs() (*stubStore, *stubDirectory) {
	store := &stubStore{
		matches: map[string]*matchmaking.Match{
			"m1": {ID: "m1", SportID: "padel", Status: matchmaking.MatchCompleted, Players: []matchmaking.MatchPlayer{{UserID: "u1"}, {UserID: "u2"}}},
			"m2": {ID: "m2", SportID: "squash", Status: matchmaking.MatchDisputed, Players: []matchmaking.MatchPlayer{{UserID: "u1"}, {UserID: "u3"}}},
		},
		feedback: map[string][]matchmaking.Feedback{
			"m2": {{FromUserID: "u1", ReportedWinnerID: "u1"}, {FromUserID: "u3", ReportedWinnerID: "u3"}},
		},
	}
	return store, &stubDirectory{names: map[string]string{"u1": "Alice", "u2": "Bob"}}
}

func TestProcessor_Handle(t *testing.T) {
	t.Run("completed match sends a result notification", func(t *testing.T) {
		store, dir := newStubs()
		notif := notifier.NewMock()
		p := New(store, dir, notif, false)

		require.NoError(t, p.Handle(context.Background(), events.Event{Kind: events.MatchCompleted, MatchID: "m1"}))

		require.Len(t, notif.SendMatchResultCalls, 1)
		report := notif.SendMatchResultCalls[0]
		assert.Equal(t, "m1", report.Match.ID)
		assert.Equal(t, "Padel", report.SportName)
		assert.Equal(t, "Alice", report.Name("u1"))
		assert.Empty(t, notif.SendDisputeReportCalls)
	})

	t.Run("disputed match is reported with both reports", func(t *testing.T) {
		store, dir := newStubs()
		notif := notifier.NewMock()
		p := New(store, dir, notif, false)

		require.NoError(t, p.Handle(context.Background(), events.Event{Kind: events.MatchDisputed, MatchID: "m2"}))

		require.Len(t, notif.SendDisputeReportCalls, 1)
		report := notif.SendDisputeReportCalls[0]
		assert.Len(t, report.Feedback, 2)
		assert.Equal(t, "squash", report.SportName, "unknown sports fall back to the id")
		assert.Equal(t, "u3", report.Name("u3"), "players without a profile fall back to the id")
	})

	t.Run("other events are ignored", func(t *testing.T) {
		store, dir := newStubs()
		notif := notifier.NewMock()
		p := New(store, dir, notif, false)

		require.NoError(t, p.Handle(context.Background(), events.Event{Kind: events.QueueJoined, EntryID: "e1"}))
		assert.Empty(t, notif.SendMatchResultCalls)
		assert.Empty(t, notif.SendDisputeReportCalls)
	})

	t.Run("missing match is an error", func(t *testing.T) {
		store, dir := newStubs()
		p := New(store, dir, notifier.NewMock(), false)

		err := p.Handle(context.Background(), events.Event{Kind: events.MatchCompleted, MatchID: "nope"})
		assert.ErrorIs(t, err, matchmaking.ErrNotFound)
	})

	t.Run("notifier errors are returned", func(t *testing.T) {
		store, dir := newStubs()
		notif := notifier.NewMock()
		notif.SendMatchResultFunc = func(notifier.MatchReport) error { return errors.New("slack down") }
		p := New(store, dir, notif, false)

		err := p.Handle(context.Background(), events.Event{Kind: events.MatchCompleted, MatchID: "m1"})
		assert.Error(t, err)
	})
}

func TestProcessor_PublishOnlyQueuesSettlementEvents(t *testing.T) {
	store, dir := newStubs()
	p := New(store, dir, notifier.NewMock(), true)

	p.Publish(context.Background(), events.Event{Kind: events.QueueJoined})
	p.Publish(context.Background(), events.Event{Kind: events.MatchCreated})
	p.Publish(context.Background(), events.Event{Kind: events.MatchCompleted, MatchID: "m1"})
	assert.Len(t, p.queue, 1)

	for i := 0; i < queueSize*2; i++ {
		p.Publish(context.Background(), events.Event{Kind: events.MatchDisputed, MatchID: "m2"})
	}
	assert.Len(t, p.queue, queueSize, "a full queue drops instead of blocking")
}

func TestProcessor_RunAnnouncesSettledMatches(t *testing.T) {
	db, teardown, err := database.InitDB(":memory:", "", "")
	require.NoError(t, err)
	defer teardown()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cat := catalog.New(db)
	_, err = cat.AddSport(ctx, "Badminton", 2)
	require.NoError(t, err)
	for _, id := range []string{"ann", "ben"} {
		require.NoError(t, cat.UpsertProfile(ctx, catalog.Profile{UserID: id, Name: id}))
	}

	store := matchmaking.NewStore(db, 10*time.Minute)
	notif := notifier.NewMock()
	p := New(store, cat, notif, true)
	svc := matchmaking.NewService(store, cat, p, metrics.NewMock(), 3)
	go p.Run(ctx)

	crit := matchmaking.Criteria{PreferredDate: "2024-06-01", PreferredTime: "17:00"}
	_, err = svc.JoinQueue(ctx, "ann", "badminton", crit)
	require.NoError(t, err)
	res, err := svc.JoinQueue(ctx, "ben", "badminton", crit)
	require.NoError(t, err)
	require.NotNil(t, res.Match)

	scores := matchmaking.BehaviorScores{SkillAccuracy: 3, FairPlay: 3, Punctuality: 3, Tone: 3, Aggressiveness: 3, Sportsmanship: 3}
	for _, from := range []string{"ann", "ben"} {
		_, err := svc.SubmitFeedback(ctx, matchmaking.FeedbackInput{
			MatchID: res.Match.ID, FromUserID: from, ReportedWinnerID: "ben", Scores: scores,
		})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool { return len(notif.MatchResults()) == 1 }, time.Second, 10*time.Millisecond)
	report := notif.MatchResults()[0]
	assert.Equal(t, "Badminton", report.SportName)
	assert.Equal(t, "ben", *report.Match.WinnerID)
}
