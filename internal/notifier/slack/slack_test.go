package slack

import (
	"context"
	"errors"
	"testing"

	"github.com/mauv0809/courtmatch/internal/catalog"
	"github.com/mauv0809/courtmatch/internal/matchmaking"
	"github.com/mauv0809/courtmatch/internal/metrics"
	"github.com/mauv0809/courtmatch/internal/notifier"
	slackapi "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSlackAPI is a mock implementation of the parts of the slack.Client that we use.
type mockSlackAPI struct {
	postMessageContextFunc func(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

func (m *mockSlackAPI) PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
	if m.postMessageContextFunc != nil {
		return m.postMessageContextFunc(ctx, channelID, options...)
	}
	return "C12345", "123456789.12345", nil
}

func intPtr(v int) *int { return &v }

func settledReport() notifier.MatchReport {
	winner := "u1"
	return notifier.MatchReport{
		Match: &matchmaking.Match{
			ID:            "m1",
			SportID:       "badminton",
			ScheduledDate: "2024-06-01",
			ScheduledTime: "17:00",
			Status:        matchmaking.MatchCompleted,
			WinnerID:      &winner,
			Players: []matchmaking.MatchPlayer{
				{UserID: "u1", RatingBefore: 1400, RatingAfter: intPtr(1426)},
				{UserID: "u2", RatingBefore: 1500, RatingAfter: intPtr(1474)},
			},
		},
		SportName:   "Badminton",
		PlayerNames: map[string]string{"u1": "Alice", "u2": "Bob"},
	}
}

func TestSendMessage_DryRun(t *testing.T) {
	metrics := metrics.NewMock()
	// Pass nil for the api, as it shouldn't be called in dry-run mode.
	notifier := NewNotifierWithAPI(nil, "C123", metrics)

	message := slackapi.NewBlockMessage()
	_, _, err := notifier.sendMessage(context.Background(), message, true)
	require.NoError(t, err)
	assert.Equal(t, 0, metrics.SlackNotifSent())
}

func TestSendMessage_Success(t *testing.T) {
	postMessageCalled := false
	api := &mockSlackAPI{
		postMessageContextFunc: func(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
			postMessageCalled = true
			assert.Equal(t, "C123", channelID)
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline, "Slack calls are bounded by a timeout")
			return "C123", "ts123", nil
		},
	}

	metrics := metrics.NewMock()
	notifier := NewNotifierWithAPI(api, "C123", metrics)

	message := slackapi.NewBlockMessage(slackapi.NewSectionBlock(slackapi.NewTextBlockObject("plain_text", "hello", false, false), nil, nil))
	_, _, err := notifier.sendMessage(context.Background(), message, false)

	require.NoError(t, err)
	assert.True(t, postMessageCalled, "PostMessageContext should have been called")
	assert.Equal(t, 1, metrics.SlackNotifSent())
	assert.Equal(t, 0, metrics.SlackNotifFailed())
}

func TestSendMessage_Failure(t *testing.T) {
	expectedErr := errors.New("slack API is down")
	api := &mockSlackAPI{
		postMessageContextFunc: func(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
			return "", "", expectedErr
		},
	}

	metrics := metrics.NewMock()
	notifier := NewNotifierWithAPI(api, "C123", metrics)

	_, _, err := notifier.sendMessage(context.Background(), slackapi.NewBlockMessage(), false)

	require.Error(t, err)
	assert.ErrorIs(t, err, expectedErr)
	assert.Equal(t, 0, metrics.SlackNotifSent())
	assert.Equal(t, 1, metrics.SlackNotifFailed())
}

func TestSendMatchResult_CallsSender(t *testing.T) {
	postMessageCalled := false
	api := &mockSlackAPI{
		postMessageContextFunc: func(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
			postMessageCalled = true
			return "C123", "ts123", nil
		},
	}
	notifier := NewNotifierWithAPI(api, "C123", metrics.NewMock())

	err := notifier.SendMatchResult(context.Background(), settledReport(), false)
	require.NoError(t, err)
	assert.True(t, postMessageCalled, "PostMessageContext should have been called via SendMatchResult")
}

func TestFormatMatchResult(t *testing.T) {
	client := &Notifier{channelID: "C123"}
	msg := client.formatMatchResult(settledReport())
	require.Len(t, msg.Blocks.BlockSet, 3, "Expected 3 blocks")

	header, ok := msg.Blocks.BlockSet[0].(*slackapi.HeaderBlock)
	require.True(t, ok, "First block should be a HeaderBlock")
	assert.Equal(t, "🏆 Match settled! 🏆", header.Text.Text)

	details, ok := msg.Blocks.BlockSet[1].(*slackapi.SectionBlock)
	require.True(t, ok)
	assert.Equal(t, "Badminton on 2024-06-01 at 17:00", details.Text.Text)

	players, ok := msg.Blocks.BlockSet[2].(*slackapi.SectionBlock)
	require.True(t, ok)
	assert.Equal(t, "• Alice: Won, rating 1400 → 1426 (+26)\n• Bob: Lost, rating 1500 → 1474 (-26)", players.Text.Text)
}

func TestFormatDisputeReport(t *testing.T) {
	report := settledReport()
	report.Match.Status = matchmaking.MatchDisputed
	report.Match.WinnerID = nil
	report.Feedback = []matchmaking.Feedback{
		{FromUserID: "u1", ReportedWinnerID: "u1"},
		{FromUserID: "u2", ReportedWinnerID: "u2", Comments: "I won 21-19"},
	}

	client := &Notifier{channelID: "C123"}
	msg := client.formatDisputeReport(report)
	require.Len(t, msg.Blocks.BlockSet, 4)

	header, ok := msg.Blocks.BlockSet[0].(*slackapi.HeaderBlock)
	require.True(t, ok)
	assert.Equal(t, "⚠️ Disputed match result", header.Text.Text)

	reports, ok := msg.Blocks.BlockSet[2].(*slackapi.SectionBlock)
	require.True(t, ok)
	require.Len(t, reports.Fields, 2)
	assert.Equal(t, "*Alice* says *Alice* won", reports.Fields[0].Text)
	assert.Equal(t, "*Bob* says *Bob* won\n> I won 21-19", reports.Fields[1].Text)

	contextBlock, ok := msg.Blocks.BlockSet[3].(*slackapi.ContextBlock)
	require.True(t, ok)
	require.Len(t, contextBlock.ContextElements.Elements, 1)
	text, ok := contextBlock.ContextElements.Elements[0].(*slackapi.TextBlockObject)
	require.True(t, ok)
	assert.Contains(t, text.Text, "m1")
}

func TestFormatLeaderboard(t *testing.T) {
	sport := catalog.Sport{ID: "badminton", Name: "Badminton"}

	t.Run("displays ranked players", func(t *testing.T) {
		board := []catalog.PlayerRating{
			{Name: "Alice", Rating: 1650, Tier: "Expert", Wins: 9, GamesPlayed: 12},
			{Name: "Bob", Rating: 1420, Tier: "Advanced", Wins: 5, GamesPlayed: 11},
		}
		client := &Notifier{channelID: "C123"}
		msg := client.formatLeaderboard(sport, board)

		require.Len(t, msg.Blocks.BlockSet, 3)
		header, ok := msg.Blocks.BlockSet[0].(*slackapi.HeaderBlock)
		require.True(t, ok)
		assert.Equal(t, "🏆 Badminton Leaderboard 🏆", header.Text.Text)

		first, ok := msg.Blocks.BlockSet[1].(*slackapi.SectionBlock)
		require.True(t, ok)
		assert.Equal(t, "1. 🥇 Alice\n> Rating: 1650 (Expert) | Won 9 of 12", first.Text.Text)
	})

	t.Run("empty leaderboard", func(t *testing.T) {
		client := &Notifier{channelID: "C123"}
		msg := client.formatLeaderboard(sport, nil)
		require.Len(t, msg.Blocks.BlockSet, 2)
		section, ok := msg.Blocks.BlockSet[1].(*slackapi.SectionBlock)
		require.True(t, ok)
		assert.Equal(t, "No rated players yet. Go play some matches!", section.Text.Text)
	})
}
