package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/courtmatch/internal/catalog"
	"github.com/mauv0809/courtmatch/internal/matchmaking"
	"github.com/mauv0809/courtmatch/internal/metrics"
	"github.com/mauv0809/courtmatch/internal/notifier"
	"github.com/slack-go/slack"
)

// slackClient is an interface that contains the methods from the slack.Client that we use.
// This allows for easy mocking in tests.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

var _ notifier.Notifier = &Notifier{}

// Notifier handles sending notifications to Slack.
type Notifier struct {
	api       slackClient
	channelID string
	metrics   metrics.Metrics
}

// NewNotifier creates a new Notifier.
func NewNotifier(token, channelID string, metrics metrics.Metrics) *Notifier {
	api := slack.New(token)
	return &Notifier{
		api:       api,
		channelID: channelID,
		metrics:   metrics,
	}
}

// NewNotifierWithAPI creates a new Notifier with a specific slack.Client instance.
// Useful for tests that need to intercept API calls.
func NewNotifierWithAPI(api slackClient, channelID string, metrics metrics.Metrics) *Notifier {
	return &Notifier{
		api:       api,
		channelID: channelID,
		metrics:   metrics,
	}
}

func (s *Notifier) sendMessage(ctx context.Context, message slack.Message, dryRun bool) (string, string, error) {
	if dryRun || s.api == nil {
		jsonMsg, _ := json.MarshalIndent(message, "", "  ")
		log.Info("[Dry Run] Would send Slack message", "channel", s.channelID, "message", string(jsonMsg))
		return "dry-run-channel", "dry-run-ts", nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	channelID, timestamp, err := s.api.PostMessageContext(
		ctx,
		s.channelID,
		slack.MsgOptionBlocks(message.Blocks.BlockSet...),
		slack.MsgOptionAsUser(true),
	)
	if err != nil {
		s.metrics.IncSlackNotifFailed()
		log.Error("Failed to send Slack message", "error", err, "channel", s.channelID)
		return "", "", fmt.Errorf("failed to post message: %w", err)
	}

	s.metrics.IncSlackNotifSent()
	log.Info("Successfully sent Slack message", "channel", channelID, "timestamp", timestamp)
	return channelID, timestamp, nil
}

func (s *Notifier) SendMatchResult(ctx context.Context, report notifier.MatchReport, dryRun bool) error {
	_, _, err := s.sendMessage(ctx, s.formatMatchResult(report), dryRun)
	return err
}

func (s *Notifier) SendDisputeReport(ctx context.Context, report notifier.MatchReport, dryRun bool) error {
	_, _, err := s.sendMessage(ctx, s.formatDisputeReport(report), dryRun)
	return err
}

func (s *Notifier) SendLeaderboard(ctx context.Context, sport catalog.Sport, board []catalog.PlayerRating, dryRun bool) error {
	_, _, err := s.sendMessage(ctx, s.formatLeaderboard(sport, board), dryRun)
	return err
}

func scheduleText(report notifier.MatchReport) string {
	m := report.Match
	sport := report.SportName
	if sport == "" {
		sport = m.SportID
	}
	return fmt.Sprintf("%s on %s at %s", sport, m.ScheduledDate, m.ScheduledTime)
}

func ratingChange(p matchmaking.MatchPlayer) string {
	if p.RatingAfter == nil {
		return fmt.Sprintf("%d", p.RatingBefore)
	}
	return fmt.Sprintf("%d → %d (%+d)", p.RatingBefore, *p.RatingAfter, *p.RatingAfter-p.RatingBefore)
}

// formatMatchResult creates the Slack message for a settled match using Block Kit.
func (s *Notifier) formatMatchResult(report notifier.MatchReport) slack.Message {
	blocks := make([]slack.Block, 0)

	headerText := slack.NewTextBlockObject("plain_text", "🏆 Match settled! 🏆", true, false)
	blocks = append(blocks, slack.NewHeaderBlock(headerText))
	blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", scheduleText(report), true, false), nil, nil))

	m := report.Match
	var lines []string
	for _, p := range m.Players {
		label := "Lost"
		if m.WinnerID != nil && *m.WinnerID == p.UserID {
			label = "Won"
		}
		lines = append(lines, fmt.Sprintf("• %s: %s, rating %s", report.Name(p.UserID), label, ratingChange(p)))
	}
	if len(lines) > 0 {
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", strings.Join(lines, "\n"), true, false), nil, nil))
	}

	return slack.NewBlockMessage(blocks...)
}

// formatDisputeReport creates the moderation message for a match whose
// players reported different winners.
func (s *Notifier) formatDisputeReport(report notifier.MatchReport) slack.Message {
	blocks := make([]slack.Block, 0)

	headerText := slack.NewTextBlockObject("plain_text", "⚠️ Disputed match result", true, false)
	blocks = append(blocks, slack.NewHeaderBlock(headerText))
	blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", scheduleText(report), true, false), nil, nil))

	var fields []*slack.TextBlockObject
	for _, fb := range report.Feedback {
		text := fmt.Sprintf("*%s* says *%s* won", report.Name(fb.FromUserID), report.Name(fb.ReportedWinnerID))
		if fb.Comments != "" {
			text += fmt.Sprintf("\n> %s", fb.Comments)
		}
		fields = append(fields, slack.NewTextBlockObject("mrkdwn", text, false, false))
	}
	if len(fields) > 0 {
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("mrkdwn", "*Reports:*", false, false), fields, nil))
	}

	contextText := fmt.Sprintf("Match %s is on hold until a moderator resolves it.", report.Match.ID)
	blocks = append(blocks, slack.NewContextBlock("", slack.NewTextBlockObject("plain_text", contextText, true, false)))

	return slack.NewBlockMessage(blocks...)
}

// formatLeaderboard creates a Slack message to display the rating leaderboard of a sport.
func (s *Notifier) formatLeaderboard(sport catalog.Sport, board []catalog.PlayerRating) slack.Message {
	blocks := make([]slack.Block, 0)

	headerText := slack.NewTextBlockObject("plain_text", fmt.Sprintf("🏆 %s Leaderboard 🏆", sport.Name), true, false)
	blocks = append(blocks, slack.NewHeaderBlock(headerText))

	if len(board) == 0 {
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", "No rated players yet. Go play some matches!", true, false), nil, nil))
		return slack.NewBlockMessage(blocks...)
	}

	for i, r := range board {
		rank := i + 1
		var medal string
		switch rank {
		case 1:
			medal = "🥇"
		case 2:
			medal = "🥈"
		case 3:
			medal = "🥉"
		}

		playerText := fmt.Sprintf("%d. %s %s\n> Rating: %d (%s) | Won %d of %d",
			rank,
			medal,
			r.Name,
			r.Rating,
			r.Tier,
			r.Wins,
			r.GamesPlayed,
		)
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", playerText, true, false), nil, nil))
	}

	return slack.NewBlockMessage(blocks...)
}
