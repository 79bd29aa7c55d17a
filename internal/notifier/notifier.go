package notifier

import (
	"context"

	"github.com/mauv0809/courtmatch/internal/catalog"
	"github.com/mauv0809/courtmatch/internal/matchmaking"
)

// Notifier defines a high-level interface for sending notifications about business events.
// This decouples the rest of the application from the specific notification provider (e.g., Slack).
type Notifier interface {
	// For settled matches
	SendMatchResult(ctx context.Context, report MatchReport, dryRun bool) error
	// For matches whose players reported different winners
	SendDisputeReport(ctx context.Context, report MatchReport, dryRun bool) error
	SendLeaderboard(ctx context.Context, sport catalog.Sport, board []catalog.PlayerRating, dryRun bool) error
}

// MatchReport is a match together with the names needed to announce it.
type MatchReport struct {
	Match     *matchmaking.Match
	SportName string
	// PlayerNames maps user ids to display names.
	PlayerNames map[string]string
	Feedback    []matchmaking.Feedback
}

// Name returns the display name of a user, falling back to the id.
func (r MatchReport) Name(userID string) string {
	if name, ok := r.PlayerNames[userID]; ok && name != "" {
		return name
	}
	return userID
}
