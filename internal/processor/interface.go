package processor

import (
	"context"

	"github.com/mauv0809/courtmatch/internal/catalog"
	"github.com/mauv0809/courtmatch/internal/matchmaking"
	"github.com/mauv0809/courtmatch/internal/notifier"
)

// Store defines the match reads required by the processor.
type Store interface {
	GetMatch(ctx context.Context, matchID string) (*matchmaking.Match, error)
	ListFeedback(ctx context.Context, matchID string) ([]matchmaking.Feedback, error)
}

// Directory resolves sport and player names for announcements.
type Directory interface {
	GetSport(ctx context.Context, sportID string) (*catalog.Sport, error)
	GetProfile(ctx context.Context, userID string) (*catalog.Profile, error)
}

// Notifier defines the notification operations required by the processor.
// This is now an alias for the main notifier interface for decoupling.
type Notifier interface {
	notifier.Notifier
}
