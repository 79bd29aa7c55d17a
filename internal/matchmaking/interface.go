package matchmaking

import (
	"context"
	"time"

	"github.com/mauv0809/courtmatch/internal/catalog"
)

// Store persists queue entries, matches and feedback. Every status change is
// a compare-and-set on the row's status and version.
type Store interface {
	Join(ctx context.Context, userID, sportID string, criteria Criteria) (*QueueEntry, error)
	Cancel(ctx context.Context, entryID, requesterID string) (*QueueEntry, error)
	Expire(ctx context.Context, entryID string) (*QueueEntry, error)
	Get(ctx context.Context, entryID string) (*QueueEntry, error)
	ActiveEntry(ctx context.Context, userID, sportID string) (*QueueEntry, error)
	ListWaiting(ctx context.Context, sportID string) ([]QueueEntry, error)
	ListExpired(ctx context.Context) ([]QueueEntry, error)
	WaitingSports(ctx context.Context) ([]string, error)

	// CommitMatch atomically moves both entries from waiting to matched and
	// creates the match. It returns ErrConflict if either entry changed
	// since it was read.
	CommitMatch(ctx context.Context, entry, candidate QueueEntry) (*Match, error)
	GetMatch(ctx context.Context, matchID string) (*Match, error)
	ConfirmMatch(ctx context.Context, matchID, userID string) (*Match, bool, error)
	StartMatch(ctx context.Context, matchID, userID string) (*Match, error)
	CancelMatch(ctx context.Context, matchID, userID string) (*Match, error)
	MarkDisputed(ctx context.Context, matchID string) (*Match, bool, error)
	// ApplyResult completes the match and updates both players' ratings.
	// It returns false without changes when the match is already completed.
	ApplyResult(ctx context.Context, matchID, winnerID string) (*Match, bool, error)

	AddFeedback(ctx context.Context, feedback Feedback) error
	ListFeedback(ctx context.Context, matchID string) ([]Feedback, error)
}

// Profiles provides the player data the matcher filters on.
type Profiles interface {
	Snapshots(ctx context.Context, sportID string, userIDs []string) (map[string]catalog.PlayerSnapshot, error)
}

// Option configures a Store.
type Option func(*store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *store) {
		s.now = now
	}
}
