package catalog

import "context"

// Store is the read side of the sport, venue and player catalog, plus the
// admin writes used by the seeder and tests.
type Store interface {
	AddSport(ctx context.Context, name string, playersRequired int) (*Sport, error)
	GetSport(ctx context.Context, sportID string) (*Sport, error)
	ListSports(ctx context.Context) ([]Sport, error)

	AddVenue(ctx context.Context, venue Venue) (*Venue, error)
	GetVenue(ctx context.Context, venueID string) (*Venue, error)

	UpsertProfile(ctx context.Context, profile Profile) error
	GetProfile(ctx context.Context, userID string) (*Profile, error)

	GetRating(ctx context.Context, userID, sportID string) (*PlayerRating, error)
	SetRating(ctx context.Context, userID, sportID string, rating int) error
	Snapshots(ctx context.Context, sportID string, userIDs []string) (map[string]PlayerSnapshot, error)
	Leaderboard(ctx context.Context, sportID string, limit int) ([]PlayerRating, error)

	GetBehaviorMetrics(ctx context.Context, userID string) (*BehaviorMetrics, error)
}
