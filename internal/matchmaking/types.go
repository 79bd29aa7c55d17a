package matchmaking

import (
	"fmt"
	"strings"
	"time"

	"github.com/mauv0809/courtmatch/internal/rating"
)

// EntryStatus is the lifecycle state of a queue entry. Only waiting entries
// can change state.
type EntryStatus string

const (
	EntryWaiting   EntryStatus = "waiting"
	EntryMatched   EntryStatus = "matched"
	EntryCancelled EntryStatus = "cancelled"
	EntryExpired   EntryStatus = "expired"
)

// MatchStatus is the lifecycle state of a match.
type MatchStatus string

const (
	MatchPending    MatchStatus = "pending"
	MatchConfirmed  MatchStatus = "confirmed"
	MatchInProgress MatchStatus = "in_progress"
	MatchCompleted  MatchStatus = "completed"
	MatchCancelled  MatchStatus = "cancelled"
	MatchDisputed   MatchStatus = "disputed"
)

var matchTransitions = map[MatchStatus][]MatchStatus{
	MatchPending:    {MatchConfirmed, MatchCancelled, MatchCompleted, MatchDisputed},
	MatchConfirmed:  {MatchInProgress, MatchCancelled, MatchCompleted, MatchDisputed},
	MatchInProgress: {MatchCompleted, MatchDisputed},
	MatchDisputed:   {MatchCompleted},
}

// CanTransitionTo reports whether a match may move from s to next.
func (s MatchStatus) CanTransitionTo(next MatchStatus) bool {
	for _, allowed := range matchTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s MatchStatus) IsTerminal() bool {
	return s == MatchCompleted || s == MatchCancelled
}

// GenderPreference restricts the opponent's gender.
type GenderPreference string

const (
	GenderAny    GenderPreference = "any"
	GenderMale   GenderPreference = "male"
	GenderFemale GenderPreference = "female"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// GeoArea is a search circle around a point.
type GeoArea struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	RadiusKm float64 `json:"radius_km"`
}

// Criteria describes what a player is looking for when joining the queue.
type Criteria struct {
	VenueID          *string          `json:"venue_id,omitempty"`
	PreferredDate    string           `json:"preferred_date"`
	PreferredTime    string           `json:"preferred_time"`
	GenderPreference GenderPreference `json:"gender_preference,omitempty"`
	// RatingTolerance defaults to rating.DefaultTolerance when nil.
	RatingTolerance *int     `json:"rating_tolerance,omitempty"`
	Location        *GeoArea `json:"location,omitempty"`
}

// Normalize validates the criteria and fills in defaults.
func (c Criteria) Normalize() (Criteria, error) {
	if c.VenueID != nil {
		v := strings.TrimSpace(*c.VenueID)
		if v == "" {
			c.VenueID = nil
		} else {
			c.VenueID = &v
		}
	}
	if _, err := time.Parse(dateLayout, c.PreferredDate); err != nil {
		return c, &ValidationError{Field: "preferred_date", Reason: "must be YYYY-MM-DD"}
	}
	if _, err := time.Parse(timeLayout, c.PreferredTime); err != nil {
		return c, &ValidationError{Field: "preferred_time", Reason: "must be HH:MM"}
	}
	switch c.GenderPreference {
	case "":
		c.GenderPreference = GenderAny
	case GenderAny, GenderMale, GenderFemale:
	default:
		return c, &ValidationError{Field: "gender_preference", Reason: "must be any, male or female"}
	}
	if c.RatingTolerance == nil {
		tol := rating.DefaultTolerance
		c.RatingTolerance = &tol
	} else if *c.RatingTolerance < 0 {
		return c, &ValidationError{Field: "rating_tolerance", Reason: "must not be negative"}
	}
	if loc := c.Location; loc != nil {
		if loc.Lat < -90 || loc.Lat > 90 || loc.Lng < -180 || loc.Lng > 180 {
			return c, &ValidationError{Field: "location", Reason: "coordinates out of range"}
		}
		if loc.RadiusKm <= 0 {
			return c, &ValidationError{Field: "location.radius_km", Reason: "must be positive"}
		}
	}
	return c, nil
}

// QueueEntry is one outstanding request to be matched.
type QueueEntry struct {
	ID               string           `json:"id"`
	UserID           string           `json:"user_id"`
	SportID          string           `json:"sport_id"`
	VenueID          *string          `json:"venue_id,omitempty"`
	PreferredDate    string           `json:"preferred_date"`
	PreferredTime    string           `json:"preferred_time"`
	GenderPreference GenderPreference `json:"gender_preference"`
	RatingTolerance  int              `json:"rating_tolerance"`
	Location         *GeoArea         `json:"location,omitempty"`
	Status           EntryStatus      `json:"status"`
	MatchID          *string          `json:"match_id,omitempty"`
	Version          int              `json:"version"`
	CreatedAt        time.Time        `json:"created_at"`
	ExpiresAt        time.Time        `json:"expires_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Expired reports whether the entry's TTL has passed at now.
func (e QueueEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Match pairs two queue entries.
type Match struct {
	ID            string        `json:"id"`
	SportID       string        `json:"sport_id"`
	VenueID       *string       `json:"venue_id,omitempty"`
	CourtID       *string       `json:"court_id,omitempty"`
	ScheduledDate string        `json:"scheduled_date"`
	ScheduledTime string        `json:"scheduled_time"`
	Status        MatchStatus   `json:"status"`
	WinnerID      *string       `json:"winner_id,omitempty"`
	Version       int           `json:"version"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	Players       []MatchPlayer `json:"players"`
}

// Player returns the participant with the given user id.
func (m *Match) Player(userID string) (MatchPlayer, bool) {
	for _, p := range m.Players {
		if p.UserID == userID {
			return p, true
		}
	}
	return MatchPlayer{}, false
}

// Opponent returns the other participant.
func (m *Match) Opponent(userID string) (MatchPlayer, bool) {
	if _, ok := m.Player(userID); !ok {
		return MatchPlayer{}, false
	}
	for _, p := range m.Players {
		if p.UserID != userID {
			return p, true
		}
	}
	return MatchPlayer{}, false
}

type MatchPlayer struct {
	UserID       string `json:"user_id"`
	QueueEntryID string `json:"queue_entry_id"`
	RatingBefore int    `json:"rating_before"`
	RatingAfter  *int   `json:"rating_after,omitempty"`
	Confirmed    bool   `json:"confirmed"`
}

// BehaviorScores are the 1 to 5 ratings a player gives their opponent.
type BehaviorScores struct {
	SkillAccuracy  int `json:"skill_accuracy"`
	FairPlay       int `json:"fair_play"`
	Punctuality    int `json:"punctuality"`
	Tone           int `json:"tone"`
	Aggressiveness int `json:"aggressiveness"`
	Sportsmanship  int `json:"sportsmanship"`
}

func (b BehaviorScores) validate() error {
	for _, score := range []struct {
		name  string
		value int
	}{
		{"skill_accuracy", b.SkillAccuracy},
		{"fair_play", b.FairPlay},
		{"punctuality", b.Punctuality},
		{"tone", b.Tone},
		{"aggressiveness", b.Aggressiveness},
		{"sportsmanship", b.Sportsmanship},
	} {
		if score.value < 1 || score.value > 5 {
			return &ValidationError{Field: score.name, Reason: fmt.Sprintf("must be between 1 and 5, got %d", score.value)}
		}
	}
	return nil
}

// FeedbackInput is what a participant submits after a match.
type FeedbackInput struct {
	MatchID          string         `json:"match_id"`
	FromUserID       string         `json:"from_user_id"`
	ReportedWinnerID string         `json:"reported_winner_id"`
	Scores           BehaviorScores `json:"scores"`
	Comments         string         `json:"comments,omitempty"`
}

// Feedback is a stored FeedbackInput. It is never modified.
type Feedback struct {
	ID               string         `json:"id"`
	MatchID          string         `json:"match_id"`
	FromUserID       string         `json:"from_user_id"`
	ToUserID         string         `json:"to_user_id"`
	ReportedWinnerID string         `json:"reported_winner_id"`
	Scores           BehaviorScores `json:"scores"`
	Comments         string         `json:"comments,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// JoinResult is the outcome of joining or re-evaluating a queue entry.
// Match is set when the entry is matched.
type JoinResult struct {
	Entry *QueueEntry `json:"entry"`
	Match *Match      `json:"match,omitempty"`
}

// SweepResult summarizes one periodic sweep.
type SweepResult struct {
	Expired int `json:"expired"`
	Matched int `json:"matched"`
}

// SettleRequest asks for a match to be settled. It arrives as a msgpack
// payload on the settle-match topic.
type SettleRequest struct {
	MatchID string `json:"match_id" msgpack:"match_id"`
}
