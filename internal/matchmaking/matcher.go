package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/courtmatch/internal/catalog"
	"github.com/mauv0809/courtmatch/internal/events"
	"github.com/mauv0809/courtmatch/internal/rating"
)

const earthRadiusKm = 6371.0

// distanceKm is the great-circle distance between two points.
func distanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// genderAccepts reports whether a player with the given gender satisfies pref.
// A player without a recorded gender only satisfies "any".
func genderAccepts(pref GenderPreference, gender catalog.Gender) bool {
	if pref == GenderAny {
		return true
	}
	return gender != catalog.GenderUnknown && string(pref) == string(gender)
}

// compatible applies every hard filter between two waiting entries.
func compatible(e, c QueueEntry, se, sc catalog.PlayerSnapshot) bool {
	if !rating.Compatible(se.Rating, sc.Rating, min(e.RatingTolerance, c.RatingTolerance)) {
		return false
	}
	if e.PreferredDate != c.PreferredDate {
		return false
	}
	if !genderAccepts(e.GenderPreference, sc.Gender) || !genderAccepts(c.GenderPreference, se.Gender) {
		return false
	}
	if e.VenueID != nil && c.VenueID != nil && *e.VenueID != *c.VenueID {
		return false
	}
	if e.Location != nil && c.Location != nil {
		radius := math.Min(e.Location.RadiusKm, c.Location.RadiusKm)
		if distanceKm(e.Location.Lat, e.Location.Lng, c.Location.Lat, c.Location.Lng) > radius {
			return false
		}
	}
	return true
}

// selectCandidate picks the best opponent for entry from pool, or nil.
// Quality ties go to the longest waiting candidate, then the lowest id.
func selectCandidate(entry QueueEntry, pool []QueueEntry, snaps map[string]catalog.PlayerSnapshot,
	excluded map[string]bool, now time.Time) *QueueEntry {
	self, ok := snaps[entry.UserID]
	if !ok {
		return nil
	}

	var best *QueueEntry
	bestQuality := -1.0
	for i := range pool {
		c := pool[i]
		if c.ID == entry.ID || c.UserID == entry.UserID || excluded[c.ID] {
			continue
		}
		if c.Status != EntryWaiting || c.SportID != entry.SportID || c.Expired(now) {
			continue
		}
		other, ok := snaps[c.UserID]
		if !ok || !compatible(entry, c, self, other) {
			continue
		}

		q := rating.MatchQuality(self.Rating, other.Rating)
		switch {
		case best == nil, q > bestQuality:
		case q == bestQuality && c.CreatedAt.Before(best.CreatedAt):
		case q == bestQuality && c.CreatedAt.Equal(best.CreatedAt) && c.ID < best.ID:
		default:
			continue
		}
		best, bestQuality = &pool[i], q
	}
	return best
}

// TryMatch looks for an opponent for a waiting entry and commits the pair.
// It is safe to call for any entry at any time: an entry that is no longer
// waiting is returned as is, together with its match when it has one.
// Losing a race to a concurrent matcher excludes that candidate and retries;
// once the retries are spent the entry simply stays waiting.
func (s *Service) TryMatch(ctx context.Context, entryID string) (*JoinResult, error) {
	res, _, err := s.tryMatch(ctx, entryID)
	return res, err
}

// tryMatch is TryMatch that also reports whether this call committed the
// returned match.
func (s *Service) tryMatch(ctx context.Context, entryID string) (*JoinResult, bool, error) {
	excluded := make(map[string]bool)
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		entry, err := s.store.Get(ctx, entryID)
		if err != nil {
			return nil, false, err
		}
		if entry.Status != EntryWaiting {
			res, err := s.settledEntry(ctx, entry)
			return res, false, err
		}
		now := s.now()
		if entry.Expired(now) {
			return &JoinResult{Entry: entry}, false, nil
		}

		pool, err := s.store.ListWaiting(ctx, entry.SportID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to load waiting pool: %w", err)
		}
		userIDs := make([]string, 0, len(pool)+1)
		userIDs = append(userIDs, entry.UserID)
		for _, c := range pool {
			if c.UserID != entry.UserID {
				userIDs = append(userIDs, c.UserID)
			}
		}
		snaps, err := s.profiles.Snapshots(ctx, entry.SportID, userIDs)
		if err != nil {
			return nil, false, fmt.Errorf("failed to load player snapshots: %w", err)
		}

		candidate := selectCandidate(*entry, pool, snaps, excluded, now)
		if candidate == nil {
			log.Debug("No compatible opponent", "entryID", entry.ID, "pool", len(pool))
			return &JoinResult{Entry: entry}, false, nil
		}

		match, err := s.store.CommitMatch(ctx, *entry, *candidate)
		if errors.Is(err, ErrConflict) {
			s.metrics.IncMatchConflicts()
			excluded[candidate.ID] = true
			log.Info("Lost race for candidate, retrying", "entryID", entry.ID, "candidateID", candidate.ID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, false, err
		}

		s.metrics.IncMatchesCreated(match.SportID)
		waited := math.Max(now.Sub(entry.CreatedAt).Seconds(), now.Sub(candidate.CreatedAt).Seconds())
		s.metrics.ObserveMatchDuration(waited)
		s.publishMatched(ctx, match)

		entry, err = s.store.Get(ctx, entryID)
		if err != nil {
			return nil, false, err
		}
		return &JoinResult{Entry: entry, Match: match}, true, nil
	}

	log.Warn("Giving up on matching after conflicts", "entryID", entryID, "retries", s.maxRetries)
	entry, err := s.store.Get(ctx, entryID)
	if err != nil {
		return nil, false, err
	}
	return &JoinResult{Entry: entry}, false, nil
}

func (s *Service) settledEntry(ctx context.Context, entry *QueueEntry) (*JoinResult, error) {
	res := &JoinResult{Entry: entry}
	if entry.Status == EntryMatched && entry.MatchID != nil {
		match, err := s.store.GetMatch(ctx, *entry.MatchID)
		if err != nil {
			return nil, err
		}
		res.Match = match
	}
	return res, nil
}

func (s *Service) publishMatched(ctx context.Context, match *Match) {
	at := s.now()
	for _, p := range match.Players {
		s.publisher.Publish(ctx, events.Event{
			Kind:    events.QueueMatched,
			EntryID: p.QueueEntryID,
			MatchID: match.ID,
			UserID:  p.UserID,
			SportID: match.SportID,
			Status:  string(EntryMatched),
			At:      at,
		})
	}
	s.publisher.Publish(ctx, events.Event{
		Kind:    events.MatchCreated,
		MatchID: match.ID,
		SportID: match.SportID,
		Status:  string(match.Status),
		At:      at,
	})
}
