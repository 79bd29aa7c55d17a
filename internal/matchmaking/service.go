package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/courtmatch/internal/events"
	"github.com/mauv0809/courtmatch/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// sweepConcurrency bounds how many sports are matched in parallel by Sweep.
const sweepConcurrency = 4

// Service is the entry point for queue, match and settlement operations.
// Events are published only after the transition they describe has
// committed.
type Service struct {
	store      Store
	profiles   Profiles
	publisher  events.Publisher
	metrics    metrics.Metrics
	maxRetries int
	now        func() time.Time
}

// NewService creates a matchmaking service. maxRetries bounds how often a
// single TryMatch call retries after losing a candidate to a concurrent
// matcher.
func NewService(store Store, profiles Profiles, publisher events.Publisher, metrics metrics.Metrics, maxRetries int) *Service {
	if publisher == nil {
		publisher = events.Discard{}
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Service{
		store:      store,
		profiles:   profiles,
		publisher:  publisher,
		metrics:    metrics,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// SetClock replaces time.Now for event timestamps and expiry checks.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// JoinQueue adds the user to the queue and immediately tries to match them.
// The result reflects the state after matching: Match is set when the entry
// was paired. A failure while matching leaves the entry waiting for the
// next sweep and is not reported to the caller.
func (s *Service) JoinQueue(ctx context.Context, userID, sportID string, criteria Criteria) (*JoinResult, error) {
	entry, err := s.store.Join(ctx, userID, sportID, criteria)
	if err != nil {
		return nil, err
	}
	s.metrics.IncQueueJoins(sportID)
	s.publisher.Publish(ctx, events.Event{
		Kind:    events.QueueJoined,
		EntryID: entry.ID,
		UserID:  entry.UserID,
		SportID: entry.SportID,
		Status:  string(entry.Status),
		At:      entry.CreatedAt,
	})

	res, err := s.TryMatch(ctx, entry.ID)
	if err != nil {
		log.Error("Matching after join failed, entry stays waiting", "entryID", entry.ID, "error", err)
		return &JoinResult{Entry: entry}, nil
	}
	return res, nil
}

// CancelQueue withdraws a waiting entry on behalf of its owner.
func (s *Service) CancelQueue(ctx context.Context, entryID, userID string) (*QueueEntry, error) {
	entry, err := s.store.Cancel(ctx, entryID, userID)
	if err != nil {
		return nil, err
	}
	s.metrics.IncQueueCancellations()
	s.publishEntry(ctx, events.QueueCancelled, entry)
	return entry, nil
}

func (s *Service) GetEntry(ctx context.Context, entryID string) (*QueueEntry, error) {
	return s.store.Get(ctx, entryID)
}

func (s *Service) ActiveEntry(ctx context.Context, userID, sportID string) (*QueueEntry, error) {
	return s.store.ActiveEntry(ctx, userID, sportID)
}

func (s *Service) ListWaiting(ctx context.Context, sportID string) ([]QueueEntry, error) {
	return s.store.ListWaiting(ctx, sportID)
}

func (s *Service) GetMatch(ctx context.Context, matchID string) (*Match, error) {
	return s.store.GetMatch(ctx, matchID)
}

// ConfirmMatch records that userID will play. The match is confirmed once
// both participants have done so.
func (s *Service) ConfirmMatch(ctx context.Context, matchID, userID string) (*Match, error) {
	match, confirmed, err := s.store.ConfirmMatch(ctx, matchID, userID)
	if err != nil {
		return nil, err
	}
	if confirmed {
		s.publishMatch(ctx, events.MatchConfirmed, match)
	}
	return match, nil
}

// StartMatch marks a confirmed match as being played.
func (s *Service) StartMatch(ctx context.Context, matchID, userID string) (*Match, error) {
	return s.store.StartMatch(ctx, matchID, userID)
}

// CancelMatch calls off a pending or confirmed match. The queue entries
// that produced it stay matched; players rejoin to look again.
func (s *Service) CancelMatch(ctx context.Context, matchID, userID string) (*Match, error) {
	match, err := s.store.CancelMatch(ctx, matchID, userID)
	if err != nil {
		return nil, err
	}
	s.publishMatch(ctx, events.MatchCancelled, match)
	return match, nil
}

// Sweep expires entries past their TTL and re-runs matching for every sport
// with waiting entries. Sports are processed concurrently; within a sport
// entries are tried oldest first.
func (s *Service) Sweep(ctx context.Context) (*SweepResult, error) {
	defer s.metrics.IncSweepRuns()
	result := &SweepResult{}

	expired, err := s.store.ListExpired(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range expired {
		entry, err := s.store.Expire(ctx, e.ID)
		if errors.Is(err, ErrAlreadyTerminal) || errors.Is(err, ErrNotExpired) || errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to expire entry %s: %w", e.ID, err)
		}
		result.Expired++
		s.publishEntry(ctx, events.QueueExpired, entry)
	}
	if result.Expired > 0 {
		s.metrics.IncEntriesExpired(result.Expired)
	}

	sports, err := s.store.WaitingSports(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]int, len(sports))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)
	for i, sportID := range sports {
		g.Go(func() error {
			n, err := s.sweepSport(gctx, sportID)
			matched[i] = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, n := range matched {
		result.Matched += n
	}

	log.Info("Sweep finished", "expired", result.Expired, "matched", result.Matched, "sports", len(sports))
	return result, nil
}

// sweepSport tries every waiting entry of a sport and returns the number of
// matches it created. Matches committed concurrently by a join are not counted.
func (s *Service) sweepSport(ctx context.Context, sportID string) (int, error) {
	waiting, err := s.store.ListWaiting(ctx, sportID)
	if err != nil {
		return 0, err
	}
	created := 0
	for _, e := range waiting {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		_, committed, err := s.tryMatch(ctx, e.ID)
		if err != nil {
			log.Error("Sweep failed to match entry", "entryID", e.ID, "sportID", sportID, "error", err)
			continue
		}
		if committed {
			created++
		}
	}
	return created, nil
}

func (s *Service) publishEntry(ctx context.Context, kind events.Kind, entry *QueueEntry) {
	s.publisher.Publish(ctx, events.Event{
		Kind:    kind,
		EntryID: entry.ID,
		UserID:  entry.UserID,
		SportID: entry.SportID,
		Status:  string(entry.Status),
		At:      s.now(),
	})
}
