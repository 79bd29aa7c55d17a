package matchmaking

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mauv0809/courtmatch/internal/events"
)

// SubmitFeedback records one participant's report of a match. When both
// participants have reported, the match is settled right away. A
// disagreement is not an error for the submitter: the disputed match is
// returned and moderation takes over.
func (s *Service) SubmitFeedback(ctx context.Context, in FeedbackInput) (*Match, error) {
	match, err := s.store.GetMatch(ctx, in.MatchID)
	if err != nil {
		return nil, err
	}
	opponent, ok := match.Opponent(in.FromUserID)
	if !ok {
		return nil, ErrForbidden
	}
	if _, ok := match.Player(in.ReportedWinnerID); !ok {
		return nil, &ValidationError{Field: "reported_winner_id", Reason: "must be a participant"}
	}
	if err := in.Scores.validate(); err != nil {
		return nil, err
	}

	fb := Feedback{
		ID:               uuid.New().String(),
		MatchID:          in.MatchID,
		FromUserID:       in.FromUserID,
		ToUserID:         opponent.UserID,
		ReportedWinnerID: in.ReportedWinnerID,
		Scores:           in.Scores,
		Comments:         in.Comments,
		CreatedAt:        s.now(),
	}
	if err := s.store.AddFeedback(ctx, fb); err != nil {
		return nil, err
	}
	log.Info("Feedback recorded", "matchID", in.MatchID, "from", in.FromUserID, "reportedWinner", in.ReportedWinnerID)

	settled, err := s.Settle(ctx, in.MatchID)
	switch {
	case err == nil:
		return settled, nil
	case errors.Is(err, ErrAwaitingFeedback):
		return s.store.GetMatch(ctx, in.MatchID)
	case errors.Is(err, ErrDisputedResult):
		return settled, nil
	default:
		return nil, err
	}
}

// Settle applies the result of a match once both participants agree on the
// winner. It can be called any number of times: a completed match is
// returned unchanged, and ratings are applied at most once. A disputed
// match is returned together with ErrDisputedResult.
func (s *Service) Settle(ctx context.Context, matchID string) (*Match, error) {
	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	switch match.Status {
	case MatchCompleted:
		return match, nil
	case MatchCancelled:
		return nil, fmt.Errorf("match is %s: %w", match.Status, ErrAlreadyTerminal)
	case MatchDisputed:
		return match, ErrDisputedResult
	}

	feedback, err := s.store.ListFeedback(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if len(feedback) < 2 {
		return nil, ErrAwaitingFeedback
	}

	winnerID := feedback[0].ReportedWinnerID
	for _, fb := range feedback[1:] {
		if fb.ReportedWinnerID != winnerID {
			return s.dispute(ctx, matchID)
		}
	}
	return s.complete(ctx, matchID, winnerID)
}

// ResolveMatch settles an open or disputed match with a winner chosen by a
// moderator, regardless of submitted feedback.
func (s *Service) ResolveMatch(ctx context.Context, matchID, winnerID string) (*Match, error) {
	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if _, ok := match.Player(winnerID); !ok {
		return nil, &ValidationError{Field: "winner_id", Reason: "must be a participant"}
	}
	if match.Status.IsTerminal() {
		return nil, fmt.Errorf("match is %s: %w", match.Status, ErrAlreadyTerminal)
	}
	log.Info("Resolving match by moderator", "matchID", matchID, "winnerID", winnerID, "from", match.Status)
	return s.complete(ctx, matchID, winnerID)
}

func (s *Service) dispute(ctx context.Context, matchID string) (*Match, error) {
	match, changed, err := s.store.MarkDisputed(ctx, matchID)
	if err != nil {
		if errors.Is(err, ErrConflict) || errors.Is(err, ErrAlreadyTerminal) {
			return s.reread(ctx, matchID)
		}
		return nil, err
	}
	if changed {
		s.metrics.IncDisputes()
		s.publishMatch(ctx, events.MatchDisputed, match)
	}
	return match, ErrDisputedResult
}

func (s *Service) complete(ctx context.Context, matchID, winnerID string) (*Match, error) {
	match, applied, err := s.store.ApplyResult(ctx, matchID, winnerID)
	if errors.Is(err, ErrConflict) {
		return s.reread(ctx, matchID)
	}
	if err != nil {
		return nil, err
	}
	if applied {
		s.metrics.IncSettlements()
		s.publishMatch(ctx, events.MatchCompleted, match)
	}
	return match, nil
}

// reread resolves a lost race on a match by reporting its current state.
func (s *Service) reread(ctx context.Context, matchID string) (*Match, error) {
	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	switch match.Status {
	case MatchCompleted:
		return match, nil
	case MatchDisputed:
		return match, ErrDisputedResult
	case MatchCancelled:
		return nil, fmt.Errorf("match is %s: %w", match.Status, ErrAlreadyTerminal)
	}
	return nil, ErrConflict
}

func (s *Service) publishMatch(ctx context.Context, kind events.Kind, match *Match) {
	s.publisher.Publish(ctx, events.Event{
		Kind:    kind,
		MatchID: match.ID,
		SportID: match.SportID,
		Status:  string(match.Status),
		At:      s.now(),
	})
}
