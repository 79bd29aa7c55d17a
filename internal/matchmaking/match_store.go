package matchmaking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mauv0809/courtmatch/internal/rating"
)

const matchColumns = `id, sport_id, venue_id, court_id, scheduled_date, scheduled_time, status, winner_id,
	version, created_at, updated_at`

// CommitMatch creates a pending match for two waiting entries. The longer
// waiting entry's preferred time becomes the scheduled time.
func (s *store) CommitMatch(ctx context.Context, entry, candidate QueueEntry) (*Match, error) {
	if entry.SportID != candidate.SportID || entry.UserID == candidate.UserID {
		return nil, fmt.Errorf("entries %s and %s cannot be paired", entry.ID, candidate.ID)
	}

	first, second := entry, candidate
	if candidate.CreatedAt.Before(entry.CreatedAt) {
		first, second = candidate, entry
	}
	venueID := first.VenueID
	if venueID == nil {
		venueID = second.VenueID
	}

	now := s.now()
	match := &Match{
		ID:            uuid.New().String(),
		SportID:       entry.SportID,
		VenueID:       venueID,
		ScheduledDate: first.PreferredDate,
		ScheduledTime: first.PreferredTime,
		Status:        MatchPending,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO matches (id, sport_id, venue_id, scheduled_date, scheduled_time, status, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		match.ID, match.SportID, nullString(match.VenueID), match.ScheduledDate, match.ScheduledTime,
		string(match.Status), match.Version, now.UnixNano(), now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to insert match: %w", err)
	}

	for _, e := range []QueueEntry{first, second} {
		if err := transitionEntry(ctx, tx, &e, EntryMatched, &match.ID, now); err != nil {
			return nil, err
		}

		var before int
		err := tx.QueryRowContext(ctx, `
			SELECT COALESCE((SELECT rating FROM player_ratings WHERE user_id = ? AND sport_id = ?), ?)`,
			e.UserID, e.SportID, rating.Base).Scan(&before)
		if err != nil {
			return nil, fmt.Errorf("failed to read rating for %s: %w", e.UserID, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO match_players (match_id, user_id, queue_entry_id, rating_before)
			VALUES (?, ?, ?, ?)`, match.ID, e.UserID, e.ID, before)
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		if err != nil {
			return nil, fmt.Errorf("failed to insert match player: %w", err)
		}
		match.Players = append(match.Players, MatchPlayer{
			UserID:       e.UserID,
			QueueEntryID: e.ID,
			RatingBefore: before,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit match: %w", err)
	}
	log.Info("Match created", "matchID", match.ID, "sportID", match.SportID,
		"entries", []string{first.ID, second.ID})
	return match, nil
}

func (s *store) GetMatch(ctx context.Context, matchID string) (*Match, error) {
	return getMatch(ctx, s.db, matchID)
}

func getMatch(ctx context.Context, q queryer, matchID string) (*Match, error) {
	var m Match
	var venueID, courtID, winnerID sql.NullString
	var status string
	var createdAt, updatedAt int64
	err := q.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = ?`, matchID).Scan(
		&m.ID, &m.SportID, &venueID, &courtID, &m.ScheduledDate, &m.ScheduledTime, &status, &winnerID,
		&m.Version, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("match %s: %w", matchID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	m.VenueID = stringPtr(venueID)
	m.CourtID = stringPtr(courtID)
	m.WinnerID = stringPtr(winnerID)
	m.Status = MatchStatus(status)
	m.CreatedAt = time.Unix(0, createdAt)
	m.UpdatedAt = time.Unix(0, updatedAt)

	rows, err := q.QueryContext(ctx, `
		SELECT user_id, queue_entry_id, rating_before, rating_after, confirmed
		FROM match_players WHERE match_id = ? ORDER BY rowid`, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get match players: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p MatchPlayer
		var after sql.NullInt64
		if err := rows.Scan(&p.UserID, &p.QueueEntryID, &p.RatingBefore, &after, &p.Confirmed); err != nil {
			return nil, fmt.Errorf("failed to scan match player: %w", err)
		}
		if after.Valid {
			v := int(after.Int64)
			p.RatingAfter = &v
		}
		m.Players = append(m.Players, p)
	}
	return &m, rows.Err()
}

// transitionMatch moves a match to the next status if it is unchanged since read.
func transitionMatch(ctx context.Context, q queryer, m *Match, to MatchStatus, winnerID *string, now time.Time) error {
	if !m.Status.CanTransitionTo(to) {
		return invalidTransition(m.Status, to)
	}
	res, err := q.ExecContext(ctx, `
		UPDATE matches
		SET status = ?, winner_id = COALESCE(?, winner_id), version = version + 1, updated_at = ?
		WHERE id = ? AND status = ? AND version = ?`,
		string(to), nullString(winnerID), now.UnixNano(), m.ID, string(m.Status), m.Version)
	if err != nil {
		return fmt.Errorf("failed to update match %s: %w", m.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n != 1 {
		return ErrConflict
	}
	m.Status = to
	if winnerID != nil {
		m.WinnerID = winnerID
	}
	m.Version++
	m.UpdatedAt = now
	return nil
}

func invalidTransition(from, to MatchStatus) error {
	switch {
	case from.IsTerminal():
		return fmt.Errorf("match is %s: %w", from, ErrAlreadyTerminal)
	case from == MatchDisputed:
		return fmt.Errorf("match is awaiting moderation: %w", ErrDisputedResult)
	default:
		return fmt.Errorf("match cannot move from %s to %s: %w", from, to, ErrConflict)
	}
}

// participantMatch loads a match inside q and checks userID plays in it.
func participantMatch(ctx context.Context, q queryer, matchID, userID string) (*Match, error) {
	m, err := getMatch(ctx, q, matchID)
	if err != nil {
		return nil, err
	}
	if _, ok := m.Player(userID); !ok {
		return nil, ErrForbidden
	}
	return m, nil
}

// ConfirmMatch records a participant's confirmation. The match moves to
// confirmed once both have confirmed, which the bool reports.
func (s *store) ConfirmMatch(ctx context.Context, matchID, userID string) (*Match, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	m, err := participantMatch(ctx, tx, matchID, userID)
	if err != nil {
		return nil, false, err
	}
	if m.Status != MatchPending && m.Status != MatchConfirmed {
		return nil, false, invalidTransition(m.Status, MatchConfirmed)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE match_players SET confirmed = 1 WHERE match_id = ? AND user_id = ?`, matchID, userID); err != nil {
		return nil, false, fmt.Errorf("failed to confirm player: %w", err)
	}
	allConfirmed := true
	for i := range m.Players {
		if m.Players[i].UserID == userID {
			m.Players[i].Confirmed = true
		}
		allConfirmed = allConfirmed && m.Players[i].Confirmed
	}

	transitioned := false
	if allConfirmed && m.Status == MatchPending {
		if err := transitionMatch(ctx, tx, m, MatchConfirmed, nil, s.now()); err != nil {
			return nil, false, err
		}
		transitioned = true
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit confirmation: %w", err)
	}
	log.Info("Match confirmation recorded", "matchID", matchID, "userID", userID, "status", m.Status)
	return m, transitioned, nil
}

// StartMatch marks a confirmed match as being played.
func (s *store) StartMatch(ctx context.Context, matchID, userID string) (*Match, error) {
	return s.participantTransition(ctx, matchID, userID, MatchInProgress)
}

// CancelMatch calls off a match that has not started.
func (s *store) CancelMatch(ctx context.Context, matchID, userID string) (*Match, error) {
	return s.participantTransition(ctx, matchID, userID, MatchCancelled)
}

func (s *store) participantTransition(ctx context.Context, matchID, userID string, to MatchStatus) (*Match, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	m, err := participantMatch(ctx, tx, matchID, userID)
	if err != nil {
		return nil, err
	}
	if err := transitionMatch(ctx, tx, m, to, nil, s.now()); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit match transition: %w", err)
	}
	log.Info("Match transitioned", "matchID", matchID, "userID", userID, "status", to)
	return m, nil
}

// MarkDisputed flags an open match for moderation. The bool is false when
// the match was already disputed.
func (s *store) MarkDisputed(ctx context.Context, matchID string) (*Match, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	m, err := getMatch(ctx, tx, matchID)
	if err != nil {
		return nil, false, err
	}
	if m.Status == MatchDisputed {
		return m, false, nil
	}
	if err := transitionMatch(ctx, tx, m, MatchDisputed, nil, s.now()); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit dispute: %w", err)
	}
	log.Warn("Match disputed", "matchID", matchID)
	return m, true, nil
}

// ApplyResult settles the match in one transaction: the match moves to
// completed with its winner, both players get rating_after, and their
// per-sport ratings and records are updated. Each player's K-factor comes
// from their own rating and experience.
func (s *store) ApplyResult(ctx context.Context, matchID, winnerID string) (*Match, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	m, err := getMatch(ctx, tx, matchID)
	if err != nil {
		return nil, false, err
	}
	if m.Status == MatchCompleted {
		return m, false, nil
	}
	if _, ok := m.Player(winnerID); !ok {
		return nil, false, &ValidationError{Field: "winner_id", Reason: "must be a participant"}
	}
	if len(m.Players) != 2 {
		return nil, false, fmt.Errorf("match %s has %d players", matchID, len(m.Players))
	}

	type standing struct {
		rating, games int
	}
	current := make(map[string]standing, 2)
	for _, p := range m.Players {
		var st standing
		err := tx.QueryRowContext(ctx, `
			SELECT rating, games_played FROM player_ratings WHERE user_id = ? AND sport_id = ?`,
			p.UserID, m.SportID).Scan(&st.rating, &st.games)
		if errors.Is(err, sql.ErrNoRows) {
			st = standing{rating: rating.Base}
		} else if err != nil {
			return nil, false, fmt.Errorf("failed to read rating for %s: %w", p.UserID, err)
		}
		current[p.UserID] = st
	}

	now := s.now()
	if err := transitionMatch(ctx, tx, m, MatchCompleted, &winnerID, now); err != nil {
		return nil, false, err
	}

	for i, p := range m.Players {
		opp, _ := m.Opponent(p.UserID)
		self, other := current[p.UserID], current[opp.UserID]
		won := p.UserID == winnerID
		k := rating.KFactor(self.games, self.rating)
		after := self.rating + rating.Delta(self.rating, other.rating, won, k)

		wins, losses := 0, 1
		if won {
			wins, losses = 1, 0
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE match_players SET rating_after = ? WHERE match_id = ? AND user_id = ?`,
			after, m.ID, p.UserID); err != nil {
			return nil, false, fmt.Errorf("failed to record rating_after: %w", err)
		}
		// player_ratings belongs to the catalog and keeps its seconds.
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO player_ratings (user_id, sport_id, rating, games_played, wins, losses, updated_at)
			VALUES (?, ?, ?, 1, ?, ?, ?)
			ON CONFLICT(user_id, sport_id) DO UPDATE SET
				rating = excluded.rating,
				games_played = games_played + 1,
				wins = wins + excluded.wins,
				losses = losses + excluded.losses,
				updated_at = excluded.updated_at`,
			p.UserID, m.SportID, after, wins, losses, now.Unix()); err != nil {
			return nil, false, fmt.Errorf("failed to update rating for %s: %w", p.UserID, err)
		}
		m.Players[i].RatingAfter = &after
		log.Debug("Rating updated", "matchID", m.ID, "userID", p.UserID, "k", k, "before", self.rating, "after", after)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit settlement: %w", err)
	}
	log.Info("Match settled", "matchID", m.ID, "winnerID", winnerID)
	return m, true, nil
}

// AddFeedback stores a participant's report and folds its behavior scores
// into the opponent's running averages.
func (s *store) AddFeedback(ctx context.Context, fb Feedback) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM matches WHERE id = ?`, fb.MatchID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("match %s: %w", fb.MatchID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to get match status: %w", err)
	}
	if MatchStatus(status).IsTerminal() {
		return fmt.Errorf("match is %s: %w", status, ErrAlreadyTerminal)
	}

	sc := fb.Scores
	_, err = tx.ExecContext(ctx, `
		INSERT INTO match_feedback (id, match_id, from_user_id, to_user_id, reported_winner_id,
			skill_accuracy, fair_play, punctuality, tone, aggressiveness, sportsmanship, comments, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fb.ID, fb.MatchID, fb.FromUserID, fb.ToUserID, fb.ReportedWinnerID,
		sc.SkillAccuracy, sc.FairPlay, sc.Punctuality, sc.Tone, sc.Aggressiveness, sc.Sportsmanship,
		fb.Comments, fb.CreatedAt.UnixNano())
	if isUniqueViolation(err) {
		return ErrFeedbackExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO behavior_metrics (user_id, tone, aggressiveness, sportsmanship, total_ratings, updated_at)
		VALUES (?, ?, ?, ?, 1, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			tone = (tone * total_ratings + excluded.tone) / (total_ratings + 1),
			aggressiveness = (aggressiveness * total_ratings + excluded.aggressiveness) / (total_ratings + 1),
			sportsmanship = (sportsmanship * total_ratings + excluded.sportsmanship) / (total_ratings + 1),
			total_ratings = total_ratings + 1,
			updated_at = excluded.updated_at`,
		fb.ToUserID, float64(sc.Tone), float64(sc.Aggressiveness), float64(sc.Sportsmanship), fb.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to update behavior metrics: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit feedback: %w", err)
	}
	return nil
}

func (s *store) ListFeedback(ctx context.Context, matchID string) ([]Feedback, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, match_id, from_user_id, to_user_id, reported_winner_id,
			skill_accuracy, fair_play, punctuality, tone, aggressiveness, sportsmanship, comments, created_at
		FROM match_feedback WHERE match_id = ? ORDER BY created_at, id`, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()

	var out []Feedback
	for rows.Next() {
		var fb Feedback
		var createdAt int64
		sc := &fb.Scores
		if err := rows.Scan(&fb.ID, &fb.MatchID, &fb.FromUserID, &fb.ToUserID, &fb.ReportedWinnerID,
			&sc.SkillAccuracy, &sc.FairPlay, &sc.Punctuality, &sc.Tone, &sc.Aggressiveness, &sc.Sportsmanship,
			&fb.Comments, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		fb.CreatedAt = time.Unix(0, createdAt)
		out = append(out, fb)
	}
	return out, rows.Err()
}
