package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/mauv0809/courtmatch/internal/rating"
)

// New creates a new catalog Store.
func New(db *sql.DB) Store {
	return &store{
		db:  db,
		now: time.Now,
	}
}

// AddSport registers a sport under a slug of its name. Adding an existing
// sport returns the stored row.
func (s *store) AddSport(ctx context.Context, name string, playersRequired int) (*Sport, error) {
	id := slug.Make(name)
	if id == "" {
		return nil, fmt.Errorf("invalid sport name %q", name)
	}
	if playersRequired <= 0 {
		playersRequired = 2
	}

	s.mu.Lock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sports (id, name, players_required, active, created_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(id) DO NOTHING`,
		id, strings.TrimSpace(name), playersRequired, s.now().Unix())
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to add sport: %w", err)
	}
	log.Debug("Added sport", "id", id, "name", name)
	return s.GetSport(ctx, id)
}

func (s *store) GetSport(ctx context.Context, sportID string) (*Sport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, players_required, active, created_at FROM sports WHERE id = ?`, sportID)
	sport, err := scanSport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sport %s: %w", sportID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sport: %w", err)
	}
	return sport, nil
}

func (s *store) ListSports(ctx context.Context) ([]Sport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, players_required, active, created_at FROM sports ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sports: %w", err)
	}
	defer rows.Close()

	var sports []Sport
	for rows.Next() {
		sport, err := scanSport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sport: %w", err)
		}
		sports = append(sports, *sport)
	}
	return sports, rows.Err()
}

func scanSport(scanner interface{ Scan(...any) error }) (*Sport, error) {
	var sport Sport
	var createdAt int64
	if err := scanner.Scan(&sport.ID, &sport.Name, &sport.PlayersRequired, &sport.Active, &createdAt); err != nil {
		return nil, err
	}
	sport.CreatedAt = time.Unix(createdAt, 0)
	return &sport, nil
}

// AddVenue stores a venue, generating an id when none is given.
func (s *store) AddVenue(ctx context.Context, venue Venue) (*Venue, error) {
	if venue.ID == "" {
		venue.ID = uuid.New().String()
	}
	if venue.Lat < -90 || venue.Lat > 90 || venue.Lng < -180 || venue.Lng > 180 {
		return nil, fmt.Errorf("invalid venue coordinates %f,%f", venue.Lat, venue.Lng)
	}
	venue.Active = true

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO venues (id, name, city, lat, lng, active, created_at)
		VALUES (?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			city = excluded.city,
			lat = excluded.lat,
			lng = excluded.lng`,
		venue.ID, venue.Name, venue.City, venue.Lat, venue.Lng, s.now().Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to add venue: %w", err)
	}
	return &venue, nil
}

func (s *store) GetVenue(ctx context.Context, venueID string) (*Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var v Venue
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, city, lat, lng, active FROM venues WHERE id = ?`, venueID).
		Scan(&v.ID, &v.Name, &v.City, &v.Lat, &v.Lng, &v.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("venue %s: %w", venueID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get venue: %w", err)
	}
	return &v, nil
}

// UpsertProfile inserts a player profile or updates name and gender.
func (s *store) UpsertProfile(ctx context.Context, profile Profile) error {
	switch profile.Gender {
	case GenderUnknown, GenderMale, GenderFemale:
	default:
		return fmt.Errorf("invalid gender %q", profile.Gender)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO player_profiles (user_id, name, gender, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			name = excluded.name,
			gender = excluded.gender`,
		profile.UserID, profile.Name, string(profile.Gender), s.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

func (s *store) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p Profile
	var gender string
	var createdAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, name, gender, created_at FROM player_profiles WHERE user_id = ?`, userID).
		Scan(&p.UserID, &p.Name, &gender, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("player %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	p.Gender = Gender(gender)
	p.CreatedAt = time.Unix(createdAt, 0)
	return &p, nil
}

// GetRating returns a player's rating in a sport. Players who have never
// played the sport start at the base rating.
func (s *store) GetRating(ctx context.Context, userID, sportID string) (*PlayerRating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := PlayerRating{UserID: userID, SportID: sportID}
	err := s.db.QueryRowContext(ctx, `
		SELECT rating, games_played, wins, losses
		FROM player_ratings WHERE user_id = ? AND sport_id = ?`, userID, sportID).
		Scan(&r.Rating, &r.GamesPlayed, &r.Wins, &r.Losses)
	if errors.Is(err, sql.ErrNoRows) {
		r.Rating = rating.Base
	} else if err != nil {
		return nil, fmt.Errorf("failed to get rating: %w", err)
	}
	r.Tier = rating.Tier(r.Rating)
	return &r, nil
}

// SetRating places a player at a rating without touching their record.
func (s *store) SetRating(ctx context.Context, userID, sportID string, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO player_ratings (user_id, sport_id, rating, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, sport_id) DO UPDATE SET
			rating = excluded.rating,
			updated_at = excluded.updated_at`,
		userID, sportID, value, s.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to set rating: %w", err)
	}
	return nil
}

// Snapshots loads rating, experience and gender for a set of players in one
// query. Players without a profile are left out of the result.
func (s *store) Snapshots(ctx context.Context, sportID string, userIDs []string) (map[string]PlayerSnapshot, error) {
	out := make(map[string]PlayerSnapshot, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(userIDs)), ",")
	args := make([]any, 0, len(userIDs)+2)
	args = append(args, rating.Base, sportID)
	for _, id := range userIDs {
		args = append(args, id)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.user_id, p.gender, COALESCE(r.rating, ?), COALESCE(r.games_played, 0)
		FROM player_profiles p
		LEFT JOIN player_ratings r ON r.user_id = p.user_id AND r.sport_id = ?
		WHERE p.user_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load player snapshots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID, gender string
		var snap PlayerSnapshot
		if err := rows.Scan(&userID, &gender, &snap.Rating, &snap.GamesPlayed); err != nil {
			return nil, fmt.Errorf("failed to scan player snapshot: %w", err)
		}
		snap.Gender = Gender(gender)
		out[userID] = snap
	}
	return out, rows.Err()
}

// Leaderboard lists the highest rated players of a sport.
func (s *store) Leaderboard(ctx context.Context, sportID string, limit int) ([]PlayerRating, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.user_id, p.name, r.rating, r.games_played, r.wins, r.losses
		FROM player_ratings r
		JOIN player_profiles p ON p.user_id = r.user_id
		WHERE r.sport_id = ? AND r.games_played > 0
		ORDER BY r.rating DESC, r.wins DESC, p.name ASC
		LIMIT ?`, sportID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	defer rows.Close()

	var board []PlayerRating
	for rows.Next() {
		r := PlayerRating{SportID: sportID}
		if err := rows.Scan(&r.UserID, &r.Name, &r.Rating, &r.GamesPlayed, &r.Wins, &r.Losses); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		r.Tier = rating.Tier(r.Rating)
		board = append(board, r)
	}
	return board, rows.Err()
}

func (s *store) GetBehaviorMetrics(ctx context.Context, userID string) (*BehaviorMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := BehaviorMetrics{UserID: userID}
	err := s.db.QueryRowContext(ctx, `
		SELECT tone, aggressiveness, sportsmanship, total_ratings
		FROM behavior_metrics WHERE user_id = ?`, userID).
		Scan(&m.Tone, &m.Aggressiveness, &m.Sportsmanship, &m.TotalRatings)
	if errors.Is(err, sql.ErrNoRows) {
		return &m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get behavior metrics: %w", err)
	}
	return &m, nil
}
