package matchmaking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// store handles database operations for the queue and matches.
type store struct {
	db       *sql.DB
	entryTTL time.Duration
	now      func() time.Time
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewStore creates a new matchmaking store. Entries expire entryTTL after they join.
func NewStore(db *sql.DB, entryTTL time.Duration, opts ...Option) Store {
	s := &store{
		db:       db,
		entryTTL: entryTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const entryColumns = `id, user_id, sport_id, venue_id, preferred_date, preferred_time, gender_preference,
	rating_tolerance, lat, lng, radius_km, status, match_id, version, created_at, expires_at, updated_at`

// Join inserts a waiting entry for the user. A waiting entry whose TTL has
// already passed is expired in the same transaction so the user can rejoin
// without waiting for the sweep.
func (s *store) Join(ctx context.Context, userID, sportID string, criteria Criteria) (*QueueEntry, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "is required"}
	}
	if strings.TrimSpace(sportID) == "" {
		return nil, &ValidationError{Field: "sport_id", Reason: "is required"}
	}
	criteria, err := criteria.Normalize()
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkReferences(ctx, tx, userID, sportID, criteria.VenueID); err != nil {
		return nil, err
	}

	now := s.now()
	existing, err := scanEntry(tx.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM queue_entries WHERE user_id = ? AND sport_id = ? AND status = ?`,
		userID, sportID, EntryWaiting))
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to check active entry: %w", err)
	case existing.Expired(now):
		if err := transitionEntry(ctx, tx, existing, EntryExpired, nil, now); err != nil {
			return nil, err
		}
		log.Info("Expired stale entry on rejoin", "entryID", existing.ID, "userID", userID)
	default:
		return nil, ErrDuplicateActiveEntry
	}

	entry := &QueueEntry{
		ID:               uuid.New().String(),
		UserID:           userID,
		SportID:          sportID,
		VenueID:          criteria.VenueID,
		PreferredDate:    criteria.PreferredDate,
		PreferredTime:    criteria.PreferredTime,
		GenderPreference: criteria.GenderPreference,
		RatingTolerance:  *criteria.RatingTolerance,
		Location:         criteria.Location,
		Status:           EntryWaiting,
		Version:          1,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.entryTTL),
		UpdatedAt:        now,
	}

	var lat, lng, radius sql.NullFloat64
	if loc := entry.Location; loc != nil {
		lat = sql.NullFloat64{Float64: loc.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: loc.Lng, Valid: true}
		radius = sql.NullFloat64{Float64: loc.RadiusKm, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO queue_entries (id, user_id, sport_id, venue_id, preferred_date, preferred_time,
			gender_preference, rating_tolerance, lat, lng, radius_km, status, version, created_at, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.SportID, nullString(entry.VenueID), entry.PreferredDate, entry.PreferredTime,
		string(entry.GenderPreference), entry.RatingTolerance, lat, lng, radius, string(entry.Status), entry.Version,
		entry.CreatedAt.UnixNano(), entry.ExpiresAt.UnixNano(), entry.UpdatedAt.UnixNano())
	if isUniqueViolation(err) {
		return nil, ErrDuplicateActiveEntry
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert queue entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateActiveEntry
		}
		return nil, fmt.Errorf("failed to commit queue entry: %w", err)
	}
	log.Info("Queue entry created", "entryID", entry.ID, "userID", userID, "sportID", sportID)
	return entry, nil
}

func checkReferences(ctx context.Context, q queryer, userID, sportID string, venueID *string) error {
	var active bool
	err := q.QueryRowContext(ctx, `SELECT active FROM sports WHERE id = ?`, sportID).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !active) {
		return &ValidationError{Field: "sport_id", Reason: fmt.Sprintf("unknown sport %q", sportID)}
	}
	if err != nil {
		return fmt.Errorf("failed to look up sport: %w", err)
	}

	if venueID != nil {
		err = q.QueryRowContext(ctx, `SELECT active FROM venues WHERE id = ?`, *venueID).Scan(&active)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && !active) {
			return &ValidationError{Field: "venue_id", Reason: fmt.Sprintf("unknown venue %q", *venueID)}
		}
		if err != nil {
			return fmt.Errorf("failed to look up venue: %w", err)
		}
	}

	var found string
	err = q.QueryRowContext(ctx, `SELECT user_id FROM player_profiles WHERE user_id = ?`, userID).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("player %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to look up player: %w", err)
	}
	return nil
}

// Cancel withdraws a waiting entry on behalf of its owner.
func (s *store) Cancel(ctx context.Context, entryID, requesterID string) (*QueueEntry, error) {
	entry, err := s.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.UserID != requesterID {
		return nil, ErrForbidden
	}
	if entry.Status != EntryWaiting {
		return nil, fmt.Errorf("entry is %s: %w", entry.Status, ErrAlreadyTerminal)
	}

	now := s.now()
	if err := transitionEntry(ctx, s.db, entry, EntryCancelled, nil, now); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, s.terminalOrConflict(ctx, entryID)
		}
		return nil, err
	}
	log.Info("Queue entry cancelled", "entryID", entryID, "userID", requesterID)
	return entry, nil
}

// Expire moves a waiting entry past its TTL to expired.
func (s *store) Expire(ctx context.Context, entryID string) (*QueueEntry, error) {
	entry, err := s.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Status != EntryWaiting {
		return nil, fmt.Errorf("entry is %s: %w", entry.Status, ErrAlreadyTerminal)
	}
	now := s.now()
	if !entry.Expired(now) {
		return nil, ErrNotExpired
	}

	if err := transitionEntry(ctx, s.db, entry, EntryExpired, nil, now); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, s.terminalOrConflict(ctx, entryID)
		}
		return nil, err
	}
	log.Debug("Queue entry expired", "entryID", entryID)
	return entry, nil
}

// terminalOrConflict explains a lost compare-and-set on an entry.
func (s *store) terminalOrConflict(ctx context.Context, entryID string) error {
	current, err := s.Get(ctx, entryID)
	if err != nil {
		return err
	}
	if current.Status != EntryWaiting {
		return fmt.Errorf("entry is %s: %w", current.Status, ErrAlreadyTerminal)
	}
	return ErrConflict
}

// transitionEntry moves entry out of waiting if it is unchanged since read,
// and updates entry in place on success.
func transitionEntry(ctx context.Context, q queryer, entry *QueueEntry, to EntryStatus, matchID *string, now time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE queue_entries
		SET status = ?, match_id = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND status = ? AND version = ?`,
		string(to), nullString(matchID), now.UnixNano(), entry.ID, string(EntryWaiting), entry.Version)
	if err != nil {
		return fmt.Errorf("failed to update queue entry %s: %w", entry.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n != 1 {
		return ErrConflict
	}
	entry.Status = to
	entry.MatchID = matchID
	entry.Version++
	entry.UpdatedAt = now
	return nil
}

func (s *store) Get(ctx context.Context, entryID string) (*QueueEntry, error) {
	entry, err := scanEntry(s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM queue_entries WHERE id = ?`, entryID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("queue entry %s: %w", entryID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue entry: %w", err)
	}
	return entry, nil
}

// ActiveEntry returns the user's waiting entry for a sport.
func (s *store) ActiveEntry(ctx context.Context, userID, sportID string) (*QueueEntry, error) {
	entry, err := scanEntry(s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM queue_entries WHERE user_id = ? AND sport_id = ? AND status = ?`,
		userID, sportID, string(EntryWaiting)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no waiting entry for %s in %s: %w", userID, sportID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active entry: %w", err)
	}
	return entry, nil
}

// ListWaiting returns the waiting entries of a sport, longest waiting first.
func (s *store) ListWaiting(ctx context.Context, sportID string) ([]QueueEntry, error) {
	return s.listEntries(ctx,
		`SELECT `+entryColumns+` FROM queue_entries WHERE sport_id = ? AND status = ? ORDER BY created_at, id`,
		sportID, string(EntryWaiting))
}

// ListExpired returns waiting entries whose TTL has passed.
func (s *store) ListExpired(ctx context.Context) ([]QueueEntry, error) {
	return s.listEntries(ctx,
		`SELECT `+entryColumns+` FROM queue_entries WHERE status = ? AND expires_at < ? ORDER BY created_at, id`,
		string(EntryWaiting), s.now().UnixNano())
}

func (s *store) listEntries(ctx context.Context, query string, args ...any) ([]QueueEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue entries: %w", err)
	}
	defer rows.Close()

	var entries []QueueEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// WaitingSports lists the sports that currently have waiting entries.
func (s *store) WaitingSports(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT sport_id FROM queue_entries WHERE status = ? ORDER BY sport_id`, string(EntryWaiting))
	if err != nil {
		return nil, fmt.Errorf("failed to list waiting sports: %w", err)
	}
	defer rows.Close()

	var sports []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan sport id: %w", err)
		}
		sports = append(sports, id)
	}
	return sports, rows.Err()
}

func scanEntry(scanner interface{ Scan(...any) error }) (*QueueEntry, error) {
	var e QueueEntry
	var venueID, matchID sql.NullString
	var lat, lng, radius sql.NullFloat64
	var gender, status string
	var createdAt, expiresAt, updatedAt int64

	err := scanner.Scan(
		&e.ID, &e.UserID, &e.SportID, &venueID, &e.PreferredDate, &e.PreferredTime, &gender,
		&e.RatingTolerance, &lat, &lng, &radius, &status, &matchID, &e.Version,
		&createdAt, &expiresAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.VenueID = stringPtr(venueID)
	e.MatchID = stringPtr(matchID)
	e.GenderPreference = GenderPreference(gender)
	e.Status = EntryStatus(status)
	if lat.Valid && lng.Valid && radius.Valid {
		e.Location = &GeoArea{Lat: lat.Float64, Lng: lng.Float64, RadiusKm: radius.Float64}
	}
	e.CreatedAt = time.Unix(0, createdAt)
	e.ExpiresAt = time.Unix(0, expiresAt)
	e.UpdatedAt = time.Unix(0, updatedAt)
	return &e, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// isUniqueViolation recognizes unique constraint failures from both the
// sqlite3 and libsql drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
