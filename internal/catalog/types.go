package catalog

import (
	"database/sql"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when a sport, venue or player does not exist.
var ErrNotFound = errors.New("not found")

// store handles all database operations for the catalog.
type store struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

type Gender string

const (
	GenderUnknown Gender = ""
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
)

type Sport struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	PlayersRequired int       `json:"players_required"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
}

type Venue struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	City   string  `json:"city"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Active bool    `json:"active"`
}

// Profile is the part of a player's profile matchmaking cares about.
type Profile struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Gender    Gender    `json:"gender"`
	CreatedAt time.Time `json:"created_at"`
}

// PlayerRating is a player's standing in one sport.
type PlayerRating struct {
	UserID      string `json:"user_id"`
	Name        string `json:"name,omitempty"`
	SportID     string `json:"sport_id"`
	Rating      int    `json:"rating"`
	GamesPlayed int    `json:"games_played"`
	Wins        int    `json:"wins"`
	Losses      int    `json:"losses"`
	Tier        string `json:"tier"`
}

// PlayerSnapshot is what the matcher needs to know about a queued player.
type PlayerSnapshot struct {
	Rating      int
	GamesPlayed int
	Gender      Gender
}

// BehaviorMetrics are running averages of the behavior scores a player received.
type BehaviorMetrics struct {
	UserID         string  `json:"user_id"`
	Tone           float64 `json:"tone"`
	Aggressiveness float64 `json:"aggressiveness"`
	Sportsmanship  float64 `json:"sportsmanship"`
	TotalRatings   int     `json:"total_ratings"`
}
