package config

import "time"

// Config holds all configuration for the application.
type Config struct {
	DBName         string
	Port           string
	Turso          TursoConfig
	Slack          SlackConfig
	ProjectID      string
	JWTSecret      string
	AllowedOrigins []string
	Queue          QueueConfig
}

type TursoConfig struct {
	PrimaryURL string
	AuthToken  string
}

// SlackConfig is optional. Without a token notifications are logged as dry runs.
type SlackConfig struct {
	Token         string
	ChannelID     string
	SigningSecret string
}

// QueueConfig tunes the matchmaking queue.
type QueueConfig struct {
	EntryTTL        time.Duration
	MaxMatchRetries int
	SweepInterval   time.Duration
}

const (
	DefaultEntryTTL        = 10 * time.Minute
	DefaultMaxMatchRetries = 3
	DefaultSweepInterval   = 30 * time.Second
)
