package http

import (
	"net/http"

	"github.com/mauv0809/courtmatch/internal/catalog"
	"github.com/mauv0809/courtmatch/internal/config"
	"github.com/mauv0809/courtmatch/internal/events"
	"github.com/mauv0809/courtmatch/internal/matchmaking"
	"github.com/mauv0809/courtmatch/internal/metrics"
	"github.com/mauv0809/courtmatch/internal/notifier"
	"github.com/mauv0809/courtmatch/internal/pubsub"
)

type Server struct {
	Service        *matchmaking.Service
	Catalog        catalog.Store
	Broker         *events.Broker
	Notifier       notifier.Notifier
	Metrics        metrics.Metrics
	MetricsHandler http.Handler
	Cfg            config.Config
	Router         *http.ServeMux
	pubsub         pubsub.PubSubClient
	handler        http.Handler
}

// identity is the caller a request acts for.
type identity struct {
	UserID string
	Role   string
}

func (i identity) isAdmin() bool {
	return i.Role == roleAdmin
}

type joinRequest struct {
	SportID string `json:"sport_id"`
	matchmaking.Criteria
}

type feedbackRequest struct {
	ReportedWinnerID string                     `json:"reported_winner_id"`
	Scores           matchmaking.BehaviorScores `json:"scores"`
	Comments         string                     `json:"comments,omitempty"`
}

type resolveRequest struct {
	WinnerID string `json:"winner_id"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	// Match is attached when the error concerns a match whose state the
	// caller should see, such as a disputed result.
	Match *matchmaking.Match `json:"match,omitempty"`
}
