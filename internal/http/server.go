package http

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/mauv0809/courtmatch/internal/catalog"
	"github.com/mauv0809/courtmatch/internal/config"
	"github.com/mauv0809/courtmatch/internal/events"
	"github.com/mauv0809/courtmatch/internal/matchmaking"
	"github.com/mauv0809/courtmatch/internal/metrics"
	"github.com/mauv0809/courtmatch/internal/notifier"
	"github.com/mauv0809/courtmatch/internal/pubsub"
)

func NewServer(service *matchmaking.Service, catalogStore catalog.Store, broker *events.Broker, notifier notifier.Notifier, metricsSvc metrics.Metrics, metricsHandler http.Handler, cfg config.Config, pubsub pubsub.PubSubClient) *Server {
	server := &Server{
		Service:        service,
		Catalog:        catalogStore,
		Broker:         broker,
		Notifier:       notifier,
		Metrics:        metricsSvc,
		MetricsHandler: metricsHandler,
		Cfg:            cfg,
		Router:         http.NewServeMux(),
		pubsub:         pubsub,
	}

	server.routes()
	server.handler = cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-User-ID", "X-User-Role"},
		AllowCredentials: false,
		MaxAge:           300,
	})(server.Router)
	return server
}

func (s *Server) routes() {
	// All handlers are wrapped with middleware using the Chain helper.
	// Player routes resolve the caller first; admin routes also check the role.
	player := func(h http.Handler) http.Handler {
		return Chain(h, paramsMiddleware, s.authMiddleware)
	}
	admin := func(h http.Handler) http.Handler {
		return Chain(h, paramsMiddleware, s.authMiddleware, adminOnly)
	}

	s.Router.Handle("GET /metrics", s.MetricsHandler)
	s.Router.Handle("GET /health", Chain(s.HealthCheckHandler(), paramsMiddleware))

	s.Router.Handle("POST /queue", player(s.JoinQueueHandler()))
	s.Router.Handle("GET /queue/active", player(s.ActiveEntryHandler()))
	s.Router.Handle("GET /queue/{id}", player(s.GetEntryHandler()))
	s.Router.Handle("DELETE /queue/{id}", player(s.CancelQueueHandler()))

	s.Router.Handle("GET /matches/{id}", player(s.GetMatchHandler()))
	s.Router.Handle("POST /matches/{id}/confirm", player(s.ConfirmMatchHandler()))
	s.Router.Handle("POST /matches/{id}/start", player(s.StartMatchHandler()))
	s.Router.Handle("POST /matches/{id}/cancel", player(s.CancelMatchHandler()))
	s.Router.Handle("POST /matches/{id}/feedback", player(s.FeedbackHandler()))

	s.Router.Handle("GET /sports", player(s.ListSportsHandler()))
	s.Router.Handle("GET /sports/{sportID}/queue", player(s.ListWaitingHandler()))
	s.Router.Handle("GET /sports/{sportID}/leaderboard", player(s.LeaderboardHandler()))

	s.Router.Handle("POST /admin/matches/{id}/resolve", admin(s.ResolveMatchHandler()))
	s.Router.Handle("POST /admin/matches/{id}/settle", admin(s.RequestSettleHandler()))
	s.Router.Handle("POST /admin/sweep", admin(s.SweepHandler()))
	s.Router.Handle("POST /admin/sports/{sportID}/leaderboard/announce", admin(s.AnnounceLeaderboardHandler()))

	s.Router.Handle("GET /ws", player(s.SubscribeHandler()))
	s.Router.Handle("POST /pubsub/settle-match", Chain(s.SettleMatchPushHandler(), paramsMiddleware))
	s.Router.Handle("POST /slack/command/leaderboard", Chain(s.LeaderboardCommandHandler(), paramsMiddleware, s.slackVerifier))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
