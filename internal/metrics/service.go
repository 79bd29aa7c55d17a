package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ Metrics = (*Service)(nil)

// NewMetricsHandler returns an http.Handler for the given Gatherer.
// If no gatherer is provided, it uses the default one.
func NewMetricsHandler(gatherer ...prometheus.Gatherer) http.Handler {
	gath := prometheus.DefaultGatherer
	if len(gatherer) > 0 {
		gath = gatherer[0]
	}
	return promhttp.HandlerFor(gath, promhttp.HandlerOpts{})
}

// NewService creates and registers the Prometheus metrics.
// If no registerer is provided, it uses the default Prometheus registerer.
func NewService(registerer ...prometheus.Registerer) *Service {
	reg := prometheus.DefaultRegisterer
	if len(registerer) > 0 {
		reg = registerer[0]
	}

	s := &Service{
		QueueJoins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courtmatch_queue_joins_total",
			Help: "The total number of accepted queue joins.",
		}, []string{"sport"}),
		QueueCancellations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courtmatch_queue_cancellations_total",
			Help: "The total number of queue entries cancelled by their owner.",
		}),
		EntriesExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courtmatch_queue_entries_expired_total",
			Help: "The total number of queue entries expired by the sweep.",
		}),
		MatchesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courtmatch_matches_created_total",
			Help: "The total number of matches committed by the matcher.",
		}, []string{"sport"}),
		MatchConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courtmatch_match_conflicts_total",
			Help: "The total number of match commits lost to a concurrent transition.",
		}),
		MatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "courtmatch_match_attempt_duration_seconds",
			Help:    "The duration of a single matching attempt.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		Settlements: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courtmatch_settlements_total",
			Help: "The total number of matches settled with rating updates.",
		}),
		Disputes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courtmatch_disputes_total",
			Help: "The total number of matches flagged as disputed.",
		}),
		SweepRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courtmatch_sweep_runs_total",
			Help: "The total number of queue sweeps.",
		}),
		SlackNotifSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courtmatch_slack_notifications_sent_total",
			Help: "The total number of Slack notifications successfully sent.",
		}),
		SlackNotifFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courtmatch_slack_notifications_failed_total",
			Help: "The total number of Slack notifications that failed to send.",
		}),
		StartupTimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courtmatch_startup_duration_seconds",
			Help: "The duration of the application startup in seconds.",
		}),
	}

	reg.MustRegister(
		s.QueueJoins,
		s.QueueCancellations,
		s.EntriesExpired,
		s.MatchesCreated,
		s.MatchConflicts,
		s.MatchDuration,
		s.Settlements,
		s.Disputes,
		s.SweepRuns,
		s.SlackNotifSent,
		s.SlackNotifFailed,
		s.StartupTimeSeconds,
	)

	return s
}

func (s *Service) IncQueueJoins(sportID string) {
	s.QueueJoins.WithLabelValues(sportID).Inc()
}

func (s *Service) IncQueueCancellations() {
	s.QueueCancellations.Inc()
}

func (s *Service) IncEntriesExpired(n int) {
	s.EntriesExpired.Add(float64(n))
}

func (s *Service) IncMatchesCreated(sportID string) {
	s.MatchesCreated.WithLabelValues(sportID).Inc()
}

func (s *Service) IncMatchConflicts() {
	s.MatchConflicts.Inc()
}

func (s *Service) ObserveMatchDuration(duration float64) {
	s.MatchDuration.Observe(duration)
}

func (s *Service) IncSettlements() {
	s.Settlements.Inc()
}

func (s *Service) IncDisputes() {
	s.Disputes.Inc()
}

func (s *Service) IncSweepRuns() {
	s.SweepRuns.Inc()
}

func (s *Service) IncSlackNotifSent() {
	s.SlackNotifSent.Inc()
}

func (s *Service) IncSlackNotifFailed() {
	s.SlackNotifFailed.Inc()
}

func (s *Service) SetStartupTime(duration float64) {
	s.StartupTimeSeconds.Set(duration)
}
