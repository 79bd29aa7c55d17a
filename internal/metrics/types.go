package metrics

import "github.com/prometheus/client_golang/prometheus"

// Service holds all the Prometheus metrics for the application.
type Service struct {
	QueueJoins         *prometheus.CounterVec
	QueueCancellations prometheus.Counter
	EntriesExpired     prometheus.Counter
	MatchesCreated     *prometheus.CounterVec
	MatchConflicts     prometheus.Counter
	MatchDuration      prometheus.Histogram
	Settlements        prometheus.Counter
	Disputes           prometheus.Counter
	SweepRuns          prometheus.Counter
	SlackNotifSent     prometheus.Counter
	SlackNotifFailed   prometheus.Counter
	StartupTimeSeconds prometheus.Gauge
}
