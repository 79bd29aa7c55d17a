package metrics

// Metrics defines the interface for collecting application metrics.
// This decouples the application from the specific metrics implementation (e.g., Prometheus).
type Metrics interface {
	IncQueueJoins(sportID string)
	IncQueueCancellations()
	IncEntriesExpired(n int)
	IncMatchesCreated(sportID string)
	IncMatchConflicts()
	ObserveMatchDuration(duration float64)
	IncSettlements()
	IncDisputes()
	IncSweepRuns()
	IncSlackNotifSent()
	IncSlackNotifFailed()
	SetStartupTime(duration float64)
}
