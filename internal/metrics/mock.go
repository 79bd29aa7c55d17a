package metrics

import "sync"

var _ Metrics = (*Mock)(nil)

// Mock is a mock implementation of the Metrics interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu                 sync.Mutex
	queueJoins         map[string]int
	queueCancellations int
	entriesExpired     int
	matchesCreated     map[string]int
	matchConflicts     int
	matchDurations     []float64
	settlements        int
	disputes           int
	sweepRuns          int
	slackNotifSent     int
	slackNotifFailed   int
	startupTime        float64
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{
		queueJoins:     make(map[string]int),
		matchesCreated: make(map[string]int),
	}
}

func (m *Mock) IncQueueJoins(sportID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueJoins[sportID]++
}

func (m *Mock) IncQueueCancellations() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueCancellations++
}

func (m *Mock) IncEntriesExpired(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entriesExpired += n
}

func (m *Mock) IncMatchesCreated(sportID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matchesCreated[sportID]++
}

func (m *Mock) IncMatchConflicts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matchConflicts++
}

func (m *Mock) ObserveMatchDuration(duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matchDurations = append(m.matchDurations, duration)
}

func (m *Mock) IncSettlements() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settlements++
}

func (m *Mock) IncDisputes() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disputes++
}

func (m *Mock) IncSweepRuns() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepRuns++
}

func (m *Mock) IncSlackNotifSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slackNotifSent++
}

func (m *Mock) IncSlackNotifFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slackNotifFailed++
}

func (m *Mock) SetStartupTime(duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startupTime = duration
}

// QueueJoins returns the number of joins recorded for a sport.
func (m *Mock) QueueJoins(sportID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queueJoins[sportID]
}

// QueueCancellations returns the number of times IncQueueCancellations was called.
func (m *Mock) QueueCancellations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queueCancellations
}

// EntriesExpired returns the total passed to IncEntriesExpired.
func (m *Mock) EntriesExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entriesExpired
}

// MatchesCreated returns the number of matches recorded for a sport.
func (m *Mock) MatchesCreated(sportID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matchesCreated[sportID]
}

// MatchConflicts returns the number of times IncMatchConflicts was called.
func (m *Mock) MatchConflicts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matchConflicts
}

// Settlements returns the number of times IncSettlements was called.
func (m *Mock) Settlements() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settlements
}

// Disputes returns the number of times IncDisputes was called.
func (m *Mock) Disputes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disputes
}

// SweepRuns returns the number of times IncSweepRuns was called.
func (m *Mock) SweepRuns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepRuns
}

// SlackNotifSent returns the number of times IncSlackNotifSent was called.
func (m *Mock) SlackNotifSent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slackNotifSent
}

// SlackNotifFailed returns the number of times IncSlackNotifFailed was called.
func (m *Mock) SlackNotifFailed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slackNotifFailed
}
