package notifier

import (
	"context"
	"sync"

	"github.com/mauv0809/courtmatch/internal/catalog"
)

var _ Notifier = (*Mock)(nil)

// Mock is a mock implementation of the Notifier interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu sync.Mutex

	// Spies for method calls
	SendMatchResultFunc   func(report MatchReport) error
	SendDisputeReportFunc func(report MatchReport) error

	// Call records
	SendMatchResultCalls   []MatchReport
	SendDisputeReportCalls []MatchReport
	SendLeaderboardCalls   []LeaderboardCall
}

// LeaderboardCall holds the arguments for a call to SendLeaderboard.
type LeaderboardCall struct {
	Sport catalog.Sport
	Board []catalog.PlayerRating
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{}
}

// Reset clears all call records.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendMatchResultCalls = nil
	m.SendDisputeReportCalls = nil
	m.SendLeaderboardCalls = nil
}

func (m *Mock) SendMatchResult(ctx context.Context, report MatchReport, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendMatchResultCalls = append(m.SendMatchResultCalls, report)
	if m.SendMatchResultFunc != nil {
		return m.SendMatchResultFunc(report)
	}
	return nil
}

func (m *Mock) SendDisputeReport(ctx context.Context, report MatchReport, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendDisputeReportCalls = append(m.SendDisputeReportCalls, report)
	if m.SendDisputeReportFunc != nil {
		return m.SendDisputeReportFunc(report)
	}
	return nil
}

func (m *Mock) SendLeaderboard(ctx context.Context, sport catalog.Sport, board []catalog.PlayerRating, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendLeaderboardCalls = append(m.SendLeaderboardCalls, LeaderboardCall{Sport: sport, Board: board})
	return nil
}

// MatchResults returns a copy of the recorded SendMatchResult calls.
func (m *Mock) MatchResults() []MatchReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MatchReport(nil), m.SendMatchResultCalls...)
}

// DisputeReports returns a copy of the recorded SendDisputeReport calls.
func (m *Mock) DisputeReports() []MatchReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MatchReport(nil), m.SendDisputeReportCalls...)
}
