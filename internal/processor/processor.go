package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/courtmatch/internal/catalog"
	"github.com/mauv0809/courtmatch/internal/events"
	"github.com/mauv0809/courtmatch/internal/notifier"
)

const queueSize = 64

var _ events.Publisher = (*Processor)(nil)

// Processor turns settled and disputed matches into announcements. It is an
// events.Publisher: Publish only enqueues, and Run does the slow work so a
// commit never waits on Slack.
type Processor struct {
	store     Store
	directory Directory
	notifier  Notifier
	dryRun    bool
	queue     chan events.Event
}

// New creates a new Processor.
func New(store Store, directory Directory, notifier Notifier, dryRun bool) *Processor {
	return &Processor{
		store:     store,
		directory: directory,
		notifier:  notifier,
		dryRun:    dryRun,
		queue:     make(chan events.Event, queueSize),
	}
}

// Publish queues events the processor acts on and ignores the rest.
func (p *Processor) Publish(_ context.Context, event events.Event) {
	if event.Kind != events.MatchCompleted && event.Kind != events.MatchDisputed {
		return
	}
	select {
	case p.queue <- event:
	default:
		log.Warn("Processor queue full, dropping event", "kind", event.Kind, "matchID", event.MatchID)
	}
}

// Run handles queued events until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) {
	log.Info("Starting match processor...")
	for {
		select {
		case <-ctx.Done():
			log.Info("Match processor stopped.")
			return
		case event := <-p.queue:
			if err := p.Handle(ctx, event); err != nil {
				log.Error("Failed to process event", "error", err, "kind", event.Kind, "matchID", event.MatchID)
			}
		}
	}
}

// Handle announces a single event.
func (p *Processor) Handle(ctx context.Context, event events.Event) error {
	switch event.Kind {
	case events.MatchCompleted:
		report, err := p.report(ctx, event.MatchID)
		if err != nil {
			return err
		}
		log.Info("Announcing match result", "matchID", event.MatchID)
		return p.notifier.SendMatchResult(ctx, report, p.dryRun)

	case events.MatchDisputed:
		report, err := p.report(ctx, event.MatchID)
		if err != nil {
			return err
		}
		log.Info("Reporting disputed match for moderation", "matchID", event.MatchID)
		return p.notifier.SendDisputeReport(ctx, report, p.dryRun)

	default:
		log.Debug("Ignoring event", "kind", event.Kind)
		return nil
	}
}

func (p *Processor) report(ctx context.Context, matchID string) (notifier.MatchReport, error) {
	match, err := p.store.GetMatch(ctx, matchID)
	if err != nil {
		return notifier.MatchReport{}, fmt.Errorf("failed to load match %s: %w", matchID, err)
	}
	feedback, err := p.store.ListFeedback(ctx, matchID)
	if err != nil {
		return notifier.MatchReport{}, fmt.Errorf("failed to load feedback for %s: %w", matchID, err)
	}

	report := notifier.MatchReport{
		Match:       match,
		SportName:   match.SportID,
		PlayerNames: make(map[string]string, len(match.Players)),
		Feedback:    feedback,
	}
	if sport, err := p.directory.GetSport(ctx, match.SportID); err == nil {
		report.SportName = sport.Name
	} else if !errors.Is(err, catalog.ErrNotFound) {
		return notifier.MatchReport{}, err
	}
	for _, player := range match.Players {
		profile, err := p.directory.GetProfile(ctx, player.UserID)
		if errors.Is(err, catalog.ErrNotFound) {
			continue
		}
		if err != nil {
			return notifier.MatchReport{}, err
		}
		report.PlayerNames[player.UserID] = profile.Name
	}
	return report, nil
}
