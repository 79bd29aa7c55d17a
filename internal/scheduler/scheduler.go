package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
	"github.com/mauv0809/courtmatch/internal/matchmaking"
)

// Sweeper is the periodic queue maintenance the scheduler drives.
type Sweeper interface {
	Sweep(ctx context.Context) (*matchmaking.SweepResult, error)
}

// Scheduler runs the queue sweep on a fixed interval.
type Scheduler struct {
	sched  gocron.Scheduler
	cancel context.CancelFunc
}

// Start schedules sweeper every interval. A run that is still going when the
// next one is due delays it instead of overlapping.
func Start(sweeper Sweeper, interval time.Duration) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			res, err := sweeper.Sweep(ctx)
			if err != nil {
				log.Error("Queue sweep failed", "error", err)
				return
			}
			if res.Expired > 0 || res.Matched > 0 {
				log.Info("Queue sweep finished", "expired", res.Expired, "matched", res.Matched)
			}
		}),
		gocron.WithName("queue-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to schedule queue sweep: %w", err)
	}

	sched.Start()
	log.Info("Queue sweep scheduled", "interval", interval)
	return &Scheduler{sched: sched, cancel: cancel}, nil
}

// Shutdown cancels a running sweep and waits for it to return.
func (s *Scheduler) Shutdown() error {
	s.cancel()
	if err := s.sched.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	return nil
}
