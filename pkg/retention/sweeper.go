// Package retention provides the scheduled sweep that purges old execution
// records.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/chatloom/chatloom/pkg/persistence"
)

// Sweeper periodically deletes execution records older than the retention
// window. Conversation history is untouched; only terminal run records age
// out.
type Sweeper struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	cron        *cron.Cron
	schedule    string
	maxAge      time.Duration
}

// NewSweeper creates a sweeper. schedule is a standard cron expression;
// maxAge is the retention window.
func NewSweeper(logger *slog.Logger, persist persistence.Persistence, schedule string, maxAge time.Duration) *Sweeper {
	return &Sweeper{
		logger:      logger.With("module", "retention_sweeper"),
		persistence: persist,
		cron:        cron.New(),
		schedule:    schedule,
		maxAge:      maxAge,
	}
}

// Start validates the schedule and begins sweeping in the background.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		s.sweep(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("Retention sweeper started", "schedule", s.schedule, "max_age", s.maxAge)

	return nil
}

// Stop halts scheduling and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.maxAge)

	purged, err := s.persistence.Executions().PurgeExecutions(ctx, cutoff)
	if err != nil {
		s.logger.Error("Retention sweep failed", "error", err)

		return
	}

	if purged > 0 {
		s.logger.Info("Retention sweep purged executions", "purged", purged, "cutoff", cutoff)
	}
}
