package worker

import (
	"context"
	"time"

	"github.com/tnqbao/gau-account-service/workflow"
)

// Sweeper periodically fails unconfirmed deletion jobs that outlived their
// TTL, freeing the one-job-per-account slot.
type Sweeper struct {
	logger   workflow.Logger
	machine  StateMachine
	interval time.Duration
}

func NewSweeper(logger workflow.Logger, machine StateMachine, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		logger:   logger,
		machine:  machine,
		interval: interval,
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.InfoWithContextf(ctx, "[Sweeper] Shutting down...")
				return
			case <-ticker.C:
				swept, err := s.machine.SweepAbandoned(ctx)
				if err != nil {
					s.logger.ErrorWithContextf(ctx, err, "[Sweeper] Sweep failed: %v", err)
					continue
				}
				if swept > 0 {
					s.logger.InfoWithContextf(ctx, "[Sweeper] Swept %d abandoned deletion jobs", swept)
				}
			}
		}
	}()
}
