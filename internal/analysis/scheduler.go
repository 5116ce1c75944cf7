package analysis

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler re-runs the pipeline on a fixed interval so a refreshed
// export log is rescored without operator action.
type Scheduler struct {
	pipeline *Pipeline
	interval time.Duration
	logger   *zap.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler creates a scheduler for the given pipeline.
func NewScheduler(pipeline *Pipeline, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		pipeline: pipeline,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start begins periodic analysis in a background goroutine. The first
// run happens immediately, then every interval.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
	s.logger.Info("analysis scheduler started", zap.Duration("interval", s.interval))
}

// Stop cancels the scheduler and waits for the goroutine to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
	s.logger.Info("analysis scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if _, err := s.pipeline.Run(ctx); err != nil {
		s.logger.Warn("scheduled analysis run failed", zap.Error(err))
	}
}
