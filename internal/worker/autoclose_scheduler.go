package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// Sweeper runs one auto-close pass.
type Sweeper interface {
	Run(ctx context.Context, now time.Time) (service.SweepResult, error)
}

// AutoCloseScheduler triggers the sweeper on a cron schedule.
type AutoCloseScheduler struct {
	sweeper  Sweeper
	schedule string
	clock    clock.Clock
	logger   *zap.Logger
	metrics  *observability.Metrics
	timeout  time.Duration

	mu        sync.Mutex
	scheduler *cron.Cron
}

// NewAutoCloseScheduler validates schedule and builds a stopped scheduler.
func NewAutoCloseScheduler(sweeper Sweeper, schedule string, clk clock.Clock, logger *zap.Logger, metrics *observability.Metrics) (*AutoCloseScheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", schedule, err)
	}
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutoCloseScheduler{
		sweeper:  sweeper,
		schedule: schedule,
		clock:    clk,
		logger:   logger,
		metrics:  metrics,
		timeout:  10 * time.Minute,
	}, nil
}

// Start registers the job and starts the cron loop. Overlapping runs are skipped.
func (s *AutoCloseScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduler != nil {
		return nil
	}
	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := scheduler.AddFunc(s.schedule, func() { s.RunOnce(context.Background()) }); err != nil {
		return err
	}
	scheduler.Start()
	s.scheduler = scheduler
	s.logger.Info("auto-close scheduler started", zap.String("schedule", s.schedule))
	return nil
}

// Stop halts scheduling and waits for a running sweep until ctx is done.
func (s *AutoCloseScheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	scheduler := s.scheduler
	s.scheduler = nil
	s.mu.Unlock()
	if scheduler == nil {
		return
	}
	select {
	case <-scheduler.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("auto-close scheduler stop timed out")
	}
}

// NextRun reports when the schedule fires next after from.
func (s *AutoCloseScheduler) NextRun(from time.Time) time.Time {
	schedule, err := cron.ParseStandard(s.schedule)
	if err != nil {
		return time.Time{}
	}
	return schedule.Next(from)
}

// RunOnce performs a sweep immediately.
func (s *AutoCloseScheduler) RunOnce(ctx context.Context) (service.SweepResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.clock.Now()
	result, err := s.sweeper.Run(ctx, now)
	if err != nil {
		s.logger.Error("auto-close sweep failed", zap.Error(err))
		return result, err
	}
	s.metrics.RecordSweep(now, result.Closed, result.Skipped, result.Failed)
	return result, nil
}
