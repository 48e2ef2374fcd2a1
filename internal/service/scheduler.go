package service

import (
	"context"
	"fmt"
	"time"

	cronlib "github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultRefreshSchedule re-probes endpoints every half minute, matching the
// health verdict TTL.
const DefaultRefreshSchedule = "@every 30s"

// Refresher is anything whose endpoint health can be re-probed.
type Refresher interface {
	RefreshAll(ctx context.Context)
}

// HealthScheduler periodically refreshes endpoint health so that endpoints
// marked unhealthy by failed calls can come back without traffic.
type HealthScheduler struct {
	cron    *cronlib.Cron
	target  Refresher
	timeout time.Duration
	logger  *zap.Logger
}

// NewHealthScheduler parses spec (standard five-field cron or @every) and
// prepares a scheduler. Each run is bounded by timeout.
func NewHealthScheduler(target Refresher, spec string, timeout time.Duration, logger *zap.Logger) (*HealthScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &HealthScheduler{
		cron:    cronlib.New(cronlib.WithChain(cronlib.SkipIfStillRunning(cronlib.DiscardLogger))),
		target:  target,
		timeout: timeout,
		logger:  logger,
	}
	if _, err := s.cron.AddFunc(spec, s.RunOnce); err != nil {
		return nil, fmt.Errorf("invalid health refresh schedule %q: %w", spec, err)
	}
	return s, nil
}

// RunOnce performs a single refresh.
func (s *HealthScheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	s.target.RefreshAll(ctx)
	s.logger.Debug("endpoint health refreshed", zap.Duration("took", time.Since(start)))
}

// Start runs the schedule in the background.
func (s *HealthScheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running refresh to finish.
func (s *HealthScheduler) Stop() {
	<-s.cron.Stop().Done()
}
