package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// SweepLockKey is the distributed lock held for the duration of one sweep.
const SweepLockKey = "helpdesk:sla:sweep"

// MetricProcessor recomputes one SLA metric.
type MetricProcessor interface {
	OnTick(ctx context.Context, metric domain.SLAMetric) (*domain.Ticket, error)
}

// Escalator applies time based escalation rules to a ticket.
type Escalator interface {
	ApplyEscalations(ctx context.Context, ticketID string) (*domain.Ticket, bool, error)
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Processed int
	Failed    int
	Deferred  int
	Skipped   bool
}

// SLASweeper periodically recomputes every active SLA metric and applies
// escalation rules to the owning tickets. Metrics are processed by a bounded
// worker pool; a failing metric is logged and retried on a later tick with
// exponential backoff while the rest of the sweep continues.
type SLASweeper struct {
	metrics   repository.SLAMetricRepository
	processor MetricProcessor
	escalator Escalator
	locker    persistence.Locker
	cfg       config.SLAConfig
	stats     *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time

	retryMu sync.Mutex
	retries map[string]*retryState

	sweeping sync.Mutex
	cron     *cron.Cron
	baseCtx  context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

type retryState struct {
	backoff *backoff.ExponentialBackOff
	next    time.Time
}

// SweeperDependencies bundles collaborators for the sweeper.
type SweeperDependencies struct {
	MetricRepo repository.SLAMetricRepository
	Processor  MetricProcessor
	Escalator  Escalator
	Locker     persistence.Locker
	Config     config.SLAConfig
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewSLASweeper builds a sweeper. A nil Locker runs sweeps unlocked.
func NewSLASweeper(deps SweeperDependencies) *SLASweeper {
	locker := deps.Locker
	if locker == nil {
		locker = persistence.NoopLocker{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	cfg := deps.Config
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 4 * time.Minute
	}
	return &SLASweeper{
		metrics:   deps.MetricRepo,
		processor: deps.Processor,
		escalator: deps.Escalator,
		locker:    locker,
		cfg:       cfg,
		stats:     deps.Metrics,
		logger:    logger,
		now:       now,
		retries:   make(map[string]*retryState),
	}
}

// Start schedules sweeps on the configured cron schedule and optionally runs one
// immediately.
func (s *SLASweeper) Start() error {
	s.baseCtx, s.cancel = context.WithCancel(context.Background())
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.cfg.SweepSchedule, s.scheduled); err != nil {
		s.cancel()
		return fmt.Errorf("invalid SLA sweep schedule %q: %w", s.cfg.SweepSchedule, err)
	}
	s.cron.Start()
	if s.cfg.SweepOnStartup {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.scheduled()
		}()
	}
	s.logger.Info("sla sweeper started",
		zap.String("schedule", s.cfg.SweepSchedule),
		zap.Int("workers", s.cfg.Workers))
	return nil
}

// Stop prevents new sweeps and waits for an in-flight sweep to finish. When
// ctx expires first the running sweep is cancelled.
func (s *SLASweeper) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	cronDone := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("sla sweep did not finish before shutdown deadline")
		s.cancel()
		<-done
	}
	s.cancel()
}

func (s *SLASweeper) scheduled() {
	if !s.sweeping.TryLock() {
		s.logger.Debug("previous sla sweep still running; skipping tick")
		return
	}
	defer s.sweeping.Unlock()
	if _, err := s.Sweep(s.baseCtx); err != nil {
		s.logger.Error("sla sweep failed", zap.Error(err))
	}
}

// Sweep runs one pass over all active metrics.
func (s *SLASweeper) Sweep(ctx context.Context) (SweepResult, error) {
	started := time.Now()
	release, err := s.locker.Acquire(ctx, SweepLockKey, s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, persistence.ErrLockHeld) {
			s.logger.Info("sla sweep running elsewhere; skipping")
			s.stats.RecordSweep("skipped", time.Since(started))
			return SweepResult{Skipped: true}, nil
		}
		s.stats.RecordSweep("failed", time.Since(started))
		return SweepResult{}, fmt.Errorf("acquire sweep lock: %w", err)
	}
	defer func() {
		if err := release(context.Background()); err != nil {
			s.logger.Warn("release sweep lock", zap.Error(err))
		}
	}()

	var processed, failed, deferred atomic.Int64
	afterID := ""
	for {
		page, err := s.metrics.ListActive(ctx, afterID, s.cfg.PageSize)
		if err != nil {
			s.stats.RecordSweep("failed", time.Since(started))
			return s.result(&processed, &failed, &deferred), fmt.Errorf("list active sla metrics: %w", err)
		}
		if len(page) == 0 {
			break
		}

		now := s.now()
		var g errgroup.Group
		g.SetLimit(s.cfg.Workers)
		for _, metric := range page {
			if !s.due(metric.ID, now) {
				deferred.Add(1)
				s.stats.RecordMetricProcessed("deferred")
				continue
			}
			g.Go(func() error {
				if s.processOne(ctx, metric) {
					processed.Add(1)
				} else {
					failed.Add(1)
				}
				return nil
			})
		}
		_ = g.Wait()

		afterID = page[len(page)-1].ID
		if len(page) < s.cfg.PageSize || ctx.Err() != nil {
			break
		}
	}

	result := s.result(&processed, &failed, &deferred)
	outcome := "ok"
	if result.Failed > 0 {
		outcome = "partial"
	}
	s.stats.RecordSweep(outcome, time.Since(started))
	s.logger.Info("sla sweep finished",
		zap.Int("processed", result.Processed),
		zap.Int("failed", result.Failed),
		zap.Int("deferred", result.Deferred),
		zap.Duration("duration", time.Since(started)))
	return result, nil
}

func (s *SLASweeper) result(processed, failed, deferred *atomic.Int64) SweepResult {
	return SweepResult{
		Processed: int(processed.Load()),
		Failed:    int(failed.Load()),
		Deferred:  int(deferred.Load()),
	}
}

// processOne recomputes metric and escalates its ticket. Errors are logged
// with ticket and metric ids and scheduled for a backoff retry.
func (s *SLASweeper) processOne(ctx context.Context, metric domain.SLAMetric) bool {
	ticket, err := s.processor.OnTick(ctx, metric)
	if err == nil && ticket != nil && !ticket.Status.IsTerminal() && s.escalator != nil {
		_, _, err = s.escalator.ApplyEscalations(ctx, metric.TicketID)
	}
	if err != nil {
		retryAt := s.recordFailure(metric.ID, s.now())
		s.stats.RecordMetricProcessed("failed")
		s.logger.Error("sla metric processing failed",
			zap.String("ticket_id", metric.TicketID),
			zap.String("metric_id", metric.ID),
			zap.Time("retry_at", retryAt),
			zap.Error(err))
		return false
	}
	s.clearFailure(metric.ID)
	s.stats.RecordMetricProcessed("ok")
	return true
}

func (s *SLASweeper) due(metricID string, now time.Time) bool {
	s.retryMu.Lock()
	defer s.retryMu.Unlock()
	state, ok := s.retries[metricID]
	return !ok || !now.Before(state.next)
}

func (s *SLASweeper) recordFailure(metricID string, now time.Time) time.Time {
	s.retryMu.Lock()
	defer s.retryMu.Unlock()
	state, ok := s.retries[metricID]
	if !ok {
		b := backoff.NewExponentialBackOff()
		if s.cfg.RetryInitial > 0 {
			b.InitialInterval = s.cfg.RetryInitial
		}
		if s.cfg.RetryMax > 0 {
			b.MaxInterval = s.cfg.RetryMax
		}
		b.RandomizationFactor = 0
		b.MaxElapsedTime = 0
		b.Reset()
		state = &retryState{backoff: b}
		s.retries[metricID] = state
	}
	state.next = now.Add(state.backoff.NextBackOff())
	return state.next
}

func (s *SLASweeper) clearFailure(metricID string) {
	s.retryMu.Lock()
	defer s.retryMu.Unlock()
	delete(s.retries, metricID)
}
