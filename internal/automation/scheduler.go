// Package automation runs the engine's health/deadline/insight cycle on a
// fixed interval.
package automation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"servicehub/internal/engine"
	"servicehub/internal/logging"
)

// ErrBusy is returned by Trigger while another cycle is running.
var ErrBusy = errors.New("automation cycle already running")

type Runner interface {
	RunCycle(ctx context.Context) (engine.CycleReport, error)
}

// Scheduler runs at most one cycle at a time. A tick that arrives while a
// cycle is still running is skipped. Finished reports are published on
// Reports(); when the buffer is full the report is dropped and logged.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	log      *slog.Logger

	busy    sync.Mutex
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	reports chan engine.CycleReport
}

func New(r Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Scheduler{
		runner:   r,
		interval: interval,
		log:      logger.With("component", "automation"),
		reports:  make(chan engine.CycleReport, 8),
	}
}

// Reports is closed when Run returns.
func (s *Scheduler) Reports() <-chan engine.CycleReport {
	return s.reports
}

// Run runs one cycle immediately and then one per interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("starting scheduler", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer func() {
		ticker.Stop()
		s.wg.Wait()
		s.mu.Lock()
		s.closed = true
		close(s.reports)
		s.mu.Unlock()
		s.log.Info("scheduler stopped")
	}()

	s.spawn(ctx)
	for {
		select {
		case <-ticker.C:
			s.spawn(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) spawn(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.Trigger(ctx); errors.Is(err, ErrBusy) {
			s.log.Warn("skipping tick, previous cycle still running")
		}
	}()
}

// Trigger runs a single cycle now unless one is already in progress.
func (s *Scheduler) Trigger(ctx context.Context) (engine.CycleReport, error) {
	if !s.busy.TryLock() {
		return engine.CycleReport{}, ErrBusy
	}
	defer s.busy.Unlock()

	report, err := s.runner.RunCycle(ctx)
	if err != nil {
		s.log.Error("automation cycle failed", "err", err)
		return report, err
	}
	s.publish(report)
	return report, nil
}

func (s *Scheduler) publish(report engine.CycleReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.reports <- report:
	default:
		s.log.Warn("report dropped, consumer is behind", "started_at", report.StartedAt)
	}
}
