package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"reddit-alpha-agent/internal/logger"
)

// Job is one scheduled run. Its context is cancelled when the scheduler stops.
type Job func(ctx context.Context) error

// Scheduler fires a job on a 5-field cron expression in UTC. A firing that
// lands while the previous run is still going is skipped.
type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	job      Job

	ctx    context.Context
	cancel context.CancelFunc

	running atomic.Bool
	skipped atomic.Int64
}

func New(spec string, job Job) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.Recover(cronLogger{}))),
		schedule: schedule,
		job:      job,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.cron.Schedule(schedule, cron.FuncJob(s.fire))
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Info(s.ctx, "scheduler started", "next_run", s.Next().Format(time.RFC3339))
}

// Stop waits for an in-flight run. If ctx expires first the run's context is
// cancelled and ctx.Err() returned.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}

// Next is the next firing time after now.
func (s *Scheduler) Next() time.Time {
	return s.schedule.Next(time.Now().UTC())
}

func (s *Scheduler) Skipped() int64 { return s.skipped.Load() }

func (s *Scheduler) fire() {
	if !s.running.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		logger.Warn(s.ctx, "previous run still in progress, skipping")
		return
	}
	defer s.running.Store(false)

	start := time.Now()
	if err := s.job(s.ctx); err != nil {
		logger.ErrorWithErr(s.ctx, "scheduled run failed", err, "duration_ms", time.Since(start).Milliseconds())
		return
	}
	logger.Info(s.ctx, "scheduled run finished", "duration_ms", time.Since(start).Milliseconds(), "next_run", s.Next().Format(time.RFC3339))
}

// cronLogger routes cron's own messages to the structured logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...interface{}) {
	logger.Debug(context.Background(), "cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...interface{}) {
	logger.ErrorWithErr(context.Background(), "cron: "+msg, err, kv...)
}
