// Package scheduler runs a background pass on a fixed interval.
//
// A Scheduler is single-instance: the owner starts it once at boot and stops
// it on shutdown. The pass runs immediately on Start, then once per
// interval. RunNow adds a pass on demand; it joins a pass that is already
// running instead of starting a second one. Errors and panics from a pass
// are logged and the loop waits for the next tick.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultInterval is one day.
const DefaultInterval = 24 * time.Hour

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("scheduler already started")

// Func is one background pass.
type Func func(ctx context.Context) error

// Scheduler owns the background loop.
type Scheduler struct {
	run      Func
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	// flight shares one in-progress pass between the loop and RunNow.
	flight singleflight.Group
	passes atomic.Int64
}

// New creates a scheduler. A non-positive interval uses DefaultInterval.
func New(run Func, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		run:      run,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the loop. It returns ErrAlreadyStarted if the scheduler
// has been started before, even if it was since stopped.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)

	s.logger.Info("scheduler started", "interval", s.interval)
	return nil
}

// Stop cancels the loop and waits for an in-progress pass to return.
// Safe to call more than once and before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// RunNow runs a pass in the caller's goroutine. If a pass is already in
// progress it waits for that one and returns its result.
func (s *Scheduler) RunNow(ctx context.Context) error {
	_, err, _ := s.flight.Do("pass", func() (any, error) {
		return nil, s.safeRun(ctx)
	})
	return err
}

// Passes returns the number of passes executed so far.
func (s *Scheduler) Passes() int64 {
	return s.passes.Load()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	s.pass(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping: context cancelled")
			return
		case <-ticker.C:
			s.pass(ctx)
		}
	}
}

func (s *Scheduler) pass(ctx context.Context) {
	if err := s.RunNow(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("scheduled pass failed", "error", err)
	}
}

// safeRun executes the pass, converting a panic into an error.
func (s *Scheduler) safeRun(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pass panicked: %v", r)
		}
	}()
	s.passes.Add(1)
	return s.run(ctx)
}
