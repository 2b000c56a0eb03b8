// Package scheduler implements the cron-driven trigger (C7): a six-field
// cron.Cron fires ticks that never overlap — a firing due while the
// previous tick is still running is dropped, not queued — and shutdown
// waits for an in-flight tick up to a fixed grace period.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/robfig/cron/v3"
)

// TickFunc performs one reconciliation tick.
type TickFunc func(ctx context.Context) error

// Scheduler implements C7.
type Scheduler struct {
	cron          *cron.Cron
	tick          TickFunc
	logger        logr.Logger
	shutdownGrace time.Duration

	inFlight atomic.Bool
	running  sync.WaitGroup
}

// New parses schedule (six-field cron syntax, including seconds) and
// builds a Scheduler that calls tick on each firing. shutdownGrace bounds
// how long Stop waits for an in-flight tick before giving up.
func New(schedule string, tick TickFunc, logger logr.Logger, shutdownGrace time.Duration) (*Scheduler, error) {
	s := &Scheduler{
		cron:          cron.New(cron.WithSeconds()),
		tick:          tick,
		logger:        logger,
		shutdownGrace: shutdownGrace,
	}

	if _, err := s.cron.AddFunc(schedule, s.fire); err != nil {
		return nil, fmt.Errorf("scheduler: invalid cron schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins firing ticks according to the configured schedule. It does
// not block.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops future firings and waits for any in-flight tick to finish,
// up to the configured grace period. ctx cancellation is honored in
// addition to the grace period, whichever elapses first.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cron.Stop()

	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()

	grace := s.shutdownGrace
	if grace <= 0 {
		grace = 0
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return fmt.Errorf("scheduler: grace period %s elapsed with a tick still running", grace)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fire is the cron callback. It enforces the never-overlap guarantee with
// an atomic flag rather than robfig's built-in SkipIfStillRunning
// middleware, so the drop decision and its log line live next to the rest
// of this package's explicit synchronization.
func (s *Scheduler) fire() {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Info("dropping tick: previous tick is still running")
		return
	}
	s.running.Add(1)
	defer s.running.Done()
	defer s.inFlight.Store(false)

	if err := s.tick(context.Background()); err != nil {
		s.logger.Error(err, "tick completed with errors")
	}
}
