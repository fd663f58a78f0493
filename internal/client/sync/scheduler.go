package sync

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/vmartynov/offsync/internal/logging"
)

// ErrCycleInFlight is returned by RunNow when a cycle is already running;
// the request is coalesced into the in-flight cycle, not queued.
var ErrCycleInFlight = errors.New("sync cycle already in flight")

// Runner is the engine surface the scheduler drives.
type Runner interface {
	RunSyncCycle(ctx context.Context) (*Summary, error)
}

// Scheduler decides when sync cycles run. All triggers (the periodic timer,
// app foregrounding, connectivity restoration, explicit user refresh) funnel
// through the same single-flight guard: at most one cycle at a time, extra
// requests coalesced into no-ops.
type Scheduler struct {
	runner   Runner
	log      logging.Logger
	interval time.Duration

	// running is the only process-wide mutable flag; it exists solely for
	// the single-flight guarantee.
	running  atomic.Bool
	requests chan struct{}
}

// NewScheduler builds a scheduler running cycles every interval (default
// 10 minutes) plus on demand.
func NewScheduler(r Runner, log logging.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Scheduler{
		runner:   r,
		log:      log.With("component", "scheduler"),
		interval: interval,
		requests: make(chan struct{}, 1),
	}
}

// Request asks for a cycle soon. Requests arriving while one is pending or
// running are coalesced. A request landing mid-cycle is retained as one
// pending follow-up rather than discarded, so a local mutation made while a
// cycle runs is never missed.
func (s *Scheduler) Request() {
	select {
	case s.requests <- struct{}{}:
	default:
	}
}

// OnForeground is the application-activation trigger.
func (s *Scheduler) OnForeground() { s.Request() }

// OnConnectivityRestored is the offline→online transition trigger.
func (s *Scheduler) OnConnectivityRestored() { s.Request() }

// RunNow runs a cycle synchronously for an explicit user refresh. If a cycle
// is already in flight the request is a no-op and ErrCycleInFlight is
// returned so the caller can report it.
func (s *Scheduler) RunNow(ctx context.Context) (*Summary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrCycleInFlight
	}
	defer s.running.Store(false)
	return s.runner.RunSyncCycle(ctx)
}

// Run services triggers until ctx is cancelled. Call it on its own goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Request()
		case <-s.requests:
			if _, err := s.RunNow(ctx); err != nil && !errors.Is(err, ErrCycleInFlight) {
				s.log.Warn(ctx, "sync cycle failed", "error", err)
			}
		}
	}
}

// IsRunning reports whether a cycle is currently in flight.
func (s *Scheduler) IsRunning() bool { return s.running.Load() }
