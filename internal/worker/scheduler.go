package worker

import (
	"context"
	"log"
	"sync"
	"time"
)

const minSchedulerInterval = 10 * time.Second

// SchedulerRunFunc is the function called when the scheduler triggers
type SchedulerRunFunc func(ctx context.Context) error

// Scheduler re-runs a function (the filesystem scan) on a fixed interval.
// Overlapping runs are skipped: if a scan is still in progress when the
// ticker fires, that tick is dropped.
type Scheduler struct {
	mu        sync.Mutex
	running   bool
	inFlight  bool
	interval  time.Duration
	lastRunAt time.Time
	runFunc   SchedulerRunFunc
	cancel    context.CancelFunc
}

// NewScheduler creates a scheduler with the given interval.
func NewScheduler(interval time.Duration, runFunc SchedulerRunFunc) *Scheduler {
	if interval < minSchedulerInterval {
		interval = minSchedulerInterval
	}
	return &Scheduler{
		interval: interval,
		runFunc:  runFunc,
	}
}

// Start begins periodic runs. The first run fires after one interval, not
// immediately; callers wanting an initial scan run it themselves.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running || s.runFunc == nil {
		return
	}
	s.running = true

	schedulerCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.loop(schedulerCtx)

	log.Printf("scheduler: started, interval %v", s.interval)
}

// Stop halts periodic runs. An in-flight run finishes on its own.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	log.Printf("scheduler: stopped")
}

// LastRunAt returns when the last run started.
func (s *Scheduler) LastRunAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRunAt
}

func (s *Scheduler) loop(ctx context.Context) {
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
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		log.Printf("scheduler: previous run still in progress, skipping tick")
		return
	}
	s.inFlight = true
	s.lastRunAt = time.Now()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	if err := s.runFunc(ctx); err != nil {
		log.Printf("scheduler: run failed: %v", err)
	}
}
