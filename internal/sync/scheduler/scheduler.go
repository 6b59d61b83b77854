// Package scheduler runs reconciliation passes in the background.
package scheduler

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/taskdock/taskdock/internal/errors"
	"github.com/taskdock/taskdock/internal/logging"
	syncpkg "github.com/taskdock/taskdock/internal/sync"
)

// Scheduler triggers sync passes on a fixed interval and serializes
// them: at most one pass is in flight at any time, whether started by
// the ticker or by an explicit trigger. The engine itself assumes a
// single caller, so this is the component that enforces it.
type Scheduler struct {
	syncer   syncpkg.Syncer
	interval time.Duration
	timeout  time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup

	mu         sync.RWMutex
	running    bool
	inProgress bool
	lastResult *syncpkg.Result
}

// Config holds scheduler tuning.
type Config struct {
	Interval time.Duration // time between automatic passes
	Timeout  time.Duration // budget for a single pass
}

// DefaultConfig returns the standard background cadence.
func DefaultConfig() *Config {
	return &Config{
		Interval: 5 * time.Minute,
		Timeout:  2 * time.Minute,
	}
}

// New creates a Scheduler over a sync engine.
func New(syncer syncpkg.Syncer, config *Config) *Scheduler {
	if config == nil {
		config = DefaultConfig()
	}
	return &Scheduler{
		syncer:   syncer,
		interval: config.Interval,
		timeout:  config.Timeout,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the background loop. Calling Start on a running
// scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)

	logging.Info("Sync scheduler started", map[string]interface{}{
		"interval": s.interval.String(),
	})
}

// Stop halts the background loop and waits for an in-flight pass to
// finish. Calling Stop on a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	logging.Info("Sync scheduler stopped", nil)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runPass(ctx)
		}
	}
}

// runPass executes one pass unless another is already in flight.
func (s *Scheduler) runPass(ctx context.Context) {
	s.mu.Lock()
	if s.inProgress {
		s.mu.Unlock()
		logging.Debug("Sync pass already in progress, skipping", nil)
		return
	}
	s.inProgress = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inProgress = false
		s.mu.Unlock()
	}()

	passCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.syncer.Sync(passCtx)
	if err != nil {
		logging.Error("Scheduled sync pass failed", err, map[string]interface{}{
			"error_code": string(apperrors.ErrSyncTransport),
		})
		return
	}

	s.mu.Lock()
	s.lastResult = result
	s.mu.Unlock()

	if result.Success {
		logging.Info("Scheduled sync pass completed", map[string]interface{}{
			"synced": result.SyncedItems,
		})
	} else {
		logging.Warn("Scheduled sync pass finished with failures", map[string]interface{}{
			"synced": result.SyncedItems,
			"failed": result.FailedItems,
		})
	}
}

// SyncNow runs a pass immediately and waits for its result. It returns
// an error without running when a pass is already in flight, so callers
// cannot break the one-pass invariant.
func (s *Scheduler) SyncNow(ctx context.Context) (*syncpkg.Result, error) {
	s.mu.Lock()
	if s.inProgress {
		s.mu.Unlock()
		return nil, apperrors.New(apperrors.ErrSyncInProgress, "sync pass already in progress")
	}
	s.inProgress = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inProgress = false
		s.mu.Unlock()
	}()

	passCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.syncer.Sync(passCtx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.lastResult = result
	s.mu.Unlock()

	return result, nil
}

// Status reports the scheduler's observable state.
type Status struct {
	Running    bool
	InProgress bool
	LastResult *syncpkg.Result
}

func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		Running:    s.running,
		InProgress: s.inProgress,
		LastResult: s.lastResult,
	}
}

// IsRunning reports whether the background loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
