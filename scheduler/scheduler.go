// Package scheduler provides a fixed-interval periodic task runner.
//
// A Scheduler fires a single task on its own goroutine at a constant cadence.
// Ticks run strictly sequentially: a tick that overruns the interval delays
// subsequent ticks rather than overlapping them. The first tick fires one
// full interval after Start; there is no immediate fire.
//
// Cancellation is a hard fence: once Cancel returns, no new tick will begin,
// and any tick that was in flight when Cancel was called has completed. This
// makes it safe to tear down resources the task uses immediately after
// Cancel returns. The task must therefore never call back into its own
// Scheduler, or Cancel would deadlock.
package scheduler

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Sentinel errors for scheduler operations.
var (
	// ErrAlreadyStarted indicates Start was called on an active scheduler.
	ErrAlreadyStarted = errors.New("scheduler is already started")

	// ErrInvalidInterval indicates the tick interval is not positive.
	ErrInvalidInterval = errors.New("tick interval must be positive")

	// ErrNilTask indicates no task was provided.
	ErrNilTask = errors.New("task cannot be nil")
)

// Scheduler runs a task at a fixed interval on a dedicated goroutine.
//
// A Scheduler is reusable: after Cancel it can be started again with the
// same interval and task. All methods are safe for concurrent use.
type Scheduler struct {
	interval time.Duration
	task     func()

	// mu guards active and stop.
	mu     sync.Mutex
	active bool
	stop   chan struct{}

	// tickMu is held for the duration of each tick dispatch. Cancel
	// acquires it after closing stop, which both waits out an in-flight
	// tick and fences any tick still racing toward its dispatch gate.
	tickMu sync.Mutex
}

// New creates a scheduler that will invoke task every interval once started.
//
// Parameters:
//   - interval: Time between consecutive tick dispatches (must be positive)
//   - task: Function invoked on each tick (must not be nil, must not call
//     back into this scheduler)
//
// Returns:
//   - *Scheduler: The new inactive scheduler
//   - error: ErrInvalidInterval or ErrNilTask on invalid arguments
func New(interval time.Duration, task func()) (*Scheduler, error) {
	if interval <= 0 {
		logrus.WithFields(logrus.Fields{
			"function": "New",
			"interval": interval,
		}).Error("Scheduler interval validation failed")
		return nil, ErrInvalidInterval
	}
	if task == nil {
		logrus.WithFields(logrus.Fields{
			"function": "New",
		}).Error("Scheduler task validation failed")
		return nil, ErrNilTask
	}

	logrus.WithFields(logrus.Fields{
		"function": "New",
		"interval": interval,
	}).Debug("Scheduler created")

	return &Scheduler{
		interval: interval,
		task:     task,
	}, nil
}

// Start begins periodic execution. The first tick fires one full interval
// from now.
//
// Returns:
//   - error: ErrAlreadyStarted if the scheduler is already active
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		logrus.WithFields(logrus.Fields{
			"function": "Start",
			"interval": s.interval,
		}).Error("Scheduler is already started")
		return ErrAlreadyStarted
	}

	s.active = true
	s.stop = make(chan struct{})
	go s.run(s.stop)

	logrus.WithFields(logrus.Fields{
		"function": "Start",
		"interval": s.interval,
	}).Info("Scheduler started")

	return nil
}

// Cancel stops periodic execution. Calling Cancel on an inactive scheduler
// is a no-op.
//
// Cancel blocks until any in-flight tick has returned. After Cancel returns,
// the task will not be invoked again until the next Start.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function": "Cancel",
		}).Debug("Scheduler already inactive")
		return
	}
	s.active = false
	close(s.stop)
	s.mu.Unlock()

	// Wait for a tick that was dispatching when the flag flipped. Ticks
	// that reach the gate afterwards observe active == false and bail.
	s.tickMu.Lock()
	logrus.WithFields(logrus.Fields{
		"function": "Cancel",
		"interval": s.interval,
	}).Info("Scheduler cancelled")
	s.tickMu.Unlock()
}

// IsActive reports whether the scheduler is currently running.
func (s *Scheduler) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// run is the tick loop goroutine. The stop channel identifies the Start
// generation that spawned it, so a loop left over from a previous run can
// never dispatch ticks after a restart.
func (s *Scheduler) run(stop chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !s.dispatch(stop) {
				return
			}
		}
	}
}

// dispatch runs one tick if this goroutine's generation is still the active
// one. Returns false when the loop should exit.
func (s *Scheduler) dispatch(stop chan struct{}) bool {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	s.mu.Lock()
	current := s.active && s.stop == stop
	s.mu.Unlock()

	if !current {
		return false
	}

	s.task()
	return true
}
