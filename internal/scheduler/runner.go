// Package scheduler drives the periodic due-reminder pass.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HammerMeetNail/plantcare/internal/logging"
	"github.com/HammerMeetNail/plantcare/internal/models"
	"github.com/HammerMeetNail/plantcare/internal/services"
)

var ErrAlreadyStarted = errors.New("scheduler already started")

type Options struct {
	Interval   time.Duration
	RunOnStart bool
	// Lock is optional. Without it only the in-process guard applies.
	Lock services.TickLock
}

// Runner owns the hourly trigger and is also the entrypoint for the HTTP
// cron trigger, so both paths share the same overlap guard.
type Runner struct {
	processor  services.DueProcessor
	lock       services.TickLock
	interval   time.Duration
	runOnStart bool

	running atomic.Bool

	mu         sync.Mutex
	loopCancel context.CancelFunc
	tickCancel context.CancelFunc
	done       chan struct{}
}

func NewRunner(processor services.DueProcessor, opts Options) *Runner {
	return &Runner{
		processor:  processor,
		lock:       opts.Lock,
		interval:   opts.Interval,
		runOnStart: opts.RunOnStart,
	}
}

// Start launches the background loop. Stop must be called to release it.
func (r *Runner) Start(ctx context.Context) error {
	if r.interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive, got %s", r.interval)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done != nil {
		return ErrAlreadyStarted
	}

	loopCtx, loopCancel := context.WithCancel(ctx)
	// Ticks outlive the loop context so Stop can let an in-flight pass finish.
	tickCtx, tickCancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	r.loopCancel = loopCancel
	r.tickCancel = tickCancel
	r.done = done

	go r.loop(loopCtx, tickCtx, done)

	logging.Info("Reminder scheduler started", map[string]interface{}{
		"interval":     r.interval.String(),
		"run_on_start": r.runOnStart,
	})
	return nil
}

// Stop halts the loop and waits for an in-flight tick. If ctx expires first
// the tick is cancelled and ctx's error returned.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	loopCancel, tickCancel, done := r.loopCancel, r.tickCancel, r.done
	r.loopCancel, r.tickCancel, r.done = nil, nil, nil
	r.mu.Unlock()

	if done == nil {
		return nil
	}

	loopCancel()
	defer tickCancel()

	select {
	case <-done:
		logging.Info("Reminder scheduler stopped")
		return nil
	case <-ctx.Done():
		tickCancel()
		<-done
		logging.Warn("Reminder scheduler stop timed out; in-flight tick cancelled", map[string]interface{}{
			"error": ctx.Err().Error(),
		})
		return ctx.Err()
	}
}

func (r *Runner) loop(loopCtx, tickCtx context.Context, done chan struct{}) {
	defer close(done)

	if r.runOnStart {
		r.tick(tickCtx)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-loopCtx.Done():
			return
		case <-ticker.C:
			r.tick(tickCtx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	result, err := r.ProcessDueReminders(ctx)
	if errors.Is(err, services.ErrTickInProgress) {
		logging.Debug("Reminder tick skipped; another pass is running")
		return
	}
	if err != nil {
		logging.Error("Reminder tick failed", map[string]interface{}{"error": err.Error()})
		return
	}
	logging.Debug("Reminder tick finished", map[string]interface{}{
		"total":  result.Total,
		"sent":   result.Sent,
		"failed": result.Failed,
	})
}

// ProcessDueReminders runs one due-reminder pass unless another pass is
// already running here or, when a lock is configured, on another replica.
func (r *Runner) ProcessDueReminders(ctx context.Context) (models.TickResult, error) {
	if !r.running.CompareAndSwap(false, true) {
		return models.TickResult{}, services.ErrTickInProgress
	}
	defer r.running.Store(false)

	if r.lock != nil {
		release, err := r.lock.Acquire(ctx)
		switch {
		case errors.Is(err, services.ErrLockHeld):
			return models.TickResult{}, services.ErrTickInProgress
		case err != nil:
			// Row claims still exclude double sends without the lock.
			logging.Warn("Reminder tick lock unavailable, continuing", map[string]interface{}{"error": err.Error()})
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					logging.Warn("Releasing reminder tick lock failed", map[string]interface{}{"error": err.Error()})
				}
			}()
		}
	}

	return r.processor.ProcessDue(ctx)
}
