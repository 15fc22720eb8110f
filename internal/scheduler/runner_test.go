package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HammerMeetNail/plantcare/internal/models"
	"github.com/HammerMeetNail/plantcare/internal/services"
)

type stubProcessor struct {
	calls   atomic.Int32
	result  models.TickResult
	err     error
	process func(ctx context.Context) (models.TickResult, error)
}

func (s *stubProcessor) ProcessDue(ctx context.Context) (models.TickResult, error) {
	s.calls.Add(1)
	if s.process != nil {
		return s.process(ctx)
	}
	return s.result, s.err
}

type stubLock struct {
	mu       sync.Mutex
	err      error
	held     bool
	releases int
}

func (l *stubLock) Acquire(ctx context.Context) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	if l.held {
		return nil, services.ErrLockHeld
	}
	l.held = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.held = false
		l.releases++
		return nil
	}, nil
}

func TestRunner_ProcessDueReminders_ReturnsResult(t *testing.T) {
	processor := &stubProcessor{result: models.TickResult{Total: 3, Sent: 2, Failed: 1}}
	lock := &stubLock{}
	runner := NewRunner(processor, Options{Interval: time.Hour, Lock: lock})

	result, err := runner.ProcessDueReminders(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != processor.result {
		t.Fatalf("expected %+v, got %+v", processor.result, result)
	}
	if lock.releases != 1 || lock.held {
		t.Fatalf("expected lock released once, got releases=%d held=%v", lock.releases, lock.held)
	}
}

func TestRunner_ProcessDueReminders_PropagatesError(t *testing.T) {
	storeErr := errors.New("query due reminders: connection reset")
	runner := NewRunner(&stubProcessor{err: storeErr}, Options{Interval: time.Hour})

	if _, err := runner.ProcessDueReminders(context.Background()); !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestRunner_ProcessDueReminders_SkipsWhileRunning(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	processor := &stubProcessor{process: func(ctx context.Context) (models.TickResult, error) {
		close(entered)
		<-release
		return models.TickResult{Total: 1, Sent: 1}, nil
	}}
	runner := NewRunner(processor, Options{Interval: time.Hour})

	errs := make(chan error, 1)
	go func() {
		_, err := runner.ProcessDueReminders(context.Background())
		errs <- err
	}()
	<-entered

	if _, err := runner.ProcessDueReminders(context.Background()); !errors.Is(err, services.ErrTickInProgress) {
		t.Fatalf("expected ErrTickInProgress, got %v", err)
	}
	close(release)
	if err := <-errs; err != nil {
		t.Fatalf("unexpected error from first pass: %v", err)
	}
	if got := processor.calls.Load(); got != 1 {
		t.Fatalf("expected a single pass, got %d", got)
	}
}

func TestRunner_ProcessDueReminders_LockHeldElsewhere(t *testing.T) {
	processor := &stubProcessor{}
	lock := &stubLock{held: true}
	runner := NewRunner(processor, Options{Interval: time.Hour, Lock: lock})

	if _, err := runner.ProcessDueReminders(context.Background()); !errors.Is(err, services.ErrTickInProgress) {
		t.Fatalf("expected ErrTickInProgress, got %v", err)
	}
	if processor.calls.Load() != 0 {
		t.Fatal("processor must not run while another replica holds the lock")
	}
}

func TestRunner_ProcessDueReminders_LockOutageStillRuns(t *testing.T) {
	processor := &stubProcessor{result: models.TickResult{Total: 1, Sent: 1}}
	lock := &stubLock{err: errors.New("redis: connection refused")}
	runner := NewRunner(processor, Options{Interval: time.Hour, Lock: lock})

	if _, err := runner.ProcessDueReminders(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processor.calls.Load() != 1 {
		t.Fatal("expected processor to run when the lock backend is down")
	}
}

func TestRunner_StartRejectsBadInterval(t *testing.T) {
	runner := NewRunner(&stubProcessor{}, Options{})
	if err := runner.Start(context.Background()); err == nil {
		t.Fatal("expected error for zero interval")
	}
}

func TestRunner_StartTicksAndStops(t *testing.T) {
	processor := &stubProcessor{}
	runner := NewRunner(processor, Options{Interval: 10 * time.Millisecond, RunOnStart: true})

	if err := runner.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if err := runner.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for processor.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if processor.calls.Load() < 3 {
		t.Fatalf("expected repeated ticks, got %d", processor.calls.Load())
	}

	if err := runner.Stop(context.Background()); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}
	stopped := processor.calls.Load()
	time.Sleep(40 * time.Millisecond)
	if processor.calls.Load() != stopped {
		t.Fatal("expected no ticks after Stop")
	}
	if err := runner.Stop(context.Background()); err != nil {
		t.Fatalf("second stop should be a no-op, got %v", err)
	}
}

func TestRunner_RunOnStartTicksImmediately(t *testing.T) {
	processor := &stubProcessor{}
	runner := NewRunner(processor, Options{Interval: time.Hour, RunOnStart: true})

	if err := runner.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for processor.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := runner.Stop(context.Background()); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}
	if processor.calls.Load() != 1 {
		t.Fatalf("expected exactly one immediate tick, got %d", processor.calls.Load())
	}
}

func TestRunner_StopWaitsForInFlightTick(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var sawCancel atomic.Bool
	processor := &stubProcessor{process: func(ctx context.Context) (models.TickResult, error) {
		close(entered)
		<-release
		sawCancel.Store(ctx.Err() != nil)
		return models.TickResult{}, nil
	}}
	runner := NewRunner(processor, Options{Interval: time.Hour, RunOnStart: true})
	if err := runner.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	<-entered

	stopped := make(chan error, 1)
	go func() { stopped <- runner.Stop(context.Background()) }()

	select {
	case <-stopped:
		t.Fatal("Stop returned before the in-flight tick finished")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	if err := <-stopped; err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}
	if sawCancel.Load() {
		t.Fatal("in-flight tick should finish with a live context")
	}
}

func TestRunner_StopTimeoutCancelsTick(t *testing.T) {
	entered := make(chan struct{})
	processor := &stubProcessor{process: func(ctx context.Context) (models.TickResult, error) {
		close(entered)
		<-ctx.Done()
		return models.TickResult{}, ctx.Err()
	}}
	runner := NewRunner(processor, Options{Interval: time.Hour, RunOnStart: true})
	if err := runner.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := runner.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
