package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubRedis struct {
	values  map[string]string
	setErr  error
	evalErr error
	evals   int
}

func newStubRedis() *stubRedis {
	return &stubRedis{values: map[string]string{}}
}

func (s *stubRedis) SetNX(ctx context.Context, key string, value any, expiration time.Duration) (bool, error) {
	if s.setErr != nil {
		return false, s.setErr
	}
	if _, exists := s.values[key]; exists {
		return false, nil
	}
	s.values[key] = value.(string)
	return true, nil
}

// Eval emulates the compare-and-delete release script.
func (s *stubRedis) Eval(ctx context.Context, script string, keys []string, args ...any) (any, error) {
	s.evals++
	if s.evalErr != nil {
		return nil, s.evalErr
	}
	if s.values[keys[0]] == args[0].(string) {
		delete(s.values, keys[0])
		return int64(1), nil
	}
	return int64(0), nil
}

func (s *stubRedis) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

func TestRedisTickLock_AcquireAndRelease(t *testing.T) {
	redis := newStubRedis()
	lock := NewRedisTickLock(redis, "lock:reminders:tick", time.Minute)

	release, err := lock.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := lock.Acquire(context.Background()); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld while held, got %v", err)
	}
	if err := release(context.Background()); err != nil {
		t.Fatalf("unexpected release error: %v", err)
	}
	if _, ok := redis.values["lock:reminders:tick"]; ok {
		t.Fatal("expected lock key to be removed")
	}
	if _, err := lock.Acquire(context.Background()); err != nil {
		t.Fatalf("expected re-acquire after release, got %v", err)
	}
}

func TestRedisTickLock_ReleaseKeepsForeignToken(t *testing.T) {
	redis := newStubRedis()
	lock := NewRedisTickLock(redis, "lock:reminders:tick", time.Minute)

	release, err := lock.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Simulate expiry followed by another replica taking the lock.
	redis.values["lock:reminders:tick"] = "someone-else"

	if err := release(context.Background()); err != nil {
		t.Fatalf("unexpected release error: %v", err)
	}
	if redis.values["lock:reminders:tick"] != "someone-else" {
		t.Fatal("expected foreign lock to survive release")
	}
}

func TestRedisTickLock_AcquireError(t *testing.T) {
	redis := newStubRedis()
	redis.setErr = errors.New("connection refused")
	lock := NewRedisTickLock(redis, "lock:reminders:tick", time.Minute)

	if _, err := lock.Acquire(context.Background()); err == nil || errors.Is(err, ErrLockHeld) {
		t.Fatalf("expected wrapped redis error, got %v", err)
	}
}
