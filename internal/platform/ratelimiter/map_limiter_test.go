package ratelimiter

import (
	"testing"
	"time"
)

func TestMapLimiterEnforcesBurstPerKey(t *testing.T) {
	l := New(1, 2, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if !l.Allow("token:a", now) || !l.Allow("token:a", now) {
		t.Fatal("burst of 2 must be allowed")
	}
	if l.Allow("token:a", now) {
		t.Fatal("third request in the same instant must be limited")
	}
	if !l.Allow("token:b", now) {
		t.Fatal("other keys keep their own bucket")
	}
	if !l.Allow("token:a", now.Add(time.Second)) {
		t.Fatal("bucket must refill after one second")
	}
}

func TestMapLimiterSweepsIdleKeys(t *testing.T) {
	l := New(5, 5, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.Allow("ip:10.0.0.1", now)
	l.Allow("ip:10.0.0.2", now.Add(50*time.Second))

	l.Sweep(now.Add(90 * time.Second))
	if got := l.Len(); got != 1 {
		t.Fatalf("expected one live key after sweep, got %d", got)
	}
}

func TestNilMapLimiterAllowsEverything(t *testing.T) {
	l := New(0, 10, 0)
	if l != nil {
		t.Fatal("non-positive rps must disable limiting")
	}
	if !l.Allow("any", time.Now()) || l.Len() != 0 {
		t.Fatal("nil limiter must allow")
	}
	l.Sweep(time.Now())
}
