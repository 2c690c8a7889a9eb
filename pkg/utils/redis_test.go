package utils

import (
	"context"
	"testing"
	"time"
)

func TestLockReleaseScriptCompiles(t *testing.T) {
	if lockReleaseScript == nil {
		t.Fatalf("expected release script to be initialized")
	}
}

func TestRedisLocker_RejectsBadArgs(t *testing.T) {
	var l *RedisLocker
	if _, _, err := l.TryLock(context.Background(), "x", time.Second); err == nil {
		t.Fatalf("expected error for nil locker")
	}
	l = NewRedisLocker(nil, "")
	if l.prefix != "lock:" {
		t.Fatalf("expected default prefix, got %q", l.prefix)
	}
	if _, _, err := l.TryLock(context.Background(), "x", time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
