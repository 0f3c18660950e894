package lock

import (
	"context"
	"testing"
	"time"
)

func TestLocalLeaseIsExclusive(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()

	release, ok, err := l.TryAcquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first acquire = %v, %v", ok, err)
	}
	if _, ok, _ := l.TryAcquire(ctx); ok {
		t.Fatal("second acquire succeeded while lease held")
	}

	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, _ := l.TryAcquire(ctx); !ok {
		t.Fatal("acquire after release failed")
	}
}

func TestRedisLeaseAlwaysExpires(t *testing.T) {
	tests := []struct {
		name string
		ttl  time.Duration
		want time.Duration
	}{
		{"configured", 30 * time.Second, 30 * time.Second},
		{"zero", 0, DefaultTTL},
		{"negative", -time.Second, DefaultTTL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewRedisLease(nil, "lock:test", tt.ttl).ttl; got != tt.want {
				t.Errorf("ttl = %v, want %v", got, tt.want)
			}
		})
	}
}
