package clock

import (
	"context"
	"testing"
	"time"
)

func TestUntilNextTick(t *testing.T) {
	base := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		now      time.Time
		interval time.Duration
		want     time.Duration
	}{
		{"on boundary", base, 10 * time.Second, 10 * time.Second},
		{"mid interval", base.Add(3 * time.Second), 10 * time.Second, 7 * time.Second},
		{"fractional", base.Add(1500 * time.Millisecond), time.Second, 500 * time.Millisecond},
		{"one second", base.Add(59*time.Second + 250*time.Millisecond), time.Second, 750 * time.Millisecond},
		{"zero interval", base, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UntilNextTick(tt.now, tt.interval)
			if got != tt.want {
				t.Errorf("UntilNextTick(%v, %v) = %v, want %v", tt.now, tt.interval, got, tt.want)
			}
		})
	}
}

// Пробуждение после UntilNextTick всегда попадает на границу интервала.
func TestUntilNextTick_LandsOnBoundary(t *testing.T) {
	start := time.Date(2025, 3, 1, 8, 17, 23, 123456789, time.UTC)
	for _, interval := range []time.Duration{time.Second, 2 * time.Second, 5 * time.Second, 10 * time.Second, 30 * time.Second} {
		wake := start.Add(UntilNextTick(start, interval))
		if wake.UnixNano()%int64(interval) != 0 {
			t.Errorf("interval %v: пробуждение %v не на границе", interval, wake)
		}
		if !wake.After(start) {
			t.Errorf("interval %v: пробуждение %v не позже %v", interval, wake, start)
		}
	}
}

func TestSystem_SleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	begin := time.Now()
	err := System{}.Sleep(ctx, time.Hour)
	if err != context.Canceled {
		t.Fatalf("ожидали context.Canceled, получили %v", err)
	}
	if time.Since(begin) > time.Second {
		t.Error("Sleep должен прерываться отменой ctx")
	}
}

func TestSystem_SleepShort(t *testing.T) {
	if err := (System{}).Sleep(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("Sleep: %v", err)
	}
}

func TestStatus_Warning(t *testing.T) {
	tests := []struct {
		name string
		s    Status
		want bool
	}{
		{"unknown platform", Status{}, false},
		{"synced", Status{Known: true, Synced: true, MaxError: 10 * time.Millisecond}, false},
		{"unsynced", Status{Known: true}, true},
		{"large error", Status{Known: true, Synced: true, MaxError: 16 * time.Second}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.Warning() != ""; got != tt.want {
				t.Errorf("Warning() = %q, want warning=%v", tt.s.Warning(), tt.want)
			}
		})
	}
}
