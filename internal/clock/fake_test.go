package clock

import (
	"context"
	"testing"
	"time"
)

func TestFakeClockFiresTimersOnAdvance(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFakeClock(start)

	early := c.After(time.Second)
	late := c.After(3 * time.Second)

	c.Advance(2 * time.Second)

	select {
	case got := <-early:
		if !got.Equal(start.Add(2 * time.Second)) {
			t.Fatalf("expected fire time %v, got %v", start.Add(2*time.Second), got)
		}
	default:
		t.Fatalf("expected early timer to fire")
	}

	select {
	case <-late:
		t.Fatalf("late timer fired too soon")
	default:
	}
	if c.Pending() != 1 {
		t.Fatalf("expected 1 pending timer, got %d", c.Pending())
	}

	c.Advance(time.Second)
	select {
	case <-late:
	default:
		t.Fatalf("expected late timer to fire")
	}
}

func TestFakeClockZeroDurationFiresImmediately(t *testing.T) {
	c := NewFakeClock(time.Time{})
	select {
	case <-c.After(0):
	default:
		t.Fatalf("expected immediate fire")
	}
}

func TestSleepHonoursContext(t *testing.T) {
	c := NewFakeClock(time.Time{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Sleep(ctx, c, time.Minute); err == nil {
		t.Fatalf("expected context error")
	}
}
