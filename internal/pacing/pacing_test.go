package pacing

import (
	"testing"
	"time"
)

// TestPacingSteadyState reproduces spec.md §8's property 6: with a fixed
// interval and no rate changes, the timer emits at most one permit per
// interval in steady state.
func TestPacingSteadyState(t *testing.T) {
	interval := 100 * time.Millisecond
	timer := New(0, interval)

	now := time.Duration(0)
	for i := 0; i < 20; i++ {
		res := timer.Poll(now)
		if res.Decision != Pending && res.Decision != Send {
			t.Fatalf("iteration %d: unexpected decision %v", i, res.Decision)
		}
		if res.Decision == Send && res.Count > 1 {
			t.Fatalf("iteration %d: steady-state burst count %d > 1", i, res.Count)
		}
		now = res.WakeAt
	}
}

func TestPacingBurstIsCapped(t *testing.T) {
	interval := 10 * time.Millisecond
	timer := New(0, interval)

	// Jump far past many intervals in one poll.
	res := timer.Poll(1000 * time.Millisecond)
	if res.Decision != Send {
		t.Fatalf("Decision = %v, want Send", res.Decision)
	}
	if res.Count != MaxBurst {
		t.Fatalf("Count = %d, want MaxBurst (%d)", res.Count, MaxBurst)
	}
}

// TestPacingClockScenario reproduces spec.md §8's S6 scenario: starting
// interval 900ms, a rate change to 500ms at t=3s, and a rate change to
// 1500ms at t=20s, with a final Close at t=40s.
func TestPacingClockScenario(t *testing.T) {
	timer := New(0, 900*time.Millisecond)

	var sends []time.Duration
	now := timer.Poll(0).WakeAt // first wake candidate, at t=900ms

	rateChangeAt3s := false
	rateChangeAt20s := false

	for {
		if !rateChangeAt3s && now >= 3*time.Second {
			timer.SetRate(3*time.Second, 500*time.Millisecond)
			rateChangeAt3s = true
			now = timer.lastSend + timer.interval
			continue
		}
		if !rateChangeAt20s && now >= 20*time.Second {
			timer.SetRate(20*time.Second, 1500*time.Millisecond)
			rateChangeAt20s = true
			now = timer.lastSend + timer.interval
			continue
		}

		res := timer.Poll(now)
		if res.Decision == Close {
			if now != 40*time.Second {
				t.Fatalf("Close at %v, want 40s", now)
			}
			break
		}
		if res.Decision == Send {
			sends = append(sends, now)
		}
		now = res.WakeAt

		if len(sends) > 100 {
			t.Fatalf("too many sends without reaching Close")
		}
	}

	want := []time.Duration{
		900 * time.Millisecond,
		1800 * time.Millisecond,
		2700 * time.Millisecond,
		3200 * time.Millisecond,
		3700 * time.Millisecond,
	}
	if len(sends) < len(want) {
		t.Fatalf("got %d sends, want at least %d", len(sends), len(want))
	}
	for i, w := range want {
		if sends[i] != w {
			t.Fatalf("send %d = %v, want %v", i, sends[i], w)
		}
	}

	foundPostChange := false
	for _, s := range sends {
		if s == 21200*time.Millisecond {
			foundPostChange = true
		}
	}
	if !foundPostChange {
		t.Fatalf("expected a send at 21200ms after the t=20s rate change")
	}
}
