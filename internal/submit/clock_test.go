package submit

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestManualClock_AdvanceRunsDueTimersInOrder(t *testing.T) {
	clock := NewManualClock(start)

	var fired []string
	clock.AfterFunc(8*time.Second, func() { fired = append(fired, "error") })
	clock.AfterFunc(5*time.Second, func() { fired = append(fired, "success") })
	clock.AfterFunc(5*time.Second, func() { fired = append(fired, "success-2") })
	if got := clock.Pending(); got != 3 {
		t.Fatalf("Pending() = %d, want 3", got)
	}

	clock.Advance(5 * time.Second)
	if diff := cmp.Diff([]string{"success", "success-2"}, fired); diff != "" {
		t.Errorf("fired mismatch (-want +got):\n%s", diff)
	}
	if got := clock.Pending(); got != 1 {
		t.Errorf("Pending() = %d, want 1", got)
	}
	if got := clock.Now(); !got.Equal(start.Add(5 * time.Second)) {
		t.Errorf("Now() = %v", got)
	}
}

func TestManualClock_Stop(t *testing.T) {
	clock := NewManualClock(start)

	ran := false
	stopped := clock.AfterFunc(time.Second, func() { ran = true })
	fired := clock.AfterFunc(time.Second, func() {})

	if !stopped.Stop() {
		t.Error("Stop() on a pending timer should report true")
	}
	if stopped.Stop() {
		t.Error("second Stop() should report false")
	}
	if got := clock.Pending(); got != 1 {
		t.Errorf("Pending() = %d, want 1", got)
	}

	clock.Advance(time.Second)
	if ran {
		t.Error("stopped timer should not run")
	}
	if fired.Stop() {
		t.Error("Stop() after the timer fired should report false")
	}
	if got := clock.Pending(); got != 0 {
		t.Errorf("Pending() = %d, want 0", got)
	}
}
