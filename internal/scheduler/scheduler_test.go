// internal/scheduler/scheduler_test.go
package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/songforge/internal/state"
	"github.com/user/songforge/internal/types"
)

func TestSchedulerFiresJob(t *testing.T) {
	sched := New()

	var fires atomic.Int32
	if err := sched.AddJob("every-second", "* * * * * *", func() {
		fires.Add(1)
	}); err != nil {
		t.Fatal(err)
	}
	sched.Start()
	defer sched.Stop()

	// Wait up to 2.5 seconds for at least one fire
	deadline := time.After(2500 * time.Millisecond)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			t.Fatalf("job did not fire within 2.5s, fires=%d", fires.Load())
		case <-ticker.C:
			if fires.Load() > 0 {
				return
			}
		}
	}
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	sched := New()
	if err := sched.AddJob("broken", "not a schedule", func() {}); err == nil {
		t.Fatal("expected error for invalid schedule, got nil")
	}
}

func TestSchedulerReloadKeepsJobs(t *testing.T) {
	sched := New()

	var fires atomic.Int32
	if err := sched.AddJob("every-second", "* * * * * *", func() {
		fires.Add(1)
	}); err != nil {
		t.Fatal(err)
	}
	if err := sched.Reload(); err != nil {
		t.Fatal(err)
	}
	defer sched.Stop()

	deadline := time.After(2500 * time.Millisecond)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			t.Fatalf("job did not fire after reload, fires=%d", fires.Load())
		case <-ticker.C:
			if fires.Load() > 0 {
				return
			}
		}
	}
}

type fakeGen struct {
	calls atomic.Int32
}

func (f *fakeGen) Health(ctx context.Context) error {
	f.calls.Add(1)
	return errors.New("connection refused")
}

func (f *fakeGen) Generate(ctx context.Context, params *types.GenerationParams) (*types.GenerationResult, error) {
	return nil, errors.New("not used")
}

func TestHealthProbeCallsBackend(t *testing.T) {
	gen := &fakeGen{}
	probe := HealthProbe(gen, time.Second)

	probe()
	probe()
	if n := gen.calls.Load(); n != 2 {
		t.Errorf("health calls = %d, want 2", n)
	}
}

func TestStuckAuditReportsOldSessions(t *testing.T) {
	tracker := state.NewTracker(8)
	tracker.CreateSession("s1")
	time.Sleep(5 * time.Millisecond)

	audit := StuckAudit(tracker, time.Millisecond)
	audit()

	if got := tracker.StuckSessions(time.Millisecond); len(got) != 1 || got[0] != "s1" {
		t.Errorf("stuck sessions = %v", got)
	}
}
