package bridge

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerRunsJobsUntilCancelled(t *testing.T) {
	var runs, failures atomic.Int32

	s := NewScheduler(
		Job{Name: "count", Interval: 5 * time.Millisecond, Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		}},
		Job{Name: "fail", Interval: 5 * time.Millisecond, Run: func(ctx context.Context) error {
			failures.Add(1)
			return errors.New("boom")
		}},
		Job{Name: "disabled", Interval: 0, Run: func(ctx context.Context) error {
			t.Error("disabled job must not run")
			return nil
		}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	waitFor(t, func() bool { return runs.Load() >= 2 && failures.Load() >= 2 })

	cancel()
	s.Wait()

	n := runs.Load()
	time.Sleep(20 * time.Millisecond)
	if runs.Load() != n {
		t.Fatalf("job kept running after cancel")
	}
}
