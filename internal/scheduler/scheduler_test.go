package scheduler

import (
	"context"
	"testing"
	"time"

	"passbot/internal/tracker"
	"passbot/pkg/logx"
)

func newLifecycleService(t *testing.T, cfg Config) *Service {
	t.Helper()
	eng := tracker.New(memStore{}, logx.Nop())
	return New(cfg, eng, &fakeFetcher{}, &fakeNotifier{}, logx.Nop())
}

func TestStartStop(t *testing.T) {
	t.Parallel()
	svc := newLifecycleService(t, Config{Hour: 8})

	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Second Start is a no-op, not an error.
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	svc.Stop(ctx)
	// Stop after Stop must not hang or panic.
	svc.Stop(ctx)
}

func TestStartRejectsBadConfig(t *testing.T) {
	t.Parallel()

	if err := newLifecycleService(t, Config{Hour: 24}).Start(context.Background()); err == nil {
		t.Fatal("expected error for hour out of range")
	}
	if err := newLifecycleService(t, Config{Hour: 8, Timezone: "Mars/Olympus"}).Start(context.Background()); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestApplyWithoutRestartKeepsRunning(t *testing.T) {
	t.Parallel()
	svc := newLifecycleService(t, Config{Hour: 8, FetchWorkers: 2})

	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		svc.Stop(ctx)
	}()

	// Worker count changes don't restart the cron entry.
	svc.Apply(Config{Hour: 8, FetchWorkers: 6})
	svc.mu.Lock()
	got := workerCount(svc.cfg)
	svc.mu.Unlock()
	if got != 6 {
		t.Fatalf("workerCount = %d, want 6", got)
	}

	// A changed hour reschedules in place.
	svc.Apply(Config{Hour: 9, FetchWorkers: 6})
	svc.mu.Lock()
	running := svc.c != nil
	svc.mu.Unlock()
	if !running {
		t.Fatal("cron entry should be running after reschedule")
	}
}
