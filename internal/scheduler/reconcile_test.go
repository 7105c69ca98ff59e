package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"passbot/internal/status"
	"passbot/internal/storage"
	"passbot/internal/tracker"
	"passbot/pkg/logx"
)

type memStore struct{}

func (memStore) LoadSubscriptions() (storage.Subscriptions, error) { return storage.Subscriptions{}, nil }
func (memStore) SaveSubscriptions(storage.Subscriptions) error     { return nil }
func (memStore) LoadModes() (storage.Modes, error)                 { return storage.Modes{}, nil }
func (memStore) SaveModes(storage.Modes) error                     { return nil }
func (memStore) LoadLabels() (storage.Labels, error)               { return storage.Labels{}, nil }
func (memStore) SaveLabels(storage.Labels) error                   { return nil }
func (memStore) Close() error                                      { return nil }

type fakeFetcher struct {
	mu       sync.Mutex
	percents map[string]*int
	fails    map[string]bool
	calls    int
}

func (f *fakeFetcher) Fetch(_ context.Context, id string) (*status.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fails[id] {
		return nil, errors.New("upstream unavailable")
	}
	return &status.Snapshot{
		ID:       id,
		Internal: status.InternalStatus{Name: "processing", Percent: f.percents[id]},
	}, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	statuses []string
	failures []string
}

func (n *fakeNotifier) NotifyStatus(_ context.Context, _ int64, snap *status.Snapshot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, snap.ID)
}

func (n *fakeNotifier) NotifyUnavailable(_ context.Context, _ int64, id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, id)
}

func percent(n int) *int { return &n }

func newSweepFixture(t *testing.T, fetch *fakeFetcher, notify *fakeNotifier) (*Service, *tracker.Engine) {
	t.Helper()
	eng := tracker.New(memStore{}, logx.Nop())
	svc := New(Config{FetchWorkers: 2}, eng, fetch, notify, logx.Nop())
	return svc, eng
}

func TestReconcileNotifiesOnChangeOnly(t *testing.T) {
	t.Parallel()
	fetch := &fakeFetcher{percents: map[string]*int{
		"2000000001": percent(30), // unchanged
		"2000000002": percent(45), // moved from 30
	}}
	notify := &fakeNotifier{}
	svc, eng := newSweepFixture(t, fetch, notify)

	eng.Add(1, "2000000001", percent(30))
	eng.Add(1, "2000000002", percent(30))

	svc.Reconcile(context.Background())

	if len(notify.statuses) != 1 || notify.statuses[0] != "2000000002" {
		t.Fatalf("statuses = %v, want [2000000002]", notify.statuses)
	}
	if len(notify.failures) != 0 {
		t.Fatalf("failures = %v, want none", notify.failures)
	}
	got, _ := eng.LastPercent(1, "2000000002")
	if got == nil || *got != 45 {
		t.Fatalf("stored percent = %v, want 45", got)
	}
}

func TestReconcileDailyModeAlwaysNotifies(t *testing.T) {
	t.Parallel()
	fetch := &fakeFetcher{percents: map[string]*int{"2000000001": percent(30)}}
	notify := &fakeNotifier{}
	svc, eng := newSweepFixture(t, fetch, notify)

	eng.Add(2, "2000000001", percent(30))
	eng.SetMode(2, storage.ModeDaily)

	svc.Reconcile(context.Background())

	if len(notify.statuses) != 1 {
		t.Fatalf("statuses = %v, want one entry", notify.statuses)
	}
}

func TestReconcileFetchFailureKeepsStoredPercent(t *testing.T) {
	t.Parallel()
	fetch := &fakeFetcher{
		percents: map[string]*int{"2000000002": percent(80)},
		fails:    map[string]bool{"2000000001": true},
	}
	notify := &fakeNotifier{}
	svc, eng := newSweepFixture(t, fetch, notify)

	eng.Add(3, "2000000001", percent(60))
	eng.Add(3, "2000000002", percent(70))

	svc.Reconcile(context.Background())

	if len(notify.failures) != 1 || notify.failures[0] != "2000000001" {
		t.Fatalf("failures = %v, want [2000000001]", notify.failures)
	}
	// The failed id keeps its last known value.
	got, _ := eng.LastPercent(3, "2000000001")
	if got == nil || *got != 60 {
		t.Fatalf("stored percent after failure = %v, want 60", got)
	}
	// The run went on and the healthy id was still processed.
	if len(notify.statuses) != 1 || notify.statuses[0] != "2000000002" {
		t.Fatalf("statuses = %v, want [2000000002]", notify.statuses)
	}
}

func TestReconcileNoSubscriptionsIsNoOp(t *testing.T) {
	t.Parallel()
	fetch := &fakeFetcher{}
	notify := &fakeNotifier{}
	svc, _ := newSweepFixture(t, fetch, notify)

	svc.Reconcile(context.Background())

	if fetch.calls != 0 {
		t.Fatalf("calls = %d, want 0", fetch.calls)
	}
	if len(notify.statuses) != 0 || len(notify.failures) != 0 {
		t.Fatal("no notifications expected without subscriptions")
	}
}

// blockingFetcher holds every fetch until released, keeping a sweep in
// flight long enough to overlap with concurrent reconfiguration.
type blockingFetcher struct {
	release chan struct{}
}

func (f *blockingFetcher) Fetch(ctx context.Context, id string) (*status.Snapshot, error) {
	select {
	case <-f.release:
	case <-ctx.Done():
	}
	return &status.Snapshot{
		ID:       id,
		Internal: status.InternalStatus{Name: "processing", Percent: percent(10)},
	}, nil
}

func TestApplyDuringSweep(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	fetch := &blockingFetcher{release: release}
	notify := &fakeNotifier{}

	eng := tracker.New(memStore{}, logx.Nop())
	svc := New(Config{Hour: 8, FetchWorkers: 2, FetchTimeout: time.Second}, eng, fetch, notify, logx.Nop())

	for i := 0; i < 8; i++ {
		eng.Add(1, fmt.Sprintf("20000000%02d", i), percent(20))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Reconcile(context.Background())
	}()

	// Reconfigure repeatedly while the sweep's fetches are in flight. The
	// running sweep must keep using its snapshot of the trigger settings.
	for i := 0; i < 50; i++ {
		svc.Apply(Config{
			Hour:         8,
			FetchWorkers: i%4 + 1,
			FetchTimeout: time.Duration(i+1) * time.Millisecond,
		})
	}

	close(release)
	<-done

	notify.mu.Lock()
	defer notify.mu.Unlock()
	if len(notify.statuses) != 8 {
		t.Fatalf("statuses = %d, want 8", len(notify.statuses))
	}
}

func TestReconcileCoversEveryChat(t *testing.T) {
	t.Parallel()
	fetch := &fakeFetcher{percents: map[string]*int{
		"2000000001": percent(10),
		"2000000002": percent(20),
		"2000000003": percent(30),
	}}
	notify := &fakeNotifier{}
	svc, eng := newSweepFixture(t, fetch, notify)

	eng.Add(10, "2000000001", nil)
	eng.Add(11, "2000000002", nil)
	eng.Add(11, "2000000003", nil)

	svc.Reconcile(context.Background())

	if fetch.calls != 3 {
		t.Fatalf("calls = %d, want 3", fetch.calls)
	}
	if len(notify.statuses) != 3 {
		t.Fatalf("statuses = %v, want 3 entries", notify.statuses)
	}
}
