package provisioner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/todoroff/multipass-ensure/internal/models"
)

func TestEnsureReturnsExistingVM(t *testing.T) {
	mgr := &fakeManager{instances: []models.Instance{
		{Name: "N", State: "Running", Release: "22.04", IPv4: []string{"10.0.0.5"}},
	}}
	var slept []time.Duration
	p := New(mgr, Options{Jitter: noSleepJitter(&slept), TempDir: t.TempDir()})

	got, err := p.Ensure(context.Background(), testRequest("N"))
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	want := &models.VMInfo{Name: "N", IP: "10.0.0.5", Release: "22.04", State: "Running"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected info (-want +got):\n%s", diff)
	}
	if mgr.launchCount() != 0 {
		t.Fatalf("existing vm must not be launched again")
	}
	if len(slept) != 0 {
		t.Fatalf("existing vm must not wait for jitter, slept %v", slept)
	}
}

func TestEnsureCreatesMissingVM(t *testing.T) {
	mgr := &fakeManager{}
	var slept []time.Duration
	p := New(mgr, Options{Jitter: noSleepJitter(&slept), TempDir: t.TempDir()})

	got, err := p.Ensure(context.Background(), testRequest("fresh"))
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if got.Name != "fresh" || got.IP != "192.168.64.10" {
		t.Fatalf("unexpected info: %#v", got)
	}
	if mgr.launchCount() != 1 {
		t.Fatalf("expected one launch, got %d", mgr.launchCount())
	}
	if len(slept) != 1 || slept[0] < time.Second || slept[0] >= 10*time.Second {
		t.Fatalf("expected one jitter wait in [1s, 10s), got %v", slept)
	}
	for i, refresh := range mgr.refreshes {
		if !refresh {
			t.Fatalf("listing %d used the cache; ensure must always see a fresh listing", i)
		}
	}
}

func TestEnsureIsIdempotent(t *testing.T) {
	mgr := &fakeManager{}
	var slept []time.Duration
	p := New(mgr, Options{Jitter: noSleepJitter(&slept), TempDir: t.TempDir()})
	req := testRequest("repeat")

	first, err := p.Ensure(context.Background(), req)
	if err != nil {
		t.Fatalf("first Ensure: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := p.Ensure(context.Background(), req)
		if err != nil {
			t.Fatalf("Ensure #%d: %v", i+2, err)
		}
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("result changed between invocations (-first +again):\n%s", diff)
		}
	}
	if mgr.launchCount() != 1 {
		t.Fatalf("expected exactly one launch, got %d", mgr.launchCount())
	}
}

func TestEnsureDifferentNamesInParallel(t *testing.T) {
	mgr := &fakeManager{}
	j := DefaultJitter()
	j.Sleep = func(context.Context, time.Duration) error { return nil }
	p := New(mgr, Options{Jitter: j, TempDir: t.TempDir()})

	names := []string{"k8s-master", "k8s-worker-1", "k8s-worker-2"}
	var wg sync.WaitGroup
	errs := make([]error, len(names))
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			_, errs[i] = p.Ensure(context.Background(), testRequest(name))
		}(i, name)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Ensure %s: %v", names[i], err)
		}
	}
	if mgr.launchCount() != len(names) {
		t.Fatalf("expected %d launches, got %d", len(names), mgr.launchCount())
	}
}

func TestEnsureLookupFailureAborts(t *testing.T) {
	boom := errors.New("multipass daemon unavailable")
	mgr := &fakeManager{listErr: boom}
	var slept []time.Duration
	p := New(mgr, Options{Jitter: noSleepJitter(&slept)})

	if _, err := p.Ensure(context.Background(), testRequest("vm")); !errors.Is(err, boom) {
		t.Fatalf("expected lookup error, got %v", err)
	}
	if mgr.launchCount() != 0 || len(slept) != 0 {
		t.Fatalf("lookup failure must abort before jitter and launch")
	}
}

func TestEnsureNoAddressAborts(t *testing.T) {
	mgr := &fakeManager{instances: []models.Instance{{Name: "vm", State: "Starting"}}}
	var slept []time.Duration
	p := New(mgr, Options{Jitter: noSleepJitter(&slept)})

	if _, err := p.Ensure(context.Background(), testRequest("vm")); !errors.Is(err, ErrNoAddress) {
		t.Fatalf("expected ErrNoAddress, got %v", err)
	}
	if mgr.launchCount() != 0 {
		t.Fatalf("vm without address must not be relaunched")
	}
}

func TestEnsureCancelledDuringJitter(t *testing.T) {
	mgr := &fakeManager{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(mgr, Options{Jitter: DefaultJitter(), TempDir: t.TempDir()})

	_, err := p.Ensure(ctx, testRequest("vm"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	var perr *Error
	if !errors.As(err, &perr) || perr.Op != OpJitter {
		t.Fatalf("expected jitter error, got %#v", err)
	}
	if mgr.launchCount() != 0 {
		t.Fatalf("cancelled invocation must not launch")
	}
}

type stubLock struct {
	locked   int
	unlocked int
	err      error
}

func (l *stubLock) Lock(context.Context) (func() error, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.locked++
	return func() error {
		l.unlocked++
		return nil
	}, nil
}

func TestEnsureRechecksUnderLock(t *testing.T) {
	mgr := &fakeManager{}
	// The second listing happens under the lock; pretend another invocation
	// finished launching the vm in between.
	mgr.beforeList = func(call int) {
		if call == 2 {
			mgr.mu.Lock()
			mgr.instances = append(mgr.instances, models.Instance{
				Name: "vm", State: "Running", Release: "22.04", IPv4: []string{"10.0.0.7"},
			})
			mgr.mu.Unlock()
		}
	}
	lock := &stubLock{}
	var slept []time.Duration
	p := New(mgr, Options{Jitter: noSleepJitter(&slept), Lock: lock, TempDir: t.TempDir()})

	got, err := p.Ensure(context.Background(), testRequest("vm"))
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if got.IP != "10.0.0.7" {
		t.Fatalf("expected vm launched by the other invocation, got %#v", got)
	}
	if mgr.launchCount() != 0 {
		t.Fatalf("expected no launch, got %d", mgr.launchCount())
	}
	if lock.locked != 1 || lock.unlocked != 1 {
		t.Fatalf("expected lock to be taken and released once, got %d/%d", lock.locked, lock.unlocked)
	}
}

func TestEnsureLockFailure(t *testing.T) {
	mgr := &fakeManager{}
	lockErr := errors.New("permission denied")
	var slept []time.Duration
	p := New(mgr, Options{Jitter: noSleepJitter(&slept), Lock: &stubLock{err: lockErr}})

	_, err := p.Ensure(context.Background(), testRequest("vm"))
	var perr *Error
	if !errors.As(err, &perr) || perr.Op != OpLock || !errors.Is(err, lockErr) {
		t.Fatalf("expected lock error, got %v", err)
	}
	if mgr.launchCount() != 0 {
		t.Fatalf("lock failure must not launch")
	}
}
