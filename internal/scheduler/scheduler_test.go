package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chebizarro/nostr-git-sub004/internal/gitbackend"
)

type fakeEvictor struct {
	calls  int32
	maxAge time.Duration
}

func (f *fakeEvictor) ClearAllOldCache(maxAge time.Duration) (int64, error) {
	atomic.AddInt32(&f.calls, 1)
	f.maxAge = maxAge
	return 3, nil
}

func TestStartRunsInitialEvictionImmediately(t *testing.T) {
	evictor := &fakeEvictor{}
	svc := NewService(evictor, 10*time.Minute)
	if err := svc.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer svc.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(&evictor.calls) > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected at least one eviction call shortly after Start")
}

func TestNewServiceDefaultsMaxAge(t *testing.T) {
	svc := NewService(&fakeEvictor{}, 0)
	if svc.maxAge != DefaultCacheMaxAge {
		t.Errorf("expected default max age %v, got %v", DefaultCacheMaxAge, svc.maxAge)
	}
}

type fakeChecker struct {
	stale map[string]bool
	syncs int32
}

func (f *fakeChecker) NeedsUpdate(ctx context.Context, dir, repoAddr string) (bool, error) {
	return f.stale[dir], nil
}

func (f *fakeChecker) SyncWithRemote(ctx context.Context, repoAddr, dir, branch string) ([]gitbackend.RefUpdate, error) {
	atomic.AddInt32(&f.syncs, 1)
	return nil, nil
}

func TestSweepFreshnessSyncsOnlyStaleRepos(t *testing.T) {
	checker := &fakeChecker{stale: map[string]bool{"/ws/a": true, "/ws/b": false}}
	svc := NewService(&fakeEvictor{}, time.Minute)

	repos := []TrackedRepo{
		{RepoAddr: "30617:pk:a", Dir: "/ws/a", Branch: "main"},
		{RepoAddr: "30617:pk:b", Dir: "/ws/b", Branch: "main"},
	}
	if err := svc.RegisterFreshnessSweep(checker, func() []TrackedRepo { return repos }); err != nil {
		t.Fatalf("RegisterFreshnessSweep: %v", err)
	}

	svc.sweepFreshness()

	if got := atomic.LoadInt32(&checker.syncs); got != 1 {
		t.Errorf("expected exactly 1 sync for the stale repo, got %d", got)
	}
}

func TestSweepFreshnessNoopWithoutRegistration(t *testing.T) {
	svc := NewService(&fakeEvictor{}, time.Minute)
	svc.sweepFreshness() // must not panic when checker/listRepos are nil
}

func TestStopIsSafeBeforeStart(t *testing.T) {
	svc := NewService(&fakeEvictor{}, time.Minute)
	svc.Stop()
}
