package gitsync

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chebizarro/nostr-git-sub004/internal/cache"
	"github.com/chebizarro/nostr-git-sub004/internal/fsiface"
	"github.com/chebizarro/nostr-git-sub004/internal/gitbackend"
)

type fakeBackend struct {
	mu         sync.Mutex
	cloneCalls int32
	depth      int
	refs       []gitbackend.RefUpdate
}

func (f *fakeBackend) Clone(ctx context.Context, opts gitbackend.CloneOptions) ([]gitbackend.RefUpdate, error) {
	atomic.AddInt32(&f.cloneCalls, 1)
	time.Sleep(10 * time.Millisecond) // widen the race window for coalescing tests
	f.mu.Lock()
	defer f.mu.Unlock()
	if opts.Shallow {
		f.depth = opts.Depth
	} else if opts.RefsOnly {
		f.depth = 0
	} else {
		f.depth = 1 << 30
	}
	return f.refs, nil
}

func (f *fakeBackend) Fetch(ctx context.Context, opts gitbackend.FetchOptions) ([]gitbackend.RefUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.depth += opts.Deepen
	return f.refs, nil
}

func (f *fakeBackend) Push(ctx context.Context, opts gitbackend.PushOptions) error { return nil }

func (f *fakeBackend) ResolveRef(ctx context.Context, dir, ref string) (string, error) {
	return "deadbeef", nil
}

func (f *fakeBackend) ListRefs(ctx context.Context, dir string) ([]gitbackend.RefUpdate, error) {
	return f.refs, nil
}

func (f *fakeBackend) AnalyzeMerge(ctx context.Context, q gitbackend.MergeAnalysisQuery) (*gitbackend.MergeAnalysisResult, error) {
	return &gitbackend.MergeAnalysisResult{}, nil
}

func (f *fakeBackend) ApplyPatch(ctx context.Context, dir, diff, baseCommit string) (string, error) {
	return "newoid", nil
}

func (f *fakeBackend) TreeDiff(ctx context.Context, dir, oldOID, newOID string) ([]gitbackend.TreeDiffEntry, error) {
	return nil, nil
}

func (f *fakeBackend) Diff(ctx context.Context, dir, base, head string) (string, error) {
	return "", nil
}

func (f *fakeBackend) CreateBranch(ctx context.Context, dir, name, fromOID string) error { return nil }

func (f *fakeBackend) CurrentDepth(ctx context.Context, dir string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.depth, nil
}

// realFs delegates to the OS so gitsync's filesystem checks behave exactly
// like they would in production, scoped to a t.TempDir().
type realFs struct{}

func (realFs) MkdirAll(ctx context.Context, path string) error { return os.MkdirAll(path, 0o755) }
func (realFs) Stat(ctx context.Context, path string) (*fsiface.FileInfo, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &fsiface.FileInfo{Path: path, Size: fi.Size(), IsDir: fi.IsDir(), ModTime: fi.ModTime()}, nil
}
func (realFs) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}
func (realFs) RemoveAll(ctx context.Context, path string) error { return os.RemoveAll(path) }
func (realFs) ReadDir(ctx context.Context, path string) ([]fsiface.FileInfo, error) {
	return nil, nil
}
func (realFs) Open(ctx context.Context, path string) (io.ReadCloser, error)    { return os.Open(path) }
func (realFs) Create(ctx context.Context, path string) (io.WriteCloser, error) { return os.Create(path) }
func (realFs) DiskUsage(ctx context.Context, path string) (int64, error)       { return 0, nil }

func TestSmartInitializeClonesOnce(t *testing.T) {
	root := t.TempDir()
	backend := &fakeBackend{refs: []gitbackend.RefUpdate{{Name: "refs/heads/main", OID: "abc"}}}
	mgr := NewManager(backend, realFs{}, root, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.SmartInitialize(context.Background(), "30617:abc:widgets", InitOptions{
				Tier: TierShallow, CloneURL: "https://github.com/acme/widgets.git",
			})
			if err != nil {
				t.Errorf("SmartInitialize: %v", err)
			}
		}()
	}
	wg.Wait()

	if backend.cloneCalls != 1 {
		t.Errorf("expected exactly one clone from concurrent callers (singleflight should coalesce them into one build), got %d", backend.cloneCalls)
	}
}

func TestResolveBranchFallsBackToMain(t *testing.T) {
	root := t.TempDir()
	backend := &fakeBackend{refs: []gitbackend.RefUpdate{{Name: "refs/heads/main"}}}
	mgr := NewManager(backend, realFs{}, root, nil)

	branch, err := mgr.ResolveBranch(context.Background(), root, "trunk", false)
	if err != nil {
		t.Fatalf("ResolveBranch: %v", err)
	}
	if branch != "main" {
		t.Errorf("expected fallback to main, got %q", branch)
	}
}

func TestResolveBranchPrefersCandidate(t *testing.T) {
	root := t.TempDir()
	backend := &fakeBackend{refs: []gitbackend.RefUpdate{{Name: "refs/heads/main"}, {Name: "refs/heads/develop"}}}
	mgr := NewManager(backend, realFs{}, root, nil)

	branch, err := mgr.ResolveBranch(context.Background(), root, "develop", false)
	if err != nil {
		t.Fatalf("ResolveBranch: %v", err)
	}
	if branch != "develop" {
		t.Errorf("expected develop, got %q", branch)
	}
}

func TestResolveBranchFallsThroughLadderToDevDev(t *testing.T) {
	root := t.TempDir()
	backend := &fakeBackend{refs: []gitbackend.RefUpdate{{Name: "refs/heads/dev"}}}
	mgr := NewManager(backend, realFs{}, root, nil)

	branch, err := mgr.ResolveBranch(context.Background(), root, "", false)
	if err != nil {
		t.Fatalf("ResolveBranch: %v", err)
	}
	if branch != "dev" {
		t.Errorf("expected ladder to fall through to dev, got %q", branch)
	}
}

func TestResolveBranchNonStrictFallsBackToFirstLocalBranch(t *testing.T) {
	root := t.TempDir()
	backend := &fakeBackend{refs: []gitbackend.RefUpdate{{Name: "refs/heads/feature-x"}}}
	mgr := NewManager(backend, realFs{}, root, nil)

	branch, err := mgr.ResolveBranch(context.Background(), root, "nonexistent", false)
	if err != nil {
		t.Fatalf("ResolveBranch: %v", err)
	}
	if branch != "feature-x" {
		t.Errorf("expected non-strict fallback to the first local branch, got %q", branch)
	}
}

func TestResolveBranchStrictReturnsRequestedVerbatimOnTotalMiss(t *testing.T) {
	root := t.TempDir()
	backend := &fakeBackend{} // a fresh ngit-relay host with no branches at all yet
	mgr := NewManager(backend, realFs{}, root, nil)

	branch, err := mgr.ResolveBranch(context.Background(), root, "feature-x", true)
	if err != nil {
		t.Fatalf("ResolveBranch: %v", err)
	}
	if branch != "feature-x" {
		t.Errorf("expected strict mode to return requested verbatim for a fresh tracking ref, got %q", branch)
	}
}

func TestResolveBranchNonStrictErrorsWhenNoBranchesExist(t *testing.T) {
	root := t.TempDir()
	backend := &fakeBackend{}
	mgr := NewManager(backend, realFs{}, root, nil)

	if _, err := mgr.ResolveBranch(context.Background(), root, "feature-x", false); err == nil {
		t.Fatal("expected an error when no local branches exist and strict mode is off")
	}
}

func TestEnsureFullCloneNoopWhenAlreadyFull(t *testing.T) {
	root := t.TempDir()
	backend := &fakeBackend{depth: 0}
	mgr := NewManager(backend, realFs{}, root, nil)
	if err := mgr.EnsureFullClone(context.Background(), root); err != nil {
		t.Fatalf("EnsureFullClone: %v", err)
	}
}

func TestWorkspacePathSanitizesRepoAddr(t *testing.T) {
	mgr := NewManager(&fakeBackend{}, realFs{}, "/workspaces", nil)
	got := mgr.WorkspacePath("30617:abcd1234:my/repo")
	if got == "" {
		t.Fatal("expected non-empty path")
	}
	if want := filepath.Join("/workspaces", "30617_abcd1234_my_repo"); got != want {
		t.Errorf("WorkspacePath = %q, want %q", got, want)
	}
}

func TestNeedsUpdateNoCacheEmptyRemoteIsFalse(t *testing.T) {
	root := t.TempDir()
	backend := &fakeBackend{} // no remote-tracking refs at all
	store := openTestCacheStore(t)
	mgr := NewManager(backend, realFs{}, root, store)

	needs, err := mgr.NeedsUpdate(context.Background(), root, "30617:pk:widgets")
	if err != nil {
		t.Fatalf("NeedsUpdate: %v", err)
	}
	if needs {
		t.Error("expected no-cache + empty remote heads to report false")
	}
}

func TestNeedsUpdateNoCacheNonemptyRemoteIsTrue(t *testing.T) {
	root := t.TempDir()
	backend := &fakeBackend{refs: []gitbackend.RefUpdate{{Name: "refs/remotes/origin/main", OID: "abc"}}}
	store := openTestCacheStore(t)
	mgr := NewManager(backend, realFs{}, root, store)

	needs, err := mgr.NeedsUpdate(context.Background(), root, "30617:pk:widgets")
	if err != nil {
		t.Fatalf("NeedsUpdate: %v", err)
	}
	if !needs {
		t.Error("expected no-cache + nonempty remote heads to report true")
	}
}

func TestNeedsUpdateComparesCachedHeadAgainstRemote(t *testing.T) {
	root := t.TempDir()
	store := openTestCacheStore(t)
	repoAddr := "30617:pk:widgets"
	if err := store.Put(cache.TableRepos, repoAddr, RepoCacheEntry{HeadCommit: "abc"}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	upToDate := &fakeBackend{refs: []gitbackend.RefUpdate{{Name: "refs/remotes/origin/main", OID: "abc"}}}
	mgr := NewManager(upToDate, realFs{}, root, store)
	needs, err := mgr.NeedsUpdate(context.Background(), root, repoAddr)
	if err != nil {
		t.Fatalf("NeedsUpdate: %v", err)
	}
	if needs {
		t.Error("expected matching cached/remote head to report false")
	}

	behind := &fakeBackend{refs: []gitbackend.RefUpdate{{Name: "refs/remotes/origin/main", OID: "def"}}}
	mgr = NewManager(behind, realFs{}, root, store)
	needs, err = mgr.NeedsUpdate(context.Background(), root, repoAddr)
	if err != nil {
		t.Fatalf("NeedsUpdate: %v", err)
	}
	if !needs {
		t.Error("expected diverging cached/remote head to report true")
	}
}

func TestNeedsUpdateNetworkProbeFailureDefaultsFalse(t *testing.T) {
	root := t.TempDir()
	store := openTestCacheStore(t)
	repoAddr := "30617:pk:widgets"
	if err := store.Put(cache.TableRepos, repoAddr, RepoCacheEntry{HeadCommit: "abc"}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	mgr := NewManager(&erroringBackend{}, realFs{}, root, store)

	needs, err := mgr.NeedsUpdate(context.Background(), root, repoAddr)
	if err != nil {
		t.Fatalf("NeedsUpdate: %v", err)
	}
	if needs {
		t.Error("expected a failed network probe to default to false, not force a sync")
	}
}

// erroringBackend fails every ListRefs call, simulating an unreachable remote.
type erroringBackend struct{ fakeBackend }

func (e *erroringBackend) ListRefs(ctx context.Context, dir string) ([]gitbackend.RefUpdate, error) {
	return nil, errProbeFailed
}

var errProbeFailed = errors.New("probe failed")

func openTestCacheStore(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.bolt"))
	if err != nil {
		t.Fatalf("open cache store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}
