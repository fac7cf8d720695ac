// Package gitsync coordinates tiered repository materialization: deciding
// how much history to fetch, keeping a local workspace fresh against its
// remotes, and making sure two goroutines never clone or fetch the same
// repo+branch at once.
package gitsync

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/chebizarro/nostr-git-sub004/internal/cache"
	"github.com/chebizarro/nostr-git-sub004/internal/fsiface"
	"github.com/chebizarro/nostr-git-sub004/internal/gitbackend"
	nerrors "github.com/chebizarro/nostr-git-sub004/pkg/errors"
	"github.com/chebizarro/nostr-git-sub004/pkg/logger"
	"github.com/chebizarro/nostr-git-sub004/pkg/telemetry"
)

// needsUpdateCacheMaxAge is needsUpdate's staleness window: a repos cache
// entry older than this is treated as untrustworthy regardless of what it
// says, matching scheduler.DefaultCacheMaxAge.
const needsUpdateCacheMaxAge = 60 * time.Minute

// Tier selects how much history a clone should materialize.
type Tier int

const (
	// TierRefsOnly fetches only refs, no objects — enough to answer
	// "does this branch/tag exist" without downloading a tree.
	TierRefsOnly Tier = iota
	// TierShallow fetches a depth-limited history, the default for browsing.
	TierShallow
	// TierFull fetches complete history, required for merge-base analysis
	// across long-diverged branches.
	TierFull
)

// DefaultShallowDepth is used when a caller asks for TierShallow without
// specifying a depth.
const DefaultShallowDepth = 50

// InitOptions configures SmartInitialize.
type InitOptions struct {
	Tier     Tier
	Depth    int // overrides DefaultShallowDepth when Tier == TierShallow
	Branch   string
	CloneURL string
}

// Manager owns the singleflight/lock bookkeeping around a GitBackend.
type Manager struct {
	backend       gitbackend.GitBackend
	fs            fsiface.Fs
	workspaceRoot string
	store         *cache.Store
	group         singleflight.Group
}

// NewManager builds a Manager rooted at workspaceRoot, where each repo gets
// its own subdirectory keyed by repo address. store may be nil, in which
// case NeedsUpdate always treats the repo as uncached.
func NewManager(backend gitbackend.GitBackend, fs fsiface.Fs, workspaceRoot string, store *cache.Store) *Manager {
	return &Manager{backend: backend, fs: fs, workspaceRoot: workspaceRoot, store: store}
}

// RepoCacheEntry is the repos cache table's record shape: what smartInitialize
// and syncWithRemote know about a workspace's materialized tier and head.
type RepoCacheEntry struct {
	DataLevel  string   `json:"dataLevel"`
	HeadCommit string   `json:"headCommit"`
	Branches   []string `json:"branches"`
	CloneURLs  []string `json:"cloneUrls"`
}

// WorkspacePath returns the local directory a repo address materializes to.
func (m *Manager) WorkspacePath(repoAddr string) string {
	return filepath.Join(m.workspaceRoot, safeDirName(repoAddr))
}

func safeDirName(repoAddr string) string {
	out := make([]byte, 0, len(repoAddr))
	for _, r := range repoAddr {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, byte(r))
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

func (m *Manager) lockFile(repoAddr string) *flock.Flock {
	return flock.New(filepath.Join(m.workspaceRoot, safeDirName(repoAddr)+".lock"))
}

// SmartInitialize materializes a repo workspace if absent, or verifies the
// existing one matches the requested tier, coalescing concurrent callers for
// the same repoAddr into a single clone.
func (m *Manager) SmartInitialize(ctx context.Context, repoAddr string, opts InitOptions) ([]gitbackend.RefUpdate, error) {
	v, err, _ := m.group.Do(repoAddr, func() (interface{}, error) {
		return m.smartInitializeLocked(ctx, repoAddr, opts)
	})
	if err != nil {
		return nil, err
	}
	return v.([]gitbackend.RefUpdate), nil
}

func (m *Manager) smartInitializeLocked(ctx context.Context, repoAddr string, opts InitOptions) ([]gitbackend.RefUpdate, error) {
	dir := m.WorkspacePath(repoAddr)
	lock := m.lockFile(repoAddr)
	locked, err := lock.TryLockContext(ctx, 200*time.Millisecond)
	if err != nil || !locked {
		return nil, nerrors.Wrap(nerrors.Timeout, "acquire workspace lock for "+repoAddr, err)
	}
	defer lock.Unlock()

	if err := m.fs.MkdirAll(ctx, dir); err != nil {
		return nil, nerrors.Wrap(nerrors.Network, "create workspace dir", err)
	}

	start := time.Now()
	exists, err := m.fs.Exists(ctx, filepath.Join(dir, ".git"))
	if err != nil {
		return nil, nerrors.Wrap(nerrors.Network, "check workspace existence", err)
	}

	var refs []gitbackend.RefUpdate
	if !exists {
		refs, err = m.clone(ctx, dir, opts)
	} else {
		refs, err = m.ensureTier(ctx, dir, opts)
	}
	telemetry.GetMetrics().RecordClone(ctx, tierName(opts.Tier), err == nil, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	m.cacheRepoState(repoAddr, tierName(opts.Tier), opts.CloneURL, refs)
	logger.Info("workspace initialized", zap.String("repoAddr", repoAddr), zap.String("tier", tierName(opts.Tier)))
	return refs, nil
}

func (m *Manager) clone(ctx context.Context, dir string, opts InitOptions) ([]gitbackend.RefUpdate, error) {
	co := gitbackend.CloneOptions{
		URL:    opts.CloneURL,
		Dir:    dir,
		Branch: opts.Branch,
	}
	switch opts.Tier {
	case TierRefsOnly:
		co.RefsOnly = true
	case TierShallow:
		co.Shallow = true
		co.Depth = opts.Depth
		if co.Depth <= 0 {
			co.Depth = DefaultShallowDepth
		}
	case TierFull:
		// full history, no depth/refs-only flags
	}
	return m.backend.Clone(ctx, co)
}

// EnsureShallow guarantees dir has at least depth commits of history
// (DefaultShallowDepth when depth <= 0), deepening an existing refs-only or
// shallower clone if needed.
func (m *Manager) EnsureShallow(ctx context.Context, dir string, depth int) error {
	if depth <= 0 {
		depth = DefaultShallowDepth
	}
	cur, err := m.backend.CurrentDepth(ctx, dir)
	if err != nil {
		return nerrors.Wrap(nerrors.Network, "read current depth", err)
	}
	if cur >= depth {
		return nil
	}
	_, err = m.backend.Fetch(ctx, gitbackend.FetchOptions{Dir: dir, Deepen: depth - cur})
	if err != nil {
		return nerrors.Wrap(nerrors.Network, "deepen clone", err)
	}
	return nil
}

// EnsureFullClone unshallows dir entirely, needed before a full merge-base
// analysis across distant history.
func (m *Manager) EnsureFullClone(ctx context.Context, dir string) error {
	cur, err := m.backend.CurrentDepth(ctx, dir)
	if err != nil {
		return nerrors.Wrap(nerrors.Network, "read current depth", err)
	}
	if cur == 0 {
		return nil // 0 is the backend's convention for "already full"
	}
	_, err = m.backend.Fetch(ctx, gitbackend.FetchOptions{Dir: dir, Deepen: 1 << 30})
	if err != nil {
		return nerrors.Wrap(nerrors.Network, "unshallow clone", err)
	}
	return nil
}

func (m *Manager) ensureTier(ctx context.Context, dir string, opts InitOptions) ([]gitbackend.RefUpdate, error) {
	switch opts.Tier {
	case TierFull:
		if err := m.EnsureFullClone(ctx, dir); err != nil {
			return nil, err
		}
	case TierShallow:
		if err := m.EnsureShallow(ctx, dir, opts.Depth); err != nil {
			return nil, err
		}
	}
	return m.backend.ListRefs(ctx, dir)
}

// ResolveBranch walks the ladder requested (if any), main, master, develop,
// dev and returns the first one that resolves locally. On a total miss,
// strict mode returns requested verbatim: the caller has just fetched a
// tracking ref from a host with no local branches yet (the ngit-relay case)
// and is expected to create the local branch from
// refs/remotes/origin/<requested> itself. Non-strict mode instead falls back
// to the first local branch it finds.
func (m *Manager) ResolveBranch(ctx context.Context, dir, requested string, strict bool) (string, error) {
	refs, err := m.backend.ListRefs(ctx, dir)
	if err != nil {
		return "", nerrors.Wrap(nerrors.Network, "list refs", err)
	}
	byName := make(map[string]bool, len(refs))
	var localBranches []string
	for _, r := range refs {
		byName[r.Name] = true
		if name, ok := strings.CutPrefix(r.Name, "refs/heads/"); ok {
			localBranches = append(localBranches, name)
		}
	}

	candidates := make([]string, 0, 5)
	if requested != "" {
		candidates = append(candidates, requested)
	}
	candidates = append(candidates, "main", "master", "develop", "dev")
	for _, c := range candidates {
		if byName["refs/heads/"+c] || byName[c] {
			return c, nil
		}
	}

	if strict {
		return requested, nil
	}
	if len(localBranches) > 0 {
		return localBranches[0], nil
	}
	return "", nerrors.ErrNotFound("no branches found")
}

// NeedsUpdate applies the cache-based freshness heuristic: an absent repos
// cache entry defers entirely to whether the remote has any refs at all; a
// stale entry (older than 60 minutes) always needs an update; a fresh entry's
// cached head commit is compared against origin's main/master as recorded in
// the local remote-tracking refs. A failed probe
// (offline, CORS-class, host unreachable) never forces a sync — it reports
// fresh instead, matching the "quiet by default" behavior the rest of the
// sync engine uses for network hiccups.
func (m *Manager) NeedsUpdate(ctx context.Context, dir, repoAddr string) (bool, error) {
	var cached RepoCacheEntry
	found, age, err := m.getRepoCacheEntry(repoAddr, &cached)
	if err != nil {
		return false, nerrors.Wrap(nerrors.Unknown, "read repo cache entry", err)
	}

	heads, probeErr := m.remoteHeads(ctx, dir)
	if probeErr != nil {
		return false, nil
	}

	if !found {
		return len(heads) > 0, nil
	}
	if age > needsUpdateCacheMaxAge {
		return true, nil
	}

	remoteHead, ok := heads["main"]
	if !ok {
		remoteHead, ok = heads["master"]
	}
	if !ok {
		return false, nil
	}
	return cached.HeadCommit != remoteHead, nil
}

// remoteHeads reports the OIDs of origin's remote-tracking branches, which
// reflect the last fetch's view of the remote without requiring a fresh
// network round-trip of their own.
func (m *Manager) remoteHeads(ctx context.Context, dir string) (map[string]string, error) {
	refs, err := m.backend.ListRefs(ctx, dir)
	if err != nil {
		return nil, err
	}
	heads := make(map[string]string, len(refs))
	for _, r := range refs {
		if name, ok := strings.CutPrefix(r.Name, "refs/remotes/origin/"); ok {
			heads[name] = r.OID
		}
	}
	return heads, nil
}

func (m *Manager) getRepoCacheEntry(repoAddr string, dest *RepoCacheEntry) (found bool, age time.Duration, err error) {
	if m.store == nil {
		return false, 0, nil
	}
	return m.store.GetWithAge(cache.TableRepos, repoAddr, dest)
}

// cacheRepoState records dir's materialized tier and head commit so a later
// NeedsUpdate call has something to compare a remote probe against.
// Failures are logged, not fatal — a missing cache entry just degrades
// NeedsUpdate to its no-cache branch.
func (m *Manager) cacheRepoState(repoAddr, dataLevel, cloneURL string, refs []gitbackend.RefUpdate) {
	if m.store == nil {
		return
	}
	entry := RepoCacheEntry{DataLevel: dataLevel}
	if cloneURL != "" {
		entry.CloneURLs = []string{cloneURL}
	}
	for _, r := range refs {
		if name, ok := strings.CutPrefix(r.Name, "refs/heads/"); ok {
			entry.Branches = append(entry.Branches, name)
			if name == "main" || (name == "master" && entry.HeadCommit == "") {
				entry.HeadCommit = r.OID
			}
		}
	}
	if err := m.store.Put(cache.TableRepos, repoAddr, entry); err != nil {
		logger.Warn("failed to cache repo state", zap.String("repoAddr", repoAddr), zap.Error(err))
	}
}

// SyncWithRemote fetches branch in dir, coalescing concurrent syncs for the
// same repoAddr the same way SmartInitialize does, and refreshes the repos
// cache entry so the next NeedsUpdate check compares against up-to-date data.
func (m *Manager) SyncWithRemote(ctx context.Context, repoAddr, dir, branch string) ([]gitbackend.RefUpdate, error) {
	start := time.Now()
	v, err, _ := m.group.Do(repoAddr+"#sync", func() (interface{}, error) {
		return m.backend.Fetch(ctx, gitbackend.FetchOptions{Dir: dir, Refs: []string{branch}})
	})
	telemetry.GetMetrics().RecordSyncCompleted(ctx, repoAddr, "sync", time.Since(start).Seconds())
	if err != nil {
		return nil, nerrors.Wrap(nerrors.Network, "sync with remote", err)
	}
	refs := v.([]gitbackend.RefUpdate)

	var dataLevel string
	var prev RepoCacheEntry
	if found, _, cerr := m.getRepoCacheEntry(repoAddr, &prev); cerr == nil && found {
		dataLevel = prev.DataLevel
	}
	m.cacheRepoState(repoAddr, dataLevel, "", refs)
	return refs, nil
}

func tierName(t Tier) string {
	switch t {
	case TierRefsOnly:
		return "refs-only"
	case TierShallow:
		return "shallow"
	case TierFull:
		return "full"
	default:
		return "unknown"
	}
}
