// Package scheduler runs the periodic maintenance jobs the sync engine
// needs outside the request path: evicting stale cache entries and
// sweeping tracked repos for freshness.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/chebizarro/nostr-git-sub004/internal/gitbackend"
	"github.com/chebizarro/nostr-git-sub004/pkg/logger"
)

const (
	// DefaultCacheMaxAge matches needsUpdate's 60-minute cache staleness
	// window, so evicted entries and "needs a fresh fetch" agree.
	DefaultCacheMaxAge = 60 * time.Minute
	// DefaultEvictionSchedule runs cache eviction hourly.
	DefaultEvictionSchedule = "0 * * * *"
	// DefaultFreshnessSchedule sweeps tracked workspaces for staleness
	// every 15 minutes.
	DefaultFreshnessSchedule = "*/15 * * * *"
)

// CacheEvictor is the minimal surface the scheduler needs from a cache
// store; internal/cache.Store satisfies this via ClearAllOldCache.
type CacheEvictor interface {
	ClearAllOldCache(maxAge time.Duration) (int64, error)
}

// TrackedRepo is one workspace the freshness sweep should check.
type TrackedRepo struct {
	RepoAddr string
	Dir      string
	Branch   string
}

// FreshnessChecker is the minimal surface needed from gitsync.Manager to
// drive a periodic staleness sweep.
type FreshnessChecker interface {
	NeedsUpdate(ctx context.Context, dir, repoAddr string) (bool, error)
	SyncWithRemote(ctx context.Context, repoAddr, dir, branch string) ([]gitbackend.RefUpdate, error)
}

// Service runs scheduled cache eviction (and any additional jobs
// registered via AddFunc) on a cron.Cron instance.
type Service struct {
	cron    *cron.Cron
	evictor CacheEvictor
	maxAge  time.Duration
	mu      sync.RWMutex
	entryID cron.EntryID

	checker   FreshnessChecker
	listRepos func() []TrackedRepo
}

// NewService builds a scheduler bound to evictor, using maxAge for
// eviction cutoffs (DefaultCacheMaxAge if zero).
func NewService(evictor CacheEvictor, maxAge time.Duration) *Service {
	if maxAge <= 0 {
		maxAge = DefaultCacheMaxAge
	}
	return &Service{cron: cron.New(), evictor: evictor, maxAge: maxAge}
}

// Start schedules cache eviction and starts the cron loop. An initial
// eviction runs immediately in the background so a freshly-started
// process doesn't wait a full period before its first sweep.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, err := s.cron.AddFunc(DefaultEvictionSchedule, s.evict)
	if err != nil {
		logger.Error("failed to schedule cache eviction", zap.Error(err))
		return err
	}
	s.entryID = entryID
	s.cron.Start()

	logger.Info("scheduler started",
		zap.String("schedule", DefaultEvictionSchedule),
		zap.Duration("max_age", s.maxAge))

	go s.evict()
	return nil
}

// AddFunc registers an additional cron job, returning its entry id.
func (s *Service) AddFunc(schedule string, job func()) (cron.EntryID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron.AddFunc(schedule, job)
}

// RegisterFreshnessSweep schedules a periodic NeedsUpdate check across the
// repos listRepos returns, syncing any that have fallen behind their
// remote. listRepos is called fresh on every tick so the tracked set can
// grow or shrink without restarting the scheduler.
func (s *Service) RegisterFreshnessSweep(checker FreshnessChecker, listRepos func() []TrackedRepo) error {
	s.mu.Lock()
	s.checker = checker
	s.listRepos = listRepos
	s.mu.Unlock()

	_, err := s.AddFunc(DefaultFreshnessSchedule, s.sweepFreshness)
	if err != nil {
		logger.Error("failed to schedule freshness sweep", zap.Error(err))
	}
	return err
}

func (s *Service) sweepFreshness() {
	s.mu.RLock()
	checker, listRepos := s.checker, s.listRepos
	s.mu.RUnlock()
	if checker == nil || listRepos == nil {
		return
	}

	ctx := context.Background()
	repos := listRepos()
	synced, stale := 0, 0
	for _, r := range repos {
		needs, err := checker.NeedsUpdate(ctx, r.Dir, r.RepoAddr)
		if err != nil {
			logger.Warn("freshness check failed", zap.String("repo_addr", r.RepoAddr), zap.Error(err))
			continue
		}
		if !needs {
			continue
		}
		stale++
		if _, err := checker.SyncWithRemote(ctx, r.RepoAddr, r.Dir, r.Branch); err != nil {
			logger.Warn("freshness resync failed", zap.String("repo_addr", r.RepoAddr), zap.Error(err))
			continue
		}
		synced++
	}
	logger.Info("freshness sweep completed",
		zap.Int("tracked", len(repos)), zap.Int("stale", stale), zap.Int("synced", synced))
}

// Stop stops the cron loop, waiting for any in-flight job to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return
	}
	logger.Info("stopping scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("scheduler stopped")
}

func (s *Service) evict() {
	start := time.Now()
	n, err := s.evictor.ClearAllOldCache(s.maxAge)
	if err != nil {
		logger.Error("cache eviction failed", zap.Error(err))
		return
	}
	logger.Info("cache eviction completed",
		zap.Int64("evicted", n),
		zap.Duration("max_age", s.maxAge),
		zap.Duration("duration", time.Since(start)))
}
