package cache

import (
	"path/filepath"
	"testing"
	"time"
)

type testRepoRecord struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	want := testRepoRecord{Address: "30617:abc:widgets", Name: "widgets"}
	if err := s.Put(TableRepos, want.Address, want); err != nil {
		t.Fatalf("Put: %v", err)
	}
	var got testRepoRecord
	hit, err := s.Get(TableRepos, want.Address, &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !hit {
		t.Fatal("expected cache hit")
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestGetMissReturnsFalseNoError(t *testing.T) {
	s := openTestStore(t)
	var got testRepoRecord
	hit, err := s.Get(TableRepos, "does-not-exist", &got)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hit {
		t.Error("expected miss")
	}
}

func TestGetPutUnknownTableErrors(t *testing.T) {
	s := openTestStore(t)
	if err := s.Put("not-a-table", "k", testRepoRecord{}); err == nil {
		t.Error("expected error for unknown table")
	}
	var got testRepoRecord
	if _, err := s.Get("not-a-table", "k", &got); err == nil {
		t.Error("expected Get error for unknown table")
	}
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	_ = s.Put(TableCommits, "sha1", testRepoRecord{Name: "x"})
	if err := s.Delete(TableCommits, "sha1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	var got testRepoRecord
	hit, _ := s.Get(TableCommits, "sha1", &got)
	if hit {
		t.Error("expected entry to be gone after delete")
	}
}

func TestClearOldCacheEvictsOnlyStale(t *testing.T) {
	s := openTestStore(t)
	_ = s.Put(TableMergeAnalysis, "fresh", testRepoRecord{Name: "fresh"})

	n, err := s.ClearOldCache(TableMergeAnalysis, 24*time.Hour)
	if err != nil {
		t.Fatalf("ClearOldCache: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 evictions for fresh-only data, got %d", n)
	}

	var got testRepoRecord
	hit, _ := s.Get(TableMergeAnalysis, "fresh", &got)
	if !hit {
		t.Error("fresh entry should survive eviction")
	}
}

func TestClearAllOldCacheCoversEveryTable(t *testing.T) {
	s := openTestStore(t)
	for _, tbl := range allTables {
		_ = s.Put(tbl, "k", testRepoRecord{Name: tbl})
	}
	total, err := s.ClearAllOldCache(24 * time.Hour)
	if err != nil {
		t.Fatalf("ClearAllOldCache: %v", err)
	}
	if total != 0 {
		t.Errorf("nothing should be stale yet, got %d evicted", total)
	}
}

func TestDiskUsageNonZeroAfterWrites(t *testing.T) {
	s := openTestStore(t)
	_ = s.Put(TableRepos, "k", testRepoRecord{Name: "x"})
	size, err := s.DiskUsage()
	if err != nil {
		t.Fatalf("DiskUsage: %v", err)
	}
	if size <= 0 {
		t.Error("expected non-zero disk usage after a write")
	}
}
