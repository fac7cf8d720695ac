// Package cache provides the on-disk cache store: a bbolt-backed key/value
// store for the three cache tables (repos, commits, mergeAnalysis) with
// age-based eviction, and a GORM-backed structured store for URL
// preferences and credential references that benefit from relational
// queries instead of raw KV lookups.
package cache

import (
	"encoding/json"
	"time"

	"go.etcd.io/bbolt"

	nerrors "github.com/chebizarro/nostr-git-sub004/pkg/errors"
	"github.com/chebizarro/nostr-git-sub004/pkg/telemetry"
)

// Table names for the three bbolt buckets.
const (
	TableRepos         = "repos"
	TableCommits       = "commits"
	TableMergeAnalysis = "mergeAnalysis"
)

var allTables = []string{TableRepos, TableCommits, TableMergeAnalysis}

// entry wraps a cached payload with the timestamp it was written, so
// ClearOldCache can evict by age without a second index.
type entry struct {
	CachedAt int64           `json:"cachedAt"`
	Payload  json.RawMessage `json:"payload"`
}

// Store is the bbolt-backed KV cache.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if absent) the bbolt database at path and ensures
// all three cache buckets exist.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, nerrors.Wrap(nerrors.Network, "open cache store", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, t := range allTables {
			if _, err := tx.CreateBucketIfNotExists([]byte(t)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, nerrors.Wrap(nerrors.Network, "initialize cache buckets", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying bbolt file handle.
func (s *Store) Close() error { return s.db.Close() }

// Put serializes value as JSON and stores it under table/key, stamped with
// the current time for later age-based eviction.
func (s *Store) Put(table, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return nerrors.Wrap(nerrors.InvalidInput, "marshal cache entry", err)
	}
	e := entry{CachedAt: time.Now().Unix(), Payload: payload}
	raw, err := json.Marshal(e)
	if err != nil {
		return nerrors.Wrap(nerrors.InvalidInput, "marshal cache envelope", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return nerrors.ErrInvalidInput("unknown cache table: " + table)
		}
		return b.Put([]byte(key), raw)
	})
}

// Get deserializes the value stored at table/key into dest. Returns
// (false, nil) on a clean miss.
func (s *Store) Get(table, key string, dest interface{}) (bool, error) {
	var raw []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return nerrors.ErrInvalidInput("unknown cache table: " + table)
		}
		v := b.Get([]byte(key))
		if v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	hit := raw != nil
	telemetry.GetMetrics().RecordCacheLookup(nil, table, hit)
	if err != nil {
		return false, err
	}
	if !hit {
		return false, nil
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return false, nerrors.Wrap(nerrors.Unknown, "unmarshal cache envelope", err)
	}
	if err := json.Unmarshal(e.Payload, dest); err != nil {
		return false, nerrors.Wrap(nerrors.Unknown, "unmarshal cache payload", err)
	}
	return true, nil
}

// GetWithAge behaves like Get but also reports how long ago the entry was
// written, letting callers apply their own staleness window (gitsync's
// needsUpdate heuristic, for instance) without a second cache lookup.
func (s *Store) GetWithAge(table, key string, dest interface{}) (found bool, age time.Duration, err error) {
	var raw []byte
	err = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return nerrors.ErrInvalidInput("unknown cache table: " + table)
		}
		v := b.Get([]byte(key))
		if v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	hit := raw != nil
	telemetry.GetMetrics().RecordCacheLookup(nil, table, hit)
	if err != nil {
		return false, 0, err
	}
	if !hit {
		return false, 0, nil
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return false, 0, nerrors.Wrap(nerrors.Unknown, "unmarshal cache envelope", err)
	}
	if err := json.Unmarshal(e.Payload, dest); err != nil {
		return false, 0, nerrors.Wrap(nerrors.Unknown, "unmarshal cache payload", err)
	}
	return true, time.Since(time.Unix(e.CachedAt, 0)), nil
}

// Delete removes table/key, a no-op if absent.
func (s *Store) Delete(table, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return nerrors.ErrInvalidInput("unknown cache table: " + table)
		}
		return b.Delete([]byte(key))
	})
}

// ClearOldCache evicts every entry in table older than maxAge, returning
// the number evicted. Run periodically by internal/scheduler.
func (s *Store) ClearOldCache(table string, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Unix()
	var evicted int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return nerrors.ErrInvalidInput("unknown cache table: " + table)
		}
		var staleKeys [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var e entry
			if err := json.Unmarshal(v, &e); err != nil {
				return nil // leave unparseable entries alone rather than evict blindly
			}
			if e.CachedAt < cutoff {
				staleKeys = append(staleKeys, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range staleKeys {
			if err := b.Delete(k); err != nil {
				return err
			}
			evicted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	telemetry.GetMetrics().RecordCacheEviction(nil, table, evicted)
	return evicted, nil
}

// ClearAllOldCache runs ClearOldCache over every table.
func (s *Store) ClearAllOldCache(maxAge time.Duration) (int64, error) {
	var total int64
	for _, t := range allTables {
		n, err := s.ClearOldCache(t, maxAge)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DiskUsage returns the bbolt file's current on-disk size in bytes.
func (s *Store) DiskUsage() (int64, error) {
	var size int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		size = tx.Size()
		return nil
	})
	return size, err
}
