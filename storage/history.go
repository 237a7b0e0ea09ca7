// Package storage keeps a local history of orchestration runs in bbolt.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/btree"
	"go.etcd.io/bbolt"

	"github.com/yairfalse/lightsout/types"
)

// ErrRunNotFound is returned by GetRun for an unknown run id
var ErrRunNotFound = errors.New("run not found")

// Bucket names in bbolt
var (
	bucketRuns = []byte("runs")
	bucketMeta = []byte("meta")

	keyRevision = []byte("current_revision")
)

// RunRecord is one stored orchestration run
type RunRecord struct {
	Revision    int64                     `json:"revision"`
	Environment string                    `json:"environment,omitempty"`
	Group       string                    `json:"group,omitempty"`
	Strategy    string                    `json:"strategy,omitempty"`
	DryRun      bool                      `json:"dry_run,omitempty"`
	Result      types.OrchestrationResult `json:"result"`
}

// runEntry is the in-memory index row for a stored run
type runEntry struct {
	Revision  int64
	RunID     string
	StartedAt time.Time
}

// HistoryStore persists runs keyed by a monotonically increasing revision.
// An in-memory btree over revisions serves newest-first listings.
type HistoryStore struct {
	mu sync.RWMutex

	index *btree.BTreeG[runEntry]
	byID  map[string]int64

	db         *bbolt.DB
	currentRev int64
}

// OpenHistoryStore opens or creates the history database at path
func OpenHistoryStore(path string) (*HistoryStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketRuns, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	s := &HistoryStore{
		index: btree.NewG[runEntry](32, func(a, b runEntry) bool {
			return a.Revision < b.Revision
		}),
		byID: make(map[string]int64),
		db:   db,
	}

	if err := s.rebuildIndex(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

// RecordRun stores a run and returns its revision
func (s *HistoryStore) RecordRun(rec RunRecord) (int64, error) {
	if rec.Result.RunID == "" {
		return 0, fmt.Errorf("run id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[rec.Result.RunID]; exists {
		return 0, fmt.Errorf("run %s already recorded", rec.Result.RunID)
	}

	rev := s.currentRev + 1
	rec.Revision = rev

	value, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("failed to encode run: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketRuns).Put(revisionKey(rev), value); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keyRevision, revisionKey(rev))
	})
	if err != nil {
		return 0, fmt.Errorf("failed to store run: %w", err)
	}

	s.currentRev = rev
	s.insert(rec)
	return rev, nil
}

// GetRun returns a stored run by id
func (s *HistoryStore) GetRun(runID string) (*RunRecord, error) {
	s.mu.RLock()
	rev, ok := s.byID[runID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return s.load(rev)
}

// ListRuns returns up to limit runs, newest first. A limit of 0 returns all.
func (s *HistoryStore) ListRuns(limit int) ([]RunRecord, error) {
	s.mu.RLock()
	var revs []int64
	s.index.Descend(func(e runEntry) bool {
		revs = append(revs, e.Revision)
		return limit <= 0 || len(revs) < limit
	})
	s.mu.RUnlock()

	runs := make([]RunRecord, 0, len(revs))
	for _, rev := range revs {
		rec, err := s.load(rev)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *rec)
	}
	return runs, nil
}

// Len returns the number of stored runs
func (s *HistoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Len()
}

// CurrentRevision returns the revision of the newest run
func (s *HistoryStore) CurrentRevision() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentRev
}

// Compact deletes all but the newest keep runs and returns how many were removed
func (s *HistoryStore) Compact(keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	excess := s.index.Len() - keep
	if excess <= 0 {
		return 0, nil
	}

	var stale []runEntry
	s.index.Ascend(func(e runEntry) bool {
		stale = append(stale, e)
		return len(stale) < excess
	})

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRuns)
		for _, e := range stale {
			if err := bucket.Delete(revisionKey(e.Revision)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to compact history: %w", err)
	}

	for _, e := range stale {
		s.index.Delete(e)
		delete(s.byID, e.RunID)
	}
	return len(stale), nil
}

func (s *HistoryStore) load(rev int64) (*RunRecord, error) {
	var rec RunRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketRuns).Get(revisionKey(rev))
		if data == nil {
			return fmt.Errorf("%w: revision %d", ErrRunNotFound, rev)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *HistoryStore) insert(rec RunRecord) {
	s.index.ReplaceOrInsert(runEntry{
		Revision:  rec.Revision,
		RunID:     rec.Result.RunID,
		StartedAt: rec.Result.StartedAt,
	})
	s.byID[rec.Result.RunID] = rec.Revision
}

func (s *HistoryStore) rebuildIndex() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		if data := tx.Bucket(bucketMeta).Get(keyRevision); len(data) == 8 {
			s.currentRev = int64(binary.BigEndian.Uint64(data))
		}

		return tx.Bucket(bucketRuns).ForEach(func(k, v []byte) error {
			var rec RunRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("corrupt run at revision %d: %w", int64(binary.BigEndian.Uint64(k)), err)
			}
			s.insert(rec)
			return nil
		})
	})
}

// revisionKey encodes big-endian so bbolt's byte order matches revision order
func revisionKey(rev int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(rev))
	return b
}
