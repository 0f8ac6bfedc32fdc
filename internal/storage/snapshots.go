package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v3"
)

// ErrSnapshotNotFound is returned when a run has no snapshot for a stage.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshot is one serialized stage output of a pipeline run.
type Snapshot struct {
	RunID     string          `json:"run_id"`
	Stage     string          `json:"stage"`
	CreatedAt time.Time       `json:"created_at"`
	Data      json.RawMessage `json:"data"`
}

// SnapshotStore persists pipeline debug snapshots in badger, keyed by
// run id and timestamp so a prefix scan returns a run in stage order.
type SnapshotStore struct {
	db  *badger.DB
	ttl time.Duration
	now func() time.Time
}

// OpenSnapshotStore opens a store under dir. An empty dir keeps snapshots in
// memory only. A positive ttl expires snapshots after that long.
func OpenSnapshotStore(dir string, ttl time.Duration) (*SnapshotStore, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
		}
		opts = badger.DefaultOptions(filepath.Join(dir, "badger"))
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &SnapshotStore{db: db, ttl: ttl, now: time.Now}, nil
}

func snapshotPrefix(runID string) []byte {
	return []byte("snapshot/" + runID + "/")
}

// Save serializes v as the output of stage for runID.
func (s *SnapshotStore) Save(runID, stage string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s snapshot: %w", stage, err)
	}
	now := s.now().UTC()
	snap := Snapshot{RunID: runID, Stage: stage, CreatedAt: now, Data: data}
	value, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal %s snapshot: %w", stage, err)
	}

	key := append(snapshotPrefix(runID), []byte(now.Format(versionLayout)+"/"+stage)...)
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(key, value)
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		return txn.SetEntry(e)
	})
}

// List returns every snapshot of runID, oldest first.
func (s *SnapshotStore) List(runID string) ([]Snapshot, error) {
	var out []Snapshot
	prefix := snapshotPrefix(runID)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var snap Snapshot
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &snap)
			}); err != nil {
				return err
			}
			out = append(out, snap)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return out, nil
}

// Latest returns the most recent snapshot of stage for runID.
func (s *SnapshotStore) Latest(runID, stage string) (*Snapshot, error) {
	snaps, err := s.List(runID)
	if err != nil {
		return nil, err
	}
	for i := len(snaps) - 1; i >= 0; i-- {
		if strings.EqualFold(snaps[i].Stage, stage) {
			return &snaps[i], nil
		}
	}
	return nil, ErrSnapshotNotFound
}

func (s *SnapshotStore) Close() error {
	return s.db.Close()
}
