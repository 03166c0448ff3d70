package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrSnapshotMissing = errors.New("snapshot not found")

// Snapshot is one persisted version of the manufacturing state.
type Snapshot struct {
	Key     string
	Version int64
	State   *ManufacturingState
	SavedAt time.Time
}

// SnapshotRepository persists the whole state under a key with optimistic versioning.
// Save succeeds only if the stored version still equals expectedVersion (0 = nothing stored yet)
// and returns the new version. appended are the ledger entries the transition added; stores that keep
// a separate ledger table write them in the same transaction.
type SnapshotRepository interface {
	Load(ctx context.Context, key string) (*Snapshot, error)
	Save(ctx context.Context, key string, expectedVersion int64, state *ManufacturingState, appended []StockLedgerEntry) (int64, error)
}

func snapshotConflict(key string, expectedVersion int64) error {
	return newEngineError(ErrorKindSnapshotConflict, "snapshot %s changed since version %d", key, expectedVersion)
}

func EncodeState(state *ManufacturingState) ([]byte, error) {
	payload, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode manufacturing state: %w", err)
	}
	return payload, nil
}

func DecodeState(payload []byte) (*ManufacturingState, error) {
	var state ManufacturingState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("decode manufacturing state: %w", err)
	}
	return state.normalized(), nil
}

type memorySnapshot struct {
	version int64
	payload []byte
	savedAt time.Time
}

// MemorySnapshotRepository keeps encoded snapshots in process memory.
type MemorySnapshotRepository struct {
	mu        sync.Mutex
	snapshots map[string]memorySnapshot
}

func NewMemorySnapshotRepository() *MemorySnapshotRepository {
	return &MemorySnapshotRepository{snapshots: make(map[string]memorySnapshot)}
}

func (r *MemorySnapshotRepository) Load(ctx context.Context, key string) (*Snapshot, error) {
	r.mu.Lock()
	stored, ok := r.snapshots[key]
	r.mu.Unlock()
	if !ok {
		return nil, ErrSnapshotMissing
	}
	state, err := DecodeState(stored.payload)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Key: key, Version: stored.version, State: state, SavedAt: stored.savedAt}, nil
}

func (r *MemorySnapshotRepository) Save(ctx context.Context, key string, expectedVersion int64, state *ManufacturingState, appended []StockLedgerEntry) (int64, error) {
	payload, err := EncodeState(state)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snapshots[key].version != expectedVersion {
		return 0, snapshotConflict(key, expectedVersion)
	}
	version := expectedVersion + 1
	r.snapshots[key] = memorySnapshot{version: version, payload: payload, savedAt: time.Now()}
	return version, nil
}
