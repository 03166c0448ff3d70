package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSnapshotRepository keeps the snapshot in a hash (version, payload, savedAt) and mirrors
// ledger entries into the list "<key>:ledger". Compare-and-swap is done with WATCH on the hash.
type RedisSnapshotRepository struct {
	client *redis.Client
}

func NewRedisSnapshotRepository(client *redis.Client) *RedisSnapshotRepository {
	return &RedisSnapshotRepository{client: client}
}

func redisLedgerKey(key string) string {
	return key + ":ledger"
}

func (r *RedisSnapshotRepository) Load(ctx context.Context, key string) (*Snapshot, error) {
	values, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", key, err)
	}
	payload, ok := values["payload"]
	if !ok {
		return nil, ErrSnapshotMissing
	}
	version, err := strconv.ParseInt(values["version"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s version: %w", key, err)
	}
	state, err := DecodeState([]byte(payload))
	if err != nil {
		return nil, err
	}
	savedAt, _ := time.Parse(time.RFC3339Nano, values["savedAt"])
	return &Snapshot{Key: key, Version: version, State: state, SavedAt: savedAt}, nil
}

func (r *RedisSnapshotRepository) Save(ctx context.Context, key string, expectedVersion int64, state *ManufacturingState, appended []StockLedgerEntry) (int64, error) {
	payload, err := EncodeState(state)
	if err != nil {
		return 0, err
	}
	ledgerValues := make([]interface{}, 0, len(appended))
	for _, entry := range appended {
		b, err := json.Marshal(entry)
		if err != nil {
			return 0, err
		}
		ledgerValues = append(ledgerValues, string(b))
	}
	version := expectedVersion + 1

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, "version").Int64()
		if errors.Is(err, redis.Nil) {
			current = 0
		} else if err != nil {
			return err
		}
		if current != expectedVersion {
			return snapshotConflict(key, expectedVersion)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "version", version, "payload", string(payload), "savedAt", time.Now().UTC().Format(time.RFC3339Nano))
			if len(ledgerValues) > 0 {
				pipe.RPush(ctx, redisLedgerKey(key), ledgerValues...)
			}
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return 0, snapshotConflict(key, expectedVersion)
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}
