package models

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// ManufacturingSnapshot is one row per state key; Payload is the JSON-encoded state.
type ManufacturingSnapshot struct {
	StateKey  string    `gorm:"size:100;primary_key" json:"state_key"`
	Version   int64     `gorm:"not null" json:"version"`
	Payload   string    `gorm:"not null" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ManufacturingSnapshot) TableName() string {
	return "manufacturing_snapshots"
}

// GormSnapshotRepository stores snapshots in MySQL or Postgres. Ledger entries of each transition
// are also inserted into stock_ledger_entries in the same transaction, so the SQL ledger never runs
// ahead of or behind the snapshot.
type GormSnapshotRepository struct {
	db *gorm.DB
}

func NewGormSnapshotRepository(db *gorm.DB) *GormSnapshotRepository {
	return &GormSnapshotRepository{db: db}
}

func (r *GormSnapshotRepository) Load(ctx context.Context, key string) (*Snapshot, error) {
	var row ManufacturingSnapshot
	err := r.db.WithContext(ctx).Where("state_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSnapshotMissing
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", key, err)
	}
	state, err := DecodeState([]byte(row.Payload))
	if err != nil {
		return nil, err
	}
	return &Snapshot{Key: key, Version: row.Version, State: state, SavedAt: row.UpdatedAt}, nil
}

func (r *GormSnapshotRepository) Save(ctx context.Context, key string, expectedVersion int64, state *ManufacturingState, appended []StockLedgerEntry) (int64, error) {
	payload, err := EncodeState(state)
	if err != nil {
		return 0, err
	}
	version := expectedVersion + 1

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if expectedVersion == 0 {
			row := ManufacturingSnapshot{StateKey: key, Version: version, Payload: string(payload)}
			if err := tx.Create(&row).Error; err != nil {
				if isDuplicateKeyErr(err) {
					return snapshotConflict(key, expectedVersion)
				}
				return err
			}
		} else {
			result := tx.Model(&ManufacturingSnapshot{}).
				Where("state_key = ? AND version = ?", key, expectedVersion).
				Updates(map[string]interface{}{"version": version, "payload": string(payload)})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return snapshotConflict(key, expectedVersion)
			}
		}

		if len(appended) == 0 {
			return nil
		}
		rows := slices.Clone(appended)
		for i := range rows {
			rows[i].StateKey = key
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

// LedgerEntries reads the ledger table directly, in posting order.
func (r *GormSnapshotRepository) LedgerEntries(ctx context.Context, key string) ([]StockLedgerEntry, error) {
	var entries []StockLedgerEntry
	err := r.db.WithContext(ctx).Where("state_key = ?", key).Order("sequence").Find(&entries).Error
	return entries, err
}

func isDuplicateKeyErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}
