package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS manufacturing_snapshots (
	state_key  TEXT PRIMARY KEY,
	version    INTEGER NOT NULL,
	payload    TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS stock_ledger_entries (
	id             TEXT PRIMARY KEY,
	state_key      TEXT NOT NULL,
	sequence       INTEGER NOT NULL,
	type           TEXT NOT NULL,
	product_id     INTEGER NOT NULL,
	qty            TEXT NOT NULL,
	unit           TEXT NOT NULL,
	reference      TEXT NOT NULL,
	remarks        TEXT NOT NULL DEFAULT '',
	posted_at      TIMESTAMP NOT NULL,
	correlation_id TEXT NOT NULL DEFAULT '',
	UNIQUE(state_key, sequence)
);
`

type sqliteSnapshotRow struct {
	StateKey  string    `db:"state_key"`
	Version   int64     `db:"version"`
	Payload   string    `db:"payload"`
	UpdatedAt time.Time `db:"updated_at"`
}

type sqliteLedgerRow struct {
	ID            string          `db:"id"`
	StateKey      string          `db:"state_key"`
	Sequence      int64           `db:"sequence"`
	Type          string          `db:"type"`
	ProductId     int             `db:"product_id"`
	Qty           decimal.Decimal `db:"qty"`
	Unit          string          `db:"unit"`
	Reference     string          `db:"reference"`
	Remarks       string          `db:"remarks"`
	PostedAt      time.Time       `db:"posted_at"`
	CorrelationId string          `db:"correlation_id"`
}

// SqliteSnapshotRepository is the single-file store used for local runs and the CLIs.
type SqliteSnapshotRepository struct {
	db *sqlx.DB
}

func NewSqliteSnapshotRepository(db *sqlx.DB) (*SqliteSnapshotRepository, error) {
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("failed to create sqlite schema: %w", err)
	}
	return &SqliteSnapshotRepository{db: db}, nil
}

func (r *SqliteSnapshotRepository) Load(ctx context.Context, key string) (*Snapshot, error) {
	var row sqliteSnapshotRow
	const q = `SELECT state_key, version, payload, updated_at FROM manufacturing_snapshots WHERE state_key = ?`
	err := r.db.GetContext(ctx, &row, q, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSnapshotMissing
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s: %w", key, err)
	}
	state, err := DecodeState([]byte(row.Payload))
	if err != nil {
		return nil, err
	}
	return &Snapshot{Key: key, Version: row.Version, State: state, SavedAt: row.UpdatedAt}, nil
}

func (r *SqliteSnapshotRepository) Save(ctx context.Context, key string, expectedVersion int64, state *ManufacturingState, appended []StockLedgerEntry) (int64, error) {
	payload, err := EncodeState(state)
	if err != nil {
		return 0, err
	}
	version := expectedVersion + 1
	now := time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var result sql.Result
	if expectedVersion == 0 {
		const q = `
			INSERT INTO manufacturing_snapshots (state_key, version, payload, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(state_key) DO NOTHING`
		result, err = tx.ExecContext(ctx, q, key, version, string(payload), now)
	} else {
		const q = `
			UPDATE manufacturing_snapshots SET version = ?, payload = ?, updated_at = ?
			WHERE state_key = ? AND version = ?`
		result, err = tx.ExecContext(ctx, q, version, string(payload), now, key, expectedVersion)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to save snapshot %s: %w", key, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, snapshotConflict(key, expectedVersion)
	}

	if len(appended) > 0 {
		rows := make([]sqliteLedgerRow, 0, len(appended))
		for _, e := range appended {
			rows = append(rows, sqliteLedgerRow{
				ID:            e.ID,
				StateKey:      key,
				Sequence:      e.Sequence,
				Type:          string(e.Type),
				ProductId:     e.ProductId,
				Qty:           e.Qty,
				Unit:          e.Unit,
				Reference:     e.Reference,
				Remarks:       e.Remarks,
				PostedAt:      e.PostedAt.UTC(),
				CorrelationId: e.CorrelationId,
			})
		}
		const q = `
			INSERT INTO stock_ledger_entries (
				id, state_key, sequence, type, product_id, qty, unit, reference, remarks, posted_at, correlation_id
			) VALUES (
				:id, :state_key, :sequence, :type, :product_id, :qty, :unit, :reference, :remarks, :posted_at, :correlation_id
			)`
		if _, err := tx.NamedExecContext(ctx, q, rows); err != nil {
			return 0, fmt.Errorf("failed to insert ledger entries: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return version, nil
}

func (r *SqliteSnapshotRepository) LedgerEntries(ctx context.Context, key string) ([]StockLedgerEntry, error) {
	var rows []sqliteLedgerRow
	const q = `
		SELECT id, state_key, sequence, type, product_id, qty, unit, reference, remarks, posted_at, correlation_id
		FROM stock_ledger_entries WHERE state_key = ? ORDER BY sequence`
	if err := r.db.SelectContext(ctx, &rows, q, key); err != nil {
		return nil, fmt.Errorf("failed to read ledger entries: %w", err)
	}
	entries := make([]StockLedgerEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, StockLedgerEntry{
			ID:            row.ID,
			StateKey:      row.StateKey,
			Sequence:      row.Sequence,
			Type:          StockEntryType(row.Type),
			ProductId:     row.ProductId,
			Qty:           row.Qty,
			Unit:          row.Unit,
			Reference:     row.Reference,
			Remarks:       row.Remarks,
			PostedAt:      row.PostedAt,
			CorrelationId: row.CorrelationId,
		})
	}
	return entries, nil
}
