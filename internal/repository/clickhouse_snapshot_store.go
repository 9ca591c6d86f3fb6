package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/repository"
	pkgch "FinFusion/pkg/clickhouse"
	applogger "FinFusion/pkg/logger"
)

// SnapshotSchema returns the DDL for the snapshot history table.
func SnapshotSchema(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			ts             DateTime64(3, 'UTC'),
			symbol         LowCardinality(String),
			price          Float64,
			change         Float64,
			change_percent Float64,
			volume         Int64,
			source         LowCardinality(String)
		) ENGINE = MergeTree
		PARTITION BY toYYYYMM(ts)
		ORDER BY (symbol, ts)`, database, table),
	}
}

// CHSnapshotStore appends market snapshots to ClickHouse.
type CHSnapshotStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHSnapshotStore(ch *pkgch.Client, table string, l *applogger.Logger) *CHSnapshotStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHSnapshotStore{db: ch.DB(), table: table, l: l.Named("snapshot-store")}
}

func (s *CHSnapshotStore) Store(ctx context.Context, snap *models.MarketSnapshot) error {
	return s.StoreBatch(ctx, []*models.MarketSnapshot{snap})
}

// StoreBatch inserts rows through one prepared batch, the clickhouse-go
// database/sql way of sending a single INSERT block.
func (s *CHSnapshotStore) StoreBatch(ctx context.Context, snaps []*models.MarketSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("clickhouse begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (ts, symbol, price, change, change_percent, volume, source)", s.table))
	if err != nil {
		return fmt.Errorf("clickhouse prepare: %w", err)
	}
	defer stmt.Close()

	n := 0
	for _, snap := range snaps {
		if snap == nil || snap.Symbol == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			snap.Timestamp.UTC(), snap.Symbol, snap.Price,
			snap.Change, snap.ChangePercent, snap.Volume, snap.Source,
		); err != nil {
			return fmt.Errorf("clickhouse append: %w", err)
		}
		n++
	}
	if n == 0 {
		return nil
	}
	if err := tx.Commit(); err != nil {
		s.l.Error("snapshot batch insert failed", applogger.Int("rows", n), applogger.Error(err))
		return fmt.Errorf("clickhouse commit: %w", err)
	}
	return nil
}

func (s *CHSnapshotStore) Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.MarketSnapshot, error) {
	q := fmt.Sprintf(`SELECT ts, symbol, price, change, change_percent, volume, source
		FROM %s
		WHERE symbol = ? AND ts >= ? AND ts <= ?
		ORDER BY ts DESC
		LIMIT ?`, s.table)

	rows, err := s.db.QueryContext(ctx, q, symbol, from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	out := make([]*models.MarketSnapshot, 0, limit)
	for rows.Next() {
		var m models.MarketSnapshot
		if err := rows.Scan(&m.Timestamp, &m.Symbol, &m.Price, &m.Change, &m.ChangePercent, &m.Volume, &m.Source); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s *CHSnapshotStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the connection pool is owned by pkg/clickhouse.
func (s *CHSnapshotStore) Close() error { return nil }

var _ repository.SnapshotHistory = (*CHSnapshotStore)(nil)
