package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"FinFusion/internal/domain"
	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const alertCols = `id, symbol, signal, entry_price, target_price, stop_loss,
	confidence, rationale, fusion_score, status, created_at, expires_at, updated_at`

// PostgresAlertStore implements repository.AlertStore on PostgreSQL.
type PostgresAlertStore struct {
	pool *pgxpool.Pool
}

// NewPostgresAlertStore creates a store backed by pool.
func NewPostgresAlertStore(pool *pgxpool.Pool) *PostgresAlertStore {
	return &PostgresAlertStore{pool: pool}
}

// Create is idempotent: re-inserting a row that is already stored succeeds,
// so a retry after a lost commit ack does not fail.
func (s *PostgresAlertStore) Create(ctx context.Context, a *models.Alert) error {
	const q = `INSERT INTO alerts (` + alertCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, q,
		a.ID, a.Symbol, string(a.Signal),
		a.EntryPrice, a.TargetPrice, a.StopLoss,
		a.Confidence, a.Rationale, a.FusionScore,
		string(a.Status), a.CreatedAt, a.ExpiresAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create alert %s: %w", a.ID, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	cur, err := s.Get(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("postgres: create alert %s: %w", a.ID, err)
	}
	if !cur.SameRecord(a) {
		return fmt.Errorf("postgres: create alert %s: %w", a.ID, domain.ErrAlreadyExists)
	}
	return nil
}

func (s *PostgresAlertStore) Get(ctx context.Context, id string) (*models.Alert, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+alertCols+` FROM alerts WHERE id = $1`, id)
	a, err := scanAlert(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get alert %s: %w", id, err)
	}
	return a, nil
}

func (s *PostgresAlertStore) List(ctx context.Context, f models.AlertFilter) ([]*models.Alert, error) {
	where, args := buildAlertWhere(f)
	q := `SELECT ` + alertCols + ` FROM alerts` + where + ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list alerts: %w", err)
	}
	defer rows.Close()

	var out []*models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresAlertStore) Count(ctx context.Context, f models.AlertFilter) (int64, error) {
	where, args := buildAlertWhere(f)
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM alerts`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count alerts: %w", err)
	}
	return n, nil
}

// UpdateStatus is a compare-and-set on the current status, so two racing
// transitions cannot both succeed.
func (s *PostgresAlertStore) UpdateStatus(ctx context.Context, id string, from, to models.AlertStatus) (*models.Alert, error) {
	const q = `UPDATE alerts SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + alertCols

	a, err := scanAlert(s.pool.QueryRow(ctx, q, id, string(from), string(to)))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("postgres: update alert status %s: %w", id, err)
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM alerts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("postgres: check alert %s: %w", id, err)
	}
	if !exists {
		return nil, domain.ErrNotFound
	}
	return nil, domain.ErrInvalidTransition
}

func (s *PostgresAlertStore) DeleteStale(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM alerts WHERE status IN ('active', 'cancelled') AND expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete stale alerts: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close is a no-op; the pool is owned by postgres.Client.
func (s *PostgresAlertStore) Close() error { return nil }

func buildAlertWhere(f models.AlertFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(expr string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(expr, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Symbol != "" {
		add("symbol = $%d", f.Symbol)
	}
	if f.ActiveAt != nil {
		add("expires_at > $%d", *f.ActiveAt)
	}
	if f.CreatedAfter != nil {
		add("created_at >= $%d", *f.CreatedAfter)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanAlert(row pgx.Row) (*models.Alert, error) {
	var a models.Alert
	var signal, status string
	err := row.Scan(
		&a.ID, &a.Symbol, &signal,
		&a.EntryPrice, &a.TargetPrice, &a.StopLoss,
		&a.Confidence, &a.Rationale, &a.FusionScore,
		&status, &a.CreatedAt, &a.ExpiresAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Signal = models.SignalKind(signal)
	a.Status = models.AlertStatus(status)
	return &a, nil
}

var _ repository.AlertStore = (*PostgresAlertStore)(nil)
