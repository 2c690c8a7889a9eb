package retention

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"casino-platform/internal/audit"
	"casino-platform/pkg/utils"
)

const Schema = `
CREATE TABLE IF NOT EXISTS retention_policies (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	event_type TEXT NOT NULL UNIQUE,
	retention_days INTEGER NOT NULL CHECK (retention_days BETWEEN 1 AND 36500),
	auto_delete BOOLEAN NOT NULL DEFAULT false,
	archive_before_delete BOOLEAN NOT NULL DEFAULT true,
	is_enabled BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)
`

const policyColumns = `id::text, event_type, retention_days, auto_delete, archive_before_delete, is_enabled, created_at, updated_at`

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Migrate(ctx context.Context) error {
	return utils.ExecSchema(ctx, r.db, Schema)
}

func (r *PostgresRepo) Upsert(ctx context.Context, p Policy) (Policy, error) {
	row := r.db.QueryRowContext(ctx, `
INSERT INTO retention_policies (event_type, retention_days, auto_delete, archive_before_delete, is_enabled, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (event_type) DO UPDATE SET
	retention_days = EXCLUDED.retention_days,
	auto_delete = EXCLUDED.auto_delete,
	archive_before_delete = EXCLUDED.archive_before_delete,
	is_enabled = EXCLUDED.is_enabled,
	updated_at = EXCLUDED.updated_at
RETURNING `+policyColumns,
		string(p.EventType), p.RetentionDays, p.AutoDelete, p.ArchiveBeforeDelete, p.IsEnabled, p.UpdatedAt)
	out, err := scanPolicy(row)
	if err != nil {
		return Policy{}, fmt.Errorf("upsert retention policy: %w", err)
	}
	return out, nil
}

func (r *PostgresRepo) Get(ctx context.Context, eventType audit.EventType) (Policy, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+policyColumns+` FROM retention_policies WHERE event_type = $1`, string(eventType))
	p, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Policy{}, ErrNotFound
	}
	if err != nil {
		return Policy{}, fmt.Errorf("get retention policy: %w", err)
	}
	return p, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]Policy, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+policyColumns+` FROM retention_policies ORDER BY event_type`)
	if err != nil {
		return nil, fmt.Errorf("list retention policies: %w", err)
	}
	defer rows.Close()

	out := make([]Policy, 0)
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) SetEnabled(ctx context.Context, eventType audit.EventType, enabled bool, at time.Time) (Policy, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE retention_policies SET is_enabled = $2, updated_at = $3 WHERE event_type = $1 RETURNING `+policyColumns,
		string(eventType), enabled, at)
	p, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Policy{}, ErrNotFound
	}
	if err != nil {
		return Policy{}, fmt.Errorf("set retention policy enabled: %w", err)
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (Policy, error) {
	var p Policy
	var eventType string
	if err := row.Scan(&p.ID, &eventType, &p.RetentionDays, &p.AutoDelete, &p.ArchiveBeforeDelete, &p.IsEnabled, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Policy{}, err
	}
	p.EventType = audit.EventType(eventType)
	return p, nil
}
