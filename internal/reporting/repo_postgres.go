package reporting

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"casino-platform/pkg/utils"
)

const Schema = `
CREATE TABLE IF NOT EXISTS audit_reports (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	report_name TEXT NOT NULL,
	report_type TEXT NOT NULL,
	parameters JSONB NOT NULL DEFAULT '{}'::jsonb,
	status TEXT NOT NULL DEFAULT 'pending',
	file_url TEXT,
	error TEXT,
	generated_at TIMESTAMPTZ,
	requested_by TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS audit_reports_created_idx ON audit_reports (created_at DESC)
`

const reportColumns = `id::text, report_name, report_type, parameters, status, file_url, error, generated_at, requested_by, created_at, updated_at`

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Migrate(ctx context.Context) error {
	return utils.ExecSchema(ctx, r.db, Schema)
}

func (r *PostgresRepo) Create(ctx context.Context, rep Report) (Report, error) {
	params, err := json.Marshal(rep.Parameters)
	if err != nil {
		return Report{}, fmt.Errorf("report parameters: %w", err)
	}
	row := r.db.QueryRowContext(ctx, `
INSERT INTO audit_reports (report_name, report_type, parameters, status, requested_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+reportColumns,
		rep.ReportName, string(rep.ReportType), string(params), string(rep.Status), rep.RequestedBy, rep.CreatedAt, rep.UpdatedAt)
	out, err := scanReport(row)
	if err != nil {
		return Report{}, fmt.Errorf("create report: %w", err)
	}
	return out, nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Report, error) {
	out, err := scanReport(r.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM audit_reports WHERE id::text = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, ErrNotFound
	}
	if err != nil {
		return Report{}, fmt.Errorf("get report: %w", err)
	}
	return out, nil
}

func (r *PostgresRepo) List(ctx context.Context, f ListFilter) ([]Report, error) {
	query, args := buildListQuery(f)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := make([]Report, 0)
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

func buildListQuery(f ListFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(column string, v string) {
		if v == "" {
			return
		}
		args = append(args, v)
		conds = append(conds, column+" = $"+strconv.Itoa(len(args)))
	}
	add("status", string(f.Status))
	add("report_type", string(f.ReportType))
	add("requested_by", f.RequestedBy)

	query := `SELECT ` + reportColumns + ` FROM audit_reports`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}
	return query, args
}

func (r *PostgresRepo) Update(ctx context.Context, rep Report, from Status) (Report, error) {
	row := r.db.QueryRowContext(ctx, `
UPDATE audit_reports
SET status = $2, file_url = $3, error = $4, generated_at = $5, updated_at = $6
WHERE id::text = $1 AND status = $7
RETURNING `+reportColumns,
		rep.ID, string(rep.Status), nullString(rep.FileURL), nullString(rep.Error), rep.GeneratedAt, rep.UpdatedAt, string(from))
	out, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.Get(ctx, rep.ID); errors.Is(getErr, ErrNotFound) {
			return Report{}, ErrNotFound
		}
		return Report{}, ErrInvalidTransition
	}
	if err != nil {
		return Report{}, fmt.Errorf("update report: %w", err)
	}
	return out, nil
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM audit_reports WHERE id::text = $1`, id)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (Report, error) {
	var (
		rep                 Report
		reportType, status  string
		params              []byte
		fileURL, errMessage sql.NullString
		generatedAt         sql.NullTime
	)
	if err := row.Scan(&rep.ID, &rep.ReportName, &reportType, &params, &status, &fileURL, &errMessage, &generatedAt, &rep.RequestedBy, &rep.CreatedAt, &rep.UpdatedAt); err != nil {
		return Report{}, err
	}
	rep.ReportType = ReportType(reportType)
	rep.Status = Status(status)
	rep.FileURL = fileURL.String
	rep.Error = errMessage.String
	if generatedAt.Valid {
		t := generatedAt.Time
		rep.GeneratedAt = &t
	}
	rep.Parameters = map[string]any{}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &rep.Parameters); err != nil {
			return Report{}, fmt.Errorf("report parameters: %w", err)
		}
	}
	return rep, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
