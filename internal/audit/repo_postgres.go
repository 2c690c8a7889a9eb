package audit

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"casino-platform/pkg/utils"
)

// Schema creates the audit_events table. Flags live in JSONB so they round-trip
// through database/sql without array adapters.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	event_id TEXT NOT NULL,
	correlation_id TEXT,
	actor_type TEXT NOT NULL,
	actor_id TEXT,
	actor_email TEXT,
	actor_ip_address TEXT,
	actor_user_agent TEXT,
	actor_device_fingerprint TEXT,
	actor_session_id TEXT,
	target_type TEXT,
	target_id TEXT,
	target_name TEXT,
	event_type TEXT NOT NULL,
	action TEXT NOT NULL,
	description TEXT,
	old_values JSONB,
	new_values JSONB,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	severity TEXT NOT NULL,
	status TEXT NOT NULL,
	risk_score INTEGER NOT NULL DEFAULT 0 CHECK (risk_score BETWEEN 0 AND 100),
	compliance_flags JSONB NOT NULL DEFAULT '[]'::jsonb,
	security_flags JSONB NOT NULL DEFAULT '[]'::jsonb,
	country_code TEXT,
	region TEXT,
	city TEXT,
	timezone TEXT,
	occurred_at TIMESTAMPTZ NOT NULL,
	processed_at TIMESTAMPTZ,
	expires_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS audit_events_occurred_at_idx ON audit_events (occurred_at DESC);
CREATE INDEX IF NOT EXISTS audit_events_type_occurred_idx ON audit_events (event_type, occurred_at);
CREATE INDEX IF NOT EXISTS audit_events_actor_idx ON audit_events (actor_id);
CREATE INDEX IF NOT EXISTS audit_events_expires_at_idx ON audit_events (expires_at) WHERE expires_at IS NOT NULL
`

const deleteChunkSize = 1000

const eventColumns = `id::text, event_id, correlation_id, actor_type, actor_id, actor_email,
	actor_ip_address, actor_user_agent, actor_device_fingerprint, actor_session_id,
	target_type, target_id, target_name, event_type, action, description,
	old_values, new_values, metadata, severity, status, risk_score,
	compliance_flags, security_flags, country_code, region, city, timezone,
	occurred_at, processed_at, expires_at`

// PostgresRepo stores audit events in Postgres through database/sql (pgx driver).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Migrate(ctx context.Context) error {
	return utils.ExecSchema(ctx, r.db, Schema)
}

func (r *PostgresRepo) Insert(ctx context.Context, e Event) (string, error) {
	args, err := insertArgs(e)
	if err != nil {
		return "", err
	}
	var id string
	if err := r.db.QueryRowContext(ctx, insertEventSQL, args...).Scan(&id); err != nil {
		return "", fmt.Errorf("insert audit event: %w", err)
	}
	return id, nil
}

const insertEventSQL = `INSERT INTO audit_events (
	event_id, correlation_id, actor_type, actor_id, actor_email,
	actor_ip_address, actor_user_agent, actor_device_fingerprint, actor_session_id,
	target_type, target_id, target_name, event_type, action, description,
	old_values, new_values, metadata, severity, status, risk_score,
	compliance_flags, security_flags, country_code, region, city, timezone,
	occurred_at, processed_at, expires_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30)
RETURNING id::text`

func insertArgs(e Event) ([]any, error) {
	oldValues, err := marshalNullable(e.OldValues)
	if err != nil {
		return nil, fmt.Errorf("old_values: %w", err)
	}
	newValues, err := marshalNullable(e.NewValues)
	if err != nil {
		return nil, fmt.Errorf("new_values: %w", err)
	}
	metadata, err := marshalDefault(e.Metadata, "{}")
	if err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	compliance, err := marshalDefault(e.ComplianceFlags, "[]")
	if err != nil {
		return nil, err
	}
	security, err := marshalDefault(e.SecurityFlags, "[]")
	if err != nil {
		return nil, err
	}

	return []any{
		e.EventID, nullString(e.CorrelationID), string(e.ActorType), nullString(e.ActorID), nullString(e.ActorEmail),
		nullString(e.ActorIPAddress), nullString(e.ActorUserAgent), nullString(e.ActorDeviceFingerprint), nullString(e.ActorSessionID),
		nullString(e.TargetType), nullString(e.TargetID), nullString(e.TargetName), string(e.EventType), e.Action, nullString(e.Description),
		oldValues, newValues, metadata, string(e.Severity), string(e.Status), e.Risk(),
		compliance, security, nullString(e.CountryCode), nullString(e.Region), nullString(e.City), nullString(e.Timezone),
		e.OccurredAt, nullTime(e.ProcessedAt), nullTime(e.ExpiresAt),
	}, nil
}

func (r *PostgresRepo) Query(ctx context.Context, f Filter) ([]Event, error) {
	query, args := buildTrailQuery(f)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	out := make([]Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Count(ctx context.Context, f Filter) (int64, error) {
	query, args := buildCountQuery(f)
	var n int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count audit events: %w", err)
	}
	return n, nil
}

const summarySQL = `SELECT event_type,
	COUNT(*) AS total_count,
	COUNT(DISTINCT actor_id) AS unique_actors,
	COUNT(*) FILTER (WHERE risk_score >= $3) AS high_risk_count,
	COUNT(*) FILTER (WHERE severity = 'critical') AS critical_count,
	COALESCE(AVG(risk_score), 0)::float8 AS avg_risk_score
FROM audit_events
WHERE occurred_at >= $1 AND occurred_at <= $2
GROUP BY event_type
ORDER BY total_count DESC, event_type`

func (r *PostgresRepo) Summary(ctx context.Context, start, end time.Time) ([]SummaryRow, error) {
	rows, err := r.db.QueryContext(ctx, summarySQL, start, end, HighRiskThreshold)
	if err != nil {
		return nil, fmt.Errorf("audit summary: %w", err)
	}
	defer rows.Close()

	out := make([]SummaryRow, 0)
	for rows.Next() {
		var row SummaryRow
		var eventType string
		if err := rows.Scan(&eventType, &row.TotalCount, &row.UniqueActors, &row.HighRiskCount, &row.CriticalCount, &row.AvgRiskScore); err != nil {
			return nil, err
		}
		row.EventType = EventType(eventType)
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) DeleteExpired(ctx context.Context, now time.Time, skip []EventType) (int64, error) {
	query, args := buildDeleteExpiredQuery(now, skip)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete expired audit events: %w", err)
	}
	return res.RowsAffected()
}

func (r *PostgresRepo) DeleteOlderThan(ctx context.Context, eventType EventType, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM audit_events WHERE event_type = $1 AND occurred_at < $2`, string(eventType), cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete audit events before cutoff: %w", err)
	}
	return res.RowsAffected()
}

// DeleteByIDs removes events by primary key in chunks of deleteChunkSize.
func (r *PostgresRepo) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	var total int64
	for chunk := range slices.Chunk(ids, deleteChunkSize) {
		res, err := r.db.ExecContext(ctx, `DELETE FROM audit_events WHERE id = ANY($1::text[]::uuid[])`, chunk)
		if err != nil {
			return total, fmt.Errorf("delete audit events by id: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (r *PostgresRepo) ForEachOlderThan(ctx context.Context, eventType EventType, cutoff time.Time, fn func(Event) error) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM audit_events WHERE event_type = $1 AND occurred_at < $2 ORDER BY occurred_at ASC`,
		string(eventType), cutoff)
	if err != nil {
		return fmt.Errorf("scan audit events before cutoff: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *PostgresRepo) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events WHERE occurred_at >= $1`, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("count audit events since: %w", err)
	}
	return n, nil
}

func buildDeleteExpiredQuery(now time.Time, skip []EventType) (string, []any) {
	p := &placeholders{}
	query := `DELETE FROM audit_events WHERE expires_at IS NOT NULL AND expires_at <= ` + p.add(now)
	if len(skip) > 0 {
		types := make([]string, len(skip))
		for i, t := range skip {
			types[i] = string(t)
		}
		query += ` AND NOT (event_type = ANY(` + p.add(types) + `::text[]))`
	}
	return query, p.args
}

// placeholders collects positional arguments and hands out $n markers.
type placeholders struct {
	args []any
}

func (p *placeholders) add(v any) string {
	p.args = append(p.args, v)
	return "$" + strconv.Itoa(len(p.args))
}

func buildFilterConditions(f Filter, p *placeholders) []string {
	var conds []string
	conds = appendStringCondition(conds, p, "event_type", string(f.EventType))
	conds = appendStringCondition(conds, p, "actor_type", string(f.ActorType))
	conds = appendStringCondition(conds, p, "actor_id", f.ActorID)
	conds = appendStringCondition(conds, p, "target_type", f.TargetType)
	conds = appendStringCondition(conds, p, "target_id", f.TargetID)
	conds = appendStringCondition(conds, p, "severity", string(f.Severity))
	conds = appendStringCondition(conds, p, "status", string(f.Status))
	conds = appendStringCondition(conds, p, "country_code", f.CountryCode)

	if f.StartDate != nil {
		conds = append(conds, "occurred_at >= "+p.add(*f.StartDate))
	}
	if f.EndDate != nil {
		conds = append(conds, "occurred_at <= "+p.add(*f.EndDate))
	}
	if f.RiskScoreMin != nil {
		conds = append(conds, "risk_score >= "+p.add(*f.RiskScoreMin))
	}
	if f.RiskScoreMax != nil {
		conds = append(conds, "risk_score <= "+p.add(*f.RiskScoreMax))
	}
	return conds
}

func appendStringCondition(conds []string, p *placeholders, column, value string) []string {
	if value == "" {
		return conds
	}
	return append(conds, column+" = "+p.add(value))
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func buildTrailQuery(f Filter) (string, []any) {
	p := &placeholders{}
	query := "SELECT " + eventColumns + " FROM audit_events" + whereClause(buildFilterConditions(f, p)) +
		" ORDER BY occurred_at DESC, created_at DESC"
	if f.Limit > 0 {
		query += " LIMIT " + p.add(f.Limit)
	}
	if f.Offset > 0 {
		query += " OFFSET " + p.add(f.Offset)
	}
	return query, p.args
}

func buildCountQuery(f Filter) (string, []any) {
	p := &placeholders{}
	return "SELECT COUNT(*) FROM audit_events" + whereClause(buildFilterConditions(f, p)), p.args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (Event, error) {
	var (
		e                                                        Event
		correlationID, actorID, actorEmail, actorIP, actorUA     sql.NullString
		fingerprint, sessionID, targetType, targetID, targetName sql.NullString
		description, countryCode, region, city, timezone         sql.NullString
		actorType, eventType, severity, status                   string
		oldValues, newValues, metadata, compliance, security     []byte
		risk                                                     int
		processedAt, expiresAt                                   sql.NullTime
	)
	err := row.Scan(
		&e.ID, &e.EventID, &correlationID, &actorType, &actorID, &actorEmail,
		&actorIP, &actorUA, &fingerprint, &sessionID,
		&targetType, &targetID, &targetName, &eventType, &e.Action, &description,
		&oldValues, &newValues, &metadata, &severity, &status, &risk,
		&compliance, &security, &countryCode, &region, &city, &timezone,
		&e.OccurredAt, &processedAt, &expiresAt,
	)
	if err != nil {
		return Event{}, fmt.Errorf("scan audit event: %w", err)
	}

	e.CorrelationID = correlationID.String
	e.ActorType = ActorType(actorType)
	e.ActorID = actorID.String
	e.ActorEmail = actorEmail.String
	e.ActorIPAddress = actorIP.String
	e.ActorUserAgent = actorUA.String
	e.ActorDeviceFingerprint = fingerprint.String
	e.ActorSessionID = sessionID.String
	e.TargetType = targetType.String
	e.TargetID = targetID.String
	e.TargetName = targetName.String
	e.EventType = EventType(eventType)
	e.Description = description.String
	e.Severity = Severity(severity)
	e.Status = Status(status)
	e.RiskScore = Score(risk)
	e.CountryCode = countryCode.String
	e.Region = region.String
	e.City = city.String
	e.Timezone = timezone.String
	if processedAt.Valid {
		t := processedAt.Time
		e.ProcessedAt = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		e.ExpiresAt = &t
	}

	if err := unmarshalIfPresent(oldValues, &e.OldValues); err != nil {
		return Event{}, fmt.Errorf("old_values: %w", err)
	}
	if err := unmarshalIfPresent(newValues, &e.NewValues); err != nil {
		return Event{}, fmt.Errorf("new_values: %w", err)
	}
	if err := unmarshalIfPresent(metadata, &e.Metadata); err != nil {
		return Event{}, fmt.Errorf("metadata: %w", err)
	}
	e.ComplianceFlags = []string{}
	if err := unmarshalIfPresent(compliance, &e.ComplianceFlags); err != nil {
		return Event{}, fmt.Errorf("compliance_flags: %w", err)
	}
	e.SecurityFlags = []string{}
	if err := unmarshalIfPresent(security, &e.SecurityFlags); err != nil {
		return Event{}, fmt.Errorf("security_flags: %w", err)
	}
	return e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// marshalNullable encodes v as JSON text, or SQL NULL for an empty map.
func marshalNullable(v map[string]any) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func marshalDefault[T any](v T, empty string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if s := string(b); s != "null" {
		return s, nil
	}
	return empty, nil
}

func unmarshalIfPresent(b []byte, dst any) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, dst)
}
