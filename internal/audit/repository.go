package audit

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository membaca authz_audit_log.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository membuat repository audit.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const selectEvents = `SELECT id, occurred_at, tenant_id, user_id, role_id, role_name, super_admin, route, method, path,
       requirement, allowed, reason, matched_permission, request_id, remote_addr
FROM authz_audit_log
WHERE tenant_id = $1
  AND ($2::timestamptz IS NULL OR occurred_at >= $2)
  AND ($3::timestamptz IS NULL OR occurred_at < $3)
  AND ($4::bigint IS NULL OR user_id = $4)
  AND ($5::text IS NULL OR route = $5)
  AND ($6::text IS NULL OR reason = $6)
  AND ($7::boolean IS NULL OR allowed = $7)
ORDER BY occurred_at DESC, id`

func filterArgs(f TimelineFilters) []any {
	var allowed pgtype.Bool
	if f.Allowed != nil {
		allowed = pgtype.Bool{Bool: *f.Allowed, Valid: true}
	}
	var user pgtype.Int8
	if f.UserID > 0 {
		user = pgtype.Int8{Int64: f.UserID, Valid: true}
	}
	return []any{f.TenantID, toPgTime(f.From), toPgTime(endOfDay(f.To)), user, optionalText(f.Route), optionalText(f.Reason), allowed}
}

// Window mengambil satu halaman timeline.
func (r *PGRepository) Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]Event, error) {
	args := append(filterArgs(filters), limit, offset)
	rows, err := r.pool.Query(ctx, selectEvents+" LIMIT $8 OFFSET $9", args...)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

// All mengambil seluruh timeline sesuai filter.
func (r *PGRepository) All(ctx context.Context, filters TimelineFilters) ([]Event, error) {
	rows, err := r.pool.Query(ctx, selectEvents, filterArgs(filters)...)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]Event, error) {
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var (
			ev        Event
			roleID    pgtype.Int8
			roleName  pgtype.Text
			matched   pgtype.Text
			requestID pgtype.Text
			remote    pgtype.Text
		)
		if err := rows.Scan(&ev.ID, &ev.At, &ev.TenantID, &ev.UserID, &roleID, &roleName, &ev.SuperAdmin, &ev.Route,
			&ev.Method, &ev.Path, &ev.Requirement, &ev.Allowed, &ev.Reason, &matched, &requestID, &remote); err != nil {
			return nil, err
		}
		if roleID.Valid {
			id := roleID.Int64
			ev.RoleID = &id
		}
		ev.RoleName = roleName.String
		ev.MatchedPermission = matched.String
		ev.RequestID = requestID.String
		ev.RemoteAddr = remote.String
		out = append(out, ev)
	}
	return out, rows.Err()
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func endOfDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.Add(24 * time.Hour)
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}

func nullableText(value string) pgtype.Text {
	return pgtype.Text{String: value, Valid: value != ""}
}

var _ Repository = (*PGRepository)(nil)
