package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-books/meridian/internal/shared"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the pgx-backed activity reader.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Window(ctx context.Context, filters Filters, offset, limit int) ([]shared.ActivityLog, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if !filters.From.IsZero() {
		where = append(where, "occurred_at >= "+arg(filters.From))
	}
	if !filters.To.IsZero() {
		where = append(where, "occurred_at < "+arg(filters.To))
	}
	if filters.CompanyID != uuid.Nil {
		where = append(where, "company_id = "+arg(filters.CompanyID))
	}
	if filters.ActorID != uuid.Nil {
		where = append(where, "actor_id = "+arg(filters.ActorID))
	}
	if filters.EntityType != "" {
		where = append(where, "entity_type = "+arg(filters.EntityType))
	}
	if filters.Severity != "" {
		where = append(where, "severity = "+arg(string(filters.Severity)))
	}

	query := `SELECT id, company_id, actor_id, activity_type, entity_type, entity_id, action,
previous_state, new_state, severity, request_id, occurred_at
FROM activity_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY occurred_at DESC OFFSET " + arg(offset) + " LIMIT " + arg(limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []shared.ActivityLog
	for rows.Next() {
		var (
			entry    shared.ActivityLog
			prevJSON []byte
			newJSON  []byte
			severity string
		)
		if err := rows.Scan(&entry.ID, &entry.CompanyID, &entry.ActorID, &entry.ActivityType,
			&entry.EntityType, &entry.EntityID, &entry.Action, &prevJSON, &newJSON,
			&severity, &entry.RequestID, &entry.At); err != nil {
			return nil, err
		}
		entry.Severity = shared.Severity(severity)
		if len(prevJSON) > 0 {
			if err := json.Unmarshal(prevJSON, &entry.PreviousState); err != nil {
				return nil, err
			}
		}
		if len(newJSON) > 0 {
			if err := json.Unmarshal(newJSON, &entry.NewState); err != nil {
				return nil, err
			}
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
