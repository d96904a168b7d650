package approvals

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-books/meridian/internal/shared"
)

const approvalColumns = `id, company_id, entity_type, entity_id, approval_type, reason_text, reason_details,
status, requested_by, reviewed_by, requested_at, reviewed_at, expires_at, review_notes`

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the pgx-backed approval store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func scanApproval(row pgx.Row) (Approval, error) {
	var a Approval
	var approvalType, status string
	var details []byte
	err := row.Scan(&a.ID, &a.CompanyID, &a.EntityType, &a.EntityID, &approvalType, &a.Reason.Text, &details,
		&status, &a.RequestedBy, &a.ReviewedBy, &a.RequestedAt, &a.ReviewedAt, &a.ExpiresAt, &a.ReviewNotes)
	if err != nil {
		return Approval{}, err
	}
	a.Type = Type(approvalType)
	a.Status = Status(status)
	if len(details) > 0 {
		if err := json.Unmarshal(details, &a.Reason.Details); err != nil {
			return Approval{}, err
		}
	}
	return a, nil
}

func (r *repository) Save(ctx context.Context, approval Approval) error {
	details, err := json.Marshal(approval.Reason.Details)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO approvals
(id, company_id, entity_type, entity_id, approval_type, reason_text, reason_details, status,
 requested_by, reviewed_by, requested_at, reviewed_at, expires_at, review_notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		approval.ID, approval.CompanyID, approval.EntityType, approval.EntityID, string(approval.Type),
		approval.Reason.Text, details, string(approval.Status), approval.RequestedBy, approval.ReviewedBy,
		approval.RequestedAt, approval.ReviewedAt, approval.ExpiresAt, approval.ReviewNotes)
	return err
}

func (r *repository) Update(ctx context.Context, approval Approval, expected Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE approvals SET
status = $2, reviewed_by = $3, reviewed_at = $4, review_notes = $5
WHERE id = $1 AND status = $6`,
		approval.ID, string(approval.Status), approval.ReviewedBy, approval.ReviewedAt,
		approval.ReviewNotes, string(expected))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.Ef(shared.KindConflictDetected, "approvals: %s is no longer %s", approval.ID, expected)
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (Approval, error) {
	approval, err := scanApproval(r.pool.QueryRow(ctx,
		`SELECT `+approvalColumns+` FROM approvals WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Approval{}, shared.Ef(shared.KindNotFound, "approvals: %s not found", id)
		}
		return Approval{}, err
	}
	return approval, nil
}

func (r *repository) FindPendingFor(ctx context.Context, entityType, entityID string, approvalType Type) (Approval, error) {
	return r.findFor(ctx, entityType, entityID, approvalType, StatusPending)
}

func (r *repository) FindApprovedFor(ctx context.Context, entityType, entityID string, approvalType Type) (Approval, error) {
	return r.findFor(ctx, entityType, entityID, approvalType, StatusApproved)
}

func (r *repository) findFor(ctx context.Context, entityType, entityID string, approvalType Type, status Status) (Approval, error) {
	approval, err := scanApproval(r.pool.QueryRow(ctx,
		`SELECT `+approvalColumns+` FROM approvals
WHERE entity_type = $1 AND entity_id = $2 AND approval_type = $3 AND status = $4
ORDER BY requested_at DESC LIMIT 1`,
		entityType, entityID, string(approvalType), string(status)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Approval{}, shared.Ef(shared.KindNotFound, "approvals: no %s %s approval for %s/%s",
				status, approvalType, entityType, entityID)
		}
		return Approval{}, err
	}
	return approval, nil
}

func (r *repository) FindExpiredPending(ctx context.Context, asOf time.Time, limit int) ([]Approval, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+approvalColumns+` FROM approvals
WHERE status = $1 AND expires_at <= $2 ORDER BY expires_at ASC LIMIT $3`,
		string(StatusPending), asOf, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Approval
	for rows.Next() {
		approval, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, approval)
	}
	return out, rows.Err()
}
