package transactions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-books/meridian/internal/money"
	"github.com/meridian-books/meridian/internal/platform/db"
	"github.com/meridian-books/meridian/internal/shared"
)

// Repository is the transaction/line store contract.
type Repository interface {
	Save(ctx context.Context, tx Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (Transaction, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error
	ReplaceLines(ctx context.Context, txID uuid.UUID, lines []Line) error
	NextReference(ctx context.Context, companyID uuid.UUID) (string, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the pgx-backed transaction store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Save(ctx context.Context, tx Transaction) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO transactions
(id, company_id, created_by, currency, description, date, status, reference, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8, NOW(), NOW())
ON CONFLICT (id) DO UPDATE SET
	description = EXCLUDED.description,
	date = EXCLUDED.date,
	status = EXCLUDED.status,
	updated_at = NOW()`,
		tx.ID, tx.CompanyID, tx.CreatedBy, tx.Currency, tx.Description, tx.Date, string(tx.Status), tx.Reference)
	if err != nil {
		return err
	}
	return r.ReplaceLines(ctx, tx.ID, tx.Lines)
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (Transaction, error) {
	var tx Transaction
	var status string
	err := r.pool.QueryRow(ctx, `SELECT id, company_id, created_by, currency, description, date, status, reference, created_at, updated_at
FROM transactions WHERE id = $1`, id).Scan(&tx.ID, &tx.CompanyID, &tx.CreatedBy, &tx.Currency,
		&tx.Description, &tx.Date, &status, &tx.Reference, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, shared.Ef(shared.KindNotFound, "transactions: %s not found", id)
		}
		return Transaction{}, err
	}
	tx.Status = Status(status)

	rows, err := r.pool.Query(ctx, `SELECT id, transaction_id, account_id, line_type, amount_cents, description
FROM transaction_lines WHERE transaction_id = $1 ORDER BY position ASC`, id)
	if err != nil {
		return Transaction{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line Line
		var lineType string
		var amount int64
		if err := rows.Scan(&line.ID, &line.TransactionID, &line.AccountID, &lineType, &amount, &line.Description); err != nil {
			return Transaction{}, err
		}
		line.Type = money.LineType(lineType)
		line.Amount = money.Cents(amount)
		tx.Lines = append(tx.Lines, line)
	}
	return tx, rows.Err()
}

// UpdateStatus moves the transaction between states only when it is still
// in the expected one, so concurrent posters observe a conflict instead
// of silently overwriting each other.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE transactions SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`,
		id, string(from), string(to))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.Ef(shared.KindPreconditionFailed, "transactions: %s is not %s", id, from)
	}
	return nil
}

func (r *repository) ReplaceLines(ctx context.Context, txID uuid.UUID, lines []Line) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM transaction_lines WHERE transaction_id = $1`, txID); err != nil {
		return err
	}
	for position, line := range lines {
		if _, err := r.pool.Exec(ctx, `INSERT INTO transaction_lines
(id, transaction_id, account_id, line_type, amount_cents, description, position)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			line.ID, txID, line.AccountID, string(line.Type), int64(line.Amount), line.Description, position); err != nil {
			return err
		}
	}
	return nil
}

// NextReference allocates the next reference number for the company. The
// upsert bumps one counter row atomically, so concurrent drafters never
// observe the same sequence.
func (r *repository) NextReference(ctx context.Context, companyID uuid.UUID) (string, error) {
	var seq int64
	err := r.pool.QueryRow(ctx, `INSERT INTO transaction_refs (company_id, sequence)
VALUES ($1, 1)
ON CONFLICT (company_id) DO UPDATE SET sequence = transaction_refs.sequence + 1
RETURNING sequence`, companyID).Scan(&seq)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return "", shared.Wrap(shared.KindConflictDetected, "transactions: reference counter contention", err)
		}
		return "", err
	}
	return fmt.Sprintf("TXN-%06d", seq), nil
}
