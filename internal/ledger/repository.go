package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-books/meridian/internal/accounts"
	"github.com/meridian-books/meridian/internal/money"
	"github.com/meridian-books/meridian/internal/platform/db"
	"github.com/meridian-books/meridian/internal/shared"
	"github.com/meridian-books/meridian/internal/transactions"
)

// Repository is the balance-change store contract. Change rows are
// append-only; account balances move only inside WithTx.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ChangesByTransaction(ctx context.Context, txID uuid.UUID) ([]BalanceChange, error)
	ChangesByAccount(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]BalanceChange, error)
	IsReversed(ctx context.Context, txID uuid.UUID) (bool, error)
}

// TxRepository exposes the operations available inside the atomic posting
// unit.
type TxRepository interface {
	GetAccountForUpdate(ctx context.Context, id uuid.UUID) (accounts.Account, error)
	UpdateAccountBalance(ctx context.Context, id uuid.UUID, balance money.Cents) error
	InsertChange(ctx context.Context, change BalanceChange) error
	ListChanges(ctx context.Context, txID uuid.UUID) ([]BalanceChange, error)
	UpdateTransactionStatus(ctx context.Context, id uuid.UUID, from, to transactions.Status) error
	MarkReversed(ctx context.Context, originalTxID, reversalTxID, reversedBy uuid.UUID, reason string, at time.Time) error
	IsReversed(ctx context.Context, txID uuid.UUID) (bool, error)
}

const changeColumns = `id, account_id, transaction_id, line_id, line_type, amount_cents,
previous_balance_cents, normal_balance, delta_cents, resulting_balance_cents, is_reversal, created_at`

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the pgx-backed balance-change store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		if db.IsSerializationFailure(err) {
			return shared.Wrap(shared.KindConflictDetected, "ledger: commit lost serialization race", err)
		}
		return err
	}
	return nil
}

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryChanges(ctx context.Context, q rowQuerier, sql string, args ...any) ([]BalanceChange, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BalanceChange
	for rows.Next() {
		var c BalanceChange
		var lineType, normal string
		var amount, prev, delta, resulting int64
		if err := rows.Scan(&c.ID, &c.AccountID, &c.TransactionID, &c.LineID, &lineType, &amount,
			&prev, &normal, &delta, &resulting, &c.Reversal, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.LineType = money.LineType(lineType)
		c.Amount = money.Cents(amount)
		c.PreviousBalance = money.Cents(prev)
		c.NormalBalance = money.NormalBalance(normal)
		c.Delta = money.Cents(delta)
		c.ResultingBalance = money.Cents(resulting)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repository) ChangesByTransaction(ctx context.Context, txID uuid.UUID) ([]BalanceChange, error) {
	return queryChanges(ctx, r.pool, `SELECT `+changeColumns+`
FROM balance_changes WHERE transaction_id = $1 ORDER BY created_at ASC`, txID)
}

func (r *repository) ChangesByAccount(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]BalanceChange, error) {
	return queryChanges(ctx, r.pool, `SELECT `+changeColumns+`
FROM balance_changes WHERE account_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at ASC`, accountID, from, to)
}

func (r *repository) IsReversed(ctx context.Context, txID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM transaction_reversals WHERE original_transaction_id = $1)`,
		txID).Scan(&exists)
	return exists, err
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (accounts.Account, error) {
	var a accounts.Account
	var accountType string
	var bal int64
	err := r.tx.QueryRow(ctx, `SELECT id, code, name, type, company_id, parent_id, is_active, balance_cents, version, created_at, updated_at
FROM accounts WHERE id = $1 FOR UPDATE`, id).Scan(&a.ID, &a.Code, &a.Name, &accountType,
		&a.CompanyID, &a.ParentID, &a.IsActive, &bal, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return accounts.Account{}, shared.Ef(shared.KindNotFound, "ledger: account %s not found", id)
		}
		return accounts.Account{}, err
	}
	a.Type = money.AccountType(accountType)
	a.Balance = money.Cents(bal)
	return a, nil
}

func (r *txRepository) UpdateAccountBalance(ctx context.Context, id uuid.UUID, balance money.Cents) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE accounts SET balance_cents = $2, version = version + 1, updated_at = NOW() WHERE id = $1`,
		id, int64(balance))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.Ef(shared.KindNotFound, "ledger: account %s not found", id)
	}
	return nil
}

func (r *txRepository) InsertChange(ctx context.Context, change BalanceChange) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO balance_changes
(id, account_id, transaction_id, line_id, line_type, amount_cents, previous_balance_cents,
 normal_balance, delta_cents, resulting_balance_cents, is_reversal, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		change.ID, change.AccountID, change.TransactionID, change.LineID, string(change.LineType),
		int64(change.Amount), int64(change.PreviousBalance), string(change.NormalBalance),
		int64(change.Delta), int64(change.ResultingBalance), change.Reversal, change.CreatedAt)
	return err
}

func (r *txRepository) ListChanges(ctx context.Context, txID uuid.UUID) ([]BalanceChange, error) {
	return queryChanges(ctx, r.tx, `SELECT `+changeColumns+`
FROM balance_changes WHERE transaction_id = $1 AND is_reversal = FALSE
ORDER BY created_at ASC`, txID)
}

func (r *txRepository) UpdateTransactionStatus(ctx context.Context, id uuid.UUID, from, to transactions.Status) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE transactions SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`,
		id, string(from), string(to))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.Ef(shared.KindPreconditionFailed, "ledger: transaction %s is not %s", id, from)
	}
	return nil
}

func (r *txRepository) MarkReversed(ctx context.Context, originalTxID, reversalTxID, reversedBy uuid.UUID, reason string, at time.Time) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO transaction_reversals
(original_transaction_id, reversal_transaction_id, reversed_by, reason, reversed_at)
VALUES ($1,$2,$3,$4,$5)`, originalTxID, reversalTxID, reversedBy, reason, at)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return shared.Wrap(shared.KindConflictDetected, "ledger: transaction already reversed", err)
		}
		return err
	}
	return nil
}

func (r *txRepository) IsReversed(ctx context.Context, txID uuid.UUID) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM transaction_reversals WHERE original_transaction_id = $1)`,
		txID).Scan(&exists)
	return exists, err
}
