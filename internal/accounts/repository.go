package accounts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-books/meridian/internal/balance"
	"github.com/meridian-books/meridian/internal/money"
	"github.com/meridian-books/meridian/internal/platform/db"
	"github.com/meridian-books/meridian/internal/shared"
)

// Repository is the account store contract consumed by the posting core.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (Account, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Account, error)
	Save(ctx context.Context, account Account) error
	ExistsByCode(ctx context.Context, companyID uuid.UUID, code string) (bool, error)
	List(ctx context.Context, companyID uuid.UUID) ([]Account, error)
	// SummaryFor aggregates running balances by account type.
	SummaryFor(ctx context.Context, companyID uuid.UUID) (balance.Summary, error)
}

const accountColumns = `id, code, name, type, company_id, parent_id, is_active, balance_cents, version, created_at, updated_at`

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the pgx-backed account store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	var accountType string
	var bal int64
	err := row.Scan(&a.ID, &a.Code, &a.Name, &accountType, &a.CompanyID, &a.ParentID,
		&a.IsActive, &bal, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Account{}, err
	}
	a.Type = money.AccountType(accountType)
	a.Balance = money.Cents(bal)
	return a, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (Account, error) {
	account, err := scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.Ef(shared.KindNotFound, "accounts: %s not found", id)
		}
		return Account{}, err
	}
	return account, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Account, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID]Account, len(ids))
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out[account.ID] = account
	}
	return out, rows.Err()
}

func (r *repository) Save(ctx context.Context, account Account) error {
	tag, err := r.pool.Exec(ctx, `INSERT INTO accounts
(id, code, name, type, company_id, parent_id, is_active, balance_cents, version, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9, NOW(), NOW())
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	is_active = EXCLUDED.is_active,
	balance_cents = EXCLUDED.balance_cents,
	version = accounts.version + 1,
	updated_at = NOW()
WHERE accounts.version = $9 - 1`,
		account.ID, account.Code, account.Name, string(account.Type), account.CompanyID,
		account.ParentID, account.IsActive, int64(account.Balance), account.Version)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return shared.Wrap(shared.KindConflictDetected, "accounts: code already in use", err)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.Ef(shared.KindConflictDetected, "accounts: %s modified concurrently", account.ID)
	}
	return nil
}

func (r *repository) ExistsByCode(ctx context.Context, companyID uuid.UUID, code string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE company_id = $1 AND code = $2)`,
		companyID, code).Scan(&exists)
	return exists, err
}

func (r *repository) List(ctx context.Context, companyID uuid.UUID) ([]Account, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE company_id = $1 ORDER BY code ASC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, account)
	}
	return out, rows.Err()
}

func (r *repository) SummaryFor(ctx context.Context, companyID uuid.UUID) (balance.Summary, error) {
	rows, err := r.pool.Query(ctx, `SELECT type, COALESCE(SUM(balance_cents), 0)
FROM accounts WHERE company_id = $1 GROUP BY type`, companyID)
	if err != nil {
		return balance.Summary{}, err
	}
	defer rows.Close()
	summary := balance.Summary{CompanyID: companyID}
	for rows.Next() {
		var accountType string
		var total int64
		if err := rows.Scan(&accountType, &total); err != nil {
			return balance.Summary{}, err
		}
		switch money.AccountType(accountType) {
		case money.AccountTypeAsset:
			summary.Assets = money.Cents(total)
		case money.AccountTypeLiability:
			summary.Liabilities = money.Cents(total)
		case money.AccountTypeEquity:
			summary.Equity = money.Cents(total)
		case money.AccountTypeRevenue:
			summary.Revenue = money.Cents(total)
		case money.AccountTypeExpense:
			summary.Expenses = money.Cents(total)
		}
	}
	return summary, rows.Err()
}
