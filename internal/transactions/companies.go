package transactions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-books/meridian/internal/shared"
)

type companyStore struct {
	pool *pgxpool.Pool
}

// NewCompanyStore returns the pgx-backed company lookup.
func NewCompanyStore(pool *pgxpool.Pool) CompanyStore {
	return &companyStore{pool: pool}
}

func (s *companyStore) FunctionalCurrency(ctx context.Context, companyID uuid.UUID) (string, error) {
	var currency string
	err := s.pool.QueryRow(ctx,
		`SELECT functional_currency FROM companies WHERE id = $1`, companyID).Scan(&currency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.Ef(shared.KindNotFound, "transactions: company %s not found", companyID)
		}
		return "", err
	}
	return currency, nil
}
