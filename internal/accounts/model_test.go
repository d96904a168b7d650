package accounts

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-books/meridian/internal/money"
	"github.com/meridian-books/meridian/internal/shared"
)

func TestNewAccountDerivesTypeFromCode(t *testing.T) {
	company := uuid.New()

	account, err := New("1010", "Cash", company)
	require.NoError(t, err)
	assert.Equal(t, money.AccountTypeAsset, account.Type)
	assert.Equal(t, money.SideDebit, account.NormalBalance())
	assert.True(t, account.IsActive)
	assert.Equal(t, money.Cents(0), account.Balance)

	account, err = New("4000", "Sales", company)
	require.NoError(t, err)
	assert.Equal(t, money.AccountTypeRevenue, account.Type)
	assert.Equal(t, money.SideCredit, account.NormalBalance())
}

func TestNewAccountValidation(t *testing.T) {
	company := uuid.New()

	_, err := New("9999", "Unknown", company)
	require.Error(t, err)
	assert.Equal(t, shared.KindValidationFailed, shared.KindOf(err))

	_, err = New("1010", "  ", company)
	require.Error(t, err)

	_, err = New("1010", "Cash", uuid.Nil)
	require.Error(t, err)
}

func TestAccountLifecycle(t *testing.T) {
	account, err := New("2100", "Accounts Payable", uuid.New())
	require.NoError(t, err)

	account.Deactivate()
	assert.False(t, account.IsActive)
	account.Activate()
	assert.True(t, account.IsActive)

	require.NoError(t, account.Rename("Trade Payables"))
	assert.Equal(t, "Trade Payables", account.Name)
	require.Error(t, account.Rename(""))
}
