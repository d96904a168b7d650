package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-books/meridian/internal/shared"
)

func TestParseCents(t *testing.T) {
	got, err := ParseCents("1234.50")
	require.NoError(t, err)
	assert.Equal(t, Cents(123450), got)

	got, err = ParseCents("-0.01")
	require.NoError(t, err)
	assert.Equal(t, Cents(-1), got)

	_, err = ParseCents("10.005")
	require.Error(t, err)
	assert.Equal(t, shared.KindValidationFailed, shared.KindOf(err))

	_, err = ParseCents("abc")
	require.Error(t, err)
}

func TestCentsString(t *testing.T) {
	assert.Equal(t, "1234.50", Cents(123450).String())
	assert.Equal(t, "-0.01", Cents(-1).String())
	assert.Equal(t, "0.00", Cents(0).String())
}

func TestNormalBalanceFor(t *testing.T) {
	assert.Equal(t, SideDebit, NormalBalanceFor(AccountTypeAsset))
	assert.Equal(t, SideDebit, NormalBalanceFor(AccountTypeExpense))
	assert.Equal(t, SideCredit, NormalBalanceFor(AccountTypeLiability))
	assert.Equal(t, SideCredit, NormalBalanceFor(AccountTypeEquity))
	assert.Equal(t, SideCredit, NormalBalanceFor(AccountTypeRevenue))
}

func TestAccountTypeFromCode(t *testing.T) {
	cases := map[string]AccountType{
		"1000": AccountTypeAsset,
		"2100": AccountTypeLiability,
		"3000": AccountTypeEquity,
		"4200": AccountTypeRevenue,
		"5100": AccountTypeExpense,
	}
	for code, want := range cases {
		got, err := AccountTypeFromCode(code)
		require.NoError(t, err, code)
		assert.Equal(t, want, got)
	}

	_, err := AccountTypeFromCode("9000")
	require.Error(t, err)
	_, err = AccountTypeFromCode("")
	require.Error(t, err)
}

func TestValidateCurrency(t *testing.T) {
	require.NoError(t, ValidateCurrency("USD"))
	require.NoError(t, ValidateCurrency("IDR"))
	require.Error(t, ValidateCurrency("ZZZ1"))
}
