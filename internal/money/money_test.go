package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatter_Format(t *testing.T) {
	f, err := NewFormatter("en-US", "USD")
	require.NoError(t, err)

	assert.Equal(t, "USD", f.Currency())
	assert.Contains(t, f.Format(decimal.RequireFromString("41")), "41.00")
	assert.Contains(t, f.Format(decimal.RequireFromString("1234.5")), "1,234.50")
	assert.Contains(t, f.Format(decimal.RequireFromString("9.005")), "9.01")
}

func TestFormatter_Plain(t *testing.T) {
	f, err := NewFormatter("es-MX", "MXN")
	require.NoError(t, err)

	assert.Equal(t, "41.00", f.Plain(decimal.RequireFromString("41")))
	assert.Equal(t, "-9.50", f.Plain(decimal.RequireFromString("-9.5")))
}

func TestFormatter_ZeroDecimalCurrency(t *testing.T) {
	f, err := NewFormatter("ja-JP", "JPY")
	require.NoError(t, err)

	assert.Equal(t, "1200", f.Plain(decimal.RequireFromString("1200")))
}

func TestNewFormatter_Invalid(t *testing.T) {
	_, err := NewFormatter("not a locale!", "USD")
	assert.Error(t, err)

	_, err = NewFormatter("en-US", "ZZZZ")
	assert.Error(t, err)
}
