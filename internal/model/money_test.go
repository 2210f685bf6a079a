package model

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToCents(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		want    int64
		wantErr error
	}{
		{name: "integer", amount: "150", want: 15000},
		{name: "two decimals", amount: "99.99", want: 9999},
		{name: "one decimal", amount: "0.5", want: 50},
		{name: "negative", amount: "-10.25", want: -1025},
		{name: "sub cent", amount: "1.005", wantErr: ErrSubCentAmount},
		{name: "largest", amount: "92233720368547758.07", want: math.MaxInt64},
		{name: "smallest", amount: "-92233720368547758.08", want: math.MinInt64},
		{name: "one cent past max", amount: "92233720368547758.08", wantErr: ErrAmountOutOfRange},
		{name: "wraps to one cent", amount: "184467440737095516.17", wantErr: ErrAmountOutOfRange},
		{name: "below min", amount: "-92233720368547758.09", wantErr: ErrAmountOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToCents(decimal.RequireFromString(tt.amount))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromCents(t *testing.T) {
	assert.True(t, FromCents(15000).Equal(decimal.NewFromInt(150)))
	assert.Equal(t, "0.05", FromCents(5).String())
}

func TestCourseRequiresPurchase(t *testing.T) {
	paid := &Course{IsPaid: true, Price: decimal.NewFromInt(150)}
	free := &Course{IsPaid: false, Price: decimal.NewFromInt(150)}
	zero := &Course{IsPaid: true, Price: decimal.Zero}

	assert.True(t, paid.RequiresPurchase())
	assert.False(t, free.RequiresPurchase())
	assert.False(t, zero.RequiresPurchase())
}
