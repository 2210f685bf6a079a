package model

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// ErrSubCentAmount возвращается для сумм с точностью выше двух знаков после запятой.
var ErrSubCentAmount = errors.New("amount has more than two decimal places")

// ErrAmountOutOfRange возвращается для сумм, которые не помещаются в int64 копеек.
var ErrAmountOutOfRange = errors.New("amount is out of range")

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// ToCents переводит сумму в минимальные единицы валюты.
func ToCents(amount decimal.Decimal) (int64, error) {
	shifted := amount.Shift(2)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, ErrSubCentAmount
	}
	if shifted.GreaterThan(maxCents) || shifted.LessThan(minCents) {
		return 0, ErrAmountOutOfRange
	}
	return shifted.IntPart(), nil
}

// FromCents переводит минимальные единицы валюты в сумму.
func FromCents(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Shift(-2)
}
