package model

import "github.com/shopspring/decimal"

var (
	InitialBalance = decimal.NewFromInt(10000)
	MaxLoanAmount  = decimal.NewFromInt(100000)

	MinStockPrice = decimal.NewFromInt(1)
	MaxStockPrice = decimal.NewFromInt(100)
)

// ClampPrice bounds price to [MinStockPrice, MaxStockPrice].
func ClampPrice(price decimal.Decimal) decimal.Decimal {
	switch {
	case price.LessThan(MinStockPrice):
		return MinStockPrice
	case price.GreaterThan(MaxStockPrice):
		return MaxStockPrice
	default:
		return price
	}
}
