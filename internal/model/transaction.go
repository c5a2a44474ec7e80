package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionBuy  TransactionType = "buy"
	TransactionSell TransactionType = "sell"
)

type Transaction struct {
	ID        int64
	UserID    int64
	StockID   int64
	Quantity  int64
	Price     decimal.Decimal
	Type      TransactionType
	CreatedAt time.Time
}

// Total returns price * quantity.
func (t Transaction) Total() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Quantity))
}
