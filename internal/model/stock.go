package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Stock struct {
	ID                int64
	Symbol            string
	Name              string
	CurrentPrice      decimal.Decimal
	AvailableQuantity int64
	CreatedAt         time.Time
}

type PriceHistory struct {
	ID         int64
	StockID    int64
	Price      decimal.Decimal
	RecordedAt time.Time
}
