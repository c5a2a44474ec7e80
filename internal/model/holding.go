package model

import "github.com/shopspring/decimal"

type Holding struct {
	ID              int64
	UserID          int64
	StockID         int64
	Quantity        int64
	AverageBuyPrice decimal.Decimal
}

// HoldingPosition is a holding joined with the stock it refers to.
type HoldingPosition struct {
	Holding
	Symbol       string
	CurrentPrice decimal.Decimal
}
