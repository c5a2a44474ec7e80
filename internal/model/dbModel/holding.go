package dbModel

import "github.com/shopspring/decimal"

type Holding struct {
	ID              int64           `db:"id"`
	UserID          int64           `db:"user_id"`
	StockID         int64           `db:"stock_id"`
	Quantity        int64           `db:"quantity"`
	AverageBuyPrice decimal.Decimal `db:"average_buy_price"`
}

type HoldingPosition struct {
	Holding
	Symbol       string          `db:"symbol"`
	CurrentPrice decimal.Decimal `db:"current_price"`
}
