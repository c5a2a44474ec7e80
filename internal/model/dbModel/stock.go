package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type Stock struct {
	ID                int64           `db:"id"`
	Symbol            string          `db:"symbol"`
	Name              string          `db:"name"`
	CurrentPrice      decimal.Decimal `db:"current_price"`
	AvailableQuantity int64           `db:"available_quantity"`
	CreatedAt         time.Time       `db:"created_at"`
}

type PriceHistory struct {
	ID         int64           `db:"id"`
	StockID    int64           `db:"stock_id"`
	Price      decimal.Decimal `db:"price"`
	RecordedAt time.Time       `db:"recorded_at"`
}

// StockStartPrice is the earliest recorded price of a stock.
type StockStartPrice struct {
	StockID int64           `db:"stock_id"`
	Price   decimal.Decimal `db:"price"`
}
