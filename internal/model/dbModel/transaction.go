package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type Transaction struct {
	ID        int64           `db:"id"`
	UserID    int64           `db:"user_id"`
	StockID   int64           `db:"stock_id"`
	Quantity  int64           `db:"quantity"`
	Price     decimal.Decimal `db:"price"`
	Type      string          `db:"type"`
	CreatedAt time.Time       `db:"created_at"`
}
