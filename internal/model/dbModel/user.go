package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID         int64           `db:"id"`
	Username   string          `db:"username"`
	Balance    decimal.Decimal `db:"balance"`
	LoanAmount decimal.Decimal `db:"loan_amount"`
	CreatedAt  time.Time       `db:"created_at"`
}
