package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID         int64
	Username   string
	Balance    decimal.Decimal
	LoanAmount decimal.Decimal
	CreatedAt  time.Time
}
