package model

import "github.com/shopspring/decimal"

type UserReport struct {
	UserID               int64
	Username             string
	Balance              decimal.Decimal
	LoanAmount           decimal.Decimal
	PortfolioValue       decimal.Decimal
	TotalProfitLoss      decimal.Decimal
	ProfitLossPercentage decimal.Decimal
	Holdings             []HoldingReport
}

type HoldingReport struct {
	StockID         int64
	Symbol          string
	Quantity        int64
	AverageBuyPrice decimal.Decimal
	CurrentPrice    decimal.Decimal
	MarketValue     decimal.Decimal
	ProfitLoss      decimal.Decimal
}

type StockReport struct {
	StockID               int64
	Symbol                string
	Name                  string
	CurrentPrice          decimal.Decimal
	StartPrice            decimal.Decimal
	PriceChange           decimal.Decimal
	PriceChangePercentage decimal.Decimal
	AvailableQuantity     int64
}

// ReportFile is a generated export. DownloadLink is set when the content was uploaded instead of attached.
type ReportFile struct {
	Name         string
	Content      []byte
	DownloadLink string
}
