package moexModel

import "github.com/shopspring/decimal"

type RawStocksInfo struct {
	Securities Securities `json:"securities"`
	Marketdata Marketdata `json:"marketdata"`
}

type Securities struct {
	Columns []string `json:"columns"`
	Data    [][]any  `json:"data"`
}

type Marketdata struct {
	Columns []string `json:"columns"`
	Data    [][]any  `json:"data"`
}

// StockInfo is a quote of one security on the TQBR board.
type StockInfo struct {
	Ticker    string
	Shortname string
	Active    bool
	Price     decimal.Decimal
}
