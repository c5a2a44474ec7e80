package xlsxGenerator_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/KotFed0t/trading_simulator/internal/model"
	"github.com/KotFed0t/trading_simulator/internal/reportGenerator/xlsxGenerator"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestGenerate(t *testing.T) {
	users := []model.UserReport{
		{Username: "alice", Balance: decimal.NewFromInt(9250), ProfitLossPercentage: decimal.RequireFromString("3.456")},
		{Username: "bob", Balance: decimal.NewFromInt(10000)},
	}
	stocks := []model.StockReport{
		{Symbol: "AAPL", Name: "Apple", StartPrice: decimal.NewFromInt(150), CurrentPrice: decimal.NewFromInt(100), AvailableQuantity: 995},
	}

	content, ext, err := xlsxGenerator.New().Generate(context.Background(), users, stocks)
	require.NoError(t, err)
	assert.Equal(t, ".xlsx", ext)

	f, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{xlsxGenerator.UsersSheet, xlsxGenerator.StocksSheet}, f.GetSheetList())

	header, err := f.GetCellValue(xlsxGenerator.UsersSheet, "B1")
	require.NoError(t, err)
	assert.Equal(t, "username", header)

	name, err := f.GetCellValue(xlsxGenerator.UsersSheet, "B3")
	require.NoError(t, err)
	assert.Equal(t, "bob", name)

	pct, err := f.GetCellValue(xlsxGenerator.UsersSheet, "G2")
	require.NoError(t, err)
	assert.Equal(t, "3.46", pct)

	symbol, err := f.GetCellValue(xlsxGenerator.StocksSheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", symbol)

	available, err := f.GetCellValue(xlsxGenerator.StocksSheet, "H2")
	require.NoError(t, err)
	assert.Equal(t, "995", available)
}

func TestGenerateEmpty(t *testing.T) {
	_, _, err := xlsxGenerator.New().Generate(context.Background(), nil, nil)
	assert.Error(t, err)
}
