package xlsxGenerator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/KotFed0t/trading_simulator/internal/model"
	"github.com/KotFed0t/trading_simulator/utils"
	"github.com/xuri/excelize/v2"
)

const (
	UsersSheet  = "Top users"
	StocksSheet = "Top stocks"
)

var (
	userHeaders  = []string{"#", "username", "balance", "loan", "portfolio value", "profit/loss", "profit/loss %"}
	stockHeaders = []string{"#", "symbol", "name", "start price", "current price", "change", "change %", "available"}
)

type XLSXGenerator struct{}

func New() *XLSXGenerator {
	return &XLSXGenerator{}
}

// Generate writes one sheet per leaderboard, rows in the given order.
func (g *XLSXGenerator) Generate(ctx context.Context, users []model.UserReport, stocks []model.StockReport) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XLSXGenerator.Generate"

	if len(users) == 0 && len(stocks) == 0 {
		return nil, "", errors.New("nothing to export")
	}

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{"#cfe2f3"},
		},
	})
	if err != nil {
		return nil, "", err
	}

	userRows := make([][]any, 0, len(users))
	for i, u := range users {
		userRows = append(userRows, []any{
			i + 1,
			u.Username,
			u.Balance.InexactFloat64(),
			u.LoanAmount.InexactFloat64(),
			u.PortfolioValue.InexactFloat64(),
			u.TotalProfitLoss.InexactFloat64(),
			u.ProfitLossPercentage.Round(2).InexactFloat64(),
		})
	}

	stockRows := make([][]any, 0, len(stocks))
	for i, s := range stocks {
		stockRows = append(stockRows, []any{
			i + 1,
			s.Symbol,
			s.Name,
			s.StartPrice.InexactFloat64(),
			s.CurrentPrice.InexactFloat64(),
			s.PriceChange.InexactFloat64(),
			s.PriceChangePercentage.Round(2).InexactFloat64(),
			s.AvailableQuantity,
		})
	}

	if err = g.fillSheet(f, UsersSheet, headerStyle, userHeaders, userRows); err != nil {
		slog.Error("got error while filling users sheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	if err = g.fillSheet(f, StocksSheet, headerStyle, stockHeaders, stockRows); err != nil {
		slog.Error("got error while filling stocks sheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		slog.Error("got error while deleting Sheet1", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while Saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

func (g *XLSXGenerator) fillSheet(f *excelize.File, sheetName string, headerStyle int, headers []string, rows [][]any) error {
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	if err := f.SetSheetRow(sheetName, "A1", &headers); err != nil {
		return err
	}

	lastHeader, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err = f.SetCellStyle(sheetName, "A1", lastHeader, headerStyle); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err = f.SetSheetRow(sheetName, cell, &row); err != nil {
			return err
		}
	}

	return f.SetColWidth(sheetName, "B", "C", 18)
}
