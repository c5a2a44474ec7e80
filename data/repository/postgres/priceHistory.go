package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/KotFed0t/trading_simulator/internal/converter/dbConverter"
	"github.com/KotFed0t/trading_simulator/internal/model"
	"github.com/KotFed0t/trading_simulator/internal/model/dbModel"
	"github.com/KotFed0t/trading_simulator/utils"
	"github.com/shopspring/decimal"
)

func (r *Postgres) InsertPriceHistory(ctx context.Context, stockID int64, price decimal.Decimal, recordedAt time.Time) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.InsertPriceHistory"
	params := map[string]any{
		"stockID":    stockID,
		"price":      price,
		"recordedAt": recordedAt,
	}
	query := `INSERT INTO price_history(stock_id, price, recorded_at) VALUES ($1, $2, $3)`

	slog.Debug("InsertPriceHistory start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("params", params))
	defer func() {
		if err != nil {
			slog.Error("InsertPriceHistory failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertPriceHistory completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, stockID, price, recordedAt)
	if err != nil {
		return mapErr(err)
	}
	return nil
}

// GetPriceHistory returns the most recent records first.
func (r *Postgres) GetPriceHistory(ctx context.Context, stockID int64, limit int) (history []model.PriceHistory, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetPriceHistory"
	params := map[string]any{
		"stockID": stockID,
		"limit":   limit,
	}
	query := `
		SELECT id, stock_id, price, recorded_at
		FROM price_history
		WHERE stock_id = $1
		ORDER BY recorded_at DESC, id DESC
		LIMIT $2
		`

	slog.Debug("GetPriceHistory start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("params", params))
	defer func() {
		if err != nil {
			slog.Error("GetPriceHistory failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetPriceHistory completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	var dbHistory []dbModel.PriceHistory
	err = r.txOrDb(ctx).SelectContext(ctx, &dbHistory, query, stockID, limit)
	if err != nil {
		return nil, err
	}

	history = make([]model.PriceHistory, 0, len(dbHistory))
	for _, h := range dbHistory {
		history = append(history, dbConverter.ConvertPriceHistory(h))
	}

	return history, nil
}

// GetStartPrices returns the earliest recorded price per stock.
func (r *Postgres) GetStartPrices(ctx context.Context) (prices map[int64]decimal.Decimal, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetStartPrices"
	query := `
		SELECT DISTINCT ON (stock_id) stock_id, price
		FROM price_history
		ORDER BY stock_id, recorded_at, id
		`

	slog.Debug("GetStartPrices start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetStartPrices failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetStartPrices completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	var rows []dbModel.StockStartPrice
	err = r.txOrDb(ctx).SelectContext(ctx, &rows, query)
	if err != nil {
		return nil, err
	}

	prices = make(map[int64]decimal.Decimal, len(rows))
	for _, row := range rows {
		prices[row.StockID] = row.Price
	}

	return prices, nil
}
