package postgres

import (
	"context"
	"log/slog"

	"github.com/KotFed0t/trading_simulator/internal/converter/dbConverter"
	"github.com/KotFed0t/trading_simulator/internal/model"
	"github.com/KotFed0t/trading_simulator/internal/model/dbModel"
	"github.com/KotFed0t/trading_simulator/utils"
	"github.com/shopspring/decimal"
)

const stockColumns = `id, symbol, name, current_price, available_quantity, created_at`

func (r *Postgres) InsertStock(ctx context.Context, symbol, name string, price decimal.Decimal, quantity int64) (stock model.Stock, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.InsertStock"
	params := map[string]any{
		"symbol":   symbol,
		"name":     name,
		"price":    price,
		"quantity": quantity,
	}
	query := `
		INSERT INTO stocks(symbol, name, current_price, available_quantity)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + stockColumns

	slog.Debug("InsertStock start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("params", params))
	defer func() {
		if err != nil {
			slog.Error("InsertStock failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertStock completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbStock := dbModel.Stock{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, symbol, name, price, quantity).StructScan(&dbStock)
	if err != nil {
		return model.Stock{}, mapErr(err)
	}

	return dbConverter.ConvertStock(dbStock), nil
}

func (r *Postgres) GetStock(ctx context.Context, stockID int64) (model.Stock, error) {
	query := `SELECT ` + stockColumns + ` FROM stocks WHERE id = $1`
	return r.getStock(ctx, "Postgres.GetStock", query, stockID)
}

// GetStockForUpdate locks the stock row until the surrounding transaction ends.
func (r *Postgres) GetStockForUpdate(ctx context.Context, stockID int64) (model.Stock, error) {
	query := `SELECT ` + stockColumns + ` FROM stocks WHERE id = $1 FOR UPDATE`
	return r.getStock(ctx, "Postgres.GetStockForUpdate", query, stockID)
}

func (r *Postgres) GetStockBySymbol(ctx context.Context, symbol string) (model.Stock, error) {
	query := `SELECT ` + stockColumns + ` FROM stocks WHERE symbol = $1`
	return r.getStock(ctx, "Postgres.GetStockBySymbol", query, symbol)
}

func (r *Postgres) getStock(ctx context.Context, op, query string, arg any) (stock model.Stock, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	slog.Debug("getStock start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("arg", arg))
	defer func() {
		if err != nil {
			slog.Error("getStock failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("getStock completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbStock := dbModel.Stock{}
	err = r.txOrDb(ctx).GetContext(ctx, &dbStock, query, arg)
	if err != nil {
		return model.Stock{}, mapErr(err)
	}

	return dbConverter.ConvertStock(dbStock), nil
}

// GetStocks returns stocks newest first. limit <= 0 returns all of them.
func (r *Postgres) GetStocks(ctx context.Context, limit int) (stocks []model.Stock, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetStocks"
	params := map[string]any{
		"limit": limit,
	}
	query := `
		SELECT ` + stockColumns + `
		FROM stocks
		ORDER BY created_at DESC, id DESC
		LIMIT $1
		`

	slog.Debug("GetStocks start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("params", params))
	defer func() {
		if err != nil {
			slog.Error("GetStocks failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetStocks completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("count", len(stocks)))
		}
	}()

	// LIMIT NULL means no limit
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, limitArg)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var stock dbModel.Stock
		err = rows.StructScan(&stock)
		if err != nil {
			return nil, err
		}
		stocks = append(stocks, dbConverter.ConvertStock(stock))
	}

	return stocks, rows.Err()
}

// DecreaseStockQuantity fails with ErrConditionNotMet when supply is short.
func (r *Postgres) DecreaseStockQuantity(ctx context.Context, stockID, quantity int64) error {
	query := `UPDATE stocks SET available_quantity = available_quantity - $2 WHERE id = $1 AND available_quantity >= $2`
	return r.execGuarded(ctx, "Postgres.DecreaseStockQuantity", query, stockID, quantity)
}

func (r *Postgres) IncreaseStockQuantity(ctx context.Context, stockID, quantity int64) error {
	query := `UPDATE stocks SET available_quantity = available_quantity + $2 WHERE id = $1`
	return r.execGuarded(ctx, "Postgres.IncreaseStockQuantity", query, stockID, quantity)
}

func (r *Postgres) UpdateStockPrice(ctx context.Context, stockID int64, price decimal.Decimal) error {
	query := `UPDATE stocks SET current_price = $2 WHERE id = $1`
	return r.execGuarded(ctx, "Postgres.UpdateStockPrice", query, stockID, price)
}
