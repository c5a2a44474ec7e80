package postgres

import (
	"context"
	"log/slog"

	"github.com/KotFed0t/trading_simulator/internal/converter/dbConverter"
	"github.com/KotFed0t/trading_simulator/internal/model"
	"github.com/KotFed0t/trading_simulator/internal/model/dbModel"
	"github.com/KotFed0t/trading_simulator/utils"
)

// GetHoldingForUpdate locks the (user, stock) holding row. Returns ErrNotFound when absent.
func (r *Postgres) GetHoldingForUpdate(ctx context.Context, userID, stockID int64) (holding model.Holding, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetHoldingForUpdate"
	params := map[string]any{
		"userID":  userID,
		"stockID": stockID,
	}
	query := `
		SELECT id, user_id, stock_id, quantity, average_buy_price
		FROM holdings
		WHERE user_id = $1 AND stock_id = $2
		FOR UPDATE
		`

	slog.Debug("GetHoldingForUpdate start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("params", params))
	defer func() {
		if err != nil {
			slog.Debug("GetHoldingForUpdate failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetHoldingForUpdate completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbHolding := dbModel.Holding{}
	err = r.txOrDb(ctx).GetContext(ctx, &dbHolding, query, userID, stockID)
	if err != nil {
		return model.Holding{}, mapErr(err)
	}

	return dbConverter.ConvertHolding(dbHolding), nil
}

// UpsertHolding writes quantity and average price for (user, stock), inserting the row if missing.
func (r *Postgres) UpsertHolding(ctx context.Context, holding model.Holding) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpsertHolding"
	query := `
		INSERT INTO holdings(user_id, stock_id, quantity, average_buy_price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, stock_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, average_buy_price = EXCLUDED.average_buy_price
		`

	slog.Debug("UpsertHolding start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("holding", holding))
	defer func() {
		if err != nil {
			slog.Error("UpsertHolding failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpsertHolding completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, holding.UserID, holding.StockID, holding.Quantity, holding.AverageBuyPrice)
	if err != nil {
		return mapErr(err)
	}
	return nil
}

func (r *Postgres) DeleteHolding(ctx context.Context, userID, stockID int64) error {
	query := `DELETE FROM holdings WHERE user_id = $1 AND stock_id = $2`
	return r.execGuarded(ctx, "Postgres.DeleteHolding", query, userID, stockID)
}

// GetHoldingPositions returns the user's holdings joined with current stock prices.
func (r *Postgres) GetHoldingPositions(ctx context.Context, userID int64) (positions []model.HoldingPosition, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetHoldingPositions"
	params := map[string]any{
		"userID": userID,
	}
	query := `
		SELECT h.id, h.user_id, h.stock_id, h.quantity, h.average_buy_price, s.symbol, s.current_price
		FROM holdings h
		JOIN stocks s ON s.id = h.stock_id
		WHERE h.user_id = $1
		ORDER BY s.symbol
		`

	slog.Debug("GetHoldingPositions start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("params", params))
	defer func() {
		if err != nil {
			slog.Error("GetHoldingPositions failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetHoldingPositions completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var position dbModel.HoldingPosition
		err = rows.StructScan(&position)
		if err != nil {
			return nil, err
		}
		positions = append(positions, dbConverter.ConvertHoldingPosition(position))
	}

	return positions, rows.Err()
}
