package postgres

import (
	"context"
	"log/slog"

	"github.com/KotFed0t/trading_simulator/internal/converter/dbConverter"
	"github.com/KotFed0t/trading_simulator/internal/model"
	"github.com/KotFed0t/trading_simulator/internal/model/dbModel"
	"github.com/KotFed0t/trading_simulator/utils"
)

func (r *Postgres) InsertTransaction(ctx context.Context, transaction model.Transaction) (created model.Transaction, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.InsertTransaction"
	query := `
		INSERT INTO transactions(user_id, stock_id, quantity, price, type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, stock_id, quantity, price, type, created_at
		`

	slog.Debug(
		"InsertTransaction start",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.Any("transaction", transaction),
		slog.String("query", query),
	)
	defer func() {
		if err != nil {
			slog.Error("InsertTransaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertTransaction completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("id", created.ID))
		}
	}()

	dbTx := dbModel.Transaction{}
	err = r.txOrDb(ctx).QueryRowxContext(
		ctx,
		query,
		transaction.UserID,
		transaction.StockID,
		transaction.Quantity,
		transaction.Price,
		string(transaction.Type),
	).StructScan(&dbTx)
	if err != nil {
		return model.Transaction{}, mapErr(err)
	}

	return dbConverter.ConvertTransaction(dbTx), nil
}

// GetTransactionsByUser returns the user's trades, most recent first.
func (r *Postgres) GetTransactionsByUser(ctx context.Context, userID int64, limit int) (transactions []model.Transaction, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetTransactionsByUser"
	params := map[string]any{
		"userID": userID,
		"limit":  limit,
	}
	query := `
		SELECT id, user_id, stock_id, quantity, price, type, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
		`

	slog.Debug("GetTransactionsByUser start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("params", params))
	defer func() {
		if err != nil {
			slog.Error("GetTransactionsByUser failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetTransactionsByUser completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	var dbTxs []dbModel.Transaction
	err = r.txOrDb(ctx).SelectContext(ctx, &dbTxs, query, userID, limit)
	if err != nil {
		return nil, err
	}

	transactions = make([]model.Transaction, 0, len(dbTxs))
	for _, t := range dbTxs {
		transactions = append(transactions, dbConverter.ConvertTransaction(t))
	}

	return transactions, nil
}
