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

const userColumns = `id, username, balance, loan_amount, created_at`

func (r *Postgres) InsertUser(ctx context.Context, username string, balance decimal.Decimal) (user model.User, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.InsertUser"
	params := map[string]any{
		"username": username,
		"balance":  balance,
	}
	query := `INSERT INTO users(username, balance) VALUES($1, $2) RETURNING ` + userColumns

	slog.Debug("InsertUser start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("params", params))
	defer func() {
		if err != nil {
			slog.Error("InsertUser failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertUser completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbUser := dbModel.User{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, username, balance).StructScan(&dbUser)
	if err != nil {
		return model.User{}, mapErr(err)
	}

	return dbConverter.ConvertUser(dbUser), nil
}

func (r *Postgres) GetUser(ctx context.Context, userID int64) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getUser(ctx, "Postgres.GetUser", query, userID)
}

// GetUserForUpdate locks the user row until the surrounding transaction ends.
func (r *Postgres) GetUserForUpdate(ctx context.Context, userID int64) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	return r.getUser(ctx, "Postgres.GetUserForUpdate", query, userID)
}

func (r *Postgres) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return r.getUser(ctx, "Postgres.GetUserByUsername", query, username)
}

func (r *Postgres) getUser(ctx context.Context, op, query string, arg any) (user model.User, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	slog.Debug("getUser start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("arg", arg))
	defer func() {
		if err != nil {
			slog.Error("getUser failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("getUser completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbUser := dbModel.User{}
	err = r.txOrDb(ctx).GetContext(ctx, &dbUser, query, arg)
	if err != nil {
		return model.User{}, mapErr(err)
	}

	return dbConverter.ConvertUser(dbUser), nil
}

func (r *Postgres) GetUsers(ctx context.Context) (users []model.User, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetUsers"
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id`

	slog.Debug("GetUsers start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetUsers failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetUsers completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("count", len(users)))
		}
	}()

	var dbUsers []dbModel.User
	err = r.txOrDb(ctx).SelectContext(ctx, &dbUsers, query)
	if err != nil {
		return nil, err
	}

	users = make([]model.User, 0, len(dbUsers))
	for _, u := range dbUsers {
		users = append(users, dbConverter.ConvertUser(u))
	}

	return users, nil
}

func (r *Postgres) CreditUserBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	query := `UPDATE users SET balance = balance + $2 WHERE id = $1`
	return r.execGuarded(ctx, "Postgres.CreditUserBalance", query, userID, amount)
}

// DebitUserBalance fails with ErrConditionNotMet when the balance would go negative.
func (r *Postgres) DebitUserBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	query := `UPDATE users SET balance = balance - $2 WHERE id = $1 AND balance >= $2`
	return r.execGuarded(ctx, "Postgres.DebitUserBalance", query, userID, amount)
}

// IncreaseUserLoan credits balance and loan together while loan stays within limit.
func (r *Postgres) IncreaseUserLoan(ctx context.Context, userID int64, amount, limit decimal.Decimal) error {
	query := `
		UPDATE users
		SET balance = balance + $2, loan_amount = loan_amount + $2
		WHERE id = $1 AND loan_amount + $2 <= $3
		`
	return r.execGuarded(ctx, "Postgres.IncreaseUserLoan", query, userID, amount, limit)
}

func (r *Postgres) execGuarded(ctx context.Context, op, query string, args ...any) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	slog.Debug("execGuarded start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("params", args))
	defer func() {
		if err != nil {
			slog.Error("execGuarded failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("execGuarded completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return mapErr(err)
	}

	return expectOneRow(res)
}
