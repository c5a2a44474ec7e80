package tradingService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/trading_simulator/data/repository"
	"github.com/KotFed0t/trading_simulator/internal/model"
	"github.com/KotFed0t/trading_simulator/internal/service"
	"github.com/KotFed0t/trading_simulator/utils"
	"github.com/shopspring/decimal"
)

// ExecuteBuy buys quantity shares at the stock's current price.
// Rows are locked in user, stock, holding order and every check runs against the locked values.
func (s *TradingService) ExecuteBuy(ctx context.Context, userID, stockID, quantity int64) (transaction model.Transaction, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.ExecuteBuy"
	logAttrs := []any{slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID), slog.Int64("stockID", stockID), slog.Int64("quantity", quantity)}

	slog.Debug("ExecuteBuy start", logAttrs...)
	defer func() {
		if err != nil {
			slog.Info("ExecuteBuy rejected", append(logAttrs, slog.String("err", err.Error()))...)
		} else {
			slog.Info("ExecuteBuy completed", append(logAttrs, slog.Int64("transactionID", transaction.ID), slog.String("price", transaction.Price.String()))...)
		}
	}()

	if quantity <= 0 {
		return model.Transaction{}, fmt.Errorf("%w: quantity must be positive", service.ErrInvalidArgument)
	}

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		user, err := s.repo.GetUserForUpdate(ctx, userID)
		if err != nil {
			return notFound(err, "user", userID)
		}

		stock, err := s.repo.GetStockForUpdate(ctx, stockID)
		if err != nil {
			return notFound(err, "stock", stockID)
		}

		if stock.AvailableQuantity < quantity {
			return fmt.Errorf("%w: %d of %s available, %d requested", service.ErrInsufficientSupply, stock.AvailableQuantity, stock.Symbol, quantity)
		}

		price := stock.CurrentPrice
		cost := price.Mul(decimal.NewFromInt(quantity))
		if user.Balance.LessThan(cost) {
			return fmt.Errorf("%w: balance %s, cost %s", service.ErrInsufficientFunds, user.Balance, cost)
		}

		if err = s.repo.DebitUserBalance(ctx, userID, cost); err != nil {
			return guarded(err, service.ErrInsufficientFunds)
		}

		if err = s.repo.DecreaseStockQuantity(ctx, stockID, quantity); err != nil {
			return guarded(err, service.ErrInsufficientSupply)
		}

		transaction, err = s.repo.InsertTransaction(ctx, model.Transaction{
			UserID:   userID,
			StockID:  stockID,
			Quantity: quantity,
			Price:    price,
			Type:     model.TransactionBuy,
		})
		if err != nil {
			return err
		}

		holding, err := s.repo.GetHoldingForUpdate(ctx, userID, stockID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			holding = model.Holding{UserID: userID, StockID: stockID}
		case err != nil:
			return err
		}

		holding.AverageBuyPrice = averagePrice(holding.AverageBuyPrice, holding.Quantity, price, quantity)
		holding.Quantity += quantity

		return s.repo.UpsertHolding(ctx, holding)
	})
	if err != nil {
		return model.Transaction{}, err
	}

	// a trade moves balances, holdings and the stock's supply
	s.flushUserBoards(ctx, op)
	s.flushStockBoards(ctx, op)

	return transaction, nil
}

// ExecuteSell sells quantity shares from an existing holding at the stock's current price.
// The holding's average buy price is left as is; a holding sold down to zero is removed.
func (s *TradingService) ExecuteSell(ctx context.Context, userID, stockID, quantity int64) (transaction model.Transaction, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.ExecuteSell"
	logAttrs := []any{slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID), slog.Int64("stockID", stockID), slog.Int64("quantity", quantity)}

	slog.Debug("ExecuteSell start", logAttrs...)
	defer func() {
		if err != nil {
			slog.Info("ExecuteSell rejected", append(logAttrs, slog.String("err", err.Error()))...)
		} else {
			slog.Info("ExecuteSell completed", append(logAttrs, slog.Int64("transactionID", transaction.ID), slog.String("price", transaction.Price.String()))...)
		}
	}()

	if quantity <= 0 {
		return model.Transaction{}, fmt.Errorf("%w: quantity must be positive", service.ErrInvalidArgument)
	}

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetUserForUpdate(ctx, userID); err != nil {
			return notFound(err, "user", userID)
		}

		stock, err := s.repo.GetStockForUpdate(ctx, stockID)
		if err != nil {
			return notFound(err, "stock", stockID)
		}

		holding, err := s.repo.GetHoldingForUpdate(ctx, userID, stockID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: no %s shares held", service.ErrInsufficientHoldings, stock.Symbol)
			}
			return err
		}

		if holding.Quantity < quantity {
			return fmt.Errorf("%w: %d of %s held, %d requested", service.ErrInsufficientHoldings, holding.Quantity, stock.Symbol, quantity)
		}

		price := stock.CurrentPrice
		proceeds := price.Mul(decimal.NewFromInt(quantity))

		if err = s.repo.CreditUserBalance(ctx, userID, proceeds); err != nil {
			return err
		}

		if err = s.repo.IncreaseStockQuantity(ctx, stockID, quantity); err != nil {
			return err
		}

		transaction, err = s.repo.InsertTransaction(ctx, model.Transaction{
			UserID:   userID,
			StockID:  stockID,
			Quantity: quantity,
			Price:    price,
			Type:     model.TransactionSell,
		})
		if err != nil {
			return err
		}

		holding.Quantity -= quantity
		if holding.Quantity == 0 {
			return s.repo.DeleteHolding(ctx, userID, stockID)
		}

		return s.repo.UpsertHolding(ctx, holding)
	})
	if err != nil {
		return model.Transaction{}, err
	}

	// a trade moves balances, holdings and the stock's supply
	s.flushUserBoards(ctx, op)
	s.flushStockBoards(ctx, op)

	return transaction, nil
}

// averagePrice blends a purchase of qty shares at price into an existing position.
func averagePrice(oldAvg decimal.Decimal, oldQty int64, price decimal.Decimal, qty int64) decimal.Decimal {
	if oldQty == 0 {
		return price
	}

	total := oldAvg.Mul(decimal.NewFromInt(oldQty)).Add(price.Mul(decimal.NewFromInt(qty)))
	return total.Div(decimal.NewFromInt(oldQty + qty))
}

// guarded maps a rejected guarded update onto the business error it stands for.
func guarded(err, businessErr error) error {
	if errors.Is(err, repository.ErrConditionNotMet) {
		return businessErr
	}
	return err
}
