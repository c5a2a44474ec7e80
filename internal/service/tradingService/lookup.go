package tradingService

import (
	"context"
	"strings"

	"github.com/KotFed0t/trading_simulator/internal/model"
)

func (s *TradingService) GetUser(ctx context.Context, userID int64) (model.User, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return model.User{}, notFound(err, "user", userID)
	}
	return user, nil
}

func (s *TradingService) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	username = strings.TrimSpace(username)
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return model.User{}, notFound(err, "user", username)
	}
	return user, nil
}

func (s *TradingService) GetStock(ctx context.Context, stockID int64) (model.Stock, error) {
	stock, err := s.repo.GetStock(ctx, stockID)
	if err != nil {
		return model.Stock{}, notFound(err, "stock", stockID)
	}
	return stock, nil
}

func (s *TradingService) GetStockBySymbol(ctx context.Context, symbol string) (model.Stock, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	stock, err := s.repo.GetStockBySymbol(ctx, symbol)
	if err != nil {
		return model.Stock{}, notFound(err, "stock", symbol)
	}
	return stock, nil
}

// GetStockHistory returns up to limit price records, most recent first. limit <= 0 means DefaultHistoryLimit.
func (s *TradingService) GetStockHistory(ctx context.Context, stockID int64, limit int) ([]model.PriceHistory, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	if _, err := s.GetStock(ctx, stockID); err != nil {
		return nil, err
	}

	return s.repo.GetPriceHistory(ctx, stockID, limit)
}

// GetUserTransactions returns up to limit trades of the user, most recent first.
func (s *TradingService) GetUserTransactions(ctx context.Context, userID int64, limit int) ([]model.Transaction, error) {
	if limit <= 0 {
		limit = DefaultTransactionsLimit
	}

	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	return s.repo.GetTransactionsByUser(ctx, userID, limit)
}
