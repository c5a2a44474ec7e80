package priceService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/KotFed0t/trading_simulator/internal/model"
	"github.com/KotFed0t/trading_simulator/utils"
	"github.com/shopspring/decimal"
)

const (
	minFactor = 0.95
	maxFactor = 1.05
)

type Repository interface {
	WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error
	GetStocks(ctx context.Context, limit int) ([]model.Stock, error)
	GetStockForUpdate(ctx context.Context, stockID int64) (model.Stock, error)
	UpdateStockPrice(ctx context.Context, stockID int64, price decimal.Decimal) error
	InsertPriceHistory(ctx context.Context, stockID int64, price decimal.Decimal, recordedAt time.Time) error
}

// Cache drops leaderboards after a price run. Portfolio values move with prices, so both families go.
type Cache interface {
	FlushUserBoards(ctx context.Context) error
	FlushStockBoards(ctx context.Context) error
}

// FactorFunc returns the multiplier applied to a price, expected in [0.95, 1.05].
type FactorFunc func() float64

type Option func(s *PriceService)

func WithFactorFunc(fn FactorFunc) Option {
	return func(s *PriceService) { s.factor = fn }
}

func WithClock(now func() time.Time) Option {
	return func(s *PriceService) { s.now = now }
}

type PriceService struct {
	repo   Repository
	cache  Cache
	factor FactorFunc
	now    func() time.Time
}

func New(repo Repository, cache Cache, opts ...Option) *PriceService {
	s := &PriceService{
		repo:   repo,
		cache:  cache,
		factor: UniformFactor,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UniformFactor draws uniformly from [0.95, 1.05].
func UniformFactor() float64 {
	return minFactor + rand.Float64()*(maxFactor-minFactor)
}

// NextPrice applies factor to price, rounds to cents and clamps into [model.MinStockPrice, model.MaxStockPrice].
func NextPrice(price decimal.Decimal, factor float64) decimal.Decimal {
	return model.ClampPrice(price.Mul(decimal.NewFromFloat(factor)).Round(2))
}

// UpdateStockPrices moves every stock's price once and records it in price history.
// Each stock is updated in its own transaction; failures are collected and do not stop the rest.
func (s *PriceService) UpdateStockPrices(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PriceService.UpdateStockPrices"

	stocks, err := s.repo.GetStocks(ctx, 0)
	if err != nil {
		slog.Error("got error from repo.GetStocks", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	recordedAt := s.now()
	var errs []error
	updated := 0

	for _, stock := range stocks {
		err = s.updateStockPrice(ctx, stock.ID, recordedAt)
		if err != nil {
			slog.Error(
				"failed to update stock price",
				slog.String("rqID", rqID),
				slog.String("op", op),
				slog.Int64("stockID", stock.ID),
				slog.String("symbol", stock.Symbol),
				slog.String("err", err.Error()),
			)
			errs = append(errs, fmt.Errorf("stock %s: %w", stock.Symbol, err))
			continue
		}
		updated++
	}

	if s.cache != nil {
		if err = s.cache.FlushStockBoards(ctx); err != nil {
			slog.Warn("can't flush stock boards cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
		if err = s.cache.FlushUserBoards(ctx); err != nil {
			slog.Warn("can't flush user boards cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}

	slog.Info("stock prices updated", slog.String("rqID", rqID), slog.String("op", op), slog.Int("updated", updated), slog.Int("failed", len(errs)))

	return errors.Join(errs...)
}

func (s *PriceService) updateStockPrice(ctx context.Context, stockID int64, recordedAt time.Time) error {
	return s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		stock, err := s.repo.GetStockForUpdate(ctx, stockID)
		if err != nil {
			return err
		}

		price := NextPrice(stock.CurrentPrice, s.factor())

		if err = s.repo.UpdateStockPrice(ctx, stockID, price); err != nil {
			return err
		}

		return s.repo.InsertPriceHistory(ctx, stockID, price, recordedAt)
	})
}
